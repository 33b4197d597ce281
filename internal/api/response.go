// Alsobought - Frequently-Bought-Together Product Recommendations
// Copyright 2026 J. Mehring (jmehring)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmehring/alsobought

// Package api exposes the HTTP surface: the storefront related-products
// read, the admin recompute/preview operations, and health/metrics.
package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/jmehring/alsobought/internal/logging"
)

// APIResponse is the standardized response wrapper for all endpoints.
type APIResponse struct {
	// Success indicates whether the request was successful
	Success bool `json:"success"`

	// Data contains the response payload (null on error)
	Data interface{} `json:"data,omitempty"`

	// Error contains error details (null on success)
	Error *APIError `json:"error,omitempty"`

	// Meta contains optional metadata about the response
	Meta *APIMeta `json:"meta,omitempty"`
}

// APIError represents an error response.
type APIError struct {
	// Code is a machine-readable error code
	Code string `json:"code"`

	// Message is a human-readable error message
	Message string `json:"message"`

	// RequestID is the request ID for tracing
	RequestID string `json:"request_id,omitempty"`
}

// APIMeta contains optional response metadata.
type APIMeta struct {
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Error codes for API responses.
const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeConfigError      = "CONFIG_ERROR"
	ErrCodeMiningOverrun    = "MINING_OVERRUN"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger := logging.Logger()
		logger.Error().Err(err).Msg("encode response")
	}
}

// respondSuccess writes a success envelope.
func respondSuccess(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	respondJSON(w, status, &APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			RequestID: requestIDFrom(r),
			Timestamp: time.Now().UTC(),
		},
	})
}

// respondError writes an error envelope. The underlying error is logged,
// not leaked to the client.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	requestID := requestIDFrom(r)
	if err != nil {
		logger := logging.Logger()
		logger.Error().
			Err(err).
			Str("request_id", requestID).
			Str("code", code).
			Int("status", status).
			Msg(message)
	}
	respondJSON(w, status, &APIResponse{
		Success: false,
		Error: &APIError{
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
	})
}
