// Alsobought - Frequently-Bought-Together Product Recommendations
// Copyright 2026 J. Mehring (jmehring)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmehring/alsobought

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/jmehring/alsobought/internal/catalog"
	"github.com/jmehring/alsobought/internal/metrics"
	"github.com/jmehring/alsobought/internal/mining"
	"github.com/jmehring/alsobought/internal/preview"
	"github.com/jmehring/alsobought/internal/recompute"
)

// DefaultChannel is assumed when a request names no channel.
const DefaultChannel = "default"

// Handler serves the related-products API.
type Handler struct {
	catalog      catalog.Store
	orchestrator *recompute.Orchestrator
	preview      *preview.Service
	maxRelated   int
	timeout      time.Duration
	validate     *validator.Validate
}

// NewHandler creates the API handler. maxRelated is the currently
// configured serving cap, applied again at read time in case the
// configuration shrank after the last run.
func NewHandler(store catalog.Store, orch *recompute.Orchestrator, prev *preview.Service, maxRelated int, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Handler{
		catalog:      store,
		orchestrator: orch,
		preview:      prev,
		maxRelated:   maxRelated,
		timeout:      timeout,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RelatedEntry is one served relation.
type RelatedEntry struct {
	ProductID string `json:"product_id"`
	Support   int    `json:"support,omitempty"`
	Manual    bool   `json:"manual,omitempty"`
}

// RelatedResponse is the payload of the related-products read.
type RelatedResponse struct {
	ProductID string         `json:"product_id"`
	Channel   string         `json:"channel"`
	Related   []RelatedEntry `json:"related"`
}

// GetRelated handles GET /api/v1/products/{productID}/related.
//
// A product with no stored list serves an empty list, never an error: a
// failed recomputation must not break the storefront, which keeps
// serving the last committed snapshot.
func (h *Handler) GetRelated(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	channel := r.URL.Query().Get("channel")
	if channel == "" {
		channel = DefaultChannel
	}

	limit := h.maxRelated
	if s := r.URL.Query().Get("max"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 && parsed < limit {
			limit = parsed
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	list, err := h.catalog.Get(ctx, channel, productID)
	if errors.Is(err, catalog.ErrNotFound) {
		metrics.RelatedReadsTotal.WithLabelValues("empty").Inc()
		respondSuccess(w, r, http.StatusOK, &RelatedResponse{
			ProductID: productID,
			Channel:   channel,
			Related:   []RelatedEntry{},
		})
		return
	}
	if err != nil {
		metrics.RelatedReadsTotal.WithLabelValues("error").Inc()
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Failed to read related products", err)
		return
	}

	related := make([]RelatedEntry, 0, limit)
	for _, e := range list.Entries {
		if len(related) >= limit {
			break
		}
		related = append(related, RelatedEntry{ProductID: e.ProductID, Support: e.Support, Manual: e.Manual})
	}

	if len(related) == 0 {
		metrics.RelatedReadsTotal.WithLabelValues("empty").Inc()
	} else {
		metrics.RelatedReadsTotal.WithLabelValues("hit").Inc()
	}
	respondSuccess(w, r, http.StatusOK, &RelatedResponse{
		ProductID: productID,
		Channel:   channel,
		Related:   related,
	})
}

// TriggerRequest is the recompute trigger payload.
type TriggerRequest struct {
	Channel string `json:"channel" validate:"required"`
}

// TriggerResponse acknowledges an enqueued or coalesced job.
type TriggerResponse struct {
	JobID     string `json:"job_id"`
	Channel   string `json:"channel"`
	Coalesced bool   `json:"coalesced"`
}

// TriggerRecompute handles POST /api/v1/admin/recompute.
func (h *Handler) TriggerRecompute(w http.ResponseWriter, r *http.Request) {
	var req TriggerRequest
	if !h.decode(w, r, &req) {
		return
	}

	jobID, coalesced, err := h.orchestrator.Trigger(r.Context(), req.Channel)
	if errors.Is(err, recompute.ErrConfig) {
		respondError(w, r, http.StatusBadRequest, ErrCodeConfigError, err.Error(), nil)
		return
	}
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Failed to enqueue recomputation", err)
		return
	}

	status := http.StatusAccepted
	if coalesced {
		status = http.StatusOK
	}
	respondSuccess(w, r, status, &TriggerResponse{
		JobID:     jobID,
		Channel:   req.Channel,
		Coalesced: coalesced,
	})
}

// PreviewRequest is the threshold preview payload.
type PreviewRequest struct {
	Channel string  `json:"channel" validate:"required"`
	Support float64 `json:"support" validate:"required,gt=0"`
}

// PreviewThreshold handles POST /api/v1/admin/preview.
func (h *Handler) PreviewThreshold(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Support >= 1 && req.Support != float64(int(req.Support)) {
		respondError(w, r, http.StatusBadRequest, ErrCodeConfigError, "absolute support must be a whole number", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	report, err := h.preview.Preview(ctx, req.Channel, mining.MinSupport(req.Support))
	if errors.Is(err, mining.ErrTooManyItemsets) || errors.Is(err, mining.ErrBudgetExceeded) {
		respondError(w, r, http.StatusUnprocessableEntity, ErrCodeMiningOverrun,
			"Candidate support produces too many item sets; raise the threshold", err)
		return
	}
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Preview failed", err)
		return
	}

	respondSuccess(w, r, http.StatusOK, report)
}

// ManualRequest is the manual curation payload.
type ManualRequest struct {
	Channel           string   `json:"channel" validate:"required"`
	RelatedProductIDs []string `json:"related_product_ids"`
}

// SetManual handles PUT /api/v1/admin/products/{productID}/related/manual.
// It pins operator-chosen products at the head of a product's list.
func (h *Handler) SetManual(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	var req ManualRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.catalog.SetManual(ctx, req.Channel, productID, req.RelatedProductIDs); err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Failed to pin related products", err)
		return
	}
	respondSuccess(w, r, http.StatusOK, map[string]string{"product_id": productID, "channel": req.Channel})
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// decode parses and validates a JSON request body. On failure it writes
// the error response and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
		return false
	}
	return true
}
