// Alsobought - Frequently-Bought-Together Product Recommendations
// Copyright 2026 J. Mehring (jmehring)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmehring/alsobought

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmehring/alsobought/internal/logging"
	"github.com/jmehring/alsobought/internal/metrics"
)

// requestIDKey carries the request ID through the request context.
type contextKey string

const requestIDKey contextKey = "request_id"

// requestIDHeader is honored when the client supplies its own ID.
const requestIDHeader = "X-Request-ID"

// NewRouter builds the chi router. adminRateLimit is the per-IP admin
// request budget per minute.
func NewRouter(h *Handler, adminRateLimit int) http.Handler {
	if adminRateLimit < 1 {
		adminRateLimit = 60
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products/{productID}/related", h.GetRelated)

		r.Route("/admin", func(r chi.Router) {
			r.Use(httprate.LimitByIP(adminRateLimit, time.Minute))
			r.Post("/recompute", h.TriggerRecompute)
			r.Post("/preview", h.PreviewThreshold)
			r.Put("/products/{productID}/related/manual", h.SetManual)
		})
	})

	return r
}

// requestID assigns or propagates a request ID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// requestIDFrom extracts the request ID, if any.
func requestIDFrom(r *http.Request) string {
	if id, ok := r.Context().Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// accessLog emits one structured log line per request and feeds the API
// metrics.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		metrics.ObserveAPIRequest(r.Method, routePattern, ww.Status(), start)
		logger := logging.Logger()
		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", requestIDFrom(r)).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}
