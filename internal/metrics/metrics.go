// Alsobought - Frequently-Bought-Together Product Recommendations
// Copyright 2026 J. Mehring (jmehring)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmehring/alsobought

// Package metrics provides Prometheus instrumentation for the
// recomputation pipeline and the serving path. Metrics are exposed at
// /metrics in Prometheus text format.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recomputation pipeline metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alsobought_runs_total",
			Help: "Total recomputation runs by outcome",
		},
		[]string{"channel", "outcome"}, // outcome: "success", "failure", "poisoned"
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alsobought_run_duration_seconds",
			Help:    "Duration of recomputation runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"channel"},
	)

	BasketsBuilt = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alsobought_baskets_built",
			Help:    "Transactions built per recomputation run",
			Buckets: prometheus.ExponentialBuckets(10, 10, 6), // 10 .. 1M
		},
		[]string{"channel"},
	)

	ItemsetsMined = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alsobought_itemsets_mined",
			Help:    "Itemsets mined per recomputation run",
			Buckets: prometheus.ExponentialBuckets(10, 10, 6),
		},
		[]string{"channel"},
	)

	// Serving metrics
	RelatedReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alsobought_related_reads_total",
			Help: "Related-products reads by result",
		},
		[]string{"result"}, // "hit", "empty", "error"
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alsobought_api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alsobought_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)

// ObserveRun records the outcome and duration of one recomputation run.
func ObserveRun(channel, outcome string, start time.Time) {
	RunsTotal.WithLabelValues(channel, outcome).Inc()
	RunDuration.WithLabelValues(channel).Observe(time.Since(start).Seconds())
}

// ObserveAPIRequest records one API request.
func ObserveAPIRequest(method, endpoint string, status int, start time.Time) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
}
