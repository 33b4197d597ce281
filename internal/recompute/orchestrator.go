// Alsobought - Frequently-Bought-Together Product Recommendations
// Copyright 2026 J. Mehring (jmehring)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmehring/alsobought

// Package recompute drives the full ranking pipeline as background jobs.
//
// A trigger enqueues one job per channel onto a Watermill pub/sub; the
// job handler runs Transaction Builder -> Miner -> Ranker and persists
// the result as one atomic catalog batch. The Watermill router supplies
// the job-runner semantics the pipeline relies on: panic recovery,
// exponential-backoff retries, and a poison topic for jobs that exhaust
// their retries.
//
// # Single flight
//
// At most one mining run per channel is in flight at a time. A trigger
// received while a run is active (including while its retries back off)
// does not enqueue a second job; it marks the channel dirty and the
// active handler runs the pipeline again before finishing. Triggers for
// different channels run independently.
package recompute

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jmehring/alsobought/internal/basket"
	"github.com/jmehring/alsobought/internal/catalog"
	"github.com/jmehring/alsobought/internal/metrics"
	"github.com/jmehring/alsobought/internal/mining"
	"github.com/jmehring/alsobought/internal/relate"
)

// TopicRecompute carries recomputation job messages.
const TopicRecompute = "recompute.trigger"

// Config holds orchestrator settings.
type Config struct {
	// MaxRelated caps each product's relation list.
	MaxRelated int

	// Lookback bounds how far back order history is read.
	Lookback time.Duration

	// SupportThreshold is the default minimum support; ChannelSupport
	// overrides it per channel.
	SupportThreshold float64
	ChannelSupport   map[string]float64

	// Job retry policy.
	RetryCount           int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration

	// PoisonTopic receives jobs that exhausted their retries.
	PoisonTopic string

	// CloseTimeout bounds shutdown.
	CloseTimeout time.Duration
}

// ErrConfig marks a configuration error: surfaced synchronously to the
// caller, never enqueued as a job.
var ErrConfig = errors.New("recompute: invalid configuration")

// job is the serialized payload of one recomputation job.
type job struct {
	JobID   string `json:"job_id"`
	Channel string `json:"channel"`
}

// flight tracks the in-flight run for a channel.
type flight struct {
	jobID string
	dirty bool
}

// Orchestrator schedules and executes recomputation runs.
type Orchestrator struct {
	cfg     Config
	builder *basket.Builder
	miner   mining.Miner
	catalog catalog.Store
	logger  zerolog.Logger

	pubsub *gochannel.GoChannel
	router *message.Router

	mu       sync.Mutex
	inflight map[string]*flight
}

// New creates an orchestrator and wires its Watermill router. Call Start
// before Trigger.
func New(cfg Config, builder *basket.Builder, miner mining.Miner, store catalog.Store, logger zerolog.Logger) (*Orchestrator, error) {
	if cfg.PoisonTopic == "" {
		cfg.PoisonTopic = "recompute.poison"
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 30 * time.Second
	}

	o := &Orchestrator{
		cfg:      cfg,
		builder:  builder,
		miner:    miner,
		catalog:  store,
		logger:   logger.With().Str("component", "recompute").Logger(),
		inflight: make(map[string]*flight),
	}

	wmLogger := newWatermillLogger(logger)
	o.pubsub = gochannel.NewGoChannel(gochannel.Config{}, wmLogger)

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	// First added runs outermost: a handler error passes the retry policy
	// first and reaches the poison queue only once retries are exhausted.
	// Recoverer sits innermost so panics surface as retryable errors.
	poison, err := middleware.PoisonQueue(o.pubsub, cfg.PoisonTopic)
	if err != nil {
		return nil, fmt.Errorf("create poison queue middleware: %w", err)
	}
	router.AddMiddleware(poison)

	retry := middleware.Retry{
		MaxRetries:      cfg.RetryCount,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      2.0,
		Logger:          wmLogger,
	}
	router.AddMiddleware(retry.Middleware)

	router.AddMiddleware(middleware.Recoverer)

	router.AddNoPublisherHandler("recompute", TopicRecompute, o.pubsub, o.handleRecompute)
	router.AddNoPublisherHandler("recompute-poison", cfg.PoisonTopic, o.pubsub, o.handlePoisoned)

	o.router = router
	return o, nil
}

// Start runs the router until ctx is canceled. It returns once the router
// is accepting messages.
func (o *Orchestrator) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- o.router.Run(ctx)
	}()

	select {
	case <-o.router.Running():
		return nil
	case err := <-errCh:
		return fmt.Errorf("router failed to start: %w", err)
	}
}

// Close shuts the router and pub/sub down.
func (o *Orchestrator) Close() error {
	if err := o.router.Close(); err != nil {
		return err
	}
	return o.pubsub.Close()
}

// Trigger enqueues a recomputation run for a channel. When a run for the
// channel is already in flight the trigger coalesces into it: the
// in-flight job's ID is returned with coalesced set, and the pipeline
// runs once more after the current run finishes.
func (o *Orchestrator) Trigger(ctx context.Context, channel string) (jobID string, coalesced bool, err error) {
	if channel == "" {
		return "", false, fmt.Errorf("%w: channel must not be empty", ErrConfig)
	}
	if o.cfg.MaxRelated <= 0 {
		return "", false, fmt.Errorf("%w: max related products must be positive, got %d", ErrConfig, o.cfg.MaxRelated)
	}
	if s := o.supportFor(channel); s <= 0 {
		return "", false, fmt.Errorf("%w: support threshold must be positive, got %v", ErrConfig, float64(s))
	}

	o.mu.Lock()
	if f, ok := o.inflight[channel]; ok {
		f.dirty = true
		id := f.jobID
		o.mu.Unlock()
		o.logger.Info().Str("channel", channel).Str("job_id", id).Msg("trigger coalesced into running job")
		return id, true, nil
	}
	jobID = uuid.NewString()
	o.inflight[channel] = &flight{jobID: jobID}
	o.mu.Unlock()

	if err := o.enqueue(job{JobID: jobID, Channel: channel}); err != nil {
		o.clearFlight(channel)
		return "", false, err
	}

	o.logger.Info().Str("channel", channel).Str("job_id", jobID).Msg("recomputation enqueued")
	return jobID, false, nil
}

// enqueue publishes one job message. No caller context is attached: the
// run must outlive the HTTP request that enqueued it, so the handler
// inherits the router's context instead.
func (o *Orchestrator) enqueue(j job) error {
	payload, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := o.pubsub.Publish(TopicRecompute, msg); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// handleRecompute executes one job delivery. Returning an error engages
// the router's retry policy; the in-flight marker stays put so concurrent
// triggers keep coalescing during backoff.
func (o *Orchestrator) handleRecompute(msg *message.Message) error {
	var j job
	if err := json.Unmarshal(msg.Payload, &j); err != nil {
		return fmt.Errorf("unmarshal job: %w", err)
	}

	for {
		if err := o.run(msg.Context(), j); err != nil {
			return err
		}

		o.mu.Lock()
		f := o.inflight[j.Channel]
		if f != nil && f.dirty {
			f.dirty = false
			o.mu.Unlock()
			o.logger.Info().Str("channel", j.Channel).Str("job_id", j.JobID).Msg("rerunning for coalesced trigger")
			continue
		}
		delete(o.inflight, j.Channel)
		o.mu.Unlock()
		return nil
	}
}

// handlePoisoned reports a job that exhausted its retries and releases
// the channel so future triggers can run. A trigger that coalesced into
// the dead job while its retries were failing marked the flight dirty;
// that trigger still expects a run, so a fresh job is enqueued for it.
func (o *Orchestrator) handlePoisoned(msg *message.Message) error {
	var j job
	if err := json.Unmarshal(msg.Payload, &j); err != nil {
		o.logger.Error().Err(err).Msg("unreadable poisoned job")
		return nil
	}

	o.logger.Error().
		Str("channel", j.Channel).
		Str("job_id", j.JobID).
		Str("reason", msg.Metadata.Get(middleware.ReasonForPoisonedKey)).
		Msg("recomputation permanently failed")
	metrics.RunsTotal.WithLabelValues(j.Channel, "poisoned").Inc()

	o.mu.Lock()
	f := o.inflight[j.Channel]
	if f == nil || f.jobID != j.JobID {
		// The channel's slot already belongs to a newer job.
		o.mu.Unlock()
		return nil
	}
	if !f.dirty {
		delete(o.inflight, j.Channel)
		o.mu.Unlock()
		return nil
	}
	next := job{JobID: uuid.NewString(), Channel: j.Channel}
	o.inflight[j.Channel] = &flight{jobID: next.JobID}
	o.mu.Unlock()

	if err := o.enqueue(next); err != nil {
		o.clearFlight(j.Channel)
		o.logger.Error().Err(err).Str("channel", j.Channel).Msg("re-enqueue coalesced trigger")
		return nil
	}
	o.logger.Info().
		Str("channel", j.Channel).
		Str("job_id", next.JobID).
		Msg("re-enqueued coalesced trigger after permanent failure")
	return nil
}

// run executes the pipeline once: build, mine, rank, persist. Any stage
// error aborts the run with nothing persisted.
func (o *Orchestrator) run(ctx context.Context, j job) error {
	start := time.Now()
	support := o.supportFor(j.Channel)
	logger := o.logger.With().
		Str("channel", j.Channel).
		Str("job_id", j.JobID).
		Float64("support", float64(support)).
		Logger()

	transactions, err := o.builder.Build(ctx, j.Channel, start.Add(-o.cfg.Lookback))
	if err != nil {
		metrics.ObserveRun(j.Channel, "failure", start)
		return fmt.Errorf("channel %s: build transactions: %w", j.Channel, err)
	}
	metrics.BasketsBuilt.WithLabelValues(j.Channel).Observe(float64(len(transactions)))

	itemsets, err := o.miner.Mine(ctx, transactions, support)
	if err != nil {
		metrics.ObserveRun(j.Channel, "failure", start)
		return fmt.Errorf("channel %s: mine itemsets: %w", j.Channel, err)
	}
	metrics.ItemsetsMined.WithLabelValues(j.Channel).Observe(float64(len(itemsets)))

	relations := relate.Rank(itemsets, o.cfg.MaxRelated)

	if err := o.catalog.ReplaceChannel(ctx, j.Channel, relations, o.cfg.MaxRelated, j.JobID); err != nil {
		metrics.ObserveRun(j.Channel, "failure", start)
		return fmt.Errorf("channel %s: persist relations: %w", j.Channel, err)
	}

	metrics.ObserveRun(j.Channel, "success", start)
	logger.Info().
		Int("transactions", len(transactions)).
		Int("item_sets", len(itemsets)).
		Int("products", len(relations)).
		Dur("took", time.Since(start)).
		Msg("recomputation run complete")
	return nil
}

// supportFor resolves the support threshold for a channel.
func (o *Orchestrator) supportFor(channel string) mining.MinSupport {
	if s, ok := o.cfg.ChannelSupport[channel]; ok {
		return mining.MinSupport(s)
	}
	return mining.MinSupport(o.cfg.SupportThreshold)
}

func (o *Orchestrator) clearFlight(channel string) {
	o.mu.Lock()
	delete(o.inflight, channel)
	o.mu.Unlock()
}
