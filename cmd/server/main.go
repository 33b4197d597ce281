// Alsobought - Frequently-Bought-Together Product Recommendations
// Copyright 2026 J. Mehring (jmehring)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmehring/alsobought

// Command server runs the Alsobought service: the related-products read
// API, the admin recompute/preview operations, and the background
// recomputation pipeline.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehring/alsobought/internal/api"
	"github.com/jmehring/alsobought/internal/basket"
	"github.com/jmehring/alsobought/internal/catalog"
	"github.com/jmehring/alsobought/internal/config"
	"github.com/jmehring/alsobought/internal/logging"
	"github.com/jmehring/alsobought/internal/mining"
	"github.com/jmehring/alsobought/internal/orders"
	"github.com/jmehring/alsobought/internal/preview"
	"github.com/jmehring/alsobought/internal/recompute"
)

func main() {
	if err := run(); err != nil {
		logger := logging.Logger()
		logger.Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()

	store, err := catalog.OpenBadger(cfg.Catalog.Path, cfg.Catalog.PreserveManual)
	if err != nil {
		return fmt.Errorf("open catalog store: %w", err)
	}
	defer store.Close()

	orderStore, err := orders.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open order history: %w", err)
	}
	defer orderStore.Close()

	builder := basket.NewBuilder(orderStore, cfg.Database.OrderBatchSize, logger)
	miner := mining.NewFPGrowth(mining.Limits{
		MaxItemSets: cfg.Mining.MaxItemSets,
		Budget:      cfg.Mining.Budget,
	})

	orch, err := recompute.New(recompute.Config{
		MaxRelated:           cfg.Relations.MaxRelated,
		Lookback:             cfg.Relations.Lookback,
		SupportThreshold:     cfg.Mining.SupportThreshold,
		ChannelSupport:       cfg.Mining.ChannelSupport,
		RetryCount:           cfg.Jobs.RetryCount,
		RetryInitialInterval: cfg.Jobs.RetryInitialInterval,
		RetryMaxInterval:     cfg.Jobs.RetryMaxInterval,
		PoisonTopic:          cfg.Jobs.PoisonTopic,
		CloseTimeout:         cfg.Jobs.CloseTimeout,
	}, builder, miner, store, logger)
	if err != nil {
		return fmt.Errorf("create orchestrator: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := orch.Start(ctx); err != nil {
		return err
	}
	defer orch.Close()

	previewSvc := preview.NewService(builder, miner, cfg.Relations.Lookback, cfg.Mining.PreviewK, logger)
	handler := api.NewHandler(store, orch, previewSvc, cfg.Relations.MaxRelated, cfg.Server.Timeout)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(handler, cfg.Server.AdminRateLimit),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("server listening")
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Jobs.CloseTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}
