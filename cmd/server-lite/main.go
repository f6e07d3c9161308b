// Package main provides the lightweight entry point for the scoring server.
// This version requires no external databases - uses in-memory caching and SQLite.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/coaching-health-scorer/internal/api"
	"github.com/coaching-health-scorer/internal/cache"
	"github.com/coaching-health-scorer/internal/config"
	"github.com/coaching-health-scorer/internal/rules"
	"github.com/coaching-health-scorer/internal/service"
	"github.com/coaching-health-scorer/internal/store"
)

func main() {
	// Load lightweight configuration
	cfg := config.LoadLiteConfig()
	logger := config.NewLogger(cfg.LoggingConfig())

	if err := cfg.EnsureDataDir(); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("Lite server failed")
	}
	logger.Info("Lite server stopped")
}

func run(ctx context.Context, cfg *config.LiteConfig, logger *logrus.Logger) error {
	ruleSet, err := rules.Load(cfg.RulesConfig())
	if err != nil {
		return err
	}

	st, err := store.NewSQLiteStore(cfg.DBPath(), logger)
	if err != nil {
		return err
	}
	defer st.Close()

	resultCache, err := cache.New(cfg.CacheConfig(), logger)
	if err != nil {
		return err
	}
	defer resultCache.Close()

	svc := service.NewAssessmentService(logger, st, resultCache, ruleSet, cfg.ScoringConfig())
	server := api.NewServer(cfg.ServerConfig(), svc, logger)

	logger.WithFields(logrus.Fields{
		"data_dir": cfg.DataDir,
		"port":     cfg.HTTPPort,
	}).Info("Starting scoring server (lite)")

	return server.Start(ctx)
}
