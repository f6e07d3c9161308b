package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/coaching-health-scorer/internal/api"
	"github.com/coaching-health-scorer/internal/cache"
	"github.com/coaching-health-scorer/internal/config"
	"github.com/coaching-health-scorer/internal/database"
	"github.com/coaching-health-scorer/internal/domain"
	"github.com/coaching-health-scorer/internal/repository"
	"github.com/coaching-health-scorer/internal/rules"
	"github.com/coaching-health-scorer/internal/service"
)

func main() {
	configFile := flag.String("config", "", "path to config.yaml (defaults to the standard search paths)")
	flag.Parse()

	// Load configuration
	configManager, err := config.NewManagerFromFile(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := config.NewLogger(cfg.Logging)

	// Stop on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, configManager, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}

func run(ctx context.Context, configManager domain.ConfigManager, logger *logrus.Logger) error {
	cfg := configManager.GetConfig()

	ruleSet, err := rules.Load(cfg.Rules)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"naq_digest":           ruleSet.NAQ.Digest,
		"micronutrient_digest": ruleSet.Micronutrient.Digest,
	}).Info("Rule tables loaded")

	if cfg.Database.AutoMigrate {
		if err := migrate(ctx, configManager.GetDatabaseURL(), logger); err != nil {
			return err
		}
	}

	db, err := database.NewConnection(ctx, database.ConfigFromDomain(cfg.Database), logger)
	if err != nil {
		return err
	}
	defer db.Close()

	store := repository.NewResilientStore(
		repository.NewAssessmentRepository(db.Pool, logger),
		repository.DefaultCircuitBreakerConfig(),
		logger,
	)

	// A nil *ResultCache must not reach the service as a non-nil interface.
	var resultCache domain.ResultCache
	if cfg.Cache.Enabled {
		c, err := cache.New(cfg.Cache, logger)
		if err != nil {
			return err
		}
		defer c.Close()
		resultCache = c
	}

	svc := service.NewAssessmentService(logger, store, resultCache, ruleSet, cfg.Scoring)
	server := api.NewServer(cfg.Server, svc, logger)

	logger.WithFields(logrus.Fields{
		"host":        cfg.Server.Host,
		"port":        cfg.Server.Port,
		"environment": cfg.Environment,
	}).Info("Starting health assessment scoring server")

	return server.Start(ctx)
}

func migrate(ctx context.Context, databaseURL string, logger *logrus.Logger) error {
	runner, err := database.NewMigrationRunner(databaseURL, logger)
	if err != nil {
		return err
	}
	defer runner.Close()
	return runner.Up(ctx)
}
