package main

import (
	"fmt"
	"os"
	"time"

	"gatehouse-analytics/internal/auth"
	"gatehouse-analytics/internal/config"
	"gatehouse-analytics/internal/db"
	httphandler "gatehouse-analytics/internal/http"
	"gatehouse-analytics/internal/http/middleware"
	"gatehouse-analytics/internal/logger"
	"gatehouse-analytics/internal/model"
	"gatehouse-analytics/internal/repository"
	"gatehouse-analytics/internal/scope"
	"gatehouse-analytics/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.Environment)

	database, err := db.New(cfg, appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to connect database")
	}

	pollInterval := time.Duration(cfg.Analytics.PollIntervalSeconds) * time.Second
	documents := repository.NewDocumentRepository(database, pollInterval, appLogger)
	resolver := scope.NewResolver(documents)

	durations := model.DurationConfig{
		ShortLimitHours:       cfg.Analytics.ShortLimitHours,
		MediumLimitHours:      cfg.Analytics.MediumLimitHours,
		DelayedThresholdHours: cfg.Analytics.DelayedThresholdHours,
	}
	gatehouseService := service.NewGatehouseService(documents, resolver, durations, cfg.Analytics.RecentLimit, appLogger)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)

	handler := httphandler.NewHandler(gatehouseService, appLogger)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	appLogger.Info().Str("addr", addr).Msg("starting gatehouse analytics service")

	if err := router.Run(addr); err != nil {
		appLogger.Error().Err(err).Msg("failed to start server")
		os.Exit(1)
	}
}
