package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"plotledger_app/internal/app"
	"plotledger_app/internal/config"
	"plotledger_app/internal/handlers"
	"plotledger_app/internal/logger"
	"plotledger_app/internal/metrics"
	apiMiddleware "plotledger_app/internal/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := logger.New("server", cfg.LogLevel)

	container, err := app.Build(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialise services")
	}
	defer container.Close()

	serverMetrics := metrics.New("server")
	if sqlDB, err := container.DB.DB(); err == nil {
		statsCtx, stopStats := context.WithCancel(context.Background())
		defer stopStats()
		go serverMetrics.CollectDBStats(statsCtx, sqlDB, 30*time.Second)
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = apiMiddleware.JSONErrorHandler(log)
	e.Validator = handlers.NewRequestValidator()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(serverMetrics.Middleware())

	e.GET("/healthz", handlers.NewHealthHandler(container.HealthChecks()).Healthz)
	e.GET("/metrics", echo.WrapHandler(serverMetrics.Handler()))

	api := e.Group("")
	handlers.NewLedgerHandler(container.Payments).Register(api)
	handlers.NewWalletHandler(container.Wallets).Register(api)
	handlers.NewUserHandler(container.Users).Register(api)
	handlers.NewUserPreferenceHandler(container.DB).Register(api)

	go func() {
		log.Infof("Server starting on port %s", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server stopped")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
}
