package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"plotledger_app/internal/app"
	"plotledger_app/internal/config"
	"plotledger_app/internal/logger"
	"plotledger_app/internal/metrics"
	"plotledger_app/internal/services"
	"plotledger_app/internal/tasks"
)

const sweepMaxAttempt = 3

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := logger.New("worker", cfg.LogLevel)

	container, err := app.Build(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialise services")
	}
	defer container.Close()

	// Initialize Task Registry
	registry := tasks.NewRegistry()
	tasks.DefineTasks(registry, tasks.Dependencies{
		DB:       container.DB,
		Sweeper:  container.Eligibility,
		Wallets:  container.Wallets,
		Email:    services.NewEmailService(cfg),
		Whatsapp: services.NewWahaService(cfg),
		Log:      log,
	})

	sweep, err := tasks.EnsureRecurringTask(container.DB, tasks.CheckEmiStatusTaskName, cfg.EmiSweepRRule, time.Now(), sweepMaxAttempt)
	if err != nil {
		log.WithError(err).Fatal("Failed to schedule the EMI sweep")
	}
	log.WithFields(logrus.Fields{"task_id": sweep.ID, "due": sweep.Due}).Info("EMI sweep scheduled")

	workerMetrics := metrics.New("worker")
	runner := tasks.NewRunner(container.DB, registry, time.Now, log).WithObserver(workerMetrics)

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sqlDB, err := container.DB.DB(); err == nil {
		go workerMetrics.CollectDBStats(ctx, sqlDB, 30*time.Second)
	}

	metricsServer := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: workerMetrics.Handler()}
	go func() {
		log.Infof("Metrics listening on port %s", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Metrics server stopped")
		}
	}()
	defer metricsServer.Close()

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Info("Shutting down worker...")
		cancel()
	}()

	ticker := time.NewTicker(cfg.WorkerTick)
	defer ticker.Stop()

	log.WithField("tick", cfg.WorkerTick.String()).Info("Worker started")

	// Run once at startup, then on every tick
	process(ctx, runner, log)

	for {
		select {
		case <-ticker.C:
			process(ctx, runner, log)
		case <-ctx.Done():
			return
		}
	}
}

func process(ctx context.Context, runner *tasks.Runner, log *logrus.Entry) {
	if _, err := runner.ProcessDue(ctx); err != nil {
		log.WithError(err).Error("Failed to process scheduled tasks")
	}
}
