package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"plotledger_app/internal/config"
	"plotledger_app/internal/handlers"
	"plotledger_app/internal/repository"
	"plotledger_app/internal/services"
	"plotledger_app/internal/tasks"
)

// Container holds the wired services shared by the server and the worker
type Container struct {
	Config *config.Config
	Log    *logrus.Entry

	DB    *gorm.DB
	Cache *services.RedisCache // nil without REDIS_URL

	Store       repository.Store
	Locker      services.Locker
	Sequence    services.SequenceAllocator
	Notifier    services.Notifier
	Eligibility *services.EligibilityEvaluator
	Payments    *services.PaymentOrchestrator
	Wallets     *services.WalletLedger
	Users       *services.Registration
}

// Build connects to the database (and Redis when configured) and wires the services
func Build(cfg *config.Config, log *logrus.Entry) (*Container, error) {
	db, err := services.InitDB(cfg.DatabaseURL, log)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := services.AutoMigrate(db, log); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	c := &Container{Config: cfg, Log: log, DB: db}

	if cfg.RedisURL != "" {
		cache, err := services.NewRedisCache(cfg.RedisURL, log)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, using in-process locks and database sequences")
		} else {
			c.Cache = cache
		}
	}

	if c.Cache != nil {
		c.Locker = services.NewRedisLocker(c.Cache, cfg.LockTTL, cfg.LockWait, log)
		c.Sequence = services.NewRedisSequence(c.Cache)
	} else {
		c.Locker = services.NewLocalLocker(cfg.LockWait)
		c.Sequence = services.NewDBSequence(db)
	}

	now := time.Now
	c.Store = repository.NewGormStore(db)
	c.Notifier = tasks.NewTaskNotifier(db, now, log.WithField("component", "notifier"))

	delivery := tasks.NewCredentialDelivery(db, services.NewEmailService(cfg), services.NewWahaService(cfg), log)

	referrals := services.NewReferralDirectory(c.Store.Referrers(), c.Cache, log)
	c.Eligibility = services.NewEligibilityEvaluator(c.Store, c.Locker, c.Notifier, now, log)
	c.Wallets = services.NewWalletLedger(c.Store, c.Locker, now, log)
	c.Users = services.NewRegistration(c.Store, referrals, log)
	c.Payments = services.NewPaymentOrchestrator(services.PaymentOrchestratorDeps{
		Store:       c.Store,
		Schedule:    services.NewScheduleEngine(now),
		Eligibility: c.Eligibility,
		Commissions: services.NewCommissionRouter(referrals, now, log),
		Credentials: services.NewCredentialIssuer(c.Store, c.Sequence, c.Locker, delivery, cfg.UsernamePrefix, cfg.UsernameSuffix, log),
		Sequence:    c.Sequence,
		Locker:      c.Locker,
		Notifier:    c.Notifier,
		Now:         now,
		Log:         log,
	})

	return c, nil
}

// HealthChecks lists the dependencies reported by /healthz
func (c *Container) HealthChecks() map[string]handlers.Pinger {
	checks := map[string]handlers.Pinger{
		"database": handlers.PingFunc(func(ctx context.Context) error {
			sqlDB, err := c.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}),
	}
	if c.Cache != nil {
		checks["redis"] = c.Cache
	}
	return checks
}

// Close releases the database and Redis connections
func (c *Container) Close() {
	if c.Cache != nil {
		if err := c.Cache.Close(); err != nil {
			c.Log.WithError(err).Warn("Failed to close Redis")
		}
	}
	if sqlDB, err := c.DB.DB(); err == nil {
		sqlDB.Close()
	}
}
