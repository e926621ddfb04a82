package services

import (
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"plotledger_app/internal/models"
)

// InitDB opens the Postgres connection with pooling.
// TranslateError lets repositories detect unique violations as gorm.ErrDuplicatedKey.
func InitDB(dsn string, log *logrus.Entry) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("Database connection established")
	return db, nil
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB, log *logrus.Entry) error {
	log.Info("Running database migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.UserNotifPreference{},
		&models.Referrer{},
		&models.PurchaseLedger{},
		&models.LedgerPayment{},
		&models.CommissionWallet{},
		&models.WalletHistoryEntry{},
		&models.CollaboratorWallet{},
		&models.WalletTransfer{},
		&models.Coupon{},
		&models.CommissionEvent{},
		&models.CommissionWatermark{},
		&models.Sequence{},
		&models.ScheduledTask{},
		&models.ScheduledTaskHistory{},
	)
	if err != nil {
		return err
	}

	log.Info("Database migrations completed")
	return nil
}
