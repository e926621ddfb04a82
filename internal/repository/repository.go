package repository

import (
	"context"
	"errors"
	"time"

	"plotledger_app/internal/models"
)

var (
	// ErrNotFound is returned when the requested record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned when a guarded update matched no row
	ErrVersionConflict = errors.New("record was modified concurrently")
	// ErrDuplicate is returned when a unique constraint rejects a write
	ErrDuplicate = errors.New("duplicate record")
)

type LedgerRepository interface {
	Create(ctx context.Context, ledger *models.PurchaseLedger) error
	GetByID(ctx context.Context, id uint) (*models.PurchaseLedger, error)
	// Update writes the whole ledger if its stored version still equals ledger.Version,
	// then bumps ledger.Version. Returns ErrVersionConflict otherwise.
	Update(ctx context.Context, ledger *models.PurchaseLedger) error
	ListOverdueEmi(ctx context.Context, now time.Time) ([]models.PurchaseLedger, error)
	ListApprovedEmiByUser(ctx context.Context, userID uint) ([]models.PurchaseLedger, error)
	AddPayment(ctx context.Context, payment *models.LedgerPayment) error
}

type UserRepository interface {
	// Create returns ErrDuplicate when the e-mail is already registered.
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	SetLuckyDrawEligibility(ctx context.Context, id uint, eligible bool) error
}

type ReferrerRepository interface {
	// Create returns ErrDuplicate when the referral code is taken.
	Create(ctx context.Context, referrer *models.Referrer) error
	GetByReferralCode(ctx context.Context, code string) (*models.Referrer, error)
}

type WalletRepository interface {
	GetCommissionWallet(ctx context.Context, ns models.WalletNamespace, ownerID uint) (*models.CommissionWallet, error)
	GetOrCreateCommissionWallet(ctx context.Context, ns models.WalletNamespace, ownerID uint) (*models.CommissionWallet, error)
	// UpdateCommissionWallet follows the same version contract as LedgerRepository.Update.
	UpdateCommissionWallet(ctx context.Context, wallet *models.CommissionWallet) error
	AddHistory(ctx context.Context, entry *models.WalletHistoryEntry) error
	ListHistory(ctx context.Context, walletID uint) ([]models.WalletHistoryEntry, error)

	GetOrCreateCollaboratorWallet(ctx context.Context, userID uint) (*models.CollaboratorWallet, error)
	UpdateCollaboratorWallet(ctx context.Context, wallet *models.CollaboratorWallet) error
	AddTransfer(ctx context.Context, transfer *models.WalletTransfer) error

	// CreateCoupon returns ErrDuplicate when the code is taken.
	CreateCoupon(ctx context.Context, coupon *models.Coupon) error
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	// MarkCouponUsed flips an unused coupon to used and returns ErrVersionConflict when it was already used.
	MarkCouponUsed(ctx context.Context, coupon *models.Coupon, usedAt time.Time) error
}

type CommissionRepository interface {
	// GetWatermark returns the stored watermark, or an unsaved zero watermark for a new pair.
	GetWatermark(ctx context.Context, ledgerID, walletID uint) (*models.CommissionWatermark, error)
	SaveWatermark(ctx context.Context, watermark *models.CommissionWatermark) error
	// AddEvent returns ErrDuplicate when the same credit was already recorded.
	AddEvent(ctx context.Context, event *models.CommissionEvent) error
	ListEventsByWallet(ctx context.Context, walletID uint) ([]models.CommissionEvent, error)
}

// Store groups the repositories used by the ledger services
type Store interface {
	Ledgers() LedgerRepository
	Users() UserRepository
	Referrers() ReferrerRepository
	Wallets() WalletRepository
	Commissions() CommissionRepository

	// Atomic runs fn against a Store bound to a single transaction.
	Atomic(ctx context.Context, fn func(tx Store) error) error
}
