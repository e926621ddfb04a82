package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"plotledger_app/internal/models"
	"plotledger_app/internal/repository"
)

const (
	// WithdrawalDenomination is the only amount a commission wallet may withdraw at once
	WithdrawalDenomination int64 = 10000
	// ServiceBalanceCap is the maximum service sub-balance of a collaborator wallet
	ServiceBalanceCap int64 = 5000
	// MaxCouponValue is the largest coupon a collaborator may generate
	MaxCouponValue int64 = 5000

	couponCodeLength   = 8
	couponCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	couponCodeAttempts = 3
)

// WalletLedger runs the withdrawal state machine of commission wallets and the collaborator wallet operations
type WalletLedger struct {
	store  repository.Store
	locker Locker
	now    func() time.Time
	log    *logrus.Entry
}

func NewWalletLedger(store repository.Store, locker Locker, now func() time.Time, log *logrus.Entry) *WalletLedger {
	if now == nil {
		now = time.Now
	}
	return &WalletLedger{store: store, locker: locker, now: now, log: log.WithField("component", "wallet")}
}

// WalletSnapshot is a commission wallet with its withdrawal history
type WalletSnapshot struct {
	Wallet  *models.CommissionWallet    `json:"wallet"`
	History []models.WalletHistoryEntry `json:"history"`
}

// GetCommissionWallet returns the wallet and its withdrawal history
func (w *WalletLedger) GetCommissionWallet(ctx context.Context, ns models.WalletNamespace, ownerID uint) (*WalletSnapshot, error) {
	if !ns.Valid() {
		return nil, ErrNotFound
	}
	wallet, err := w.store.Wallets().GetCommissionWallet(ctx, ns, ownerID)
	if err != nil {
		return nil, storageErr(err)
	}
	history, err := w.store.Wallets().ListHistory(ctx, wallet.ID)
	if err != nil {
		return nil, storageErr(err)
	}
	return &WalletSnapshot{Wallet: wallet, History: history}, nil
}

// mutateCommissionWallet loads the wallet under its lock and saves whatever fn changed
func (w *WalletLedger) mutateCommissionWallet(ctx context.Context, ns models.WalletNamespace, ownerID uint, fn func(tx repository.Store, wallet *models.CommissionWallet) error) (*models.CommissionWallet, error) {
	if !ns.Valid() {
		return nil, ErrNotFound
	}

	unlock, err := w.locker.Lock(ctx, walletLockKey(ns, ownerID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var wallet *models.CommissionWallet
	err = w.store.Atomic(ctx, func(tx repository.Store) error {
		wallet, err = tx.Wallets().GetCommissionWallet(ctx, ns, ownerID)
		if err != nil {
			return err
		}
		if err := fn(tx, wallet); err != nil {
			return err
		}
		return tx.Wallets().UpdateCommissionWallet(ctx, wallet)
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return wallet, nil
}

// RequestWithdrawal opens the single in-flight withdrawal request of a wallet
func (w *WalletLedger) RequestWithdrawal(ctx context.Context, ns models.WalletNamespace, ownerID uint, amount int64, upi, upiMobile string) (*models.CommissionWallet, error) {
	if amount != WithdrawalDenomination {
		return nil, fmt.Errorf("%w: withdrawals must be exactly %d", ErrInvalidAmount, WithdrawalDenomination)
	}

	wallet, err := w.mutateCommissionWallet(ctx, ns, ownerID, func(_ repository.Store, wallet *models.CommissionWallet) error {
		if wallet.WithdrawalRequested {
			return ErrRequestAlreadyPending
		}
		wallet.WithdrawalRequested = true
		wallet.PendingWithdrawalAmount = amount
		wallet.WithdrawalUpi = upi
		wallet.WithdrawalUpiMobile = upiMobile
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.log.WithFields(logrus.Fields{"wallet_id": wallet.ID, "amount": amount}).Info("Withdrawal requested")
	return wallet, nil
}

// ApproveWithdrawal debits the pending amount and appends an Approved history entry
func (w *WalletLedger) ApproveWithdrawal(ctx context.Context, ns models.WalletNamespace, ownerID uint) (*models.CommissionWallet, error) {
	var approved int64
	wallet, err := w.mutateCommissionWallet(ctx, ns, ownerID, func(tx repository.Store, wallet *models.CommissionWallet) error {
		if !wallet.WithdrawalRequested {
			return ErrNoPendingRequest
		}
		if wallet.PendingWithdrawalAmount > wallet.Balance {
			return ErrInsufficientBalance
		}

		approved = wallet.PendingWithdrawalAmount
		entry := &models.WalletHistoryEntry{
			WalletID:        wallet.ID,
			Amount:          approved,
			Status:          models.WithdrawalStatusApproved,
			Upi:             wallet.WithdrawalUpi,
			UpiMobileNumber: wallet.WithdrawalUpiMobile,
			Date:            w.now(),
		}
		if err := tx.Wallets().AddHistory(ctx, entry); err != nil {
			return err
		}

		wallet.Balance -= approved
		clearWithdrawal(wallet)
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.log.WithFields(logrus.Fields{"wallet_id": wallet.ID, "amount": approved}).Info("Withdrawal approved")
	return wallet, nil
}

// DeclineWithdrawal drops the pending request without touching the balance
func (w *WalletLedger) DeclineWithdrawal(ctx context.Context, ns models.WalletNamespace, ownerID uint) (*models.CommissionWallet, error) {
	wallet, err := w.mutateCommissionWallet(ctx, ns, ownerID, func(_ repository.Store, wallet *models.CommissionWallet) error {
		if !wallet.WithdrawalRequested {
			return ErrNoPendingRequest
		}
		clearWithdrawal(wallet)
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.log.WithField("wallet_id", wallet.ID).Info("Withdrawal declined")
	return wallet, nil
}

func clearWithdrawal(wallet *models.CommissionWallet) {
	wallet.WithdrawalRequested = false
	wallet.PendingWithdrawalAmount = 0
	wallet.WithdrawalUpi = ""
	wallet.WithdrawalUpiMobile = ""
}

// GetCollaboratorWallet returns the user's collaborator wallet, creating an empty one on first access
func (w *WalletLedger) GetCollaboratorWallet(ctx context.Context, userID uint) (*models.CollaboratorWallet, error) {
	wallet, err := w.store.Wallets().GetOrCreateCollaboratorWallet(ctx, userID)
	if err != nil {
		return nil, storageErr(err)
	}
	return wallet, nil
}

func (w *WalletLedger) mutateCollaboratorWallet(ctx context.Context, userID uint, fn func(tx repository.Store, wallet *models.CollaboratorWallet) error) (*models.CollaboratorWallet, error) {
	unlock, err := w.locker.Lock(ctx, collaboratorWalletLockKey(userID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var wallet *models.CollaboratorWallet
	err = w.store.Atomic(ctx, func(tx repository.Store) error {
		wallet, err = tx.Wallets().GetOrCreateCollaboratorWallet(ctx, userID)
		if err != nil {
			return err
		}
		if err := fn(tx, wallet); err != nil {
			return err
		}
		return tx.Wallets().UpdateCollaboratorWallet(ctx, wallet)
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return wallet, nil
}

// TransferCourseToService moves funds from the course to the service sub-balance, up to the service cap
func (w *WalletLedger) TransferCourseToService(ctx context.Context, userID uint, amount int64) (*models.CollaboratorWallet, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: transfer amount must be positive", ErrInvalidAmount)
	}

	wallet, err := w.mutateCollaboratorWallet(ctx, userID, func(tx repository.Store, wallet *models.CollaboratorWallet) error {
		if wallet.CourseBalance < amount {
			return ErrInsufficientBalance
		}
		if wallet.ServiceBalance+amount > ServiceBalanceCap {
			return ErrServiceCapExceeded
		}

		wallet.CourseBalance -= amount
		wallet.ServiceBalance += amount
		wallet.TransferredToService += amount
		return tx.Wallets().AddTransfer(ctx, &models.WalletTransfer{
			CollaboratorWalletID: wallet.ID,
			Amount:               amount,
			TransferredAt:        w.now(),
		})
	})
	if err != nil {
		return nil, err
	}

	w.log.WithFields(logrus.Fields{"user_id": userID, "amount": amount}).Info("Course balance transferred to service")
	return wallet, nil
}

// SyncWalletFromLedger credits the course balance with the paid amount added since the last sync.
// Returns the credited delta, zero when nothing changed.
func (w *WalletLedger) SyncWalletFromLedger(ctx context.Context, userID uint) (*models.CollaboratorWallet, int64, error) {
	var delta int64
	wallet, err := w.mutateCollaboratorWallet(ctx, userID, func(tx repository.Store, wallet *models.CollaboratorWallet) error {
		ledgers, err := tx.Ledgers().ListApprovedEmiByUser(ctx, userID)
		if err != nil {
			return err
		}

		var totalPaid int64
		for _, ledger := range ledgers {
			totalPaid += ledger.PaidAmount
		}

		delta = totalPaid - wallet.LastCreditedPaidAmount
		if delta <= 0 {
			delta = 0
			return nil
		}
		wallet.CourseBalance += delta
		wallet.LastCreditedPaidAmount = totalPaid
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	if delta > 0 {
		w.log.WithFields(logrus.Fields{"user_id": userID, "credited": delta}).Info("Collaborator wallet synced")
	}
	return wallet, delta, nil
}

// GenerateCoupon debits value from the service balance and records a single-use coupon for it
func (w *WalletLedger) GenerateCoupon(ctx context.Context, userID uint, serviceName string, value int64) (*models.Coupon, *models.CollaboratorWallet, error) {
	if value <= 0 || value > MaxCouponValue {
		return nil, nil, fmt.Errorf("%w: coupon value must be between 1 and %d", ErrInvalidAmount, MaxCouponValue)
	}

	var coupon *models.Coupon
	wallet, err := w.mutateCollaboratorWallet(ctx, userID, func(tx repository.Store, wallet *models.CollaboratorWallet) error {
		if wallet.ServiceBalance < value {
			return ErrInsufficientBalance
		}

		code, err := w.freeCouponCode(ctx, tx)
		if err != nil {
			return err
		}
		coupon = &models.Coupon{UserID: userID, Code: code, ServiceName: serviceName, Value: value}
		if err := tx.Wallets().CreateCoupon(ctx, coupon); err != nil {
			return err
		}

		wallet.ServiceBalance -= value
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	w.log.WithFields(logrus.Fields{"user_id": userID, "code": coupon.Code, "value": value}).Info("Coupon generated")
	return coupon, wallet, nil
}

func (w *WalletLedger) freeCouponCode(ctx context.Context, tx repository.Store) (string, error) {
	for i := 0; i < couponCodeAttempts; i++ {
		code, err := randomString(couponCodeAlphabet, couponCodeLength)
		if err != nil {
			return "", fmt.Errorf("generate coupon code: %w", err)
		}
		_, err = tx.Wallets().GetCouponByCode(ctx, code)
		if errors.Is(err, repository.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no free coupon code after %d attempts", couponCodeAttempts)
}

// UseCoupon redeems a coupon exactly once
func (w *WalletLedger) UseCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	coupon, err := w.store.Wallets().GetCouponByCode(ctx, code)
	if err != nil {
		return nil, storageErr(err)
	}
	if coupon.Used {
		return nil, ErrRequestAlreadyResolved
	}
	if err := w.store.Wallets().MarkCouponUsed(ctx, coupon, w.now()); err != nil {
		return nil, storageErr(err)
	}

	w.log.WithFields(logrus.Fields{"user_id": coupon.UserID, "code": coupon.Code}).Info("Coupon used")
	return coupon, nil
}
