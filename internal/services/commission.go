package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"plotledger_app/internal/models"
	"plotledger_app/internal/repository"
)

const (
	// creditRetries bounds re-reads of a wallet whose version moved under a concurrent writer
	creditRetries = 3

	PartnerTierMonthlyCommission  int64 = 1500
	CollaboratorMonthlyCommission int64 = 500
	CollaboratorSignupBonus       int64 = 500
)

// LumpSumCommissionRate is the share of a lump-sum plan paid to the referring partner tier
var LumpSumCommissionRate = decimal.New(10, -2)

// CommissionCredit describes one wallet credit applied by the router
type CommissionCredit struct {
	WalletID  uint                   `json:"wallet_id"`
	Namespace models.WalletNamespace `json:"namespace"`
	OwnerID   uint                   `json:"owner_id"`
	Kind      models.CommissionKind  `json:"kind"`
	Months    int                    `json:"months,omitempty"`
	Amount    int64                  `json:"amount"`
}

// CommissionRouter credits referral commissions, at most once per ledger state.
// All methods run inside the caller's transaction.
type CommissionRouter struct {
	referrals ReferrerResolver
	now       func() time.Time
	log       *logrus.Entry
}

func NewCommissionRouter(referrals ReferrerResolver, now func() time.Time, log *logrus.Entry) *CommissionRouter {
	if now == nil {
		now = time.Now
	}
	return &CommissionRouter{referrals: referrals, now: now, log: log.WithField("component", "commission")}
}

// MonthlyCommission returns the per-month credit for a referrer tier
func MonthlyCommission(tier models.ReferrerTier) int64 {
	if tier == models.TierCollaborator {
		return CollaboratorMonthlyCommission
	}
	return PartnerTierMonthlyCommission
}

// LumpSumCommission returns the rounded percentage commission for a plan amount
func LumpSumCommission(planAmount int64) int64 {
	return decimal.NewFromInt(planAmount).Mul(LumpSumCommissionRate).Round(0).IntPart()
}

// resolve returns nil when the user has no usable referrer. Such commissions are skipped, not failed.
func (r *CommissionRouter) resolve(ctx context.Context, user *models.User, ledgerID uint) *models.Referrer {
	if !user.ReferredBy.NeedsReferralCode() {
		return nil
	}

	fields := logrus.Fields{"user_id": user.ID, "ledger_id": ledgerID, "referral_code": user.ReferredByID}
	referrer, err := r.referrals.ResolveReferrer(ctx, user.ReferredByID)
	if err != nil {
		r.log.WithFields(fields).WithError(err).Warn("Referrer could not be resolved, skipping commission")
		return nil
	}
	return referrer
}

// CreditEmiMonths pays the monthly commission for every month paid since the last credit
func (r *CommissionRouter) CreditEmiMonths(ctx context.Context, tx repository.Store, ledger *models.PurchaseLedger, user *models.User) (*CommissionCredit, error) {
	if !ledger.IsEmi() || ledger.PerMonthAmount <= 0 {
		return nil, nil
	}
	referrer := r.resolve(ctx, user, ledger.ID)
	if referrer == nil {
		return nil, nil
	}

	wallet, err := tx.Wallets().GetOrCreateCommissionWallet(ctx, referrer.Tier.WalletNamespace(), referrer.ID)
	if err != nil {
		return nil, err
	}
	watermark, err := tx.Commissions().GetWatermark(ctx, ledger.ID, wallet.ID)
	if err != nil {
		return nil, err
	}

	months := int((ledger.PaidAmount - watermark.CreditedPaidAmount) / ledger.PerMonthAmount)
	if months <= 0 {
		return nil, nil
	}

	credit := &CommissionCredit{
		Kind:   models.CommissionKindEmiMonth,
		Months: months,
		Amount: MonthlyCommission(referrer.Tier) * int64(months),
	}
	applied, err := r.apply(ctx, tx, wallet, ledger, user, credit, ledger.PaidAmount)
	if err != nil || !applied {
		return nil, err
	}

	watermark.CreditedPaidAmount += int64(months) * ledger.PerMonthAmount
	if err := tx.Commissions().SaveWatermark(ctx, watermark); err != nil {
		return nil, err
	}
	return credit, nil
}

// CreditLumpSum pays the percentage commission of a completed lump-sum plan to the partner tier
func (r *CommissionRouter) CreditLumpSum(ctx context.Context, tx repository.Store, ledger *models.PurchaseLedger, user *models.User) (*CommissionCredit, error) {
	def, ok := ledger.Plan()
	if !ok || !def.LumpSumCommission || ledger.FullPaymentStatus != models.FullPaymentCompleted {
		return nil, nil
	}
	referrer := r.resolve(ctx, user, ledger.ID)
	if referrer == nil {
		return nil, nil
	}
	if referrer.Tier == models.TierCollaborator {
		r.log.WithFields(logrus.Fields{"ledger_id": ledger.ID, "referrer_id": referrer.ID}).
			Warn("Collaborator referrer on a lump-sum plan, no commission due")
		return nil, nil
	}

	wallet, err := tx.Wallets().GetOrCreateCommissionWallet(ctx, referrer.Tier.WalletNamespace(), referrer.ID)
	if err != nil {
		return nil, err
	}
	watermark, err := tx.Commissions().GetWatermark(ctx, ledger.ID, wallet.ID)
	if err != nil {
		return nil, err
	}
	if watermark.CreditedTotalAmount >= ledger.PlanAmount {
		return nil, nil
	}

	credit := &CommissionCredit{
		Kind:   models.CommissionKindLumpSum,
		Amount: LumpSumCommission(ledger.PlanAmount),
	}
	applied, err := r.apply(ctx, tx, wallet, ledger, user, credit, ledger.PlanAmount)
	if err != nil || !applied {
		return nil, err
	}

	watermark.CreditedTotalAmount = ledger.PlanAmount
	if err := tx.Commissions().SaveWatermark(ctx, watermark); err != nil {
		return nil, err
	}
	return credit, nil
}

// CreditSignupBonus pays the flat bonus to a collaborator whose referral bought a bonus plan
func (r *CommissionRouter) CreditSignupBonus(ctx context.Context, tx repository.Store, ledger *models.PurchaseLedger, user *models.User) (*CommissionCredit, error) {
	def, ok := ledger.Plan()
	if !ok || !def.SignupBonus || user.ReferredBy != models.ReferredByCollaborator {
		return nil, nil
	}
	referrer := r.resolve(ctx, user, ledger.ID)
	if referrer == nil {
		return nil, nil
	}
	if referrer.Tier != models.TierCollaborator {
		return nil, nil
	}

	wallet, err := tx.Wallets().GetOrCreateCommissionWallet(ctx, models.WalletNamespaceCollaborator, referrer.ID)
	if err != nil {
		return nil, err
	}

	credit := &CommissionCredit{
		Kind:   models.CommissionKindSignupBonus,
		Amount: CollaboratorSignupBonus,
	}
	applied, err := r.apply(ctx, tx, wallet, ledger, user, credit, 0)
	if err != nil || !applied {
		return nil, err
	}
	return credit, nil
}

// apply records the event and credits the wallet. A duplicate event means the credit already happened.
func (r *CommissionRouter) apply(ctx context.Context, tx repository.Store, wallet *models.CommissionWallet, ledger *models.PurchaseLedger, user *models.User, credit *CommissionCredit, paidMark int64) (bool, error) {
	fields := logrus.Fields{
		"ledger_id": ledger.ID,
		"wallet_id": wallet.ID,
		"kind":      credit.Kind,
		"amount":    credit.Amount,
	}

	event := &models.CommissionEvent{
		UUID:         uuid.NewString(),
		WalletID:     wallet.ID,
		LedgerID:     ledger.ID,
		Kind:         credit.Kind,
		PaidMark:     paidMark,
		SourceUserID: user.ID,
		Months:       credit.Months,
		Amount:       credit.Amount,
		Timestamp:    r.now(),
	}
	if err := tx.Commissions().AddEvent(ctx, event); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			r.log.WithFields(fields).Warn("Commission already recorded, skipping")
			return false, nil
		}
		return false, err
	}

	if err := r.creditWallet(ctx, tx, wallet, credit.Amount); err != nil {
		return false, err
	}

	credit.WalletID = wallet.ID
	credit.Namespace = wallet.Namespace
	credit.OwnerID = wallet.OwnerID

	r.log.WithFields(fields).Info("Commission credited")
	return true, nil
}

// creditWallet adds amount to the wallet, re-reading it when a concurrent writer bumped its version
func (r *CommissionRouter) creditWallet(ctx context.Context, tx repository.Store, wallet *models.CommissionWallet, amount int64) error {
	for attempt := 0; ; attempt++ {
		wallet.Balance += amount
		err := tx.Wallets().UpdateCommissionWallet(ctx, wallet)
		if err == nil {
			return nil
		}
		wallet.Balance -= amount
		if !errors.Is(err, repository.ErrVersionConflict) || attempt >= creditRetries {
			return err
		}

		fresh, err := tx.Wallets().GetCommissionWallet(ctx, wallet.Namespace, wallet.OwnerID)
		if err != nil {
			return err
		}
		*wallet = *fresh
	}
}
