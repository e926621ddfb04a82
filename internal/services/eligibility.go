package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"plotledger_app/internal/models"
	"plotledger_app/internal/repository"
)

const (
	LuckyDrawEligible       = "Eligible"
	LuckyDrawNotEligible    = "Not eligible"
	LuckyDrawMissedDeadline = "You missed the EMI deadline. Not eligible for the lucky draw."
	LuckyDrawInvalidPlan    = "Invalid plan type"

	// deadlineDay is the last day of the month on which an overdue EMI is still tolerated
	deadlineDay = 10
)

// Eligibility is the outcome of a lucky draw evaluation
type Eligibility struct {
	Eligible bool   `json:"eligible"`
	Message  string `json:"message"`
}

// DecideEligibility applies the lucky draw rules to a ledger at the given instant.
// A non-nil override wins over every other rule.
func DecideEligibility(ledger *models.PurchaseLedger, now time.Time, override *bool) (Eligibility, error) {
	if override != nil {
		if *override {
			return Eligibility{Eligible: true, Message: LuckyDrawEligible}, nil
		}
		return Eligibility{Eligible: false, Message: LuckyDrawNotEligible}, nil
	}

	switch ledger.PlanID {
	case models.PlanA, models.PlanB:
		return Eligibility{Eligible: true, Message: LuckyDrawEligible}, nil
	case models.PlanC, models.PlanD:
		if ledger.FullPaymentStatus == models.FullPaymentCompleted {
			return Eligibility{Eligible: true, Message: LuckyDrawEligible}, nil
		}
		if ledger.NextDueDate == nil {
			return Eligibility{}, ErrMissingDueDate
		}
		if now.Day() > deadlineDay && now.After(*ledger.NextDueDate) {
			return Eligibility{Eligible: false, Message: LuckyDrawMissedDeadline}, nil
		}
		return Eligibility{Eligible: true, Message: LuckyDrawEligible}, nil
	default:
		return Eligibility{Eligible: false, Message: LuckyDrawInvalidPlan}, nil
	}
}

// EligibilityEvaluator persists lucky draw decisions and runs the overdue EMI sweep
type EligibilityEvaluator struct {
	store    repository.Store
	locker   Locker
	notifier Notifier
	now      func() time.Time
	log      *logrus.Entry
}

func NewEligibilityEvaluator(store repository.Store, locker Locker, notifier Notifier, now func() time.Time, log *logrus.Entry) *EligibilityEvaluator {
	if now == nil {
		now = time.Now
	}
	return &EligibilityEvaluator{
		store:    store,
		locker:   locker,
		notifier: notifier,
		now:      now,
		log:      log.WithField("component", "eligibility"),
	}
}

// Evaluate recomputes and stores the lucky draw flag of a ledger
func (e *EligibilityEvaluator) Evaluate(ctx context.Context, ledgerID uint, override *bool) (*models.PurchaseLedger, error) {
	unlock, err := e.locker.Lock(ctx, ledgerLockKey(ledgerID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var ledger *models.PurchaseLedger
	err = e.store.Atomic(ctx, func(tx repository.Store) error {
		ledger, err = tx.Ledgers().GetByID(ctx, ledgerID)
		if err != nil {
			return err
		}
		return e.apply(ctx, tx, ledger, override)
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return ledger, nil
}

// apply stores the decision on the ledger and mirrors it onto the owner
func (e *EligibilityEvaluator) apply(ctx context.Context, tx repository.Store, ledger *models.PurchaseLedger, override *bool) error {
	result, err := DecideEligibility(ledger, e.now(), override)
	if err != nil {
		e.log.WithFields(logrus.Fields{"ledger_id": ledger.ID, "user_id": ledger.UserID}).
			WithError(err).Error("Ledger is missing its next due date")
		return err
	}

	if ledger.CanParticipateLuckyDraw == result.Eligible && ledger.LuckyDrawMessage == result.Message {
		return nil
	}

	ledger.CanParticipateLuckyDraw = result.Eligible
	ledger.LuckyDrawMessage = result.Message
	if err := tx.Ledgers().Update(ctx, ledger); err != nil {
		return err
	}
	return tx.Users().SetLuckyDrawEligibility(ctx, ledger.UserID, result.Eligible)
}

// SweepResult summarises one run of CheckEmiStatus
type SweepResult struct {
	Scanned       int    `json:"scanned"`
	MarkedLedgers []uint `json:"marked_ledgers"`
	Skipped       int    `json:"skipped"`
}

// CheckEmiStatus marks every overdue EMI ledger ineligible and moves its due date one cycle forward.
// A ledger is only touched again once its new due date has also passed.
func (e *EligibilityEvaluator) CheckEmiStatus(ctx context.Context) (*SweepResult, error) {
	now := e.now()

	overdue, err := e.store.Ledgers().ListOverdueEmi(ctx, now)
	if err != nil {
		return nil, storageErr(err)
	}

	result := &SweepResult{Scanned: len(overdue), MarkedLedgers: []uint{}}
	for _, candidate := range overdue {
		marked, err := e.sweepLedger(ctx, candidate.ID, now)
		if err != nil {
			e.log.WithField("ledger_id", candidate.ID).WithError(err).Warn("Skipping ledger in EMI sweep")
			result.Skipped++
			continue
		}
		if !marked {
			result.Skipped++
			continue
		}
		result.MarkedLedgers = append(result.MarkedLedgers, candidate.ID)

		e.notifier.Notify(ctx, Notification{
			Event:   EventEmiOverdue,
			UserID:  candidate.UserID,
			Subject: "EMI overdue",
			Message: "Hello $name, your EMI due date has passed and you are no longer eligible for the lucky draw. Please pay your pending installment.",
		})
	}

	e.log.WithFields(logrus.Fields{
		"scanned": result.Scanned,
		"marked":  len(result.MarkedLedgers),
		"skipped": result.Skipped,
	}).Info("EMI status sweep finished")
	return result, nil
}

func (e *EligibilityEvaluator) sweepLedger(ctx context.Context, ledgerID uint, now time.Time) (bool, error) {
	unlock, err := e.locker.Lock(ctx, ledgerLockKey(ledgerID))
	if err != nil {
		return false, err
	}
	defer unlock()

	marked := false
	err = e.store.Atomic(ctx, func(tx repository.Store) error {
		ledger, err := tx.Ledgers().GetByID(ctx, ledgerID)
		if err != nil {
			return err
		}
		// Re-check under the lock, an approval may have landed since the scan
		if !isOverdue(ledger, now) {
			return nil
		}

		next := ledger.NextDueDate.Add(BillingCycle)
		ledger.NextDueDate = &next
		ledger.CanParticipateLuckyDraw = false
		ledger.LuckyDrawMessage = LuckyDrawNotEligible
		if err := tx.Ledgers().Update(ctx, ledger); err != nil {
			return err
		}
		if err := tx.Users().SetLuckyDrawEligibility(ctx, ledger.UserID, false); err != nil {
			return err
		}
		marked = true
		return nil
	})
	return marked, err
}

func isOverdue(ledger *models.PurchaseLedger, now time.Time) bool {
	return ledger.IsEmi() &&
		ledger.PlotStatus == models.PlotStatusApproved &&
		ledger.FullPaymentStatus == models.FullPaymentPending &&
		ledger.NextDueDate != nil &&
		now.After(*ledger.NextDueDate) &&
		ledger.PaidMonths < ledger.TotalMonths
}
