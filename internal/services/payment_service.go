package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"plotledger_app/internal/models"
	"plotledger_app/internal/repository"
)

// CredentialsIssuer issues login credentials, a no-op when they were already sent
type CredentialsIssuer interface {
	IssueCredentials(ctx context.Context, userID uint) error
}

// PurchaseRequest is a validated request to buy a plot
type PurchaseRequest struct {
	UserID          uint
	PlanID          models.PlanID
	CustomAmount    int64
	Upi             string
	UpiMobileNumber string
}

// LedgerResult is the outcome of a ledger state transition
type LedgerResult struct {
	Ledger        *models.PurchaseLedger `json:"ledger"`
	MonthsApplied int                    `json:"months_applied,omitempty"`
	Commissions   []CommissionCredit     `json:"commissions,omitempty"`
}

// PaymentOrchestrator sequences the ledger use cases: schedule changes, eligibility,
// commissions, credentials and notifications
type PaymentOrchestrator struct {
	store       repository.Store
	schedule    *ScheduleEngine
	eligibility *EligibilityEvaluator
	commissions *CommissionRouter
	credentials CredentialsIssuer
	seq         SequenceAllocator
	locker      Locker
	notifier    Notifier
	now         func() time.Time
	log         *logrus.Entry
}

// PaymentOrchestratorDeps groups the collaborators of the orchestrator
type PaymentOrchestratorDeps struct {
	Store       repository.Store
	Schedule    *ScheduleEngine
	Eligibility *EligibilityEvaluator
	Commissions *CommissionRouter
	Credentials CredentialsIssuer
	Sequence    SequenceAllocator
	Locker      Locker
	Notifier    Notifier
	Now         func() time.Time
	Log         *logrus.Entry
}

func NewPaymentOrchestrator(deps PaymentOrchestratorDeps) *PaymentOrchestrator {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &PaymentOrchestrator{
		store:       deps.Store,
		schedule:    deps.Schedule,
		eligibility: deps.Eligibility,
		commissions: deps.Commissions,
		credentials: deps.Credentials,
		seq:         deps.Sequence,
		locker:      deps.Locker,
		notifier:    deps.Notifier,
		now:         now,
		log:         deps.Log.WithField("component", "payments"),
	}
}

// GetLedger returns a ledger by id
func (o *PaymentOrchestrator) GetLedger(ctx context.Context, ledgerID uint) (*models.PurchaseLedger, error) {
	ledger, err := o.store.Ledgers().GetByID(ctx, ledgerID)
	if err != nil {
		return nil, storageErr(err)
	}
	return ledger, nil
}

// InitializePurchase records a Pending ledger for a purchase request
func (o *PaymentOrchestrator) InitializePurchase(ctx context.Context, req PurchaseRequest) (*models.PurchaseLedger, error) {
	def, ok := models.LookupPlan(req.PlanID)
	if !ok {
		return nil, ErrWrongPlanType
	}

	user, err := o.store.Users().GetByID(ctx, req.UserID)
	if err != nil {
		return nil, storageErr(err)
	}
	if user.ReferredBy == models.ReferredByCollaborator && !def.IsEmi {
		return nil, ErrCollaboratorPlanRestricted
	}

	ledger, err := o.schedule.NewLedger(user.ID, def, req.CustomAmount)
	if err != nil {
		return nil, err
	}

	n, err := o.seq.Next(ctx, SequencePlotCode)
	if err != nil {
		return nil, err
	}
	ledger.UUID = uuid.NewString()
	ledger.PlotCode = FormatPlotCode(n)
	ledger.Upi = req.Upi
	ledger.UpiMobileNumber = req.UpiMobileNumber

	if err := o.store.Ledgers().Create(ctx, ledger); err != nil {
		return nil, storageErr(err)
	}

	o.log.WithFields(logrus.Fields{"ledger_id": ledger.ID, "user_id": user.ID, "plan": def.ID}).Info("Purchase requested")
	o.notifier.Notify(ctx, Notification{
		Event:   EventPurchaseRequested,
		UserID:  user.ID,
		Subject: "Plot purchase received",
		Message: fmt.Sprintf("Hello $name, we received your request for plot %s under plan %s. It is awaiting approval.", ledger.PlotCode, def.ID),
	})
	return ledger, nil
}

// transition runs fn on the locked ledger inside a transaction and saves the result
func (o *PaymentOrchestrator) transition(ctx context.Context, ledgerID uint, fn func(tx repository.Store, ledger *models.PurchaseLedger, result *LedgerResult) error) (*LedgerResult, error) {
	unlock, err := o.locker.Lock(ctx, ledgerLockKey(ledgerID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	result := &LedgerResult{}
	err = o.store.Atomic(ctx, func(tx repository.Store) error {
		ledger, err := tx.Ledgers().GetByID(ctx, ledgerID)
		if err != nil {
			return err
		}
		if err := fn(tx, ledger, result); err != nil {
			return err
		}
		result.Ledger = ledger
		return nil
	})
	if err != nil {
		err = storageErr(err)
		o.log.WithField("ledger_id", ledgerID).WithError(err).Debug("Ledger transition rejected")
		return nil, err
	}
	return result, nil
}

// refreshEligibility recomputes the lucky draw flag and mirrors it onto the owner
func (o *PaymentOrchestrator) refreshEligibility(ctx context.Context, tx repository.Store, ledger *models.PurchaseLedger) error {
	decision, err := DecideEligibility(ledger, o.now(), nil)
	if err != nil {
		return err
	}
	ledger.CanParticipateLuckyDraw = decision.Eligible
	ledger.LuckyDrawMessage = decision.Message
	return tx.Users().SetLuckyDrawEligibility(ctx, ledger.UserID, decision.Eligible)
}

func (o *PaymentOrchestrator) recordPayment(ctx context.Context, tx repository.Store, ledger *models.PurchaseLedger, kind models.PaymentKind, amount int64, months int, upi, upiMobile string) error {
	return tx.Ledgers().AddPayment(ctx, &models.LedgerPayment{
		LedgerID:        ledger.ID,
		UserID:          ledger.UserID,
		Kind:            kind,
		Amount:          amount,
		MonthsApplied:   months,
		Upi:             upi,
		UpiMobileNumber: upiMobile,
		PaymentDate:     o.now(),
	})
}

func appendCredit(result *LedgerResult, credit *CommissionCredit) {
	if credit != nil {
		result.Commissions = append(result.Commissions, *credit)
	}
}

// ApprovePlot approves a Pending purchase. EMI plans get their first installment applied,
// lump-sum plans wait for ApproveFullPayment.
func (o *PaymentOrchestrator) ApprovePlot(ctx context.Context, ledgerID uint) (*LedgerResult, error) {
	result, err := o.transition(ctx, ledgerID, func(tx repository.Store, ledger *models.PurchaseLedger, result *LedgerResult) error {
		if ledger.PlotStatus != models.PlotStatusPending {
			return ErrRequestAlreadyResolved
		}
		ledger.PlotStatus = models.PlotStatusApproved

		if !ledger.IsEmi() {
			return tx.Ledgers().Update(ctx, ledger)
		}

		if err := o.schedule.InitializeSchedule(ledger, ledger.PerMonthAmount); err != nil {
			return err
		}
		result.MonthsApplied = ledger.PaidMonths
		if err := o.recordPayment(ctx, tx, ledger, models.PaymentKindFirstInstallment, ledger.PaidAmount, ledger.PaidMonths, ledger.Upi, ledger.UpiMobileNumber); err != nil {
			return err
		}
		if err := o.refreshEligibility(ctx, tx, ledger); err != nil {
			return err
		}
		if err := tx.Ledgers().Update(ctx, ledger); err != nil {
			return err
		}

		user, err := tx.Users().GetByID(ctx, ledger.UserID)
		if err != nil {
			return err
		}
		credit, err := o.commissions.CreditEmiMonths(ctx, tx, ledger, user)
		if err != nil {
			return err
		}
		appendCredit(result, credit)

		bonus, err := o.commissions.CreditSignupBonus(ctx, tx, ledger, user)
		if err != nil {
			return err
		}
		appendCredit(result, bonus)
		return nil
	})
	if err != nil {
		return nil, err
	}

	ledger := result.Ledger
	o.log.WithFields(logrus.Fields{"ledger_id": ledger.ID, "user_id": ledger.UserID}).Info("Plot approved")

	message := fmt.Sprintf("Hello $name, your plot %s has been approved.", ledger.PlotCode)
	if ledger.IsEmi() {
		o.issueCredentials(ctx, ledger.UserID)
		message += fmt.Sprintf(" Your first installment is recorded, next due month: %s.", ledger.NextDueMonth())
	} else {
		message += fmt.Sprintf(" Please complete the full payment of %d.", ledger.PlanAmount)
	}
	o.notifier.Notify(ctx, Notification{Event: EventPlotApproved, UserID: ledger.UserID, Subject: "Plot approved", Message: message})
	return result, nil
}

// DeclinePlot rejects a Pending purchase without touching any wallet
func (o *PaymentOrchestrator) DeclinePlot(ctx context.Context, ledgerID uint) (*LedgerResult, error) {
	result, err := o.transition(ctx, ledgerID, func(tx repository.Store, ledger *models.PurchaseLedger, _ *LedgerResult) error {
		if ledger.PlotStatus != models.PlotStatusPending {
			return ErrRequestAlreadyResolved
		}
		ledger.PlotStatus = models.PlotStatusDeclined
		return tx.Ledgers().Update(ctx, ledger)
	})
	if err != nil {
		return nil, err
	}

	o.notifier.Notify(ctx, Notification{
		Event:   EventPlotDeclined,
		UserID:  result.Ledger.UserID,
		Subject: "Plot request declined",
		Message: fmt.Sprintf("Hello $name, your request for plot %s was declined.", result.Ledger.PlotCode),
	})
	return result, nil
}

// RequestEmiPayment opens the single outstanding EMI request of a ledger
func (o *PaymentOrchestrator) RequestEmiPayment(ctx context.Context, ledgerID uint, amount int64, upi, upiMobile string) (*LedgerResult, error) {
	result, err := o.transition(ctx, ledgerID, func(tx repository.Store, ledger *models.PurchaseLedger, _ *LedgerResult) error {
		if ledger.EmiPaymentRequested {
			return ErrAlreadyRequested
		}
		if !ledger.IsEmi() {
			return ErrWrongPlanType
		}
		if err := ValidateEmiAmount(ledger.PerMonthAmount, amount); err != nil {
			return err
		}
		if ledger.FullPaymentStatus == models.FullPaymentCompleted {
			return ErrAlreadyCompleted
		}
		if ledger.PlotStatus != models.PlotStatusApproved {
			return ErrInvalidState
		}

		now := o.now()
		ledger.EmiPaymentRequested = true
		ledger.RequestedEmiPaymentAmount = amount
		ledger.RequestedAt = &now
		ledger.Upi = upi
		ledger.UpiMobileNumber = upiMobile
		return tx.Ledgers().Update(ctx, ledger)
	})
	if err != nil {
		return nil, err
	}

	o.log.WithFields(logrus.Fields{"ledger_id": ledgerID, "amount": amount}).Info("EMI payment requested")
	o.notifier.Notify(ctx, Notification{
		Event:   EventEmiRequested,
		UserID:  result.Ledger.UserID,
		Subject: "EMI payment request received",
		Message: fmt.Sprintf("Hello $name, your EMI payment of %d for plot %s is awaiting approval.", amount, result.Ledger.PlotCode),
	})
	return result, nil
}

// pendingRequestGuard tells a never-requested ledger apart from one whose request was already handled
func pendingRequestGuard(ledger *models.PurchaseLedger) error {
	if ledger.EmiPaymentRequested {
		return nil
	}
	if ledger.RequestedAt != nil {
		return ErrRequestAlreadyResolved
	}
	return ErrNoPendingRequest
}

// ApproveEmiPayment applies the requested amount to the schedule and pays the monthly commission
func (o *PaymentOrchestrator) ApproveEmiPayment(ctx context.Context, ledgerID uint) (*LedgerResult, error) {
	result, err := o.transition(ctx, ledgerID, func(tx repository.Store, ledger *models.PurchaseLedger, result *LedgerResult) error {
		if err := pendingRequestGuard(ledger); err != nil {
			return err
		}

		amount := ledger.RequestedEmiPaymentAmount
		months, err := o.schedule.Advance(ledger, amount)
		if err != nil {
			return err
		}
		result.MonthsApplied = months

		if err := o.recordPayment(ctx, tx, ledger, models.PaymentKindEmi, int64(months)*ledger.PerMonthAmount, months, ledger.Upi, ledger.UpiMobileNumber); err != nil {
			return err
		}

		ledger.EmiPaymentRequested = false
		ledger.RequestedEmiPaymentAmount = 0
		if err := o.refreshEligibility(ctx, tx, ledger); err != nil {
			return err
		}
		if err := tx.Ledgers().Update(ctx, ledger); err != nil {
			return err
		}

		user, err := tx.Users().GetByID(ctx, ledger.UserID)
		if err != nil {
			return err
		}
		credit, err := o.commissions.CreditEmiMonths(ctx, tx, ledger, user)
		if err != nil {
			return err
		}
		appendCredit(result, credit)
		return nil
	})
	if err != nil {
		return nil, err
	}

	ledger := result.Ledger
	o.log.WithFields(logrus.Fields{
		"ledger_id": ledger.ID,
		"months":    result.MonthsApplied,
		"paid":      ledger.PaidMonths,
		"pending":   ledger.PendingMonths,
	}).Info("EMI payment approved")

	o.issueCredentials(ctx, ledger.UserID)

	message := fmt.Sprintf("Hello $name, your EMI payment for plot %s was approved. Paid months: %d, pending months: %d.", ledger.PlotCode, ledger.PaidMonths, ledger.PendingMonths)
	if ledger.FullPaymentStatus == models.FullPaymentCompleted {
		message = fmt.Sprintf("Hello $name, your final EMI for plot %s was approved. Your plot is fully paid.", ledger.PlotCode)
	}
	o.notifier.Notify(ctx, Notification{Event: EventEmiApproved, UserID: ledger.UserID, Subject: "EMI payment approved", Message: message})
	return result, nil
}

// DeclineEmiPayment closes the outstanding request without changing the schedule
func (o *PaymentOrchestrator) DeclineEmiPayment(ctx context.Context, ledgerID uint) (*LedgerResult, error) {
	result, err := o.transition(ctx, ledgerID, func(tx repository.Store, ledger *models.PurchaseLedger, _ *LedgerResult) error {
		if err := pendingRequestGuard(ledger); err != nil {
			return err
		}
		ledger.EmiPaymentRequested = false
		ledger.RequestedEmiPaymentAmount = 0
		return tx.Ledgers().Update(ctx, ledger)
	})
	if err != nil {
		return nil, err
	}

	o.notifier.Notify(ctx, Notification{
		Event:   EventEmiDeclined,
		UserID:  result.Ledger.UserID,
		Subject: "EMI payment declined",
		Message: fmt.Sprintf("Hello $name, your EMI payment request for plot %s was declined. Please contact support.", result.Ledger.PlotCode),
	})
	return result, nil
}

// ApproveFullPayment settles an approved lump-sum plot and pays the lump-sum commission
func (o *PaymentOrchestrator) ApproveFullPayment(ctx context.Context, ledgerID uint) (*LedgerResult, error) {
	result, err := o.transition(ctx, ledgerID, func(tx repository.Store, ledger *models.PurchaseLedger, result *LedgerResult) error {
		if ledger.IsEmi() {
			return ErrWrongPlanType
		}
		if ledger.FullPaymentStatus == models.FullPaymentCompleted {
			return ErrAlreadyCompleted
		}
		if ledger.PlotStatus != models.PlotStatusApproved {
			return ErrInvalidState
		}

		if err := o.schedule.InitializeSchedule(ledger, ledger.PlanAmount); err != nil {
			return err
		}
		if err := o.recordPayment(ctx, tx, ledger, models.PaymentKindFull, ledger.PlanAmount, 0, ledger.Upi, ledger.UpiMobileNumber); err != nil {
			return err
		}
		if err := o.refreshEligibility(ctx, tx, ledger); err != nil {
			return err
		}
		if err := tx.Ledgers().Update(ctx, ledger); err != nil {
			return err
		}

		user, err := tx.Users().GetByID(ctx, ledger.UserID)
		if err != nil {
			return err
		}
		credit, err := o.commissions.CreditLumpSum(ctx, tx, ledger, user)
		if err != nil {
			return err
		}
		appendCredit(result, credit)
		return nil
	})
	if err != nil {
		return nil, err
	}

	ledger := result.Ledger
	o.log.WithFields(logrus.Fields{"ledger_id": ledger.ID, "amount": ledger.PlanAmount}).Info("Full payment approved")

	o.issueCredentials(ctx, ledger.UserID)
	o.notifier.Notify(ctx, Notification{
		Event:   EventFullPaymentDone,
		UserID:  ledger.UserID,
		Subject: "Full payment approved",
		Message: fmt.Sprintf("Hello $name, your full payment of %d for plot %s was approved.", ledger.PlanAmount, ledger.PlotCode),
	})
	return result, nil
}

// EvaluateEligibility recomputes the lucky draw flag, honouring an admin override when given
func (o *PaymentOrchestrator) EvaluateEligibility(ctx context.Context, ledgerID uint, override *bool) (*models.PurchaseLedger, error) {
	return o.eligibility.Evaluate(ctx, ledgerID, override)
}

// issueCredentials runs after commit, failures are logged and never undo the approval
func (o *PaymentOrchestrator) issueCredentials(ctx context.Context, userID uint) {
	if err := o.credentials.IssueCredentials(ctx, userID); err != nil {
		o.log.WithField("user_id", userID).WithError(err).Error("Failed to issue credentials")
	}
}
