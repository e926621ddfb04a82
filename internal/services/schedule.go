package services

import (
	"fmt"
	"time"

	"plotledger_app/internal/models"
)

// BillingCycle is the distance between two EMI due dates
const BillingCycle = 30 * 24 * time.Hour

// ScheduleEngine computes and advances payment schedules. It never touches storage.
type ScheduleEngine struct {
	now func() time.Time
}

func NewScheduleEngine(now func() time.Time) *ScheduleEngine {
	if now == nil {
		now = time.Now
	}
	return &ScheduleEngine{now: now}
}

// NewLedger builds the Pending ledger for a purchase before any payment is applied
func (e *ScheduleEngine) NewLedger(userID uint, def models.PlanDefinition, customAmount int64) (*models.PurchaseLedger, error) {
	amount := def.TotalAmount
	if def.CustomAmount {
		if customAmount <= 0 {
			return nil, fmt.Errorf("%w: custom plan amount must be positive", ErrInvalidAmount)
		}
		amount = customAmount
	}

	ledger := &models.PurchaseLedger{
		UserID:                  userID,
		PlanID:                  def.ID,
		PlanAmount:              amount,
		PerMonthAmount:          def.PerMonthAmount,
		SqFeet:                  def.SqFeet,
		PendingMonthsList:       []string{},
		FullPaymentStatus:       models.FullPaymentPending,
		PlotStatus:              models.PlotStatusPending,
		CanParticipateLuckyDraw: true,
		Version:                 1,
	}
	if def.IsEmi {
		ledger.TotalMonths = def.TotalMonths
		ledger.PendingMonths = def.TotalMonths
		ledger.PendingAmount = amount
	}
	return ledger, nil
}

// InitializeSchedule applies the first payment to a freshly approved ledger.
// Lump-sum plans settle in full, EMI plans get their first month paid.
func (e *ScheduleEngine) InitializeSchedule(ledger *models.PurchaseLedger, firstPayment int64) error {
	def, ok := ledger.Plan()
	if !ok {
		return ErrWrongPlanType
	}
	if ledger.FullPaymentStatus == models.FullPaymentCompleted {
		return ErrAlreadyCompleted
	}

	now := e.now()

	if def.IsLumpSum() {
		if firstPayment != ledger.PlanAmount {
			return fmt.Errorf("%w: lump-sum payment must equal %d", ErrInvalidAmount, ledger.PlanAmount)
		}
		ledger.TotalMonths = 0
		ledger.PaidMonths = 0
		ledger.PendingMonths = 0
		ledger.PaidAmount = ledger.PlanAmount
		ledger.PendingAmount = 0
		ledger.PendingMonthsList = []string{}
		ledger.NextDueDate = nil
		ledger.FullPaymentStatus = models.FullPaymentCompleted
		return nil
	}

	if ledger.PaidMonths > 0 {
		return fmt.Errorf("%w: schedule already initialized", ErrInvalidState)
	}
	if firstPayment != def.PerMonthAmount {
		return fmt.Errorf("%w: first installment must equal %d", ErrInvalidAmount, def.PerMonthAmount)
	}

	ledger.TotalMonths = def.TotalMonths
	ledger.PerMonthAmount = def.PerMonthAmount
	ledger.PaidMonths = 1
	ledger.PendingMonths = def.TotalMonths - 1
	ledger.PaidAmount = def.PerMonthAmount
	ledger.PendingAmount = int64(ledger.PendingMonths) * def.PerMonthAmount
	ledger.PendingMonthsList = def.MonthLabels(now, ledger.PendingMonths)

	if ledger.PendingMonths == 0 {
		ledger.NextDueDate = nil
		ledger.FullPaymentStatus = models.FullPaymentCompleted
		return nil
	}
	due := now.Add(BillingCycle)
	ledger.NextDueDate = &due
	return nil
}

// Advance applies an approved EMI payment and returns the number of months it covered.
// Payments larger than the remaining balance are clamped to the remaining months.
func (e *ScheduleEngine) Advance(ledger *models.PurchaseLedger, amount int64) (int, error) {
	def, ok := ledger.Plan()
	if !ok || !def.IsEmi {
		return 0, ErrWrongPlanType
	}
	if ledger.FullPaymentStatus == models.FullPaymentCompleted || ledger.PendingMonths == 0 {
		return 0, ErrAlreadyCompleted
	}
	if err := ValidateEmiAmount(ledger.PerMonthAmount, amount); err != nil {
		return 0, err
	}

	months := int(amount / ledger.PerMonthAmount)
	if months > ledger.PendingMonths {
		months = ledger.PendingMonths
	}

	ledger.PaidMonths += months
	ledger.PendingMonths = ledger.TotalMonths - ledger.PaidMonths
	ledger.PaidAmount = int64(ledger.PaidMonths) * ledger.PerMonthAmount
	ledger.PendingAmount = int64(ledger.PendingMonths) * ledger.PerMonthAmount

	if months >= len(ledger.PendingMonthsList) {
		ledger.PendingMonthsList = []string{}
	} else {
		ledger.PendingMonthsList = append([]string{}, ledger.PendingMonthsList[months:]...)
	}

	if ledger.PendingMonths == 0 {
		ledger.NextDueDate = nil
		ledger.FullPaymentStatus = models.FullPaymentCompleted
		ledger.CanParticipateLuckyDraw = true
		ledger.LuckyDrawMessage = LuckyDrawEligible
		return months, nil
	}

	due := e.now().Add(BillingCycle)
	ledger.NextDueDate = &due
	return months, nil
}

// ValidateEmiAmount checks that amount is a positive whole number of installments
func ValidateEmiAmount(perMonth, amount int64) error {
	if perMonth <= 0 {
		return ErrWrongPlanType
	}
	if amount <= 0 || amount%perMonth != 0 {
		return fmt.Errorf("%w: amount must be a positive multiple of %d", ErrInvalidAmount, perMonth)
	}
	return nil
}
