package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plotledger_app/internal/models"
)

func newPendingLedger(t *testing.T, plan models.PlanID, custom int64) *models.PurchaseLedger {
	t.Helper()
	def, ok := models.LookupPlan(plan)
	require.True(t, ok)
	ledger, err := NewScheduleEngine(clockAt(fixedNow)).NewLedger(7, def, custom)
	require.NoError(t, err)
	return ledger
}

func assertScheduleInvariants(t *testing.T, l *models.PurchaseLedger) {
	t.Helper()
	assert.Equal(t, l.TotalMonths, l.PaidMonths+l.PendingMonths)
	assert.Equal(t, l.PendingMonths == 0, l.FullPaymentStatus == models.FullPaymentCompleted)
	assert.Len(t, l.PendingMonthsList, l.PendingMonths)
}

func TestNewLedger(t *testing.T) {
	emi := newPendingLedger(t, models.PlanD, 0)
	assert.Equal(t, 150, emi.TotalMonths)
	assert.Equal(t, 150, emi.PendingMonths)
	assert.Equal(t, int64(300000), emi.PendingAmount)
	assert.Equal(t, models.PlotStatusPending, emi.PlotStatus)

	custom := newPendingLedger(t, models.PlanOther, 125000)
	assert.Equal(t, int64(125000), custom.PlanAmount)
	assert.Zero(t, custom.TotalMonths)

	def, _ := models.LookupPlan(models.PlanOther)
	_, err := NewScheduleEngine(nil).NewLedger(7, def, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestInitializeScheduleEmi(t *testing.T) {
	engine := NewScheduleEngine(clockAt(fixedNow))
	ledger := newPendingLedger(t, models.PlanC, 0)

	require.NoError(t, engine.InitializeSchedule(ledger, 5000))

	assert.Equal(t, 1, ledger.PaidMonths)
	assert.Equal(t, 59, ledger.PendingMonths)
	assert.Equal(t, int64(5000), ledger.PaidAmount)
	assert.Equal(t, int64(295000), ledger.PendingAmount)
	assert.Equal(t, models.FullPaymentPending, ledger.FullPaymentStatus)
	require.NotNil(t, ledger.NextDueDate)
	assert.Equal(t, fixedNow.Add(BillingCycle), *ledger.NextDueDate)
	require.Len(t, ledger.PendingMonthsList, 59)
	assert.Equal(t, "April 2026", ledger.PendingMonthsList[0])
	assert.Equal(t, "May 2026", ledger.PendingMonthsList[1])
	assertScheduleInvariants(t, ledger)
}

func TestInitializeScheduleRejects(t *testing.T) {
	engine := NewScheduleEngine(clockAt(fixedNow))

	t.Run("first installment must match the plan", func(t *testing.T) {
		ledger := newPendingLedger(t, models.PlanC, 0)
		assert.ErrorIs(t, engine.InitializeSchedule(ledger, 10000), ErrInvalidAmount)
	})

	t.Run("already initialized", func(t *testing.T) {
		ledger := newPendingLedger(t, models.PlanC, 0)
		require.NoError(t, engine.InitializeSchedule(ledger, 5000))
		assert.ErrorIs(t, engine.InitializeSchedule(ledger, 5000), ErrInvalidState)
	})

	t.Run("lump sum must be paid in full", func(t *testing.T) {
		ledger := newPendingLedger(t, models.PlanA, 0)
		assert.ErrorIs(t, engine.InitializeSchedule(ledger, 300000), ErrInvalidAmount)
	})
}

func TestInitializeScheduleLumpSum(t *testing.T) {
	engine := NewScheduleEngine(clockAt(fixedNow))
	ledger := newPendingLedger(t, models.PlanA, 0)

	require.NoError(t, engine.InitializeSchedule(ledger, 600000))

	assert.Equal(t, models.FullPaymentCompleted, ledger.FullPaymentStatus)
	assert.Equal(t, int64(600000), ledger.PaidAmount)
	assert.Zero(t, ledger.PendingAmount)
	assert.Nil(t, ledger.NextDueDate)
	assertScheduleInvariants(t, ledger)

	assert.ErrorIs(t, engine.InitializeSchedule(ledger, 600000), ErrAlreadyCompleted)
}

func TestAdvance(t *testing.T) {
	engine := NewScheduleEngine(clockAt(fixedNow))
	ledger := newPendingLedger(t, models.PlanC, 0)
	require.NoError(t, engine.InitializeSchedule(ledger, 5000))

	months, err := engine.Advance(ledger, 15000)
	require.NoError(t, err)
	assert.Equal(t, 3, months)
	assert.Equal(t, 4, ledger.PaidMonths)
	assert.Equal(t, 56, ledger.PendingMonths)
	assert.Equal(t, int64(20000), ledger.PaidAmount)
	assert.Equal(t, int64(280000), ledger.PendingAmount)
	assert.Equal(t, "July 2026", ledger.NextDueMonth())
	assertScheduleInvariants(t, ledger)
}

func TestAdvanceClampsToRemainingMonths(t *testing.T) {
	engine := NewScheduleEngine(clockAt(fixedNow))
	ledger := newPendingLedger(t, models.PlanC, 0)
	require.NoError(t, engine.InitializeSchedule(ledger, 5000))

	_, err := engine.Advance(ledger, 57*5000)
	require.NoError(t, err)
	require.Equal(t, 2, ledger.PendingMonths)
	ledger.CanParticipateLuckyDraw = false

	months, err := engine.Advance(ledger, 15000)
	require.NoError(t, err)
	assert.Equal(t, 2, months)
	assert.Equal(t, 60, ledger.PaidMonths)
	assert.Zero(t, ledger.PendingMonths)
	assert.Equal(t, int64(300000), ledger.PaidAmount)
	assert.Zero(t, ledger.PendingAmount)
	assert.Equal(t, models.FullPaymentCompleted, ledger.FullPaymentStatus)
	assert.Nil(t, ledger.NextDueDate)
	assert.Empty(t, ledger.PendingMonthsList)
	assert.True(t, ledger.CanParticipateLuckyDraw)
	assertScheduleInvariants(t, ledger)

	_, err = engine.Advance(ledger, 5000)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
}

func TestAdvanceRejectsInvalidAmounts(t *testing.T) {
	engine := NewScheduleEngine(clockAt(fixedNow))

	for _, amount := range []int64{7000, 0, -5000, 4999} {
		ledger := newPendingLedger(t, models.PlanC, 0)
		require.NoError(t, engine.InitializeSchedule(ledger, 5000))
		before := *ledger

		_, err := engine.Advance(ledger, amount)
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %d", amount)
		assert.Equal(t, before.PaidMonths, ledger.PaidMonths)
	}
}

func TestAdvanceRejectsLumpSumPlans(t *testing.T) {
	engine := NewScheduleEngine(clockAt(fixedNow))
	ledger := newPendingLedger(t, models.PlanB, 0)

	_, err := engine.Advance(ledger, 300000)
	assert.ErrorIs(t, err, ErrWrongPlanType)
}

func TestAdvanceKeepsInvariantsUntilCompletion(t *testing.T) {
	engine := NewScheduleEngine(clockAt(fixedNow))
	ledger := newPendingLedger(t, models.PlanD, 0)
	require.NoError(t, engine.InitializeSchedule(ledger, 2000))
	assertScheduleInvariants(t, ledger)

	steps := []int64{1, 4, 7, 2, 13, 40}
	prevPaid := ledger.PaidMonths
	for i := 0; ledger.FullPaymentStatus != models.FullPaymentCompleted; i++ {
		_, err := engine.Advance(ledger, steps[i%len(steps)]*ledger.PerMonthAmount)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, ledger.PaidMonths, prevPaid)
		prevPaid = ledger.PaidMonths
		assertScheduleInvariants(t, ledger)
	}
	assert.Equal(t, 150, ledger.PaidMonths)
}
