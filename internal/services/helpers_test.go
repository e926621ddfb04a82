package services

import (
	"context"
	"sync"
	"time"

	"plotledger_app/internal/logger"
	"plotledger_app/internal/models"
)

// fixedNow is the 15th, past the monthly deadline day
var fixedNow = time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)

func clockAt(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (n *recordingNotifier) Notify(_ context.Context, msg Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

func (n *recordingNotifier) events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, msg := range n.sent {
		out = append(out, msg.Event)
	}
	return out
}

type recordingCredentials struct {
	mu    sync.Mutex
	users []uint
	err   error
}

func (c *recordingCredentials) IssueCredentials(_ context.Context, userID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users = append(c.users, userID)
	return c.err
}

type counterSequence struct {
	mu     sync.Mutex
	values map[string]int64
}

func newCounterSequence() *counterSequence {
	return &counterSequence{values: map[string]int64{}}
}

func (s *counterSequence) Next(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name]++
	return s.values[name], nil
}

type fixture struct {
	store       *memStore
	notifier    *recordingNotifier
	credentials *recordingCredentials
	locker      *LocalLocker
	orch        *PaymentOrchestrator
	wallets     *WalletLedger
	eligibility *EligibilityEvaluator
	router      *CommissionRouter
}

func newFixture(now time.Time) *fixture {
	log := logger.Discard()
	store := newMemStore()
	notifier := &recordingNotifier{}
	credentials := &recordingCredentials{}
	locker := NewLocalLocker(time.Second)
	clock := clockAt(now)

	router := NewCommissionRouter(NewReferralDirectory(store.Referrers(), nil, log), clock, log)
	eligibility := NewEligibilityEvaluator(store, locker, notifier, clock, log)

	orch := NewPaymentOrchestrator(PaymentOrchestratorDeps{
		Store:       store,
		Schedule:    NewScheduleEngine(clock),
		Eligibility: eligibility,
		Commissions: router,
		Credentials: credentials,
		Sequence:    newCounterSequence(),
		Locker:      locker,
		Notifier:    notifier,
		Now:         clock,
		Log:         log,
	})

	return &fixture{
		store:       store,
		notifier:    notifier,
		credentials: credentials,
		locker:      locker,
		orch:        orch,
		wallets:     NewWalletLedger(store, locker, clock, log),
		eligibility: eligibility,
		router:      router,
	}
}

// referredBuyer seeds a referrer of the given tier and a user referred by it
func (f *fixture) referredBuyer(tier models.ReferrerTier, code string) (*models.User, *models.Referrer) {
	owner := f.store.addUser(models.User{Name: "Referrer", Email: code + "@example.com"})
	referrer := f.store.addReferrer(models.Referrer{UserID: owner.ID, Tier: tier, ReferralCode: code})
	buyer := f.store.addUser(models.User{
		Name:                    "Buyer",
		Email:                   "buyer-" + code + "@example.com",
		ReferredBy:              models.ReferralSource(tier),
		ReferredByID:            code,
		CanParticipateLuckyDraw: true,
	})
	return buyer, referrer
}

// approvedEmiLedger creates and approves a purchase on an EMI plan
func (f *fixture) approvedEmiLedger(ctx context.Context, userID uint, plan models.PlanID) *models.PurchaseLedger {
	ledger, err := f.orch.InitializePurchase(ctx, PurchaseRequest{UserID: userID, PlanID: plan, Upi: "buyer@upi"})
	if err != nil {
		panic(err)
	}
	result, err := f.orch.ApprovePlot(ctx, ledger.ID)
	if err != nil {
		panic(err)
	}
	return result.Ledger
}
