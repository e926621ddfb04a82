package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"plotledger_app/internal/models"
	"plotledger_app/internal/repository"
)

// memStore is an in-memory repository.Store. Atomic restores a snapshot when fn fails.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	nextID     uint
	ledgers    map[uint]models.PurchaseLedger
	payments   []models.LedgerPayment
	users      map[uint]models.User
	referrers  map[uint]models.Referrer
	wallets    map[uint]models.CommissionWallet
	history    []models.WalletHistoryEntry
	cwallets   map[uint]models.CollaboratorWallet
	transfers  []models.WalletTransfer
	coupons    []models.Coupon
	events     []models.CommissionEvent
	watermarks map[[2]uint]models.CommissionWatermark

	// beforeLedgerUpdate runs before every ledger update, used to simulate concurrent writers
	beforeLedgerUpdate func(id uint)
}

func newMemStore() *memStore {
	return &memStore{
		nextID:     1,
		ledgers:    map[uint]models.PurchaseLedger{},
		users:      map[uint]models.User{},
		referrers:  map[uint]models.Referrer{},
		wallets:    map[uint]models.CommissionWallet{},
		cwallets:   map[uint]models.CollaboratorWallet{},
		watermarks: map[[2]uint]models.CommissionWatermark{},
	}
}

func (s *memStore) id() uint {
	id := s.nextID
	s.nextID++
	return id
}

func (s *memStore) Ledgers() repository.LedgerRepository         { return memLedgers{s} }
func (s *memStore) Users() repository.UserRepository             { return memUsers{s} }
func (s *memStore) Referrers() repository.ReferrerRepository     { return memReferrers{s} }
func (s *memStore) Wallets() repository.WalletRepository         { return memWallets{s} }
func (s *memStore) Commissions() repository.CommissionRepository { return memCommissions{s} }

func (s *memStore) Atomic(ctx context.Context, fn func(tx repository.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snapshot := s.clone()
	if err := fn(s); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

func (s *memStore) clone() *memStore {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := newMemStore()
	c.nextID = s.nextID
	for k, v := range s.ledgers {
		c.ledgers[k] = copyLedger(v)
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.referrers {
		c.referrers[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.cwallets {
		c.cwallets[k] = v
	}
	for k, v := range s.watermarks {
		c.watermarks[k] = v
	}
	c.payments = append(c.payments, s.payments...)
	c.history = append(c.history, s.history...)
	c.transfers = append(c.transfers, s.transfers...)
	c.coupons = append(c.coupons, s.coupons...)
	c.events = append(c.events, s.events...)
	return c
}

func (s *memStore) restore(c *memStore) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID = c.nextID
	s.ledgers = c.ledgers
	s.users = c.users
	s.referrers = c.referrers
	s.wallets = c.wallets
	s.cwallets = c.cwallets
	s.watermarks = c.watermarks
	s.payments = c.payments
	s.history = c.history
	s.transfers = c.transfers
	s.coupons = c.coupons
	s.events = c.events
}

func copyLedger(l models.PurchaseLedger) models.PurchaseLedger {
	if l.PendingMonthsList != nil {
		l.PendingMonthsList = append([]string{}, l.PendingMonthsList...)
	}
	if l.NextDueDate != nil {
		due := *l.NextDueDate
		l.NextDueDate = &due
	}
	l.Payments = nil
	return l
}

// seeding helpers

func (s *memStore) addUser(u models.User) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.id()
	}
	s.users[u.ID] = u
	return &u
}

func (s *memStore) addReferrer(r models.Referrer) *models.Referrer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == 0 {
		r.ID = s.id()
	}
	s.referrers[r.ID] = r
	return &r
}

func (s *memStore) addWallet(w models.CommissionWallet) *models.CommissionWallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID == 0 {
		w.ID = s.id()
	}
	if w.Version == 0 {
		w.Version = 1
	}
	s.wallets[w.ID] = w
	return &w
}

func (s *memStore) addLedger(l models.PurchaseLedger) *models.PurchaseLedger {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == 0 {
		l.ID = s.id()
	}
	if l.Version == 0 {
		l.Version = 1
	}
	s.ledgers[l.ID] = copyLedger(l)
	return &l
}

func (s *memStore) ledger(id uint) models.PurchaseLedger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyLedger(s.ledgers[id])
}

func (s *memStore) user(id uint) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

func (s *memStore) walletFor(ns models.WalletNamespace, ownerID uint) (models.CommissionWallet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.wallets {
		if w.Namespace == ns && w.OwnerID == ownerID {
			return w, true
		}
	}
	return models.CommissionWallet{}, false
}

func (s *memStore) eventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type memLedgers struct{ s *memStore }

func (r memLedgers) Create(ctx context.Context, ledger *models.PurchaseLedger) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ledger.ID = r.s.id()
	if ledger.Version == 0 {
		ledger.Version = 1
	}
	r.s.ledgers[ledger.ID] = copyLedger(*ledger)
	return nil
}

func (r memLedgers) GetByID(ctx context.Context, id uint) (*models.PurchaseLedger, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.ledgers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := copyLedger(l)
	return &c, nil
}

func (r memLedgers) Update(ctx context.Context, ledger *models.PurchaseLedger) error {
	if hook := r.s.beforeLedgerUpdate; hook != nil {
		hook(ledger.ID)
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.ledgers[ledger.ID]
	if !ok || stored.Version != ledger.Version {
		return repository.ErrVersionConflict
	}
	ledger.Version++
	r.s.ledgers[ledger.ID] = copyLedger(*ledger)
	return nil
}

func (r memLedgers) ListOverdueEmi(ctx context.Context, now time.Time) ([]models.PurchaseLedger, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.PurchaseLedger
	for _, l := range r.s.ledgers {
		if l.IsEmi() && l.FullPaymentStatus == models.FullPaymentPending && l.PlotStatus == models.PlotStatusApproved &&
			l.NextDueDate != nil && l.NextDueDate.Before(now) && l.PaidMonths < l.TotalMonths {
			out = append(out, copyLedger(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memLedgers) ListApprovedEmiByUser(ctx context.Context, userID uint) ([]models.PurchaseLedger, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.PurchaseLedger
	for _, l := range r.s.ledgers {
		if l.UserID == userID && l.IsEmi() && l.PlotStatus == models.PlotStatusApproved {
			out = append(out, copyLedger(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memLedgers) AddPayment(ctx context.Context, payment *models.LedgerPayment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	payment.ID = r.s.id()
	r.s.payments = append(r.s.payments, *payment)
	return nil
}

type memUsers struct{ s *memStore }

func (r memUsers) Create(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	user.ID = r.s.id()
	r.s.users[user.ID] = *user
	return nil
}

func (r memUsers) GetByID(ctx context.Context, id uint) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r memUsers) Update(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	r.s.users[user.ID] = *user
	return nil
}

func (r memUsers) SetLuckyDrawEligibility(ctx context.Context, id uint, eligible bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.CanParticipateLuckyDraw = eligible
	r.s.users[id] = u
	return nil
}

type memReferrers struct{ s *memStore }

func (r memReferrers) Create(ctx context.Context, referrer *models.Referrer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ref := range r.s.referrers {
		if ref.ReferralCode == referrer.ReferralCode {
			return repository.ErrDuplicate
		}
	}
	referrer.ID = r.s.id()
	r.s.referrers[referrer.ID] = *referrer
	return nil
}

func (r memReferrers) GetByReferralCode(ctx context.Context, code string) (*models.Referrer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ref := range r.s.referrers {
		if ref.ReferralCode == code && !ref.Disabled {
			found := ref
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

type memWallets struct{ s *memStore }

func (r memWallets) GetCommissionWallet(ctx context.Context, ns models.WalletNamespace, ownerID uint) (*models.CommissionWallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, w := range r.s.wallets {
		if w.Namespace == ns && w.OwnerID == ownerID {
			found := w
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memWallets) GetOrCreateCommissionWallet(ctx context.Context, ns models.WalletNamespace, ownerID uint) (*models.CommissionWallet, error) {
	if w, err := r.GetCommissionWallet(ctx, ns, ownerID); err == nil {
		return w, nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w := models.CommissionWallet{ID: r.s.id(), Namespace: ns, OwnerID: ownerID, Version: 1}
	r.s.wallets[w.ID] = w
	return &w, nil
}

func (r memWallets) UpdateCommissionWallet(ctx context.Context, wallet *models.CommissionWallet) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.wallets[wallet.ID]
	if !ok || stored.Version != wallet.Version {
		return repository.ErrVersionConflict
	}
	wallet.Version++
	r.s.wallets[wallet.ID] = *wallet
	return nil
}

func (r memWallets) AddHistory(ctx context.Context, entry *models.WalletHistoryEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry.ID = r.s.id()
	r.s.history = append(r.s.history, *entry)
	return nil
}

func (r memWallets) ListHistory(ctx context.Context, walletID uint) ([]models.WalletHistoryEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.WalletHistoryEntry{}
	for _, h := range r.s.history {
		if h.WalletID == walletID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r memWallets) GetOrCreateCollaboratorWallet(ctx context.Context, userID uint) (*models.CollaboratorWallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, w := range r.s.cwallets {
		if w.UserID == userID {
			found := w
			return &found, nil
		}
	}
	w := models.CollaboratorWallet{ID: r.s.id(), UserID: userID, Version: 1}
	r.s.cwallets[w.ID] = w
	return &w, nil
}

func (r memWallets) UpdateCollaboratorWallet(ctx context.Context, wallet *models.CollaboratorWallet) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.cwallets[wallet.ID]
	if !ok || stored.Version != wallet.Version {
		return repository.ErrVersionConflict
	}
	wallet.Version++
	r.s.cwallets[wallet.ID] = *wallet
	return nil
}

func (r memWallets) AddTransfer(ctx context.Context, transfer *models.WalletTransfer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	transfer.ID = r.s.id()
	r.s.transfers = append(r.s.transfers, *transfer)
	return nil
}

func (r memWallets) CreateCoupon(ctx context.Context, coupon *models.Coupon) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.coupons {
		if c.Code == coupon.Code {
			return repository.ErrDuplicate
		}
	}
	coupon.ID = r.s.id()
	r.s.coupons = append(r.s.coupons, *coupon)
	return nil
}

func (r memWallets) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.coupons {
		if c.Code == code {
			found := c
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memWallets) MarkCouponUsed(ctx context.Context, coupon *models.Coupon, usedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, c := range r.s.coupons {
		if c.ID == coupon.ID {
			if c.Used {
				return repository.ErrVersionConflict
			}
			r.s.coupons[i].Used = true
			r.s.coupons[i].UsedAt = &usedAt
			coupon.Used = true
			coupon.UsedAt = &usedAt
			return nil
		}
	}
	return repository.ErrNotFound
}

type memCommissions struct{ s *memStore }

func (r memCommissions) GetWatermark(ctx context.Context, ledgerID, walletID uint) (*models.CommissionWatermark, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if wm, ok := r.s.watermarks[[2]uint{ledgerID, walletID}]; ok {
		return &wm, nil
	}
	return &models.CommissionWatermark{LedgerID: ledgerID, WalletID: walletID}, nil
}

func (r memCommissions) SaveWatermark(ctx context.Context, watermark *models.CommissionWatermark) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if watermark.ID == 0 {
		watermark.ID = r.s.id()
	}
	r.s.watermarks[[2]uint{watermark.LedgerID, watermark.WalletID}] = *watermark
	return nil
}

func (r memCommissions) AddEvent(ctx context.Context, event *models.CommissionEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.events {
		if e.WalletID == event.WalletID && e.LedgerID == event.LedgerID && e.Kind == event.Kind && e.PaidMark == event.PaidMark {
			return repository.ErrDuplicate
		}
	}
	event.ID = r.s.id()
	r.s.events = append(r.s.events, *event)
	return nil
}

func (r memCommissions) ListEventsByWallet(ctx context.Context, walletID uint) ([]models.CommissionEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.CommissionEvent
	for _, e := range r.s.events {
		if e.WalletID == walletID {
			out = append(out, e)
		}
	}
	return out, nil
}
