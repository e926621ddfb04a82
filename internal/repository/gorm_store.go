package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"plotledger_app/internal/models"
)

// GormStore implements Store on top of a gorm connection or transaction
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Ledgers() LedgerRepository         { return &ledgerRepository{db: s.db} }
func (s *GormStore) Users() UserRepository             { return &userRepository{db: s.db} }
func (s *GormStore) Referrers() ReferrerRepository     { return &referrerRepository{db: s.db} }
func (s *GormStore) Wallets() WalletRepository         { return &walletRepository{db: s.db} }
func (s *GormStore) Commissions() CommissionRepository { return &commissionRepository{db: s.db} }

func (s *GormStore) Atomic(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// translate maps gorm errors onto the repository sentinels
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}

// casUpdate writes every column of model when the stored version equals *version
func casUpdate(ctx context.Context, db *gorm.DB, model interface{}, version *int) error {
	prev := *version
	*version = prev + 1

	res := db.WithContext(ctx).Model(model).
		Where("version = ?", prev).
		Select("*").
		Omit("id", "created_at", clause.Associations).
		Updates(model)
	if res.Error != nil {
		*version = prev
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		*version = prev
		return ErrVersionConflict
	}
	return nil
}

type ledgerRepository struct {
	db *gorm.DB
}

func (r *ledgerRepository) Create(ctx context.Context, ledger *models.PurchaseLedger) error {
	if ledger.Version == 0 {
		ledger.Version = 1
	}
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(ledger).Error)
}

func (r *ledgerRepository) GetByID(ctx context.Context, id uint) (*models.PurchaseLedger, error) {
	var ledger models.PurchaseLedger
	if err := r.db.WithContext(ctx).First(&ledger, id).Error; err != nil {
		return nil, translate(err)
	}
	return &ledger, nil
}

func (r *ledgerRepository) Update(ctx context.Context, ledger *models.PurchaseLedger) error {
	if err := casUpdate(ctx, r.db, ledger, &ledger.Version); err != nil {
		return fmt.Errorf("update ledger %d: %w", ledger.ID, err)
	}
	return nil
}

func (r *ledgerRepository) ListOverdueEmi(ctx context.Context, now time.Time) ([]models.PurchaseLedger, error) {
	var ledgers []models.PurchaseLedger
	err := r.db.WithContext(ctx).
		Where("plan_id IN ?", emiPlanIDs()).
		Where("full_payment_status = ? AND plot_status = ?", models.FullPaymentPending, models.PlotStatusApproved).
		Where("next_due_date IS NOT NULL AND next_due_date < ?", now).
		Where("paid_months < total_months").
		Order("id asc").
		Find(&ledgers).Error
	return ledgers, translate(err)
}

func (r *ledgerRepository) ListApprovedEmiByUser(ctx context.Context, userID uint) ([]models.PurchaseLedger, error) {
	var ledgers []models.PurchaseLedger
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND plan_id IN ? AND plot_status = ?", userID, emiPlanIDs(), models.PlotStatusApproved).
		Order("id asc").
		Find(&ledgers).Error
	return ledgers, translate(err)
}

func (r *ledgerRepository) AddPayment(ctx context.Context, payment *models.LedgerPayment) error {
	return translate(r.db.WithContext(ctx).Create(payment).Error)
}

func emiPlanIDs() []models.PlanID {
	var ids []models.PlanID
	for _, def := range models.Plans() {
		if def.IsEmi {
			ids = append(ids, def.ID)
		}
	}
	return ids
}

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(user).Error)
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(user).Error)
}

func (r *userRepository) SetLuckyDrawEligibility(ctx context.Context, id uint, eligible bool) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("can_participate_lucky_draw", eligible)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type referrerRepository struct {
	db *gorm.DB
}

func (r *referrerRepository) Create(ctx context.Context, referrer *models.Referrer) error {
	return translate(r.db.WithContext(ctx).Create(referrer).Error)
}

func (r *referrerRepository) GetByReferralCode(ctx context.Context, code string) (*models.Referrer, error) {
	var referrer models.Referrer
	err := r.db.WithContext(ctx).
		Where("referral_code = ? AND disabled = ?", code, false).
		First(&referrer).Error
	if err != nil {
		return nil, translate(err)
	}
	return &referrer, nil
}

type walletRepository struct {
	db *gorm.DB
}

func (r *walletRepository) GetCommissionWallet(ctx context.Context, ns models.WalletNamespace, ownerID uint) (*models.CommissionWallet, error) {
	var wallet models.CommissionWallet
	err := r.db.WithContext(ctx).
		Where("namespace = ? AND owner_id = ?", ns, ownerID).
		First(&wallet).Error
	if err != nil {
		return nil, translate(err)
	}
	return &wallet, nil
}

func (r *walletRepository) GetOrCreateCommissionWallet(ctx context.Context, ns models.WalletNamespace, ownerID uint) (*models.CommissionWallet, error) {
	wallet := models.CommissionWallet{Namespace: ns, OwnerID: ownerID, Version: 1}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Omit(clause.Associations).
		Create(&wallet).Error
	if err != nil {
		return nil, translate(err)
	}
	return r.GetCommissionWallet(ctx, ns, ownerID)
}

func (r *walletRepository) UpdateCommissionWallet(ctx context.Context, wallet *models.CommissionWallet) error {
	if err := casUpdate(ctx, r.db, wallet, &wallet.Version); err != nil {
		return fmt.Errorf("update commission wallet %d: %w", wallet.ID, err)
	}
	return nil
}

func (r *walletRepository) AddHistory(ctx context.Context, entry *models.WalletHistoryEntry) error {
	return translate(r.db.WithContext(ctx).Create(entry).Error)
}

func (r *walletRepository) ListHistory(ctx context.Context, walletID uint) ([]models.WalletHistoryEntry, error) {
	var entries []models.WalletHistoryEntry
	err := r.db.WithContext(ctx).Where("wallet_id = ?", walletID).Order("id asc").Find(&entries).Error
	return entries, translate(err)
}

func (r *walletRepository) GetOrCreateCollaboratorWallet(ctx context.Context, userID uint) (*models.CollaboratorWallet, error) {
	wallet := models.CollaboratorWallet{UserID: userID, Version: 1}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Omit(clause.Associations).
		Create(&wallet).Error
	if err != nil {
		return nil, translate(err)
	}

	var stored models.CollaboratorWallet
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&stored).Error; err != nil {
		return nil, translate(err)
	}
	return &stored, nil
}

func (r *walletRepository) UpdateCollaboratorWallet(ctx context.Context, wallet *models.CollaboratorWallet) error {
	if err := casUpdate(ctx, r.db, wallet, &wallet.Version); err != nil {
		return fmt.Errorf("update collaborator wallet %d: %w", wallet.ID, err)
	}
	return nil
}

func (r *walletRepository) AddTransfer(ctx context.Context, transfer *models.WalletTransfer) error {
	return translate(r.db.WithContext(ctx).Create(transfer).Error)
}

func (r *walletRepository) CreateCoupon(ctx context.Context, coupon *models.Coupon) error {
	return translate(r.db.WithContext(ctx).Create(coupon).Error)
}

func (r *walletRepository) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&coupon).Error; err != nil {
		return nil, translate(err)
	}
	return &coupon, nil
}

func (r *walletRepository) MarkCouponUsed(ctx context.Context, coupon *models.Coupon, usedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Coupon{}).
		Where("id = ? AND used = ?", coupon.ID, false).
		Updates(map[string]interface{}{"used": true, "used_at": usedAt})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	coupon.Used = true
	coupon.UsedAt = &usedAt
	return nil
}

type commissionRepository struct {
	db *gorm.DB
}

func (r *commissionRepository) GetWatermark(ctx context.Context, ledgerID, walletID uint) (*models.CommissionWatermark, error) {
	var watermark models.CommissionWatermark
	err := r.db.WithContext(ctx).
		Where("ledger_id = ? AND wallet_id = ?", ledgerID, walletID).
		First(&watermark).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.CommissionWatermark{LedgerID: ledgerID, WalletID: walletID}, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return &watermark, nil
}

func (r *commissionRepository) SaveWatermark(ctx context.Context, watermark *models.CommissionWatermark) error {
	return translate(r.db.WithContext(ctx).Save(watermark).Error)
}

// AddEvent skips conflicting rows instead of failing so the surrounding transaction stays usable
func (r *commissionRepository) AddEvent(ctx context.Context, event *models.CommissionEvent) error {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(event)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

func (r *commissionRepository) ListEventsByWallet(ctx context.Context, walletID uint) ([]models.CommissionEvent, error) {
	var events []models.CommissionEvent
	err := r.db.WithContext(ctx).Where("wallet_id = ?", walletID).Order("id asc").Find(&events).Error
	return events, translate(err)
}
