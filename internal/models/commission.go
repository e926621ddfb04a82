package models

import (
	"time"
)

type CommissionKind string

const (
	CommissionKindEmiMonth    CommissionKind = "emi_month"
	CommissionKindLumpSum     CommissionKind = "lump_sum"
	CommissionKindSignupBonus CommissionKind = "signup_bonus"
)

// CommissionEvent is an append-only record of one wallet credit.
// The unique index makes a replayed credit for the same paid mark fail at the storage level.
type CommissionEvent struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	UUID         string         `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	WalletID     uint           `gorm:"uniqueIndex:idx_commission_event_once,priority:1" json:"wallet_id"`
	LedgerID     uint           `gorm:"uniqueIndex:idx_commission_event_once,priority:2" json:"ledger_id"`
	Kind         CommissionKind `gorm:"type:varchar(20);uniqueIndex:idx_commission_event_once,priority:3" json:"kind"`
	PaidMark     int64          `gorm:"uniqueIndex:idx_commission_event_once,priority:4" json:"paid_mark"`
	SourceUserID uint           `gorm:"index" json:"source_user_id"`
	Months       int            `json:"months"`
	Amount       int64          `json:"amount"`
	Timestamp    time.Time      `json:"timestamp"`
}

// CommissionWatermark tracks the cumulative paid amount already credited per ledger/wallet pair
type CommissionWatermark struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	LedgerID            uint  `gorm:"uniqueIndex:idx_commission_watermark_pair,priority:1" json:"ledger_id"`
	WalletID            uint  `gorm:"uniqueIndex:idx_commission_watermark_pair,priority:2" json:"wallet_id"`
	CreditedPaidAmount  int64 `json:"credited_paid_amount"`
	CreditedTotalAmount int64 `json:"credited_total_amount"`
}
