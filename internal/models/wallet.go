package models

import (
	"time"

	"gorm.io/gorm"
)

// WalletNamespace separates partner-tier commission wallets from collaborator ones
type WalletNamespace string

const (
	WalletNamespacePartnerTier  WalletNamespace = "partner_tier"
	WalletNamespaceCollaborator WalletNamespace = "collaborator"
)

// Valid reports whether ns is a known namespace
func (ns WalletNamespace) Valid() bool {
	return ns == WalletNamespacePartnerTier || ns == WalletNamespaceCollaborator
}

type WithdrawalStatus string

const (
	WithdrawalStatusApproved WithdrawalStatus = "Approved"
)

// CommissionWallet holds the commission balance of one referrer
type CommissionWallet struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Namespace WalletNamespace `gorm:"type:varchar(20);uniqueIndex:idx_commission_wallet_owner,priority:1" json:"namespace"`
	OwnerID   uint            `gorm:"uniqueIndex:idx_commission_wallet_owner,priority:2" json:"owner_id"` // Referrer.ID

	Balance                 int64  `json:"balance"`
	PendingWithdrawalAmount int64  `json:"pending_withdrawal_amount"`
	WithdrawalRequested     bool   `gorm:"default:false" json:"withdrawal_requested"`
	WithdrawalUpi           string `gorm:"type:varchar(100)" json:"withdrawal_upi"`
	WithdrawalUpiMobile     string `gorm:"type:varchar(20)" json:"withdrawal_upi_mobile"`

	Version int `gorm:"not null;default:1" json:"version"`

	History []WalletHistoryEntry `gorm:"foreignKey:WalletID" json:"history,omitempty"`
}

// WalletHistoryEntry is an append-only withdrawal record
type WalletHistoryEntry struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	WalletID        uint             `gorm:"index" json:"wallet_id"`
	Amount          int64            `json:"amount"`
	Status          WithdrawalStatus `gorm:"type:varchar(20)" json:"status"`
	Upi             string           `gorm:"type:varchar(100)" json:"upi"`
	UpiMobileNumber string           `gorm:"type:varchar(20)" json:"upi_mobile_number"`
	Date            time.Time        `json:"date"`
}

// CollaboratorWallet is a user's course/service dual-balance wallet
type CollaboratorWallet struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UserID uint `gorm:"uniqueIndex" json:"user_id"`

	CourseBalance  int64 `json:"course_balance"`
	ServiceBalance int64 `json:"service_balance"`
	// LastCreditedPaidAmount is the cumulative ledger paid amount already reflected in CourseBalance.
	LastCreditedPaidAmount int64 `json:"last_credited_paid_amount"`
	TransferredToService   int64 `json:"transferred_to_service"`

	Version int `gorm:"not null;default:1" json:"version"`

	Transfers []WalletTransfer `gorm:"foreignKey:CollaboratorWalletID" json:"transfers,omitempty"`
}

// TotalBalance is the sum of both sub-balances
func (w CollaboratorWallet) TotalBalance() int64 {
	return w.CourseBalance + w.ServiceBalance
}

// WalletTransfer logs a course-to-service move
type WalletTransfer struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	CollaboratorWalletID uint      `gorm:"index" json:"collaborator_wallet_id"`
	Amount               int64     `json:"amount"`
	TransferredAt        time.Time `json:"transferred_at"`
}

// Coupon is a single-use voucher paid for out of a collaborator's service balance
type Coupon struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID      uint       `gorm:"index" json:"user_id"`
	Code        string     `gorm:"type:varchar(20);uniqueIndex" json:"code"`
	ServiceName string     `gorm:"type:varchar(255)" json:"service_name"`
	Value       int64      `json:"value"`
	Used        bool       `gorm:"default:false" json:"used"`
	UsedAt      *time.Time `json:"used_at,omitempty"`
}
