package models

import (
	"time"

	"gorm.io/gorm"
)

type PaymentKind string

const (
	PaymentKindFirstInstallment PaymentKind = "first_installment"
	PaymentKindEmi              PaymentKind = "emi"
	PaymentKindFull             PaymentKind = "full"
)

// LedgerPayment records an approved payment applied to a ledger
type LedgerPayment struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	LedgerID        uint        `gorm:"index" json:"ledger_id"`
	UserID          uint        `gorm:"index" json:"user_id"`
	Kind            PaymentKind `gorm:"type:varchar(30)" json:"kind"`
	Amount          int64       `json:"amount"`
	MonthsApplied   int         `json:"months_applied"`
	Upi             string      `gorm:"type:varchar(100)" json:"upi"`
	UpiMobileNumber string      `gorm:"type:varchar(20)" json:"upi_mobile_number"`
	PaymentDate     time.Time   `json:"payment_date"`
}
