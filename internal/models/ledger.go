package models

import (
	"time"

	"gorm.io/gorm"
)

type FullPaymentStatus string

const (
	FullPaymentPending   FullPaymentStatus = "Pending"
	FullPaymentCompleted FullPaymentStatus = "Completed"
)

type PlotStatus string

const (
	PlotStatusPending  PlotStatus = "Pending"
	PlotStatusApproved PlotStatus = "Approved"
	PlotStatusDeclined PlotStatus = "Declined"
)

// PurchaseLedger is a single plot purchase and its payment schedule
type PurchaseLedger struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UUID     string `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	UserID   uint   `gorm:"index" json:"user_id"`
	PlotCode string `gorm:"type:varchar(20);uniqueIndex" json:"plot_code"` // e.g. "P0042"
	PlanID   PlanID `gorm:"type:varchar(10);index" json:"plan_id"`

	PlanAmount     int64 `json:"plan_amount"`
	PerMonthAmount int64 `json:"per_month_amount"`
	SqFeet         int   `json:"sq_feet"`

	TotalMonths       int        `json:"total_months"`
	PaidMonths        int        `json:"paid_months"`
	PendingMonths     int        `json:"pending_months"`
	PaidAmount        int64      `json:"paid_amount"`
	PendingAmount     int64      `json:"pending_amount"`
	PendingMonthsList []string   `gorm:"serializer:json" json:"pending_months_list"`
	NextDueDate       *time.Time `gorm:"index" json:"next_due_date"`

	FullPaymentStatus FullPaymentStatus `gorm:"type:varchar(20);index;default:'Pending'" json:"full_payment_status"`
	PlotStatus        PlotStatus        `gorm:"type:varchar(20);index;default:'Pending'" json:"plot_status"`

	EmiPaymentRequested       bool       `gorm:"default:false" json:"emi_payment_requested"`
	RequestedEmiPaymentAmount int64      `json:"requested_emi_payment_amount"`
	RequestedAt               *time.Time `json:"requested_at"`

	Upi             string `gorm:"type:varchar(100)" json:"upi"`
	UpiMobileNumber string `gorm:"type:varchar(20)" json:"upi_mobile_number"`

	CanParticipateLuckyDraw bool   `gorm:"default:true" json:"can_participate_lucky_draw"`
	LuckyDrawMessage        string `gorm:"type:varchar(255)" json:"lucky_draw_message"`

	// Version guards whole-row updates, every successful save increments it.
	Version int `gorm:"not null;default:1" json:"version"`

	Payments []LedgerPayment `gorm:"foreignKey:LedgerID" json:"payments,omitempty"`
}

// Plan returns the catalog definition the ledger was created from
func (l PurchaseLedger) Plan() (PlanDefinition, bool) {
	return LookupPlan(l.PlanID)
}

// IsEmi reports whether the ledger follows a monthly installment plan
func (l PurchaseLedger) IsEmi() bool {
	def, ok := l.Plan()
	return ok && def.IsEmi
}

// NextDueMonth returns the label of the next unpaid month, or "" if none remain
func (l PurchaseLedger) NextDueMonth() string {
	if len(l.PendingMonthsList) == 0 {
		return ""
	}
	return l.PendingMonthsList[0]
}
