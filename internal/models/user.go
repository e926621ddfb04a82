package models

import (
	"time"

	"gorm.io/gorm"
)

// ReferralSource names who brought a user to the platform
type ReferralSource string

const (
	ReferredByPartner      ReferralSource = "partner"
	ReferredByDealer       ReferralSource = "dealer"
	ReferredByAgent        ReferralSource = "agent"
	ReferredByCollaborator ReferralSource = "collaborator"
	ReferredByMyself       ReferralSource = "myself"
	ReferredByNoOne        ReferralSource = "no-one"
)

// NeedsReferralCode reports whether a referral code must accompany the source
func (s ReferralSource) NeedsReferralCode() bool {
	return s != ReferredByMyself && s != ReferredByNoOne && s != ""
}

// User represents a buyer in the system
type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name  string `gorm:"type:varchar(255)" json:"name"`
	Phone string `gorm:"type:varchar(50)" json:"phone"`
	Email string `gorm:"type:varchar(255);uniqueIndex" json:"email"`

	ReferredBy   ReferralSource `gorm:"type:varchar(20);default:'no-one'" json:"referred_by"`
	ReferredByID string         `gorm:"type:varchar(20);index" json:"referred_by_id"`

	// Username is nil until credentials are issued.
	Username        *string `gorm:"type:varchar(50);uniqueIndex" json:"username"`
	PasswordHash    string  `gorm:"type:varchar(255)" json:"-"`
	CredentialsSent bool    `gorm:"default:false" json:"credentials_sent"`

	CanParticipateLuckyDraw bool `gorm:"default:true" json:"can_participate_lucky_draw"`

	// Relationships
	Ledgers []PurchaseLedger `gorm:"foreignKey:UserID" json:"ledgers,omitempty"`
}
