package models

import (
	"time"

	"gorm.io/gorm"
)

// ReferrerTier is the kind of upstream entity that earns commission
type ReferrerTier string

const (
	TierPartner      ReferrerTier = "partner"
	TierDealer       ReferrerTier = "dealer"
	TierAgent        ReferrerTier = "agent"
	TierCollaborator ReferrerTier = "collaborator"
)

// WalletNamespace returns the commission wallet namespace the tier is paid into
func (t ReferrerTier) WalletNamespace() WalletNamespace {
	if t == TierCollaborator {
		return WalletNamespaceCollaborator
	}
	return WalletNamespacePartnerTier
}

// Referrer is a Partner/Dealer/Agent/Collaborator holding a public referral code
type Referrer struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UserID       uint         `gorm:"index" json:"user_id"`
	Tier         ReferrerTier `gorm:"type:varchar(20);index" json:"tier"`
	ReferralCode string       `gorm:"type:varchar(20);uniqueIndex" json:"referral_code"`
	Disabled     bool         `gorm:"default:false" json:"disabled"`
}
