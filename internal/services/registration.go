package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"plotledger_app/internal/models"
	"plotledger_app/internal/repository"
)

const referralCodeAttempts = 5

// NewUser is a buyer signing up
type NewUser struct {
	Name         string
	Email        string
	Phone        string
	ReferredBy   models.ReferralSource
	ReferralCode string
}

// Registration creates buyers and referrers
type Registration struct {
	store     repository.Store
	referrals ReferrerResolver
	log       *logrus.Entry
}

func NewRegistration(store repository.Store, referrals ReferrerResolver, log *logrus.Entry) *Registration {
	return &Registration{store: store, referrals: referrals, log: log.WithField("component", "registration")}
}

var referralSourceTier = map[models.ReferralSource]models.ReferrerTier{
	models.ReferredByPartner:      models.TierPartner,
	models.ReferredByDealer:       models.TierDealer,
	models.ReferredByAgent:        models.TierAgent,
	models.ReferredByCollaborator: models.TierCollaborator,
}

// RegisterUser stores a new buyer. A referral code is required for every source except
// "myself" and "no-one" and must belong to a referrer of the matching tier.
func (r *Registration) RegisterUser(ctx context.Context, in NewUser) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}

	source := in.ReferredBy
	if source == "" {
		source = models.ReferredByNoOne
	}

	user := &models.User{
		Name:                    strings.TrimSpace(in.Name),
		Email:                   email,
		Phone:                   strings.TrimSpace(in.Phone),
		ReferredBy:              source,
		CanParticipateLuckyDraw: true,
	}

	if source.NeedsReferralCode() {
		tier, ok := referralSourceTier[source]
		if !ok {
			return nil, fmt.Errorf("%w: unknown referral source %q", ErrInvalidInput, source)
		}
		referrer, err := r.referrals.ResolveReferrer(ctx, in.ReferralCode)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, ErrInvalidReferral
			}
			return nil, err
		}
		if referrer.Tier != tier {
			return nil, ErrInvalidReferral
		}
		user.ReferredByID = referrer.ReferralCode
	}

	if err := r.store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyRegistered
		}
		return nil, storageErr(err)
	}

	r.log.WithFields(logrus.Fields{"user_id": user.ID, "referred_by": source}).Info("User registered")
	return user, nil
}

// RegisterReferrer gives an existing user a referral code for tier
func (r *Registration) RegisterReferrer(ctx context.Context, userID uint, tier models.ReferrerTier) (*models.Referrer, error) {
	switch tier {
	case models.TierPartner, models.TierDealer, models.TierAgent, models.TierCollaborator:
	default:
		return nil, fmt.Errorf("%w: unknown tier %q", ErrInvalidInput, tier)
	}

	if _, err := r.store.Users().GetByID(ctx, userID); err != nil {
		return nil, storageErr(err)
	}

	for attempt := 0; attempt < referralCodeAttempts; attempt++ {
		referrer := &models.Referrer{UserID: userID, Tier: tier, ReferralCode: NewReferralCode()}
		err := r.store.Referrers().Create(ctx, referrer)
		if err == nil {
			r.log.WithFields(logrus.Fields{"user_id": userID, "tier": tier, "referral_code": referrer.ReferralCode}).Info("Referrer registered")
			return referrer, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, storageErr(err)
		}
	}
	return nil, fmt.Errorf("%w: could not allocate a unique referral code", ErrStorage)
}

// NewReferralCode returns an 8 character code of the form S??????S
func NewReferralCode() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "S" + strings.ToUpper(id[:6]) + "S"
}

// GetUser returns a registered user
func (r *Registration) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	user, err := r.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, storageErr(err)
	}
	return user, nil
}
