package services

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plotledger_app/internal/logger"
	"plotledger_app/internal/models"
)

func newTestRegistration(f *fixture) *Registration {
	log := logger.Discard()
	return NewRegistration(f.store, NewReferralDirectory(f.store.Referrers(), nil, log), log)
}

func TestRegisterUserWithReferral(t *testing.T) {
	f := newFixture(fixedNow)
	owner := f.store.addUser(models.User{Name: "Partner", Email: "partner@example.com"})
	f.store.addReferrer(models.Referrer{UserID: owner.ID, Tier: models.TierPartner, ReferralCode: "SAB12CDS"})
	reg := newTestRegistration(f)

	user, err := reg.RegisterUser(context.Background(), NewUser{
		Name:         " Asha ",
		Email:        "Asha@Example.com",
		ReferredBy:   models.ReferredByPartner,
		ReferralCode: "sab12cds",
	})
	require.NoError(t, err)

	assert.Equal(t, "Asha", user.Name)
	assert.Equal(t, "asha@example.com", user.Email)
	assert.Equal(t, "SAB12CDS", user.ReferredByID)
	assert.True(t, user.CanParticipateLuckyDraw)
	assert.Equal(t, *user, f.store.user(user.ID))
}

func TestRegisterUserRejections(t *testing.T) {
	f := newFixture(fixedNow)
	owner := f.store.addUser(models.User{Name: "Dealer", Email: "dealer@example.com"})
	f.store.addReferrer(models.Referrer{UserID: owner.ID, Tier: models.TierDealer, ReferralCode: "SDEALERS"})
	reg := newTestRegistration(f)

	tests := []struct {
		name string
		in   NewUser
		want error
	}{
		{"missing name", NewUser{Email: "a@example.com"}, ErrInvalidInput},
		{"bad email", NewUser{Name: "A", Email: "not-an-email"}, ErrInvalidInput},
		{"unknown code", NewUser{Name: "A", Email: "a@example.com", ReferredBy: models.ReferredByAgent, ReferralCode: "SNOPE00S"}, ErrInvalidReferral},
		{"tier mismatch", NewUser{Name: "A", Email: "a@example.com", ReferredBy: models.ReferredByPartner, ReferralCode: "SDEALERS"}, ErrInvalidReferral},
		{"duplicate email", NewUser{Name: "A", Email: "dealer@example.com"}, ErrAlreadyRegistered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.RegisterUser(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRegisterUserWithoutReferrer(t *testing.T) {
	f := newFixture(fixedNow)
	reg := newTestRegistration(f)

	user, err := reg.RegisterUser(context.Background(), NewUser{Name: "Ravi", Email: "ravi@example.com", ReferredBy: models.ReferredByMyself})
	require.NoError(t, err)
	assert.Empty(t, user.ReferredByID)

	user, err = reg.RegisterUser(context.Background(), NewUser{Name: "Meera", Email: "meera@example.com"})
	require.NoError(t, err)
	assert.Equal(t, models.ReferredByNoOne, user.ReferredBy)
}

func TestRegisterReferrer(t *testing.T) {
	f := newFixture(fixedNow)
	owner := f.store.addUser(models.User{Name: "Collab", Email: "collab@example.com"})
	reg := newTestRegistration(f)

	referrer, err := reg.RegisterReferrer(context.Background(), owner.ID, models.TierCollaborator)
	require.NoError(t, err)
	assert.Equal(t, models.TierCollaborator, referrer.Tier)
	assert.Regexp(t, regexp.MustCompile(`^S[0-9A-F]{6}S$`), referrer.ReferralCode)

	_, err = reg.RegisterReferrer(context.Background(), owner.ID, "distributor")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = reg.RegisterReferrer(context.Background(), 999, models.TierAgent)
	assert.ErrorIs(t, err, ErrNotFound)
}
