package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"plotledger_app/internal/models"
	"plotledger_app/internal/repository"
)

const referrerCacheTTL = 10 * time.Minute

func referrerCacheKey(code string) string { return "referrer:" + code }

// ReferrerResolver looks up the upstream entity behind a public referral code
type ReferrerResolver interface {
	ResolveReferrer(ctx context.Context, code string) (*models.Referrer, error)
}

// ReferralDirectory resolves referral codes from storage, cached in Redis when available
type ReferralDirectory struct {
	referrers repository.ReferrerRepository
	cache     *RedisCache
	log       *logrus.Entry
}

func NewReferralDirectory(referrers repository.ReferrerRepository, cache *RedisCache, log *logrus.Entry) *ReferralDirectory {
	return &ReferralDirectory{referrers: referrers, cache: cache, log: log.WithField("component", "referral_directory")}
}

// ResolveReferrer returns ErrNotFound for unknown or disabled codes
func (d *ReferralDirectory) ResolveReferrer(ctx context.Context, code string) (*models.Referrer, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrNotFound
	}

	lookup := func() (models.Referrer, error) {
		referrer, err := d.referrers.GetByReferralCode(ctx, code)
		if err != nil {
			return models.Referrer{}, err
		}
		return *referrer, nil
	}

	var (
		referrer models.Referrer
		err      error
	)
	if d.cache != nil {
		referrer, err = Cached(ctx, d.cache, referrerCacheKey(code), referrerCacheTTL, lookup)
	} else {
		referrer, err = lookup()
	}

	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: resolve referrer: %v", ErrStorage, err)
	}
	return &referrer, nil
}
