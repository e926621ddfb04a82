package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"plotledger_app/internal/models"
)

// Locker serialises read-modify-write sequences on a single entity
type Locker interface {
	// Lock blocks until the key is held or the wait budget runs out (ErrLockBusy).
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

const lockPollInterval = 50 * time.Millisecond

func ledgerLockKey(id uint) string { return fmt.Sprintf("ledger:%d", id) }

func walletLockKey(ns models.WalletNamespace, ownerID uint) string {
	return fmt.Sprintf("wallet:%s:%d", ns, ownerID)
}

func collaboratorWalletLockKey(userID uint) string { return fmt.Sprintf("cwallet:%d", userID) }

func userLockKey(id uint) string { return fmt.Sprintf("user:%d", id) }

// RedisLocker implements Locker with SET NX and a token-checked release
type RedisLocker struct {
	cache *RedisCache
	ttl   time.Duration
	wait  time.Duration
	log   *logrus.Entry
}

func NewRedisLocker(cache *RedisCache, ttl, wait time.Duration, log *logrus.Entry) *RedisLocker {
	return &RedisLocker{cache: cache, ttl: ttl, wait: wait, log: log.WithField("component", "locker")}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	key = "lock:" + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.cache.AcquireToken(ctx, key, token, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("%w: acquire %s: %v", ErrStorage, key, err)
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}
		if time.Now().After(deadline) {
			l.log.WithField("key", key).Warn("Lock wait budget exhausted")
			return nil, ErrLockBusy
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

func (l *RedisLocker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	released, err := l.cache.ReleaseToken(ctx, key, token)
	if err != nil {
		l.log.WithField("key", key).WithError(err).Warn("Failed to release lock, it will expire on its own")
		return
	}
	if !released {
		l.log.WithField("key", key).Warn("Lock expired before release")
	}
}

// LocalLocker is an in-process Locker for single-instance deployments and tests
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
	wait  time.Duration
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{slots: make(map[string]*lockSlot), wait: wait}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			<-slot.ch
			l.releaseRef(key, slot)
		})
	}

	select {
	case slot.ch <- struct{}{}:
		return unlock, nil
	default:
	}

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case slot.ch <- struct{}{}:
		return unlock, nil
	case <-timer.C:
		l.releaseRef(key, slot)
		return nil, ErrLockBusy
	case <-ctx.Done():
		l.releaseRef(key, slot)
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) releaseRef(key string, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}
