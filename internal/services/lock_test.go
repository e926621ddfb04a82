package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerExcludesSameKey(t *testing.T) {
	locker := NewLocalLocker(50 * time.Millisecond)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, ledgerLockKey(1))
	require.NoError(t, err)

	_, err = locker.Lock(ctx, ledgerLockKey(1))
	assert.ErrorIs(t, err, ErrLockBusy)

	other, err := locker.Lock(ctx, ledgerLockKey(2))
	require.NoError(t, err)
	other()

	unlock()
	unlock()

	again, err := locker.Lock(ctx, ledgerLockKey(1))
	require.NoError(t, err)
	again()

	locker.mu.Lock()
	assert.Empty(t, locker.slots)
	locker.mu.Unlock()
}

func TestLocalLockerWaitsForRelease(t *testing.T) {
	locker := NewLocalLocker(time.Second)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "wallet:partner_tier:1")
	require.NoError(t, err)

	acquired := make(chan error, 1)
	go func() {
		release, err := locker.Lock(ctx, "wallet:partner_tier:1")
		if err == nil {
			release()
		}
		acquired <- err
	}()

	time.Sleep(20 * time.Millisecond)
	unlock()

	select {
	case err := <-acquired:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never acquired the lock")
	}
}

func TestLocalLockerHonoursContext(t *testing.T) {
	locker := NewLocalLocker(time.Minute)
	unlock, err := locker.Lock(context.Background(), "user:7")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = locker.Lock(ctx, "user:7")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
