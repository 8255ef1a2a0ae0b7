package lifecycle

import (
	"context"
	"testing"
	"time"

	"casework-workers/internal/common/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func newTestLock(t *testing.T, ttl, timeout time.Duration) (*SubmitLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewSubmitLock(client, ttl, timeout), mr
}

func TestSubmitLock_AcquireAndRelease(t *testing.T) {
	lock, mr := newTestLock(t, time.Minute, time.Second)
	ctx := context.Background()

	token, err := lock.Acquire(ctx, "app-1")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, mr.Exists("casework:submit-lock:app-1"))

	assert.NoError(t, lock.Release(ctx, "app-1", token))
	assert.False(t, mr.Exists("casework:submit-lock:app-1"))
}

func TestSubmitLock_HeldLockTimesOut(t *testing.T) {
	lock, _ := newTestLock(t, time.Minute, 120*time.Millisecond)
	ctx := context.Background()

	_, err := lock.Acquire(ctx, "app-1")
	assert.NoError(t, err)

	_, err = lock.Acquire(ctx, "app-1")
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
	assert.True(t, errors.IsRetryable(err))
}

func TestSubmitLock_ReleaseIgnoresLostLease(t *testing.T) {
	lock, mr := newTestLock(t, time.Minute, time.Second)
	ctx := context.Background()

	first, err := lock.Acquire(ctx, "app-1")
	assert.NoError(t, err)

	// Simulate the lease expiring and another worker taking over.
	mr.FastForward(2 * time.Minute)
	second, err := lock.Acquire(ctx, "app-1")
	assert.NoError(t, err)

	assert.NoError(t, lock.Release(ctx, "app-1", first))
	assert.True(t, mr.Exists("casework:submit-lock:app-1"), "stale token must not free the new holder's lock")

	assert.NoError(t, lock.Release(ctx, "app-1", second))
	assert.False(t, mr.Exists("casework:submit-lock:app-1"))
}

func TestSubmitLock_AcquireAfterRelease(t *testing.T) {
	lock, _ := newTestLock(t, time.Minute, 500*time.Millisecond)
	ctx := context.Background()

	token, err := lock.Acquire(ctx, "app-1")
	assert.NoError(t, err)
	assert.NoError(t, lock.Release(ctx, "app-1", token))

	again, err := lock.Acquire(ctx, "app-1")
	assert.NoError(t, err)
	assert.NotEqual(t, token, again)
}
