package lifecycle

import (
	"context"
	"fmt"
	"time"

	"casework-workers/internal/common/errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	submitLockKeyPrefix = "casework:submit-lock:"
	lockRetryInterval   = 50 * time.Millisecond
)

// SubmitLock serialises submission attempts per application across worker
// instances. It is a plain SET NX lease: the holder token guards release so
// an expired holder cannot free a lock someone else has since acquired.
type SubmitLock struct {
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
}

func NewSubmitLock(client *redis.Client, ttl, timeout time.Duration) *SubmitLock {
	return &SubmitLock{client: client, ttl: ttl, timeout: timeout}
}

// Acquire blocks until the lock for applicationID is obtained, the acquisition
// timeout elapses, or ctx is cancelled. The returned token must be passed to
// Release.
func (l *SubmitLock) Acquire(ctx context.Context, applicationID string) (string, error) {
	token := uuid.New().String()
	key := submitLockKeyPrefix + applicationID

	deadline := time.Now().Add(l.timeout)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return "", errors.NewUnavailableError("redis", err)
		}
		if ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			return "", errors.NewUnavailableError("redis",
				fmt.Errorf("submit lock for %s not acquired within %s", applicationID, l.timeout))
		}
		select {
		case <-ctx.Done():
			return "", errors.NewUnavailableError("redis", ctx.Err())
		case <-time.After(lockRetryInterval):
		}
	}
}

// releaseScript deletes the key only while token still holds it. The check
// and delete must be one server-side step: a GET followed by a DEL leaves a
// window where the lease expires and a new holder's lock gets deleted.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// Release frees the lock if token still holds it. A lost lease is logged by
// the caller, not treated as an error.
func (l *SubmitLock) Release(ctx context.Context, applicationID, token string) error {
	key := submitLockKeyPrefix + applicationID

	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
		return errors.NewUnavailableError("redis", err)
	}
	return nil
}
