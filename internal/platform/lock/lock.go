// Copyright (c) 2026 Serina. All rights reserved.
// Author: rin.owada.dev@gmail.com

/*
Package lock provides a key-scoped mutual-exclusion service with lease expiry.

It serializes concurrent reconcilers racing on the same (series, chapter key)
pair. The lease bounds how long a crashed holder can wedge a key: Redis
expires the lock automatically, so no chapter key is ever permanently stuck.

Implementation: SET NX PX with a random holder token; release is a
compare-and-delete Lua script so one worker can never release a lock that a
slower sibling has since re-acquired.
*/
package lock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/owarin/serina/internal/platform/apperr"
	"github.com/owarin/serina/internal/platform/constants"
	"github.com/owarin/serina/pkg/uuid"
)

// acquireRetryInterval is the pause between acquisition attempts while
// another holder owns the key.
const acquireRetryInterval = 100 * time.Millisecond

// releaseScript deletes the lock only when the caller still holds it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is the abstract key-scoped mutual-exclusion contract.
//
// Release must be called on every exit path; the lease is the backstop for
// paths that never get the chance (worker crash, network partition).
type Locker interface {

	// Acquire obtains the lock for key, blocking up to the configured wait.
	// The returned release function is safe to call exactly once.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// RedisLocker implements [Locker] on a shared Redis instance.
type RedisLocker struct {
	client *redis.Client
	lease  time.Duration
	wait   time.Duration
}

// NewRedisLocker constructs a locker with the given lease and bounded
// acquisition wait.
func NewRedisLocker(client *redis.Client, lease, wait time.Duration) *RedisLocker {
	return &RedisLocker{client: client, lease: lease, wait: wait}
}

/*
Acquire obtains the lock for key.

Description: Polls SET NX until granted or the bounded wait elapses. A
timeout returns a LOCK_TIMEOUT [apperr.AppError], which callers treat as
retryable (re-queue the job) rather than fatal.

Parameters:
  - ctx: context.Context
  - key: string (e.g. "<seriesID>:<chapterKey>")

Returns:
  - func(): Idempotent release of this specific acquisition.
  - error: LOCK_TIMEOUT on contention, connectivity errors otherwise.
*/
func (locker *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := constants.RedisPrefixLock + key
	token := uuid.New()

	deadline := time.Now().Add(locker.wait)
	for {
		acquired, err := locker.client.SetNX(ctx, redisKey, token, locker.lease).Result()
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if acquired {
			return func() { locker.release(redisKey, token) }, nil
		}

		if time.Now().After(deadline) {
			return nil, apperr.LockTimeout(key)
		}

		select {
		case <-ctx.Done():
			return nil, apperr.LockTimeout(key)
		case <-time.After(acquireRetryInterval):
		}
	}
}

// release performs the compare-and-delete. A lock that already expired (and
// may belong to someone else now) is left alone.
func (locker *RedisLocker) release(redisKey, token string) {
	// Detached context: release must still run when the job context is
	// already cancelled on a failure exit path.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_ = releaseScript.Run(ctx, locker.client, []string{redisKey}, token).Err()
}
