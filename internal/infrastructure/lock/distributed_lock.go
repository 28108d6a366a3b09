package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis-based distributed lock. Settlement serializes per user: two
// double-submitted payment requests against the same wallet must not both
// pass the balance check. Lock: SET key value NX EX; unlock: Lua
// check-and-delete so a late unlock cannot release someone else's lock.

var ErrLockFailed = errors.New("failed to acquire distributed lock")

type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string // lock owner token, verified on release
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock attempts a single non-blocking acquisition.
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock retries acquisition up to maxRetries times.
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock releases the lock only if this instance still owns it.
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// NewSettlementLock serializes invoice settlement per paying user. Different
// users settle concurrently; the same user's concurrent attempts queue up and
// the loser sees "already settled" instead of a double debit.
func NewSettlementLock(client *redis.Client, userID int64, ownerToken string) *DistributedLock {
	key := fmt.Sprintf("settlement:lock:user:%d", userID)
	return NewDistributedLock(client, key, ownerToken, 30*time.Second)
}

// NewWithdrawalLock serializes processing of one withdrawal request.
func NewWithdrawalLock(client *redis.Client, number, ownerToken string) *DistributedLock {
	key := fmt.Sprintf("withdrawal:lock:request:%s", number)
	return NewDistributedLock(client, key, ownerToken, 30*time.Second)
}
