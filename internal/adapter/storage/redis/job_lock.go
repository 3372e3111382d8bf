package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// JobLock implements ports.JobLock with SET NX. It keeps scheduled jobs
// (sweep, reconciliation) single-flight across instances; the TTL bounds how
// long a crashed holder can block the next run.
type JobLock struct {
	client *goredis.Client
	prefix string
}

// NewJobLock creates a new Redis-backed job lock.
func NewJobLock(client *goredis.Client) *JobLock {
	return &JobLock{
		client: client,
		prefix: "ledger:joblock:",
	}
}

// Acquire attempts to take the named lock. Returns false if another holder
// owns it.
func (l *JobLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+name, time.Now().UTC().Format(time.RFC3339Nano), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis job lock acquire: %w", err)
	}
	return ok, nil
}

// Release drops the named lock.
func (l *JobLock) Release(ctx context.Context, name string) error {
	if err := l.client.Del(ctx, l.prefix+name).Err(); err != nil {
		return fmt.Errorf("redis job lock release: %w", err)
	}
	return nil
}
