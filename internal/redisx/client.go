package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// TryLock takes key for ttl unless someone else holds it.
func TryLock(ctx context.Context, rdb *redis.Client, key string, ttl time.Duration) (bool, error) {
	return rdb.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

// JobLocker hands out one lock per job run.
type JobLocker struct {
	rdb *redis.Client
}

func NewJobLocker(rdb *redis.Client) *JobLocker {
	return &JobLocker{rdb: rdb}
}

func (l *JobLocker) Acquire(ctx context.Context, job string, runDate string) (bool, error) {
	return TryLock(ctx, l.rdb, fmt.Sprintf(KeyJobLock, job, runDate), TTLJobLock)
}
