package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KEYS[1]=limit key, ARGV[1]=now, ARGV[2]=window start, ARGV[3]=window seconds,
// ARGV[4]=member, ARGV[5]=limit. Returns the count in the window, or -1 when full.
const luaRateLimit = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local windowSec = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '0', windowStart)

local count = redis.call('ZCARD', key)
if count < tonumber(ARGV[5]) then
  redis.call('ZADD', key, now, member)
  redis.call('EXPIRE', key, windowSec)
  return count + 1
else
  return -1
end
`

// RateLimiter is a sliding-window counter shared by every API replica.
type RateLimiter struct {
	rdb    *redis.Client
	scope  string
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRateLimiter(rdb *redis.Client, scope string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{rdb: rdb, scope: scope, limit: limit, window: window, now: time.Now}
}

// Allow records one hit for subject and reports whether it fits in the window.
func (l *RateLimiter) Allow(ctx context.Context, subject string) (bool, error) {
	now := l.now()
	windowSec := int64(l.window.Seconds())
	if windowSec < 1 {
		windowSec = 1
	}
	ts := now.UnixMilli()
	windowStart := ts - windowSec*1000
	member := fmt.Sprintf("%d-%d", ts, now.UnixNano())

	res, err := l.rdb.Eval(ctx, luaRateLimit, []string{fmt.Sprintf(KeyRateLimit, l.scope, subject)},
		ts, windowStart, windowSec, member, l.limit).Int()
	if err != nil {
		return false, err
	}
	return res >= 0, nil
}
