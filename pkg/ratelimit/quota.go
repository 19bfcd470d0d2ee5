package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zebutrade/papertrade/pkg/logger"
)

// Quota is a dual fixed-window budget: so many calls per minute and so many
// per UTC day. Both windows must have capacity for a token to be granted.
type Quota struct {
	PerMinute int
	PerDay    int
}

// consumeScript atomically checks both window counters and increments them
// together, so a caller never burns day budget without minute budget or vice
// versa. Returns 1 when a token was granted.
//
// KEYS[1] minute counter, KEYS[2] day counter
// ARGV[1] minute limit, ARGV[2] day limit, ARGV[3] minute TTL s, ARGV[4] day TTL s
var consumeScript = redis.NewScript(`
local m = tonumber(redis.call('GET', KEYS[1]) or '0')
local d = tonumber(redis.call('GET', KEYS[2]) or '0')
if m >= tonumber(ARGV[1]) or d >= tonumber(ARGV[2]) then
  return 0
end
m = redis.call('INCR', KEYS[1])
if m == 1 then redis.call('EXPIRE', KEYS[1], ARGV[3]) end
d = redis.call('INCR', KEYS[2])
if d == 1 then redis.call('EXPIRE', KEYS[2], ARGV[4]) end
return 1
`)

// RedisQuotaLimiter shares the provider quota across all process instances.
// It never returns errors: a Redis failure reads as "no token", which the
// tiered lookup treats as a back-off signal.
type RedisQuotaLimiter struct {
	client redis.UniversalClient
	prefix string
	quota  Quota
	now    func() time.Time
}

// NewRedisQuotaLimiter builds a limiter with the given key prefix, typically
// the provider name.
func NewRedisQuotaLimiter(client redis.UniversalClient, prefix string, quota Quota) *RedisQuotaLimiter {
	return &RedisQuotaLimiter{
		client: client,
		prefix: prefix,
		quota:  quota,
		now:    time.Now,
	}
}

// minuteKey buckets the counter by epoch minute. Each window gets a fresh
// key, so rollover never touches the other window's state.
func (l *RedisQuotaLimiter) minuteKey(now time.Time) string {
	return fmt.Sprintf("%s:quota:minute:%d", l.prefix, now.UTC().Unix()/60)
}

func (l *RedisQuotaLimiter) dayKey(now time.Time) string {
	return fmt.Sprintf("%s:quota:day:%s", l.prefix, now.UTC().Format("20060102"))
}

// CanMakeRequest checks both windows without consuming.
func (l *RedisQuotaLimiter) CanMakeRequest(ctx context.Context) bool {
	now := l.now()
	vals, err := l.client.MGet(ctx, l.minuteKey(now), l.dayKey(now)).Result()
	if err != nil {
		logger.Warn(ctx, "quota check failed, denying request", "error", err)
		return false
	}
	return counterValue(vals[0]) < int64(l.quota.PerMinute) &&
		counterValue(vals[1]) < int64(l.quota.PerDay)
}

// ConsumeToken atomically takes a token from both windows, or neither.
func (l *RedisQuotaLimiter) ConsumeToken(ctx context.Context) bool {
	now := l.now()
	res, err := consumeScript.Run(ctx, l.client,
		[]string{l.minuteKey(now), l.dayKey(now)},
		l.quota.PerMinute, l.quota.PerDay,
		120,     // minute keys linger one extra window for observability
		26*3600, // day keys linger past midnight UTC
	).Int()
	if err != nil {
		logger.Warn(ctx, "quota consume failed, denying request", "error", err)
		return false
	}
	return res == 1
}

// MarkExhausted pins the current minute window at its limit, so callers stop
// retrying until rollover. The provider's throttle note does not say which
// window tripped; the day counter already mirrors the daily cap, so a
// day-level throttle only recurs while the counters have drifted, and the
// minute pin bounds that drift to one probe call per minute.
func (l *RedisQuotaLimiter) MarkExhausted(ctx context.Context) {
	now := l.now()
	if err := l.client.Set(ctx, l.minuteKey(now), l.quota.PerMinute, 2*time.Minute).Err(); err != nil {
		logger.Warn(ctx, "failed to mark quota exhausted", "error", err)
	}
}

func counterValue(v interface{}) int64 {
	s, ok := v.(string)
	if !ok || s == "" {
		return 0
	}
	var n int64
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0
	}
	return n
}

// LocalQuotaLimiter is the in-process equivalent, used in tests and
// single-instance deployments without Redis.
type LocalQuotaLimiter struct {
	mu    sync.Mutex
	quota Quota
	now   func() time.Time

	minuteWindow int64
	minuteCount  int
	dayWindow    string
	dayCount     int
}

// NewLocalQuotaLimiter builds an in-process limiter.
func NewLocalQuotaLimiter(quota Quota) *LocalQuotaLimiter {
	return &LocalQuotaLimiter{quota: quota, now: time.Now}
}

// SetClock overrides the time source for tests.
func (l *LocalQuotaLimiter) SetClock(now func() time.Time) { l.now = now }

// roll resets whichever window has rolled over. The windows advance
// independently.
func (l *LocalQuotaLimiter) roll(now time.Time) {
	minute := now.UTC().Unix() / 60
	if minute != l.minuteWindow {
		l.minuteWindow = minute
		l.minuteCount = 0
	}
	day := now.UTC().Format("20060102")
	if day != l.dayWindow {
		l.dayWindow = day
		l.dayCount = 0
	}
}

// CanMakeRequest checks both windows without consuming.
func (l *LocalQuotaLimiter) CanMakeRequest(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.roll(l.now())
	return l.minuteCount < l.quota.PerMinute && l.dayCount < l.quota.PerDay
}

// ConsumeToken takes a token from both windows, or neither.
func (l *LocalQuotaLimiter) ConsumeToken(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.roll(l.now())
	if l.minuteCount >= l.quota.PerMinute || l.dayCount >= l.quota.PerDay {
		return false
	}
	l.minuteCount++
	l.dayCount++
	return true
}

// MarkExhausted pins the current minute window at its limit; see the Redis
// variant for why the day window is left alone.
func (l *LocalQuotaLimiter) MarkExhausted(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.roll(l.now())
	l.minuteCount = l.quota.PerMinute
}
