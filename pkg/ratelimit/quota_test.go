package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalQuotaLimiter_MinuteWindow(t *testing.T) {
	limiter := NewLocalQuotaLimiter(Quota{PerMinute: 3, PerDay: 100})
	now := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	limiter.SetClock(func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.True(t, limiter.ConsumeToken(ctx), "token %d should be granted", i+1)
	}
	assert.False(t, limiter.CanMakeRequest(ctx))
	assert.False(t, limiter.ConsumeToken(ctx), "4th token within the minute must be denied")

	// Window rollover frees the minute budget.
	now = now.Add(time.Minute)
	assert.True(t, limiter.CanMakeRequest(ctx))
	assert.True(t, limiter.ConsumeToken(ctx))
}

func TestLocalQuotaLimiter_DayWindowIndependentOfMinute(t *testing.T) {
	limiter := NewLocalQuotaLimiter(Quota{PerMinute: 10, PerDay: 2})
	now := time.Date(2026, 3, 2, 23, 58, 30, 0, time.UTC)
	limiter.SetClock(func() time.Time { return now })
	ctx := context.Background()

	require.True(t, limiter.ConsumeToken(ctx))
	require.True(t, limiter.ConsumeToken(ctx))
	assert.False(t, limiter.ConsumeToken(ctx), "daily budget exhausted")

	// Minute rollover alone does not restore the day budget.
	now = now.Add(time.Minute / 2)
	assert.False(t, limiter.CanMakeRequest(ctx))

	// Day rollover does.
	now = time.Date(2026, 3, 3, 0, 0, 30, 0, time.UTC)
	assert.True(t, limiter.ConsumeToken(ctx))
}

func TestLocalQuotaLimiter_AllOrNothing(t *testing.T) {
	// Minute budget available, day budget exhausted: consuming must fail
	// without burning the minute budget.
	limiter := NewLocalQuotaLimiter(Quota{PerMinute: 5, PerDay: 1})
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	limiter.SetClock(func() time.Time { return now })
	ctx := context.Background()

	require.True(t, limiter.ConsumeToken(ctx))
	assert.False(t, limiter.ConsumeToken(ctx))
	assert.Equal(t, 1, limiter.minuteCount, "failed consume must not touch the minute counter")
}

func TestLocalQuotaLimiter_MarkExhausted(t *testing.T) {
	limiter := NewLocalQuotaLimiter(Quota{PerMinute: 5, PerDay: 100})
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	limiter.SetClock(func() time.Time { return now })
	ctx := context.Background()

	require.True(t, limiter.CanMakeRequest(ctx))
	limiter.MarkExhausted(ctx)
	assert.False(t, limiter.CanMakeRequest(ctx))
	assert.False(t, limiter.ConsumeToken(ctx))

	now = now.Add(time.Minute)
	assert.True(t, limiter.CanMakeRequest(ctx), "exhaustion clears on window rollover")
}

func TestLocalQuotaLimiter_ConcurrentConsume(t *testing.T) {
	limiter := NewLocalQuotaLimiter(Quota{PerMinute: 5, PerDay: 5})
	ctx := context.Background()

	granted := make(chan bool, 20)
	for i := 0; i < 20; i++ {
		go func() { granted <- limiter.ConsumeToken(ctx) }()
	}
	count := 0
	for i := 0; i < 20; i++ {
		if <-granted {
			count++
		}
	}
	assert.Equal(t, 5, count, "exactly the budgeted number of tokens may be granted")
}
