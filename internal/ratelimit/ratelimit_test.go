package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterBlocksAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLimiter(3, time.Minute)

	for i := 0; i < 2; i++ {
		require.NoError(t, l.Fail(ctx, "ada@example.com"))
	}
	blocked, err := l.Blocked(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, l.Fail(ctx, " ADA@example.com "))
	blocked, err = l.Blocked(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, blocked)

	other, err := l.Blocked(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.False(t, other)
}

func TestMemoryLimiterWindowExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(1, 15*time.Minute)
	l.now = func() time.Time { return now }

	require.NoError(t, l.Fail(ctx, "ada@example.com"))
	blocked, _ := l.Blocked(ctx, "ada@example.com")
	assert.True(t, blocked)

	now = now.Add(15 * time.Minute)
	blocked, _ = l.Blocked(ctx, "ada@example.com")
	assert.False(t, blocked)
}

func TestMemoryLimiterSweepsExpiredKeys(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(5, 15*time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 100; i++ {
		require.NoError(t, l.Fail(ctx, fmt.Sprintf("user%d@example.com", i)))
	}
	assert.Len(t, l.entries, 100)

	now = now.Add(10 * time.Minute)
	require.NoError(t, l.Fail(ctx, "late@example.com"))
	assert.Len(t, l.entries, 101)

	now = now.Add(6 * time.Minute)
	require.NoError(t, l.Fail(ctx, "new@example.com"))
	assert.Len(t, l.entries, 2)
	assert.Contains(t, l.entries, "late@example.com")
	assert.Contains(t, l.entries, "new@example.com")
}

func TestMemoryLimiterReset(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLimiter(1, time.Minute)

	require.NoError(t, l.Fail(ctx, "ada@example.com"))
	require.NoError(t, l.Reset(ctx, "ada@example.com"))

	blocked, _ := l.Blocked(ctx, "ada@example.com")
	assert.False(t, blocked)
}

func TestRedisKeyIsNormalized(t *testing.T) {
	assert.Equal(t, "login_attempts:ada@example.com", redisKey(" Ada@Example.com"))
}
