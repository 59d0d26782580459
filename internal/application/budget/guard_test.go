package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/HeraclesBass/tos-analyzer/internal/application"
	"github.com/HeraclesBass/tos-analyzer/internal/infra/kv"
)

// brokenStore fails every operation, standing in for a dead backend.
type brokenStore struct{}

var errDown = errors.New("backend down")

func (brokenStore) Get(context.Context, string) (string, bool, error) { return "", false, errDown }
func (brokenStore) Set(context.Context, string, string, time.Duration) error {
	return errDown
}
func (brokenStore) Delete(context.Context, ...string) error { return errDown }
func (brokenStore) IncrBy(context.Context, string, int64, time.Duration) (int64, error) {
	return 0, errDown
}
func (brokenStore) Scan(context.Context, string, func(string) error) error { return errDown }

func testGuard(now time.Time) *Guard {
	clock := application.FixedClock{T: now}
	return New(kv.NewMemoryWithClock(clock.Now), clock)
}

func TestWriteRateLimit(t *testing.T) {
	g := testGuard(time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC))
	g.WriteLimit = 3
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.False(t, g.CheckRateLimit(ctx, "1.2.3.4"), "request %d within limit", i+1)
	}
	assert.True(t, g.CheckRateLimit(ctx, "1.2.3.4"), "request 4 exceeds the limit")
	assert.False(t, g.CheckRateLimit(ctx, "5.6.7.8"), "limits are per identity")
}

func TestReadRateLimitIsSeparateFromWrite(t *testing.T) {
	g := testGuard(time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC))
	g.WriteLimit = 1
	g.ReadLimit = 2
	ctx := context.Background()

	assert.False(t, g.CheckRateLimit(ctx, "1.2.3.4"))
	assert.True(t, g.CheckRateLimit(ctx, "1.2.3.4"))

	assert.False(t, g.CheckReadRateLimit(ctx, "1.2.3.4"))
	assert.False(t, g.CheckReadRateLimit(ctx, "1.2.3.4"))
	assert.True(t, g.CheckReadRateLimit(ctx, "1.2.3.4"))
}

func TestRateWindowRolls(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
	clock := &stepClock{t: start}
	g := New(kv.NewMemoryWithClock(clock.Now), clock)
	g.WriteLimit = 1
	ctx := context.Background()

	assert.False(t, g.CheckRateLimit(ctx, "1.2.3.4"))
	assert.True(t, g.CheckRateLimit(ctx, "1.2.3.4"))

	clock.t = start.Add(time.Minute)
	assert.False(t, g.CheckRateLimit(ctx, "1.2.3.4"), "new window starts a fresh count")
}

func TestDailyBudget(t *testing.T) {
	g := testGuard(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	g.DailyTokens = 1000
	ctx := context.Background()

	st := g.CheckDailyBudget(ctx, 0)
	assert.False(t, st.Exceeded)
	assert.Equal(t, int64(0), st.Used)
	assert.Equal(t, int64(1000), st.Limit)

	st = g.CheckDailyBudget(ctx, 900)
	assert.False(t, st.Exceeded)
	assert.Equal(t, int64(900), st.Used)

	st = g.CheckDailyBudget(ctx, 200)
	assert.True(t, st.Exceeded)
	assert.Equal(t, int64(1100), st.Used)

	// Pure checks keep reporting exhaustion without adding spend.
	st = g.CheckDailyBudget(ctx, 0)
	assert.True(t, st.Exceeded)
	assert.Equal(t, int64(1100), st.Used)
}

func TestDailyBudgetResetsAtUTCMidnight(t *testing.T) {
	clock := &stepClock{t: time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)}
	g := New(kv.NewMemoryWithClock(clock.Now), clock)
	g.DailyTokens = 100
	ctx := context.Background()

	g.CheckDailyBudget(ctx, 150)
	assert.True(t, g.CheckDailyBudget(ctx, 0).Exceeded)

	clock.t = time.Date(2026, 3, 2, 0, 1, 0, 0, time.UTC)
	st := g.CheckDailyBudget(ctx, 0)
	assert.False(t, st.Exceeded, "new UTC day uses a fresh counter key")
	assert.Equal(t, int64(0), st.Used)
}

func TestGuardFailsClosed(t *testing.T) {
	g := New(brokenStore{}, application.FixedClock{T: time.Now()})
	ctx := context.Background()

	assert.True(t, g.CheckRateLimit(ctx, "1.2.3.4"))
	assert.True(t, g.CheckReadRateLimit(ctx, "1.2.3.4"))

	st := g.CheckDailyBudget(ctx, 0)
	assert.True(t, st.Exceeded)
}

type stepClock struct{ t time.Time }

func (c *stepClock) Now() time.Time { return c.t }
