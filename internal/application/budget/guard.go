package budget

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/HeraclesBass/tos-analyzer/internal/application"
	"github.com/HeraclesBass/tos-analyzer/internal/domain/kv"
)

// Defaults for the guard. Rate limits are per identity per fixed window.
const (
	RateWindow           = 60 * time.Second
	DefaultWriteLimit    = 10
	DefaultReadLimit     = 30
	DefaultDailyTokens   = 1_000_000
	budgetKeyTTL         = 48 * time.Hour // covers clock skew around the UTC day boundary
)

// BudgetStatus reports the daily token spend after an update.
type BudgetStatus struct {
	Exceeded bool  `json:"exceeded"`
	Used     int64 `json:"used"`
	Limit    int64 `json:"limit"`
}

// Guard enforces per-identity request rates and the daily token ceiling.
// Every check fails closed: if the counting backend errors, the guard
// reports exceeded rather than letting traffic through unmetered.
type Guard struct {
	Store       kv.Store
	Clock       application.Clock
	DailyTokens int64
	WriteLimit  int
	ReadLimit   int
}

// New builds a Guard with the default limits.
func New(store kv.Store, clock application.Clock) *Guard {
	return &Guard{
		Store:       store,
		Clock:       clock,
		DailyTokens: DefaultDailyTokens,
		WriteLimit:  DefaultWriteLimit,
		ReadLimit:   DefaultReadLimit,
	}
}

// CheckRateLimit counts one write-path request for identity and reports
// whether the per-minute limit is now exceeded.
func (g *Guard) CheckRateLimit(ctx context.Context, identity string) bool {
	return g.exceeded(ctx, "rate:write:"+identity, g.WriteLimit)
}

// CheckReadRateLimit counts one read-path request for identity.
func (g *Guard) CheckReadRateLimit(ctx context.Context, identity string) bool {
	return g.exceeded(ctx, "rate:read:"+identity, g.ReadLimit)
}

func (g *Guard) exceeded(ctx context.Context, prefix string, limit int) bool {
	window := g.Clock.Now().UTC().Unix() / int64(RateWindow/time.Second)
	key := fmt.Sprintf("%s:%d", prefix, window)
	n, err := g.Store.IncrBy(ctx, key, 1, 2*RateWindow)
	if err != nil {
		log.Printf("rate limit backend error, failing closed: %v", err)
		return true
	}
	return n > int64(limit)
}

// CheckDailyBudget adds tokensToAdd to today's spend (0 for a pure check)
// and reports whether the daily ceiling is exceeded. The counter key is the
// UTC calendar day; reset happens via key expiry, never by zeroing.
func (g *Guard) CheckDailyBudget(ctx context.Context, tokensToAdd int64) BudgetStatus {
	day := g.Clock.Now().UTC().Format("2006-01-02")
	key := "budget:tokens:" + day
	used, err := g.Store.IncrBy(ctx, key, tokensToAdd, budgetKeyTTL)
	if err != nil {
		log.Printf("budget backend error, failing closed: %v", err)
		return BudgetStatus{Exceeded: true, Limit: g.DailyTokens}
	}
	return BudgetStatus{
		Exceeded: used > g.DailyTokens,
		Used:     used,
		Limit:    g.DailyTokens,
	}
}
