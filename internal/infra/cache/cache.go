package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/HeraclesBass/tos-analyzer/internal/domain/analysis"
	"github.com/HeraclesBass/tos-analyzer/internal/domain/kv"
)

// TTLs per key family
const (
	AnalysisTTL  = 7 * 24 * time.Hour
	ShareViewTTL = 30 * 24 * time.Hour
	LibraryTTL   = 5 * time.Minute
)

// Key prefixes
const (
	analysisPrefix = "analysis:"
	sharePrefix    = "share:"
	libraryPrefix  = "library:"
)

// Cache is the typed best-effort layer over the kv backend. Every failure
// degrades to a miss; no error ever reaches the caller. The durable store
// stays the source of truth.
type Cache struct {
	Store kv.Store
}

func New(store kv.Store) *Cache {
	return &Cache{Store: store}
}

// GetAnalysis returns the cached record for a content fingerprint.
func (c *Cache) GetAnalysis(ctx context.Context, fingerprint string) (*analysis.Record, bool) {
	return c.getRecord(ctx, analysisPrefix+fingerprint)
}

// PutAnalysis caches a record under its content fingerprint.
func (c *Cache) PutAnalysis(ctx context.Context, fingerprint string, rec *analysis.Record) {
	c.putJSON(ctx, analysisPrefix+fingerprint, rec, AnalysisTTL)
}

// GetShareView returns the cached record for a share-view fetch by id.
func (c *Cache) GetShareView(ctx context.Context, id analysis.AnalysisID) (*analysis.Record, bool) {
	return c.getRecord(ctx, sharePrefix+string(id))
}

// PutShareView caches the shareable payload for an analysis id.
func (c *Cache) PutShareView(ctx context.Context, id analysis.AnalysisID, rec *analysis.Record) {
	c.putJSON(ctx, sharePrefix+string(id), rec, ShareViewTTL)
}

// GetLibrary returns a cached library page keyed by its filter signature.
func (c *Cache) GetLibrary(ctx context.Context, key string) (*analysis.PaginatedResult, bool) {
	raw, ok, err := c.Store.Get(ctx, libraryPrefix+key)
	if err != nil || !ok {
		return nil, false
	}
	var page analysis.PaginatedResult
	if err := json.Unmarshal([]byte(raw), &page); err != nil {
		return nil, false
	}
	return &page, true
}

// PutLibrary caches one library page.
func (c *Cache) PutLibrary(ctx context.Context, key string, page *analysis.PaginatedResult) {
	c.putJSON(ctx, libraryPrefix+key, page, LibraryTTL)
}

// InvalidateRecord drops every cached view of one record: its fingerprint
// entry, its share view, and all library pages.
func (c *Cache) InvalidateRecord(ctx context.Context, id analysis.AnalysisID, fingerprint string) {
	_ = c.Store.Delete(ctx, analysisPrefix+fingerprint, sharePrefix+string(id))
	c.Invalidate(ctx, libraryPrefix+"*")
}

// Invalidate removes keys matching a wildcard pattern via non-blocking
// iteration.
func (c *Cache) Invalidate(ctx context.Context, pattern string) {
	_ = c.Store.Scan(ctx, pattern, func(key string) error {
		return c.Store.Delete(ctx, key)
	})
}

func (c *Cache) getRecord(ctx context.Context, key string) (*analysis.Record, bool) {
	raw, ok, err := c.Store.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var rec analysis.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, false
	}
	return &rec, true
}

func (c *Cache) putJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.Store.Set(ctx, key, string(b), ttl)
}
