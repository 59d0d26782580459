package analysis

import "context"

// Sort orders for the library listing
const (
	SortPopularity = "popularity"
	SortRecent     = "recent"
	SortRisk       = "risk"
)

// ListFilter narrows and orders the public library listing.
type ListFilter struct {
	Company  string // substring match on company name
	Category string // one of the closed category names
	Risk     string // overall risk filter
	Sort     string // popularity | recent | risk
	Page     int
	PageSize int
}

// PaginatedResult wraps a page of records with paging metadata.
type PaginatedResult struct {
	Data       []*Record `json:"data"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	Total      int64     `json:"totalItems"`
	TotalPages int       `json:"totalPages"`
}

// Repository port (interface for persistence). The store is the source of
// truth; the cache layer only ever holds reconstructible copies.
type Repository interface {
	Save(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id AnalysisID) (*Record, error)
	GetByFingerprint(ctx context.Context, hash string) (*Record, error)
	SetVisibility(ctx context.Context, id AnalysisID, public bool) error
	// RecordView lazily creates the ShareView row and increments its
	// count plus the record's popularity, returning the new count.
	RecordView(ctx context.Context, id AnalysisID, sessionHash string) (*ShareView, error)
	List(ctx context.Context, f ListFilter) (PaginatedResult, error)
}

// DocumentArchive port (interface for raw document storage). Best-effort:
// callers must tolerate failure.
type DocumentArchive interface {
	PutText(ctx context.Context, key, text string) (string, error)
}
