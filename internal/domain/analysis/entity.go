package analysis

import (
	"time"
)

// AnalysisID identifier type
type AnalysisID string

// SourceType enum
type SourceType string

const (
	SourceText SourceType = "text"
	SourceURL  SourceType = "url"
	SourcePDF  SourceType = "pdf"
)

// RecordTTL is how long an analysis stays servable before an external
// retention job may reap it.
const RecordTTL = 30 * 24 * time.Hour

// Aggregate Root: Record is one persisted analysis, keyed by the content
// fingerprint of the normalized document. At most one record exists per
// fingerprint; re-analysis overwrites in place.
type Record struct {
	ID               AnalysisID `json:"id"`
	ContentHash      string     `json:"content_hash"`
	SourceType       SourceType `json:"source_type"`
	SourceURL        string     `json:"source_url,omitempty"`
	Payload          Payload    `json:"analysis"`
	WordCount        int        `json:"word_count"`
	CharCount        int        `json:"char_count"`
	CompanyName      string     `json:"company_name,omitempty"`
	IsPublic         bool       `json:"is_public"`
	PopularityScore  int64      `json:"popularity_score"`
	CreatorTokenHash string     `json:"-"`
	ArchiveURL       string     `json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
}

// Expired reports whether the record is past its expiry.
func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// ShareView tracks views of one analysis. Created lazily on the first
// fetch, view_count only ever increments.
type ShareView struct {
	AnalysisID  AnalysisID `json:"analysis_id"`
	ViewCount   int64      `json:"view_count"`
	SessionHash string     `json:"session_hash,omitempty"`
	ExpiresAt   time.Time  `json:"expires_at"`
}
