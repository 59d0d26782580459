package analytics

import "time"

// EventType enum
type EventType string

const (
	EventCreated     EventType = "created"
	EventViewed      EventType = "viewed"
	EventPublished   EventType = "published"
	EventUnpublished EventType = "unpublished"
)

// Event is one recorded analytics entry. Recording is always best-effort:
// a failed insert never fails the request that produced it.
type Event struct {
	ID          int64     `json:"id"`
	Type        EventType `json:"type"`
	AnalysisID  string    `json:"analysis_id"`
	ContentHash string    `json:"content_hash,omitempty"`
	TokensUsed  int       `json:"tokens_used,omitempty"`
	Company     string    `json:"company,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Summary is a rollup of recent activity.
type Summary struct {
	SinceDays  int   `json:"since_days"`
	Created    int   `json:"created"`
	Viewed     int   `json:"viewed"`
	Published  int   `json:"published"`
	TokensUsed int64 `json:"tokens_used"`
}
