package analytics

import "context"

// Repository port for recording and querying analytics events
type Repository interface {
	Record(ctx context.Context, e *Event) error
	Recent(ctx context.Context, limit int) ([]*Event, error)
	Summary(ctx context.Context, sinceDays int) (Summary, error)
}
