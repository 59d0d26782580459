package mysql

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/HeraclesBass/tos-analyzer/internal/domain/analytics"
)

type AnalyticsRepository struct {
	db *sql.DB
}

func NewAnalyticsRepository(db *sql.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

func (r *AnalyticsRepository) Record(ctx context.Context, e *domain.Event) error {
	const q = `
INSERT INTO analysis_events (event_type, analysis_id, content_hash, tokens_used, company, created_at)
VALUES (?,?,?,?,?,?);`
	res, err := r.db.ExecContext(ctx, q,
		e.Type, e.AnalysisID, e.ContentHash, e.TokensUsed, e.Company, e.CreatedAt)
	if err != nil {
		return err
	}
	e.ID, _ = res.LastInsertId()
	return nil
}

func (r *AnalyticsRepository) Recent(ctx context.Context, limit int) ([]*domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, event_type, analysis_id, content_hash, tokens_used, company, created_at
FROM analysis_events ORDER BY created_at DESC, id DESC LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.Type, &e.AnalysisID, &e.ContentHash,
			&e.TokensUsed, &e.Company, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *AnalyticsRepository) Summary(ctx context.Context, sinceDays int) (domain.Summary, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	cut := time.Now().UTC().AddDate(0, 0, -sinceDays)
	const q = `
SELECT
  COALESCE(SUM(event_type='created'),0),
  COALESCE(SUM(event_type='viewed'),0),
  COALESCE(SUM(event_type='published'),0),
  COALESCE(SUM(tokens_used),0)
FROM analysis_events
WHERE created_at >= ?;`
	s := domain.Summary{SinceDays: sinceDays}
	err := r.db.QueryRowContext(ctx, q, cut).Scan(&s.Created, &s.Viewed, &s.Published, &s.TokensUsed)
	return s, err
}
