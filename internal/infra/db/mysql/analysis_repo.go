package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	domain "github.com/HeraclesBass/tos-analyzer/internal/domain/analysis"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

const recordColumns = `id, content_hash, source_type, source_url, company_name,
       payload_json, word_count, char_count, is_public, popularity,
       creator_token_hash, archive_url, created_at, expires_at`

// Save insert/update one analysis record keyed by id; content_hash carries
// a unique index so the fingerprint invariant holds at the store level.
func (r *AnalysisRepository) Save(ctx context.Context, rec *domain.Record) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}
	const q = `
INSERT INTO analyses
  (id, content_hash, source_type, source_url, company_name,
   payload_json, overall_risk, categories, word_count, char_count,
   is_public, popularity, creator_token_hash, archive_url, created_at, expires_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  source_type=VALUES(source_type), source_url=VALUES(source_url),
  company_name=VALUES(company_name), payload_json=VALUES(payload_json),
  overall_risk=VALUES(overall_risk), categories=VALUES(categories),
  word_count=VALUES(word_count), char_count=VALUES(char_count),
  is_public=VALUES(is_public), creator_token_hash=VALUES(creator_token_hash),
  archive_url=VALUES(archive_url), created_at=VALUES(created_at),
  expires_at=VALUES(expires_at);`

	_, err = r.db.ExecContext(ctx, q,
		rec.ID, rec.ContentHash, rec.SourceType, rec.SourceURL, rec.CompanyName,
		string(payload), string(rec.Payload.Summary.OverallRisk),
		strings.Join(rec.Payload.CategoryNames(), ","),
		rec.WordCount, rec.CharCount,
		rec.IsPublic, rec.PopularityScore, rec.CreatorTokenHash, rec.ArchiveURL,
		rec.CreatedAt, rec.ExpiresAt,
	)
	return err
}

func (r *AnalysisRepository) GetByID(ctx context.Context, id domain.AnalysisID) (*domain.Record, error) {
	q := "SELECT " + recordColumns + " FROM analyses WHERE id=? LIMIT 1;"
	return scanRecord(r.db.QueryRowContext(ctx, q, id))
}

func (r *AnalysisRepository) GetByFingerprint(ctx context.Context, hash string) (*domain.Record, error) {
	q := "SELECT " + recordColumns + " FROM analyses WHERE content_hash=? LIMIT 1;"
	return scanRecord(r.db.QueryRowContext(ctx, q, hash))
}

func (r *AnalysisRepository) SetVisibility(ctx context.Context, id domain.AnalysisID, public bool) error {
	res, err := r.db.ExecContext(ctx, "UPDATE analyses SET is_public=? WHERE id=?;", public, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

func (r *AnalysisRepository) RecordView(ctx context.Context, id domain.AnalysisID, sessionHash string) (*domain.ShareView, error) {
	const upsert = `
INSERT INTO share_views (analysis_id, view_count, session_hash, expires_at)
SELECT id, 1, ?, expires_at FROM analyses WHERE id=?
ON DUPLICATE KEY UPDATE
  view_count=view_count+1, session_hash=VALUES(session_hash);`
	if _, err := r.db.ExecContext(ctx, upsert, sessionHash, id); err != nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx, "UPDATE analyses SET popularity=popularity+1 WHERE id=?;", id); err != nil {
		return nil, err
	}

	sv := domain.ShareView{AnalysisID: id}
	err := r.db.QueryRowContext(ctx,
		"SELECT view_count, session_hash, expires_at FROM share_views WHERE analysis_id=?;", id,
	).Scan(&sv.ViewCount, &sv.SessionHash, &sv.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sv, nil
}

func (r *AnalysisRepository) List(ctx context.Context, f domain.ListFilter) (domain.PaginatedResult, error) {
	page, size := f.Page, f.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}

	where := "WHERE is_public=1 AND expires_at > ?"
	args := []any{time.Now().UTC()}
	if f.Company != "" {
		where += " AND company_name LIKE ?"
		args = append(args, "%"+escapeLikePattern(f.Company)+"%")
	}
	if f.Category != "" {
		where += " AND categories LIKE ?"
		args = append(args, "%"+escapeLikePattern(f.Category)+"%")
	}
	if f.Risk != "" {
		where += " AND overall_risk = ?"
		args = append(args, f.Risk)
	}

	order := "popularity DESC, created_at DESC"
	switch f.Sort {
	case domain.SortRecent:
		order = "created_at DESC"
	case domain.SortRisk:
		order = "FIELD(overall_risk,'high','medium','low'), popularity DESC"
	}

	var total int64
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM analyses "+where+";", args...,
	).Scan(&total); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("counting analyses: %w", err)
	}

	q := "SELECT " + recordColumns + " FROM analyses " + where +
		" ORDER BY " + order + " LIMIT ? OFFSET ?;"
	args = append(args, size, (page-1)*size)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("querying analyses: %w", err)
	}
	defer rows.Close()

	var out []*domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return domain.PaginatedResult{}, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return domain.PaginatedResult{}, err
	}

	return domain.PaginatedResult{
		Data:       out,
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(size))),
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.Record, error) {
	var rec domain.Record
	var payload string
	err := row.Scan(
		&rec.ID, &rec.ContentHash, &rec.SourceType, &rec.SourceURL, &rec.CompanyName,
		&payload, &rec.WordCount, &rec.CharCount, &rec.IsPublic, &rec.PopularityScore,
		&rec.CreatorTokenHash, &rec.ArchiveURL, &rec.CreatedAt, &rec.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
		return nil, fmt.Errorf("decoding payload for %s: %w", rec.ID, err)
	}
	return &rec, nil
}
