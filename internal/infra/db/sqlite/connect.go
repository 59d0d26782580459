package sqlite

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// Schema for single-node deployments and tests. MySQL/Postgres deployments
// provision the equivalent tables out of band.
const schema = `
CREATE TABLE IF NOT EXISTS analyses (
    id                 TEXT PRIMARY KEY,
    content_hash       TEXT NOT NULL UNIQUE,
    source_type        TEXT NOT NULL,
    source_url         TEXT NOT NULL DEFAULT '',
    company_name       TEXT NOT NULL DEFAULT '',
    payload_json       TEXT NOT NULL,
    overall_risk       TEXT NOT NULL DEFAULT '',
    categories         TEXT NOT NULL DEFAULT '',
    word_count         INTEGER NOT NULL DEFAULT 0,
    char_count         INTEGER NOT NULL DEFAULT 0,
    is_public          INTEGER NOT NULL DEFAULT 0,
    popularity         INTEGER NOT NULL DEFAULT 0,
    creator_token_hash TEXT NOT NULL DEFAULT '',
    archive_url        TEXT NOT NULL DEFAULT '',
    created_at         DATETIME NOT NULL,
    expires_at         DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analyses_listing ON analyses (is_public, popularity DESC);

CREATE TABLE IF NOT EXISTS share_views (
    analysis_id  TEXT PRIMARY KEY,
    view_count   INTEGER NOT NULL DEFAULT 0,
    session_hash TEXT NOT NULL DEFAULT '',
    expires_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS analysis_events (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    event_type   TEXT NOT NULL,
    analysis_id  TEXT NOT NULL,
    content_hash TEXT NOT NULL DEFAULT '',
    tokens_used  INTEGER NOT NULL DEFAULT 0,
    company      TEXT NOT NULL DEFAULT '',
    created_at   DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_created ON analysis_events (created_at);
`

// Connect opens the database file and ensures the schema exists.
func Connect(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	// sqlite handles one writer at a time
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
