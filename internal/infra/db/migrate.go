package db

import (
	"database/sql"
)

// MigrateUp creates the full schema. All statements are idempotent so the
// migration can run on every startup.
func MigrateUp(db *sql.DB) error {
	// pgvector is required for preference vectors and prompt embeddings.
	// Errors are ignored when the extension already exists or the role lacks
	// superuser rights; the vector tables below will fail loudly instead.
	_, _ = db.Exec(`CREATE EXTENSION IF NOT EXISTS vector`)

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS videos (
    id               TEXT PRIMARY KEY,
    prompt           TEXT NOT NULL,
    source_url       TEXT NOT NULL,
    duration_seconds INT NOT NULL DEFAULT 8,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS queue_items (
    id              TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,
    kind            VARCHAR(20) NOT NULL,
    status          VARCHAR(20) NOT NULL DEFAULT 'pending',
    priority        DOUBLE PRECISION NOT NULL DEFAULT 0,
    video_id        TEXT,
    similarity      DOUBLE PRECISION,
    source_url      TEXT,
    prompt          TEXT,
    preference      vector(1536),
    attempts        INT NOT NULL DEFAULT 0,
    claimed_by      TEXT,
    claimed_at      TIMESTAMPTZ,
    result_video_id TEXT,
    result_url      TEXT,
    last_error      TEXT,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT chk_queue_item_kind CHECK (kind IN ('existing_video', 'generate_video')),
    CONSTRAINT chk_queue_item_status CHECK (status IN ('pending', 'in_progress', 'ready', 'failed'))
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS worker_records (
    worker_id      TEXT PRIMARY KEY,
    hostname       TEXT NOT NULL,
    pid            INT NOT NULL DEFAULT 0,
    started_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_heartbeat TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    active_tasks   INT NOT NULL DEFAULT 0
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS feed_entries (
    user_id      TEXT NOT NULL,
    video_id     TEXT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
    score        DOUBLE PRECISION NOT NULL,
    published_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, video_id)
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS user_preferences (
    user_id    TEXT PRIMARY KEY,
    embedding  vector(1536) NOT NULL,
    dimension  INT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS prompt_embeddings (
    video_id   TEXT PRIMARY KEY REFERENCES videos(id) ON DELETE CASCADE,
    dimension  INT NOT NULL,
    embedding  vector(1536) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return err
	}

	indexes := []string{
		// Claim scans: pending items ordered by priority then age.
		`CREATE INDEX IF NOT EXISTS idx_queue_items_pending
    ON queue_items(priority DESC, created_at ASC) WHERE status = 'pending'`,
		// Lease reclamation scans in_progress items by claim time.
		`CREATE INDEX IF NOT EXISTS idx_queue_items_claimed_at
    ON queue_items(claimed_at) WHERE status = 'in_progress'`,
		// Per-user queue listing.
		`CREATE INDEX IF NOT EXISTS idx_queue_items_user_id ON queue_items(user_id)`,
		// Feed pages are read in (score DESC, video_id DESC) keyset order.
		`CREATE INDEX IF NOT EXISTS idx_feed_entries_user_score
    ON feed_entries(user_id, score DESC, video_id DESC)`,
		// Stale worker reaping.
		`CREATE INDEX IF NOT EXISTS idx_worker_records_heartbeat ON worker_records(last_heartbeat)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	// IVFFlat index for cosine similarity search over prompt embeddings.
	// Errors are ignored when pgvector is unavailable; lists=100 suits <1M rows.
	_, _ = db.Exec(`
CREATE INDEX IF NOT EXISTS idx_prompt_embeddings_vector
    ON prompt_embeddings USING ivfflat (embedding vector_cosine_ops)
    WITH (lists = 100)`)

	return nil
}

// MigrateDown rolls back the database schema.
// Tables are dropped in reverse dependency order.
// Use with caution: this will delete all data in the affected tables.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP TABLE IF EXISTS prompt_embeddings CASCADE`,
		`DROP TABLE IF EXISTS user_preferences CASCADE`,
		`DROP TABLE IF EXISTS feed_entries CASCADE`,
		`DROP TABLE IF EXISTS worker_records CASCADE`,
		`DROP TABLE IF EXISTS queue_items CASCADE`,
		`DROP TABLE IF EXISTS videos CASCADE`,
	}

	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	// The vector extension is left in place as other schemas may use it.

	return nil
}
