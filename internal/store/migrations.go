package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "captures: ingested raw content units",
		SQL: `
CREATE TABLE captures (
    id          TEXT PRIMARY KEY,
    owner_id    TEXT NOT NULL,
    context_id  TEXT,
    type        TEXT NOT NULL CHECK (type IN ('text', 'url', 'pdf', 'document', 'image')),
    title       TEXT,
    source      TEXT,
    raw_text    TEXT,
    status      TEXT NOT NULL DEFAULT 'processing' CHECK (status IN ('processing', 'completed', 'failed')),
    error       TEXT,
    page_count  INTEGER NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);

CREATE INDEX idx_captures_owner   ON captures(owner_id);
CREATE INDEX idx_captures_status  ON captures(status);
CREATE INDEX idx_captures_context ON captures(context_id);
`,
	},
	{
		Version:     2,
		Description: "chunks: bounded text spans with embedding vectors",
		SQL: `
CREATE TABLE chunks (
    id              TEXT PRIMARY KEY,
    capture_id      TEXT NOT NULL,
    owner_id        TEXT NOT NULL,
    position        INTEGER NOT NULL,
    content         TEXT NOT NULL,
    source_type     TEXT,
    topics          TEXT,

    -- Embedding (NULL until the embedding worker runs)
    embedding       BLOB,
    embedding_model TEXT,
    dimensions      INTEGER NOT NULL DEFAULT 0,

    -- Dedup: superseded chunks point at their canonical survivor
    canonical_id    TEXT,

    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL,

    FOREIGN KEY (capture_id) REFERENCES captures(id) ON DELETE CASCADE
);

CREATE INDEX idx_chunks_capture   ON chunks(capture_id);
CREATE INDEX idx_chunks_owner     ON chunks(owner_id);
CREATE INDEX idx_chunks_canonical ON chunks(canonical_id);

CREATE TABLE chunk_tags (
    chunk_id TEXT NOT NULL,
    tag      TEXT NOT NULL,
    PRIMARY KEY (chunk_id, tag)
);

CREATE TABLE contexts (
    id         TEXT PRIMARY KEY,
    owner_id   TEXT NOT NULL,
    name       TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE chunk_contexts (
    chunk_id   TEXT NOT NULL,
    context_id TEXT NOT NULL,
    PRIMARY KEY (chunk_id, context_id)
);
`,
	},
	{
		Version:     3,
		Description: "concepts: knowledge graph nodes and edges",
		SQL: `
CREATE TABLE concepts (
    id          TEXT PRIMARY KEY,
    owner_id    TEXT NOT NULL,
    name        TEXT NOT NULL,
    normalized  TEXT NOT NULL,
    category    TEXT,
    description TEXT,
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL,

    UNIQUE (owner_id, normalized)
);

CREATE TABLE concept_relations (
    id         TEXT PRIMARY KEY,
    owner_id   TEXT NOT NULL,
    source_id  TEXT NOT NULL,
    target_id  TEXT NOT NULL,
    relation   TEXT NOT NULL,
    created_at INTEGER NOT NULL,

    UNIQUE (source_id, target_id, relation),
    FOREIGN KEY (source_id) REFERENCES concepts(id) ON DELETE CASCADE,
    FOREIGN KEY (target_id) REFERENCES concepts(id) ON DELETE CASCADE
);

CREATE INDEX idx_concepts_owner  ON concepts(owner_id);
CREATE INDEX idx_relations_owner ON concept_relations(owner_id);
`,
	},
	{
		Version:     4,
		Description: "recall_items: spaced-repetition units with SM-2 state",
		SQL: `
CREATE TABLE recall_items (
    id           TEXT PRIMARY KEY,
    owner_id     TEXT NOT NULL,
    chunk_id     TEXT,
    concept_id   TEXT,
    note         TEXT,

    -- SM-2 memory strength
    interval_days INTEGER NOT NULL DEFAULT 1,
    ease_factor   REAL NOT NULL DEFAULT 2.5,
    review_count  INTEGER NOT NULL DEFAULT 0,
    last_review   INTEGER,
    next_review   INTEGER NOT NULL,

    created_at   INTEGER NOT NULL,

    CHECK ((chunk_id IS NULL) <> (concept_id IS NULL))
);

CREATE INDEX idx_recall_owner ON recall_items(owner_id);
CREATE INDEX idx_recall_due   ON recall_items(next_review);
`,
	},
	{
		Version:     5,
		Description: "jobs: durable queue with retry and dead-letter state",
		SQL: `
CREATE TABLE jobs (
    id           TEXT PRIMARY KEY,
    queue        TEXT NOT NULL,
    payload      TEXT NOT NULL,
    status       TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'running', 'done', 'dead')),
    attempts     INTEGER NOT NULL DEFAULT 0,
    max_attempts INTEGER NOT NULL DEFAULT 3,
    run_at       INTEGER NOT NULL,
    claimed_at   INTEGER,
    last_error   TEXT,
    created_at   INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL
);

CREATE INDEX idx_jobs_claim ON jobs(queue, status, run_at);
`,
	},
	{
		Version:     6,
		Description: "scope_locks: mutual exclusion for dedup runs",
		SQL: `
CREATE TABLE scope_locks (
    key        TEXT PRIMARY KEY,
    holder     TEXT NOT NULL,
    expires_at INTEGER NOT NULL
);
`,
	},
	{
		Version:     7,
		Description: "settings: persisted pipeline configuration",
		SQL: `
CREATE TABLE settings (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`,
	},
	{
		Version:     8,
		Description: "summaries and tasks: derived artifacts",
		SQL: `
CREATE TABLE summaries (
    id         TEXT PRIMARY KEY,
    owner_id   TEXT NOT NULL,
    context_id TEXT,
    content    TEXT NOT NULL,
    source     TEXT,
    created_at INTEGER NOT NULL
);

CREATE INDEX idx_summaries_owner ON summaries(owner_id);

CREATE TABLE tasks (
    id          TEXT PRIMARY KEY,
    owner_id    TEXT NOT NULL,
    context_id  TEXT,
    chunk_id    TEXT,
    description TEXT NOT NULL,
    done        INTEGER NOT NULL DEFAULT 0,
    source      TEXT,
    created_at  INTEGER NOT NULL
);

CREATE INDEX idx_tasks_owner ON tasks(owner_id);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
