// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

const (
	// SchemaVersion tracks the database schema version for migrations
	SchemaVersion = 1
)

// Schema creates the run ledger tables.
const Schema = `
-- Metadata table for schema version
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- One row per completion run
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,            -- UUID
    started_at INTEGER NOT NULL,    -- Unix nanoseconds
    finished_at INTEGER NOT NULL,   -- Unix nanoseconds
    requested_model TEXT NOT NULL,
    used_model TEXT NOT NULL DEFAULT '',
    fell_back INTEGER NOT NULL DEFAULT 0,
    free_only INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,           -- success, failed
    exit_code INTEGER NOT NULL DEFAULT 0,
    artifact_path TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT '',
    prompt_tokens INTEGER NOT NULL DEFAULT 0,
    completion_tokens INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// InitMetadata seeds the metadata table.
const InitMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1');
`
