// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Run statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// DefaultLimit is the number of runs History returns when no limit is given.
const DefaultLimit = 20

// ErrClosed is returned when the store has been closed.
var ErrClosed = errors.New("history store is closed")

// Run is one recorded completion run.
type Run struct {
	ID               string    `json:"id"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	RequestedModel   string    `json:"requested_model"`
	UsedModel        string    `json:"used_model,omitempty"`
	FellBack         bool      `json:"fell_back"`
	FreeOnly         bool      `json:"free_only"`
	Status           string    `json:"status"`
	ExitCode         int       `json:"exit_code"`
	ArtifactPath     string    `json:"artifact_path,omitempty"`
	Error            string    `json:"error,omitempty"`
	PromptTokens     int       `json:"prompt_tokens,omitempty"`
	CompletionTokens int       `json:"completion_tokens,omitempty"`
}

// NewRun starts a run record with a fresh ID.
func NewRun(requestedModel string, freeOnly bool, startedAt time.Time) *Run {
	return &Run{
		ID:             uuid.New().String(),
		StartedAt:      startedAt,
		RequestedModel: requestedModel,
		FreeOnly:       freeOnly,
	}
}

// Duration returns how long the run took.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store is the SQLite-backed run ledger.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the ledger at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return err
	}
	_, err := s.db.Exec(InitMetadata)
	return err
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Record inserts or replaces r.
func (s *Store) Record(ctx context.Context, r *Run) error {
	if s.db == nil {
		return ErrClosed
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (
			id, started_at, finished_at, requested_model, used_model,
			fell_back, free_only, status, exit_code, artifact_path, error,
			prompt_tokens, completion_tokens
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UnixNano(), unixNanoOrZero(r.FinishedAt),
		r.RequestedModel, r.UsedModel,
		boolToInt(r.FellBack), boolToInt(r.FreeOnly),
		r.Status, r.ExitCode, r.ArtifactPath, r.Error,
		r.PromptTokens, r.CompletionTokens,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first. limit <= 0 means DefaultLimit.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, requested_model, used_model,
		       fell_back, free_only, status, exit_code, artifact_path, error,
		       prompt_tokens, completion_tokens
		FROM runs
		ORDER BY started_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			r                  Run
			started, finished  int64
			fellBack, freeOnly int
		)
		if err := rows.Scan(
			&r.ID, &started, &finished, &r.RequestedModel, &r.UsedModel,
			&fellBack, &freeOnly, &r.Status, &r.ExitCode, &r.ArtifactPath, &r.Error,
			&r.PromptTokens, &r.CompletionTokens,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, started)
		if finished != 0 {
			r.FinishedAt = time.Unix(0, finished)
		}
		r.FellBack = fellBack != 0
		r.FreeOnly = freeOnly != 0
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Count returns the number of recorded runs.
func (s *Store) Count(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, ErrClosed
	}
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&n)
	return n, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func unixNanoOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
