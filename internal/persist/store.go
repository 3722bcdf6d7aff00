package persist

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by GetRun for an unknown ID
var ErrNotFound = errors.New("run not found")

// timeLayout is fixed width so started_at sorts as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store keeps the history of generation runs in SQLite
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore creates a new SQLite-backed run history at the given path
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	s := &Store{db: db}

	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return s, nil
}

// init creates the necessary tables if they don't exist
func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id             TEXT PRIMARY KEY,
			dataset_path   TEXT NOT NULL,
			requirements   TEXT NOT NULL,
			provider       TEXT,
			model          TEXT,
			status         TEXT NOT NULL,
			error_kind     TEXT,
			error_message  TEXT,
			output_path    TEXT,
			output_bytes   INTEGER NOT NULL DEFAULT 0,
			prompt_digest  TEXT,
			repaired       INTEGER NOT NULL DEFAULT 0,
			warnings       TEXT,
			started_at     TEXT NOT NULL,
			duration_ms    INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
		CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`)
	return err
}

// SaveRun inserts or replaces a run record
func (s *Store) SaveRun(r *RunRecord) error {
	if r == nil || r.ID == "" {
		return fmt.Errorf("run record needs an id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	repaired := 0
	if r.Repaired {
		repaired = 1
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO runs (id, dataset_path, requirements, provider, model, status,
			error_kind, error_message, output_path, output_bytes, prompt_digest, repaired,
			warnings, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.DatasetPath, r.Requirements, r.Provider, r.Model, r.Status,
		r.ErrorKind, r.ErrorMessage, r.OutputPath, r.OutputBytes, r.PromptDigest, repaired,
		toJSON(r.Warnings), r.StartedAt.UTC().Format(timeLayout), r.Duration.Milliseconds())
	return err
}

const selectRun = `
	SELECT id, dataset_path, requirements, provider, model, status, error_kind, error_message,
		output_path, output_bytes, prompt_digest, repaired, warnings, started_at, duration_ms
	FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*RunRecord, error) {
	var r RunRecord
	var provider, model, errorKind, errorMessage, outputPath, digest, warnings sql.NullString
	var repaired int
	var startedAt string
	var durationMS int64

	err := row.Scan(&r.ID, &r.DatasetPath, &r.Requirements, &provider, &model, &r.Status,
		&errorKind, &errorMessage, &outputPath, &r.OutputBytes, &digest, &repaired,
		&warnings, &startedAt, &durationMS)
	if err != nil {
		return nil, err
	}

	r.Provider = provider.String
	r.Model = model.String
	r.ErrorKind = errorKind.String
	r.ErrorMessage = errorMessage.String
	r.OutputPath = outputPath.String
	r.PromptDigest = digest.String
	r.Repaired = repaired != 0
	r.Duration = time.Duration(durationMS) * time.Millisecond
	if warnings.Valid {
		_ = fromJSON(warnings.String, &r.Warnings)
	}
	if t, err := time.Parse(timeLayout, startedAt); err == nil {
		r.StartedAt = t
	}
	return &r, nil
}

// GetRun returns a single run by ID
func (s *Store) GetRun(id string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := scanRun(s.db.QueryRow(selectRun+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

// ListRuns returns the most recent runs first, at most limit of them
func (s *Store) ListRuns(limit int) ([]*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(selectRun+` ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
