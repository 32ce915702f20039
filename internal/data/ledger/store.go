// Package ledger records what each build wrote so later builds can skip
// files whose input and output are both unchanged.
package ledger

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
	// fixed width so timestamps sort as text
	tsLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

// Run is one build invocation.
type Run struct {
	ID        string
	Direction string
	Strategy  string
	StartedAt time.Time
}

type Counts struct {
	Total   int
	Written int
	Skipped int
	Failed  int
}

type RunRecord struct {
	Run
	FinishedAt time.Time
	Counts     Counts
}

// FileRecord is the last successful write of one module.
type FileRecord struct {
	Direction  string
	Rel        string
	InputHash  string
	OutputHash string
	Strategy   string
	RunID      string
	UpdatedAt  time.Time
}

func Open(path string, busyTimeout time.Duration) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("ledger path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("ledger path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory %q: %w", dir, err)
		}
	}

	if busyTimeout <= 0 {
		busyTimeout = 2 * time.Second
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", cleanPath, busyTimeout.Milliseconds())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite ledger %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite ledger %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}
	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// BeginRun records the start of a build and assigns it an id.
func (s *Store) BeginRun(direction, strategy string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := Run{
		ID:        uuid.NewString(),
		Direction: direction,
		Strategy:  strategy,
		StartedAt: time.Now().UTC(),
	}
	err := s.withRetry("begin run", func() error {
		_, err := s.db.Exec(
			`INSERT INTO runs (run_id, direction, strategy, started_at_utc) VALUES (?, ?, ?, ?)`,
			run.ID, run.Direction, run.Strategy, run.StartedAt.Format(tsLayout),
		)
		return err
	})
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

func (s *Store) FinishRun(run Run, counts Counts) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withRetry("finish run", func() error {
		res, err := s.db.Exec(`
UPDATE runs SET finished_at_utc = ?, files_total = ?, files_written = ?, files_skipped = ?, files_failed = ?
WHERE run_id = ?`,
			time.Now().UTC().Format(tsLayout),
			counts.Total, counts.Written, counts.Skipped, counts.Failed, run.ID,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("unknown run %s", run.ID)
		}
		return nil
	})
}

// RecentRuns returns the latest runs, newest first.
func (s *Store) RecentRuns(limit int) ([]RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 10
	}
	var out []RunRecord
	err := s.withRetry("load runs", func() error {
		out = out[:0]
		rows, err := s.db.Query(`
SELECT run_id, direction, strategy, started_at_utc, finished_at_utc,
       files_total, files_written, files_skipped, files_failed
FROM runs ORDER BY started_at_utc DESC, rowid DESC LIMIT ?`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var rec RunRecord
			var started, finished string
			if err := rows.Scan(&rec.ID, &rec.Direction, &rec.Strategy, &started, &finished,
				&rec.Counts.Total, &rec.Counts.Written, &rec.Counts.Skipped, &rec.Counts.Failed); err != nil {
				return err
			}
			rec.StartedAt, _ = time.Parse(tsLayout, started)
			if finished != "" {
				rec.FinishedAt, _ = time.Parse(tsLayout, finished)
			}
			out = append(out, rec)
		}
		return rows.Err()
	})
	return out, err
}

// Lookup returns the last record for a module, if any.
func (s *Store) Lookup(direction, rel string) (FileRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := FileRecord{Direction: direction, Rel: rel}
	found := false
	err := s.withRetry("lookup file", func() error {
		var updated string
		err := s.db.QueryRow(`
SELECT input_hash, output_hash, strategy, run_id, updated_at_utc
FROM files WHERE direction = ? AND rel_path = ?`, direction, rel).
			Scan(&rec.InputHash, &rec.OutputHash, &rec.Strategy, &rec.RunID, &updated)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		rec.UpdatedAt, _ = time.Parse(tsLayout, updated)
		found = true
		return nil
	})
	if err != nil || !found {
		return FileRecord{}, false, err
	}
	return rec, true, nil
}

// Record stores the outcome of a successful write.
func (s *Store) Record(rec FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	return s.withRetry("record file", func() error {
		_, err := s.db.Exec(`
INSERT INTO files (direction, rel_path, input_hash, output_hash, strategy, run_id, updated_at_utc)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(direction, rel_path) DO UPDATE SET
  input_hash=excluded.input_hash,
  output_hash=excluded.output_hash,
  strategy=excluded.strategy,
  run_id=excluded.run_id,
  updated_at_utc=excluded.updated_at_utc`,
			rec.Direction, rec.Rel, rec.InputHash, rec.OutputHash, rec.Strategy, rec.RunID,
			rec.UpdatedAt.Format(tsLayout),
		)
		return err
	})
}

// Forget drops every file record of a direction, used after a clean.
func (s *Store) Forget(direction string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withRetry("forget files", func() error {
		_, err := s.db.Exec(`DELETE FROM files WHERE direction = ?`, direction)
		return err
	})
}

// Hash is the content hash stored in the ledger.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}
