package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	// Register the pure-Go SQLite driver (no CGO required).
	_ "modernc.org/sqlite"
)

// lockRetryInterval is the interval between attempts to take the run-log
// file lock. Writes are short, so a waiter rarely loops more than once.
const lockRetryInterval = 50 * time.Millisecond

const schema = `
CREATE TABLE IF NOT EXISTS namespaces (
	run_id     TEXT NOT NULL,
	name       TEXT NOT NULL PRIMARY KEY,
	created_at TEXT NOT NULL
);
`

// Store is an open run log. One Store is created per test process; its run
// ID groups the namespaces that process created.
type Store struct {
	db    *sql.DB
	lock  *flock.Flock
	runID string
	log   *slog.Logger
}

// DefaultPath returns the run-log database location shared by all testpods
// processes on this machine.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), "testpods", "runlog.db")
}

// Open opens (creating if necessary) the run log at path and assigns the
// store a fresh run ID. If logger is nil, slog.Default() is used.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create run-log directory: %w", err)
	}

	// WAL with a generous busy timeout: several test processes may write
	// concurrently, and the file lock only serializes our own writes.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(30000)&_pragma=synchronous(NORMAL)",
		path,
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open run log %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create run-log schema: %w", err)
	}

	return &Store{
		db:    db,
		lock:  flock.New(path + ".lock"),
		runID: uuid.NewString(),
		log:   logger,
	}, nil
}

// RunID returns the identifier assigned to this process's run.
func (s *Store) RunID() string {
	return s.runID
}

// Record notes that this run created the given namespace. An existing entry
// for the same namespace is taken over by this run.
func (s *Store) Record(ctx context.Context, namespace string) error {
	return s.withLock(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO namespaces (run_id, name, created_at) VALUES (?, ?, ?)
			 ON CONFLICT(name) DO UPDATE SET run_id = excluded.run_id, created_at = excluded.created_at`,
			s.runID, namespace, time.Now().UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("record namespace %s: %w", namespace, err)
		}
		return nil
	})
}

// Forget removes a namespace entry, regardless of which run recorded it.
// Forget of an unknown namespace is a no-op.
func (s *Store) Forget(ctx context.Context, namespace string) error {
	return s.withLock(ctx, func() error {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM namespaces WHERE name = ?`, namespace); err != nil {
			return fmt.Errorf("forget namespace %s: %w", namespace, err)
		}
		return nil
	})
}

// Leftovers returns the namespaces recorded by runs other than this one.
// These belong to processes that crashed before cleaning up.
func (s *Store) Leftovers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM namespaces WHERE run_id != ? ORDER BY name`, s.runID)
	if err != nil {
		return nil, fmt.Errorf("query leftover namespaces: %w", err)
	}
	defer rows.Close() //nolint:errcheck // rows.Err() below catches read errors

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan namespace row: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate namespace rows: %w", err)
	}
	return names, nil
}

// Close releases the database handle. Entries recorded by this run stay in
// the log until Forget removes them.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close run log: %w", err)
	}
	return nil
}

// withLock runs fn while holding the cross-process file lock.
func (s *Store) withLock(ctx context.Context, fn func() error) error {
	locked, err := s.lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return fmt.Errorf("acquire run-log lock: %w", err)
	}
	if !locked {
		if ctx.Err() != nil {
			return fmt.Errorf("acquire run-log lock: %w", ctx.Err())
		}
		return fmt.Errorf("acquire run-log lock %s: not acquired", s.lock.Path())
	}
	defer func() {
		if unlockErr := s.lock.Unlock(); unlockErr != nil {
			s.log.Warn("release run-log lock", "error", unlockErr)
		}
	}()
	return fn()
}
