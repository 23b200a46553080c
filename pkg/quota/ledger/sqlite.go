package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3" (cgo)
	_ "modernc.org/sqlite"          // registers "sqlite" (pure Go)
)

// SQLite driver names accepted by SQLiteConfig.Driver.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

// SQLiteLedger implements Ledger on a SQLite database file.
// It is suitable for single-instance deployments that need the quota to
// survive restarts.
//
// The check-and-increment is a single conditional upsert, so atomicity comes
// from SQLite itself and not from a lock in this process.
type SQLiteLedger struct {
	db               *sql.DB
	path             string
	driver           string
	snapshotInterval time.Duration
	done             chan struct{}
	closeOnce        sync.Once

	consumeStmt *sql.Stmt
	releaseStmt *sql.Stmt
	usageStmt   *sql.Stmt
	pruneStmt   *sql.Stmt
}

// SQLiteConfig configures the SQLite ledger.
type SQLiteConfig struct {
	// Path is the path to the SQLite database file.
	Path string

	// Driver selects the database/sql driver: "sqlite" (modernc, default)
	// or "sqlite3" (mattn, requires cgo).
	Driver string

	// SnapshotInterval is how often to checkpoint the WAL.
	// Default: 5 minutes
	SnapshotInterval time.Duration

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteLedger opens (and if needed creates) a SQLite ledger.
func NewSQLiteLedger(cfg SQLiteConfig) (*SQLiteLedger, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverModernc
	}
	if cfg.SnapshotInterval == 0 {
		cfg.SnapshotInterval = 5 * time.Minute
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn, err := sqliteDSN(cfg)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	l := &SQLiteLedger{
		db:               db,
		path:             cfg.Path,
		driver:           cfg.Driver,
		snapshotInterval: cfg.SnapshotInterval,
		done:             make(chan struct{}),
	}

	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := l.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	go l.checkpointLoop()

	return l, nil
}

// sqliteDSN builds a DSN in the pragma syntax of the selected driver.
func sqliteDSN(cfg SQLiteConfig) (string, error) {
	busy := cfg.BusyTimeout.Milliseconds()
	switch cfg.Driver {
	case DriverModernc:
		return fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
			cfg.Path, busy), nil
	case DriverMattn:
		return fmt.Sprintf("%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL",
			cfg.Path, busy), nil
	default:
		return "", fmt.Errorf("unsupported sqlite driver %q", cfg.Driver)
	}
}

func (s *SQLiteLedger) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS quota_usage (
		actor_id TEXT NOT NULL,
		date_key TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0 CHECK (count >= 0),
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (actor_id, date_key)
	);

	CREATE INDEX IF NOT EXISTS idx_quota_usage_date_key ON quota_usage(date_key);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteLedger) prepareStatements() error {
	var err error

	// The DO UPDATE branch only fires while count < limit. When it does not
	// fire RETURNING yields no row, which is how a denial is observed.
	s.consumeStmt, err = s.db.Prepare(`
		INSERT INTO quota_usage (actor_id, date_key, count, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT (actor_id, date_key) DO UPDATE SET
			count = quota_usage.count + 1,
			updated_at = excluded.updated_at
		WHERE quota_usage.count < ?
		RETURNING count
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare consume statement: %w", err)
	}

	s.releaseStmt, err = s.db.Prepare(`
		UPDATE quota_usage
		SET count = count - 1, updated_at = ?
		WHERE actor_id = ? AND date_key = ? AND count > 0
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare release statement: %w", err)
	}

	s.usageStmt, err = s.db.Prepare(`
		SELECT count FROM quota_usage
		WHERE actor_id = ? AND date_key = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare usage statement: %w", err)
	}

	s.pruneStmt, err = s.db.Prepare(`
		DELETE FROM quota_usage
		WHERE date_key < ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare prune statement: %w", err)
	}

	return nil
}

// TryConsume increments the count if it is below limit.
func (s *SQLiteLedger) TryConsume(ctx context.Context, actorID, dateKey string, limit int) (Consumption, error) {
	if err := validateConsume(actorID, dateKey, limit); err != nil {
		return Consumption{}, err
	}

	var count int
	err := s.consumeStmt.QueryRowContext(ctx, actorID, dateKey, time.Now().Unix(), limit).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return Consumption{Allowed: false}, nil
	}
	if err != nil {
		return Consumption{}, fmt.Errorf("failed to consume quota: %w", err)
	}

	return Consumption{Allowed: true, Count: count}, nil
}

// Release decrements the count, never below zero.
func (s *SQLiteLedger) Release(ctx context.Context, actorID, dateKey string) error {
	if err := validateKey(actorID, dateKey); err != nil {
		return err
	}

	if _, err := s.releaseStmt.ExecContext(ctx, time.Now().Unix(), actorID, dateKey); err != nil {
		return fmt.Errorf("failed to release quota: %w", err)
	}
	return nil
}

// Usage returns the current count.
func (s *SQLiteLedger) Usage(ctx context.Context, actorID, dateKey string) (int, error) {
	if err := validateKey(actorID, dateKey); err != nil {
		return 0, err
	}

	var count int
	err := s.usageStmt.QueryRowContext(ctx, actorID, dateKey).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load usage: %w", err)
	}
	return count, nil
}

// Prune deletes records for date keys before beforeDateKey.
func (s *SQLiteLedger) Prune(ctx context.Context, beforeDateKey string) (int, error) {
	result, err := s.pruneStmt.ExecContext(ctx, beforeDateKey)
	if err != nil {
		return 0, fmt.Errorf("failed to prune: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(deleted), nil
}

// Ping checks the database connection.
func (s *SQLiteLedger) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database. Close is idempotent.
func (s *SQLiteLedger) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		close(s.done)

		for _, stmt := range []*sql.Stmt{s.consumeStmt, s.releaseStmt, s.usageStmt, s.pruneStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}

		if s.db != nil {
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})

	return closeErr
}

// checkpointLoop runs periodic WAL checkpoints.
func (s *SQLiteLedger) checkpointLoop() {
	ticker := time.NewTicker(s.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
		case <-s.done:
			return
		}
	}
}
