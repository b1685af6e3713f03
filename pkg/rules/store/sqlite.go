package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // cgo SQLite driver, registered as "sqlite3"
	_ "modernc.org/sqlite"          // pure Go SQLite driver, registered as "sqlite"

	"mercator-hq/tollgate/pkg/tps"
)

// SQLite driver names.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

// SQLiteBackend implements Backend using SQLite.
// Rules are stored as JSON, one row per point.
type SQLiteBackend struct {
	db        *sql.DB
	path      string
	mu        sync.RWMutex
	closeOnce sync.Once

	saveStmt   *sql.Stmt
	loadStmt   *sql.Stmt
	listStmt   *sql.Stmt
	deleteStmt *sql.Stmt
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	// Path is the database file path. Use ":memory:" for tests.
	Path string

	// Driver is DriverModernc (default) or DriverMattn.
	Driver string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteBackend opens or creates a SQLite rule store.
func NewSQLiteBackend(cfg SQLiteConfig) (*SQLiteBackend, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverModernc
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	backend := &SQLiteBackend{db: db, path: cfg.Path}

	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := backend.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return backend, nil
}

func buildDSN(cfg SQLiteConfig) (string, error) {
	ms := cfg.BusyTimeout.Milliseconds()
	switch cfg.Driver {
	case DriverModernc:
		return fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", cfg.Path, ms), nil
	case DriverMattn:
		return fmt.Sprintf("%s?_busy_timeout=%d&_journal_mode=WAL", cfg.Path, ms), nil
	default:
		return "", fmt.Errorf("unsupported sqlite driver %q (use %q or %q)", cfg.Driver, DriverModernc, DriverMattn)
	}
}

func (s *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tps_rules (
		point TEXT NOT NULL PRIMARY KEY,
		rule TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteBackend) prepareStatements() error {
	var err error

	s.saveStmt, err = s.db.Prepare(`
		INSERT INTO tps_rules (point, rule, source, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (point) DO UPDATE SET
			rule = excluded.rule,
			source = excluded.source,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare save statement: %w", err)
	}

	s.loadStmt, err = s.db.Prepare(`SELECT point, rule, source, updated_at FROM tps_rules WHERE point = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare load statement: %w", err)
	}

	s.listStmt, err = s.db.Prepare(`SELECT point, rule, source, updated_at FROM tps_rules ORDER BY point`)
	if err != nil {
		return fmt.Errorf("failed to prepare list statement: %w", err)
	}

	s.deleteStmt, err = s.db.Prepare(`DELETE FROM tps_rules WHERE point = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}

	return nil
}

// Save persists the rule for a point.
func (s *SQLiteBackend) Save(ctx context.Context, rec *Record) error {
	if err := validate(rec); err != nil {
		return err
	}

	data, err := json.Marshal(rec.Rule)
	if err != nil {
		return fmt.Errorf("failed to marshal rule: %w", err)
	}
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.saveStmt.ExecContext(ctx, rec.Point, string(data), rec.Source, updated.UnixMilli()); err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}
	return nil
}

// Load returns the record for a point, or nil.
func (s *SQLiteBackend) Load(ctx context.Context, point string) (*Record, error) {
	if point == "" {
		return nil, fmt.Errorf("point cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := scanRecord(s.loadStmt.QueryRowContext(ctx, point))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rule: %w", err)
	}
	if rec.Err != nil {
		return nil, rec.Err
	}
	return rec, nil
}

// List returns all records ordered by point name. Undecodable rows are
// returned with Err set.
func (s *SQLiteBackend) List(ctx context.Context) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.listStmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}

// Delete removes the record for a point.
func (s *SQLiteBackend) Delete(ctx context.Context, point string) error {
	if point == "" {
		return fmt.Errorf("point cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.deleteStmt.ExecContext(ctx, point); err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *SQLiteBackend) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the prepared statements and the database.
func (s *SQLiteBackend) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		for _, stmt := range []*sql.Stmt{s.saveStmt, s.loadStmt, s.listStmt, s.deleteStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		err = s.db.Close()
	})
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		point     string
		data      string
		source    string
		updatedAt int64
	)
	if err := row.Scan(&point, &data, &source, &updatedAt); err != nil {
		return nil, err
	}

	rec := &Record{
		Point:     point,
		Source:    source,
		UpdatedAt: time.UnixMilli(updatedAt),
	}
	rule := tps.NewControlRule()
	if err := json.Unmarshal([]byte(data), rule); err != nil {
		rec.Err = fmt.Errorf("failed to unmarshal rule for %s: %w", point, err)
		return rec, nil
	}
	rec.Rule = rule
	return rec, nil
}
