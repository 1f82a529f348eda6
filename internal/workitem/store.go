package workitem

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"futures/internal/config"
)

// Store manages work item persistence backed by SQLite.
//
// Writes go through a single-connection writer pool whose transactions begin
// IMMEDIATE, so write transactions serialize inside the process. Reads use a
// separate pool and never wait on the writer under WAL.
type Store struct {
	writer *sql.DB
	reader *sql.DB
	path   string
	now    func() time.Time
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open initializes or connects to the work item database under the configured data directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath opens the database at path, creating the schema when needed.
func OpenPath(path string) (*Store, error) {
	writer, err := sql.Open("sqlite", dsn(path, true))
	if err != nil {
		return nil, fmt.Errorf("open sqlite writer: %w", err)
	}
	writer.SetMaxOpenConns(1)

	reader, err := sql.Open("sqlite", dsn(path, false))
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open sqlite reader: %w", err)
	}

	store := &Store{writer: writer, reader: reader, path: path, now: func() time.Time { return time.Now().UTC() }}
	if err := store.initSchema(context.Background()); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// dsn applies pragmas per connection; foreign_keys and busy_timeout are not
// database-wide settings.
func dsn(path string, immediate bool) string {
	params := url.Values{}
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "busy_timeout(5000)")
	if immediate {
		params.Set("_txlock", "immediate")
	}
	return "file:" + path + "?" + params.Encode()
}

// Close closes the underlying database connections.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.reader != nil {
		errs = append(errs, s.reader.Close())
	}
	if s.writer != nil {
		errs = append(errs, s.writer.Close())
	}
	return errors.Join(errs...)
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Ping verifies both connection pools are usable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.reader.PingContext(ctx); err != nil {
		return fmt.Errorf("ping reader: %w", err)
	}
	if err := s.writer.PingContext(ctx); err != nil {
		return fmt.Errorf("ping writer: %w", err)
	}
	return nil
}

// Tx is a transaction over work items and the aggregates stored beside them.
type Tx struct {
	tx       *sql.Tx
	now      func() time.Time
	writable bool
}

// SQL exposes the underlying transaction for repositories sharing the database.
func (t *Tx) SQL() *sql.Tx {
	return t.tx
}

// Writable reports whether the transaction may modify data.
func (t *Tx) Writable() bool {
	return t.writable
}

// WriteTx runs fn inside an IMMEDIATE write transaction. The transaction
// commits when fn returns nil and rolls back otherwise. Never call Store write
// methods from inside fn: the writer pool has a single connection.
func (s *Store) WriteTx(ctx context.Context, fn func(*Tx) error) error {
	var tx *sql.Tx
	if err := retryOnBusy(ctx, func() error {
		var beginErr error
		tx, beginErr = s.writer.BeginTx(ctx, nil)
		return beginErr
	}); err != nil {
		return fmt.Errorf("begin write tx: %w", err)
	}
	return finish(tx, fn(&Tx{tx: tx, now: s.now, writable: true}))
}

// ReadTx runs fn inside a read transaction on the reader pool. It always rolls
// back.
func (s *Store) ReadTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.reader.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin read tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	return fn(&Tx{tx: tx, now: s.now})
}

func finish(tx *sql.Tx, err error) error {
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
