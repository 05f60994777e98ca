// Package sqlite is the system of record for tasks and project members,
// backed by an embedded SQLite database in write-ahead mode.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/waypoint/pkg/domain"
	_ "modernc.org/sqlite"
)

// querier is satisfied by *sql.DB and *sql.Conn so every operation can run
// either standalone or inside an explicit transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store owns the durable task schema.
type Store struct {
	cfg    Config
	dbPath string
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for task timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns an uninitialized store. Every operation fails with
// domain.ErrNotInitialized until Initialize succeeds.
func New(cfg Config, opts ...Option) *Store {
	cfg = cfg.withDefaults()
	s := &Store{
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	if cfg.Name == MemoryName {
		s.dbPath = MemoryName
	} else {
		s.dbPath = filepath.Join(cfg.BaseDir, cfg.Name+".db")
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "sqlite_store")
	return s
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.dbPath
}

// Initialize opens the database, applies the pragma batch and migrates the schema.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}
	if err := s.cfg.Validate(); err != nil {
		return domain.Errorf(domain.ErrValidation, "initialize", "%v", err)
	}
	if s.dbPath != MemoryName {
		if err := os.MkdirAll(filepath.Dir(s.dbPath), 0o755); err != nil {
			return domain.WrapStorage("initialize", fmt.Errorf("create db directory: %w", err))
		}
	}

	db, err := sql.Open("sqlite", s.dbPath)
	if err != nil {
		return domain.WrapStorage("initialize", fmt.Errorf("open sqlite db: %w", err))
	}
	// One connection: the pragma batch is per-connection and the engine
	// allows a single writer anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, p := range s.cfg.pragmas() {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return domain.WrapStorage("initialize", fmt.Errorf("apply %q: %w", p, err))
		}
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return domain.WrapStorage("initialize", err)
	}

	s.db = db
	s.closed = false
	s.logger.Info("sqlite storage initialized",
		"path", s.dbPath,
		"journal_mode", string(s.cfg.JournalMode),
		"synchronous", string(s.cfg.Synchronous),
		"locking_mode", string(s.cfg.LockingMode),
	)
	return nil
}

// Close releases the database. Closing twice, or closing a handle the
// driver already reports closed, is not an error.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil || s.closed {
		return nil
	}
	s.closed = true
	err := s.db.Close()
	s.db = nil
	if err != nil {
		if isAlreadyClosed(err) {
			return nil
		}
		s.logger.Error("error closing sqlite connection", "error", err)
		return domain.WrapStorage("close", err)
	}
	s.logger.Info("sqlite connection closed")
	return nil
}

func isAlreadyClosed(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is closed") || strings.Contains(msg, "already closed")
}

// handle returns the open database or a not-initialized error for op.
func (s *Store) handle(op string) (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, domain.Errorf(domain.ErrNotInitialized, op, "storage not initialized")
	}
	return s.db, nil
}

// Tx is an immediate-mode transaction pinned to the store's connection.
// While a Tx is open, calls on the Store itself wait for it to finish, so
// related writes must go through the Tx.
type Tx struct {
	store *Store
	conn  *sql.Conn
	done  bool
}

// Begin starts an immediate transaction, taking the write lock up front.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	db, err := s.handle("begin")
	if err != nil {
		return nil, err
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, domain.WrapStorage("begin", err)
	}
	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		_ = conn.Close()
		return nil, domain.WrapStorage("begin", err)
	}
	return &Tx{store: s, conn: conn}, nil
}

// Commit makes the transaction's writes durable.
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.done {
		return errors.New("transaction already finished")
	}
	tx.done = true
	defer tx.conn.Close()
	if _, err := tx.conn.ExecContext(ctx, "COMMIT"); err != nil {
		_, _ = tx.conn.ExecContext(ctx, "ROLLBACK")
		return domain.WrapStorage("commit", err)
	}
	return nil
}

// Rollback discards the transaction. It is a no-op after Commit, so it can
// be deferred unconditionally.
func (tx *Tx) Rollback(ctx context.Context) error {
	if tx.done {
		return nil
	}
	tx.done = true
	defer tx.conn.Close()
	if _, err := tx.conn.ExecContext(ctx, "ROLLBACK"); err != nil {
		return domain.WrapStorage("rollback", err)
	}
	return nil
}

// WithTx runs fn inside an immediate transaction, committing on success.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
