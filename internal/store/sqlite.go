package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	_ "modernc.org/sqlite"

	"github.com/ashureev/tutor-client/internal/domain"
)

const (
	maxRetries = 3
	baseDelay  = 100 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex // serializes writers to avoid SQLITE_BUSY
}

// NewSQLite opens (creating if needed) the session database at dbPath.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One process, one user: a small pool is plenty.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS session (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		user_id TEXT NOT NULL,
		username TEXT NOT NULL,
		token TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// LoadSession returns the persisted session or nil when the store is empty.
func (s *SQLiteStore) LoadSession(ctx context.Context) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, username, token, created_at FROM session WHERE id = 1`)

	var session domain.Session
	var createdAt int64
	err := row.Scan(&session.UserID, &session.Username, &session.Token, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}
	session.CreatedAt = time.Unix(createdAt, 0)

	// A half-written record is treated as signed out.
	if !session.Valid() {
		return nil, nil
	}
	return &session, nil
}

// SaveSession creates or replaces the single session row.
func (s *SQLiteStore) SaveSession(ctx context.Context, session *domain.Session) error {
	if !session.Valid() {
		return fmt.Errorf("save session: incomplete session record")
	}
	query := `
	INSERT INTO session (id, user_id, username, token, created_at, updated_at)
	VALUES (1, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		user_id = excluded.user_id,
		username = excluded.username,
		token = excluded.token,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at`

	return s.withRetry(ctx, "save session", func() error {
		_, err := s.db.ExecContext(ctx, query,
			session.UserID, session.Username, session.Token,
			session.CreatedAt.Unix(), time.Now().Unix())
		return err
	})
}

// ClearSession deletes the session row.
func (s *SQLiteStore) ClearSession(ctx context.Context) error {
	return s.withRetry(ctx, "clear session", func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM session WHERE id = 1`)
		return err
	})
}

// withRetry runs a write, retrying SQLite busy errors with exponential
// backoff (100ms, 200ms). Any other error ends the retries at once.
func (s *SQLiteStore) withRetry(ctx context.Context, op string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = baseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		s.mu.Lock()
		err := fn()
		s.mu.Unlock()
		if err != nil && !isBusyError(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(maxRetries),
		backoff.WithNotify(func(_ error, delay time.Duration) {
			slog.Debug("sqlite busy, retrying", "op", op, "attempt", attempt, "delay", delay)
		}),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
