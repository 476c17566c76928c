package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/gmail-notifier/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SaveSnapshot writes every snapshot key in one transaction so readers
// never observe a half-published state.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap model.Snapshot) error {
	threads := snap.Threads
	if threads == nil {
		threads = []model.EmailThread{}
	}
	notified := snap.NotifiedEmails
	if notified == nil {
		notified = []string{}
	}

	values := map[string]any{
		model.SnapshotKeyLoggedIn: snap.IsLoggedIn,
		model.SnapshotKeyEmail:    snap.Email,
		model.SnapshotKeyThreads:  threads,
		model.SnapshotKeyNotified: notified,
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO session_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing snapshot statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for key, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshaling %s: %w", key, err)
		}
		if _, err := stmt.ExecContext(ctx, key, string(raw), now); err != nil {
			return fmt.Errorf("writing %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads the last published snapshot. Keys that were never
// written keep their zero value.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context) (*model.Snapshot, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT key, value FROM session_state")
	if err != nil {
		return nil, fmt.Errorf("querying session state: %w", err)
	}
	defer rows.Close()

	snap := &model.Snapshot{
		Threads:        []model.EmailThread{},
		NotifiedEmails: []string{},
	}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning session state row: %w", err)
		}

		var target any
		switch key {
		case model.SnapshotKeyLoggedIn:
			target = &snap.IsLoggedIn
		case model.SnapshotKeyEmail:
			target = &snap.Email
		case model.SnapshotKeyThreads:
			target = &snap.Threads
		case model.SnapshotKeyNotified:
			target = &snap.NotifiedEmails
		default:
			continue
		}
		if err := json.Unmarshal([]byte(value), target); err != nil {
			return nil, fmt.Errorf("unmarshaling %s: %w", key, err)
		}
	}

	return snap, rows.Err()
}

// SnapshotUpdatedAt returns when the snapshot was last written, or the zero
// time when nothing has been published yet.
func (s *SQLiteStore) SnapshotUpdatedAt(ctx context.Context) (time.Time, error) {
	var updatedAt time.Time
	err := s.db.GetContext(ctx, &updatedAt,
		"SELECT updated_at FROM session_state ORDER BY updated_at DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading snapshot time: %w", err)
	}
	return updatedAt, nil
}

// ResetSession clears the published snapshot. Notification history is kept.
func (s *SQLiteStore) ResetSession(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM session_state"); err != nil {
		return fmt.Errorf("clearing session state: %w", err)
	}
	return nil
}

// CreateNotification inserts a new notification. An ID is generated when
// the caller leaves it empty.
func (s *SQLiteStore) CreateNotification(ctx context.Context, n model.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO notifications (id, thread_url, title, message, created_at)
		VALUES (:id, :thread_url, :title, :message, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

// RecentNotifications returns up to limit notifications, newest first.
func (s *SQLiteStore) RecentNotifications(ctx context.Context, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 20
	}

	const query = `
		SELECT id, thread_url, title, message, created_at
		FROM notifications
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`

	notifications := []model.Notification{}
	if err := s.db.SelectContext(ctx, &notifications, query, limit); err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	return notifications, nil
}
