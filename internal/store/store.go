package store

import (
	"context"
	"time"

	"github.com/nhle/gmail-notifier/internal/model"
)

// SnapshotStore publishes and hydrates the engine's session snapshot.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap model.Snapshot) error
	LoadSnapshot(ctx context.Context) (*model.Snapshot, error)
}

// NotificationStore keeps the history of raised new-mail notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n model.Notification) error
	RecentNotifications(ctx context.Context, limit int) ([]model.Notification, error)
}

// Store defines the persistence interface for the session snapshot and
// notification history.
type Store interface {
	SnapshotStore
	NotificationStore

	SnapshotUpdatedAt(ctx context.Context) (time.Time, error)
	ResetSession(ctx context.Context) error
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
