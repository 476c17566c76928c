package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/gmail-notifier/internal/model"
	"github.com/nhle/gmail-notifier/internal/store"
	"github.com/nhle/gmail-notifier/tests/testutil"
)

func sampleThread(url string) model.EmailThread {
	return model.NewEmailThread(
		model.FeedEntry{
			Title:      "Hello",
			Summary:    "first line",
			URL:        url,
			ModifiedAt: "2025-07-30T09:05:00.000Z",
			Author:     model.Author{Name: "Alice", Email: "alice@example.com"},
		},
		model.ThreadDetail{
			Subject:      "Hello",
			MessageCount: 1,
			Messages: []model.Message{{
				SenderName:  "Alice",
				SenderEmail: "alice@example.com",
				Time:        "2025-07-30T09:05:00.000Z",
				To:          []string{"me@example.com"},
				Cc:          []string{},
				ContentHTML: "<p>hi</p>",
				ContentText: "hi",
			}},
		},
	)
}

func TestLoadSnapshot_Empty(t *testing.T) {
	s := testutil.NewTestStore(t)

	snap, err := s.LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.IsLoggedIn)
	assert.Empty(t, snap.Email)
	assert.NotNil(t, snap.Threads)
	assert.Empty(t, snap.Threads)
	assert.NotNil(t, snap.NotifiedEmails)

	updated, err := s.SnapshotUpdatedAt(context.Background())
	require.NoError(t, err)
	assert.True(t, updated.IsZero())
}

func TestSaveSnapshot_RoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	want := model.Snapshot{
		IsLoggedIn:     true,
		Email:          "me@example.com",
		Threads:        []model.EmailThread{sampleThread("https://mail.google.com/mail/u/0?message_id=a")},
		NotifiedEmails: []string{"https://mail.google.com/mail/u/0?message_id=a"},
	}
	require.NoError(t, s.SaveSnapshot(ctx, want))

	got, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, *got)

	updated, err := s.SnapshotUpdatedAt(ctx)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), updated, time.Minute)
}

func TestSaveSnapshot_Overwrites(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSnapshot(ctx, model.Snapshot{
		IsLoggedIn: true,
		Email:      "me@example.com",
		Threads:    []model.EmailThread{sampleThread("u1"), sampleThread("u2")},
	}))
	require.NoError(t, s.SaveSnapshot(ctx, model.Snapshot{IsLoggedIn: false}))

	got, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.False(t, got.IsLoggedIn)
	assert.Empty(t, got.Email)
	assert.Empty(t, got.Threads)
}

func TestResetSession_KeepsNotifications(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSnapshot(ctx, model.Snapshot{IsLoggedIn: true, Email: "me@example.com"}))
	require.NoError(t, s.CreateNotification(ctx, model.Notification{ThreadURL: "u1", Message: "From: a"}))
	require.NoError(t, s.ResetSession(ctx))

	snap, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.False(t, snap.IsLoggedIn)

	notifications, err := s.RecentNotifications(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, notifications, 1)
}

func TestCreateNotification_AssignsID(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateNotification(ctx, model.Notification{
		ThreadURL: "u1",
		Title:     "Hello",
		Message:   "From: Alice <alice@example.com>\nfirst line",
	}))

	got, err := s.RecentNotifications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, "u1", got[0].ThreadURL)
	assert.Equal(t, "Hello", got[0].Title)
	assert.Equal(t, "From: Alice <alice@example.com>\nfirst line", got[0].Message)
	assert.False(t, got[0].CreatedAt.IsZero())
}

func TestRecentNotifications_NewestFirstAndLimit(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 7, 30, 9, 0, 0, 0, time.UTC)
	for i, url := range []string{"u1", "u2", "u3"} {
		require.NoError(t, s.CreateNotification(ctx, model.Notification{
			ThreadURL: url,
			Message:   url,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	got, err := s.RecentNotifications(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "u3", got[0].ThreadURL)
	assert.Equal(t, "u2", got[1].ThreadURL)
}

func TestNewSQLiteStore_ReopenSkipsAppliedMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveSnapshot(ctx, model.Snapshot{IsLoggedIn: true, Email: "me@example.com"}))
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	snap, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.IsLoggedIn)
	assert.Equal(t, "me@example.com", snap.Email)
}
