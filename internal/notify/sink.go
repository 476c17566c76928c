package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nhle/gmail-notifier/internal/logging"
	"github.com/nhle/gmail-notifier/internal/model"
	"github.com/nhle/gmail-notifier/internal/store"
)

// Sink delivers a notification somewhere the user will see it.
type Sink interface {
	Send(ctx context.Context, n model.Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n model.Notification) error

// Send calls f.
func (f SinkFunc) Send(ctx context.Context, n model.Notification) error {
	return f(ctx, n)
}

// LogSink writes notifications to a logger.
type LogSink struct {
	Logger *slog.Logger
}

// Send logs n at info level.
func (s LogSink) Send(_ context.Context, n model.Notification) error {
	s.Logger.Info("new mail",
		slog.String("id", n.ID),
		logging.ThreadURL(n.ThreadURL),
		slog.String("title", n.Title),
		slog.String("message", n.Message),
	)
	return nil
}

// StoreSink records notifications in the notification history.
type StoreSink struct {
	Store store.NotificationStore
}

// Send inserts n.
func (s StoreSink) Send(ctx context.Context, n model.Notification) error {
	if err := s.Store.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("recording notification: %w", err)
	}
	return nil
}

// MultiSink fans a notification out to every sink, in order. All sinks are
// tried even when one fails.
type MultiSink []Sink

// Send delivers n to each sink and joins their errors.
func (m MultiSink) Send(ctx context.Context, n model.Notification) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
