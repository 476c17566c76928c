package notify

import (
	"context"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/gmail-notifier/internal/logging"
	"github.com/nhle/gmail-notifier/internal/metrics"
	"github.com/nhle/gmail-notifier/internal/model"
)

// NewThreadSource reports threads missing from every earlier snapshot.
type NewThreadSource interface {
	GetNewThreads() []model.EmailThread
	IsNotified(url string) bool
}

// Notifier raises one notification per cycle for the newest unseen thread.
type Notifier struct {
	src     NewThreadSource
	sink    Sink
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu   gosync.Mutex
	sent map[string]struct{}
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithLogger sets the notifier logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) { n.logger = l }
}

// WithMetrics counts raised notifications on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Notifier) { n.metrics = m }
}

// NewNotifier creates a Notifier that delivers to sink.
func NewNotifier(src NewThreadSource, sink Sink, opts ...Option) *Notifier {
	n := &Notifier{
		src:    src,
		sink:   sink,
		logger: logging.Discard(),
		now:    time.Now,
		sent:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Listen is a sync.Listener. Only the first new thread is announced so a
// burst of mail produces a single notification.
func (n *Notifier) Listen(ctx context.Context, _ []model.EmailThread) {
	fresh := n.src.GetNewThreads()
	if len(fresh) == 0 {
		return
	}
	thread := fresh[0]
	if n.src.IsNotified(thread.URL) {
		return
	}

	n.mu.Lock()
	if _, ok := n.sent[thread.URL]; ok {
		n.mu.Unlock()
		return
	}
	n.sent[thread.URL] = struct{}{}
	n.mu.Unlock()

	note := Build(thread, n.now())
	if err := n.sink.Send(ctx, note); err != nil {
		n.logger.Warn("delivering notification failed", logging.ThreadURL(thread.URL), logging.Err(err))
		return
	}
	n.metrics.IncNotifications()
}

// Build formats the notification for thread.
func Build(thread model.EmailThread, at time.Time) model.Notification {
	return model.Notification{
		ID:        uuid.New().String(),
		ThreadURL: thread.URL,
		Title:     thread.Title,
		Message:   fmt.Sprintf("From: %s <%s>\n%s", thread.Author.Name, thread.Author.Email, thread.Summary),
		CreatedAt: at.UTC(),
	}
}
