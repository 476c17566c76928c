package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	gosync "sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nhle/gmail-notifier/internal/extract"
	"github.com/nhle/gmail-notifier/internal/logging"
	"github.com/nhle/gmail-notifier/internal/metrics"
	"github.com/nhle/gmail-notifier/internal/model"
	"github.com/nhle/gmail-notifier/internal/store"
)

// Gateway is the remote Gmail surface the engine reconciles against.
// Mutations succeed once Gmail accepts the request; the next fetch cycle
// is the source of truth for their effect.
type Gateway interface {
	CheckLoginStatus(ctx context.Context) (bool, error)
	GetFeed(ctx context.Context) (string, error)
	GetThreadDetail(ctx context.Context, threadURL string) (string, error)

	MarkRead(ctx context.Context, threadURL string) error
	MarkUnread(ctx context.Context, threadURL string) error
	Archive(ctx context.Context, threadURL string) error
	Delete(ctx context.Context, threadURL string) error
	MarkSpam(ctx context.Context, threadURL string) error
	Star(ctx context.Context, threadURL string) error
	Unstar(ctx context.Context, threadURL string) error
}

const (
	defaultEffectTimeout = 30 * time.Second

	// detailConcurrency caps parallel thread detail requests per cycle.
	detailConcurrency = 6
)

// Option configures an Engine.
type Option func(*Engine)

// WithStore publishes a snapshot to s after every change.
func WithStore(s store.SnapshotStore) Option {
	return func(e *Engine) { e.store = s }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithConnectivity sets the probe consulted before each fetch cycle.
func WithConnectivity(online func() bool) Option {
	return func(e *Engine) { e.online = online }
}

// WithMetrics records cycle and mutation metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithEffectTimeout bounds each background mutation and the corrective
// fetch that follows a failed one.
func WithEffectTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.effectTimeout = d
		}
	}
}

// WithLocation sets the zone thread timestamps are read in.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// Engine owns the canonical thread list and reconciles it with Gmail.
// All state is guarded by mu; listeners receive copies.
type Engine struct {
	gw            Gateway
	store         store.SnapshotStore
	logger        *slog.Logger
	metrics       *metrics.Metrics
	online        func() bool
	effectTimeout time.Duration
	loc           *time.Location

	mu         gosync.Mutex
	isLoggedIn bool
	email      string
	threads    []model.EmailThread
	notified   map[string]struct{}
	viewed     map[string]struct{}

	// notifyMu serializes notify so listeners never run concurrently.
	notifyMu  gosync.Mutex
	listeners listenerRegistry

	// effectMu guards the queue of background mutations. A single drainer
	// runs them in call order.
	effectMu gosync.Mutex
	queue    []queuedEffect
	draining bool
	effects  gosync.WaitGroup
}

// NewEngine creates an Engine in the logged-out state with an empty thread list.
func NewEngine(gw Gateway, opts ...Option) *Engine {
	e := &Engine{
		gw:            gw,
		logger:        logging.Discard(),
		online:        func() bool { return true },
		effectTimeout: defaultEffectTimeout,
		loc:           time.Local,
		threads:       []model.EmailThread{},
		notified:      make(map[string]struct{}),
		viewed:        make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FetchThreads runs one reconciliation cycle. Gateway and extraction errors
// are returned to the caller and leave the thread list untouched. With force
// every thread is fetched again.
func (e *Engine) FetchThreads(ctx context.Context, force bool) error {
	start := time.Now()
	result, err := e.fetchThreads(ctx, force)
	e.metrics.ObserveCycle(result, time.Since(start))
	return err
}

func (e *Engine) fetchThreads(ctx context.Context, force bool) (string, error) {
	if !e.online() {
		e.logger.Debug("offline, skipping fetch cycle")
		return metrics.CycleOffline, nil
	}

	loggedIn, err := e.gw.CheckLoginStatus(ctx)
	if err != nil {
		return metrics.CycleError, fmt.Errorf("checking login status: %w", err)
	}
	if !loggedIn {
		e.mu.Lock()
		e.isLoggedIn = false
		e.mu.Unlock()
		e.notify(ctx)
		return metrics.CycleLoggedOut, nil
	}

	raw, err := e.gw.GetFeed(ctx)
	if err != nil {
		return metrics.CycleError, fmt.Errorf("fetching feed: %w", err)
	}
	feed, err := extract.ExtractFeed(raw)
	if err != nil {
		return metrics.CycleError, fmt.Errorf("parsing feed: %w", err)
	}

	e.mu.Lock()
	e.isLoggedIn = true
	e.email = feed.Email
	retained := e.retainedLocked(feed.Entries, force)
	e.mu.Unlock()

	fresh, err := e.fetchDetails(ctx, newEntries(feed.Entries, retained))
	if err != nil {
		return metrics.CycleError, err
	}
	e.metrics.AddDetailsFetched(len(fresh))

	merged := mergeThreads(retained, fresh)

	e.mu.Lock()
	e.threads = merged
	e.mu.Unlock()

	e.logger.Debug("fetch cycle complete",
		logging.Account(feed.Email),
		slog.Int("threads", len(merged)),
		slog.Int("fetched", len(fresh)),
		slog.Bool("force", force),
	)
	e.notify(ctx)
	return metrics.CycleOK, nil
}

// retainedLocked keeps threads the user has viewed, since the feed omits read
// mail, and threads whose feed entry is unchanged. Callers hold mu.
func (e *Engine) retainedLocked(entries []model.FeedEntry, force bool) []model.EmailThread {
	if force {
		return nil
	}
	modified := make(map[string]string, len(entries))
	for _, entry := range entries {
		modified[entry.URL] = entry.ModifiedAt
	}

	var retained []model.EmailThread
	for _, t := range e.threads {
		_, viewed := e.viewed[t.URL]
		if m, ok := modified[t.URL]; viewed || (ok && m == t.ModifiedAt) {
			retained = append(retained, t)
		}
	}
	return retained
}

// newEntries returns feed entries with no retained thread, once per url.
func newEntries(entries []model.FeedEntry, retained []model.EmailThread) []model.FeedEntry {
	seen := make(map[string]struct{}, len(retained)+len(entries))
	for _, t := range retained {
		seen[t.URL] = struct{}{}
	}

	var out []model.FeedEntry
	for _, entry := range entries {
		if _, ok := seen[entry.URL]; ok {
			continue
		}
		seen[entry.URL] = struct{}{}
		out = append(out, entry)
	}
	return out
}

// fetchDetails loads every entry's thread concurrently. One failure fails
// the whole batch.
func (e *Engine) fetchDetails(ctx context.Context, entries []model.FeedEntry) ([]model.EmailThread, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	threads := make([]model.EmailThread, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailConcurrency)

	for i, entry := range entries {
		g.Go(func() error {
			raw, err := e.gw.GetThreadDetail(gctx, entry.URL)
			if err != nil {
				return fmt.Errorf("fetching thread %s: %w", entry.URL, err)
			}
			base, err := extract.MailboxBase(entry.URL)
			if err != nil {
				return err
			}
			detail, err := extract.ExtractThreadIn(raw, base, e.loc)
			if err != nil {
				return fmt.Errorf("parsing thread %s: %w", entry.URL, err)
			}
			threads[i] = model.NewEmailThread(entry, detail)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return threads, nil
}

// mergeThreads dedupes by url, first occurrence winning, and sorts by
// ModifiedAt descending. ISO-8601 UTC strings sort chronologically.
func mergeThreads(retained, fresh []model.EmailThread) []model.EmailThread {
	merged := make([]model.EmailThread, 0, len(retained)+len(fresh))
	seen := make(map[string]struct{}, cap(merged))
	for _, list := range [][]model.EmailThread{retained, fresh} {
		for _, t := range list {
			if _, ok := seen[t.URL]; ok {
				continue
			}
			seen[t.URL] = struct{}{}
			merged = append(merged, t)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].ModifiedAt > merged[j].ModifiedAt
	})
	return merged
}

// notify publishes the snapshot, runs listeners in registration order and
// then marks every delivered thread as notified.
func (e *Engine) notify(ctx context.Context) {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()

	e.mu.Lock()
	threads := cloneThreads(e.threads)
	snap := model.Snapshot{
		IsLoggedIn:     e.isLoggedIn,
		Email:          e.email,
		Threads:        threads,
		NotifiedEmails: sortedKeys(e.notified),
	}
	unread := 0
	for _, t := range threads {
		if _, ok := e.viewed[t.URL]; !ok {
			unread++
		}
	}
	e.mu.Unlock()

	e.metrics.SetThreads(len(threads), unread)

	if e.store != nil {
		if err := e.store.SaveSnapshot(ctx, snap); err != nil {
			e.logger.Warn("publishing snapshot failed", logging.Err(err))
		}
	}

	for _, l := range e.listeners.snapshot() {
		l.fn(ctx, cloneThreads(threads))
	}

	e.mu.Lock()
	for _, t := range threads {
		e.notified[t.URL] = struct{}{}
	}
	e.mu.Unlock()
}

// Threads returns a copy of the current thread list.
func (e *Engine) Threads() []model.EmailThread {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneThreads(e.threads)
}

// Thread returns the thread with the given url.
func (e *Engine) Thread(url string) (model.EmailThread, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.threads {
		if t.URL == url {
			return t, true
		}
	}
	return model.EmailThread{}, false
}

// IsLoggedIn reports the login state seen by the last cycle.
func (e *Engine) IsLoggedIn() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isLoggedIn
}

// Email returns the account address read from the last feed.
func (e *Engine) Email() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.email
}

// GetNewThreads returns threads not included in any earlier notify.
func (e *Engine) GetNewThreads() []model.EmailThread {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filterLocked(e.notified)
}

// GetUnreadThreads returns threads not viewed in this session.
func (e *Engine) GetUnreadThreads() []model.EmailThread {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filterLocked(e.viewed)
}

// IsNotified reports whether url was part of a delivered snapshot.
func (e *Engine) IsNotified(url string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.notified[url]
	return ok
}

// IsViewed reports whether url was opened in this session.
func (e *Engine) IsViewed(url string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.viewed[url]
	return ok
}

func (e *Engine) filterLocked(exclude map[string]struct{}) []model.EmailThread {
	out := []model.EmailThread{}
	for _, t := range e.threads {
		if _, ok := exclude[t.URL]; !ok {
			out = append(out, t)
		}
	}
	return out
}

func cloneThreads(threads []model.EmailThread) []model.EmailThread {
	out := make([]model.EmailThread, len(threads))
	copy(out, threads)
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
