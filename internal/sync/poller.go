package sync

import (
	"context"
	"log/slog"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/gmail-notifier/internal/gateway"
	"github.com/nhle/gmail-notifier/internal/logging"
)

// SyncState represents the current state of the poll loop.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	default:
		return "idle"
	}
}

// SyncStatus holds the outcome of the most recent cycle.
type SyncStatus struct {
	State    SyncState
	LastSync time.Time
	Error    error
}

// SyncResultMsg is a tea.Msg sent when a cycle completes.
type SyncResultMsg struct {
	Error     error
	AuthError *AuthErrorMsg
	LoggedIn  bool
}

// AuthErrorMsg is a tea.Msg sent when Gmail rejects the session.
type AuthErrorMsg struct {
	Message string
}

// cycleTimeout is the maximum time allowed for a single fetch cycle.
const cycleTimeout = 2 * time.Minute

const defaultPollInterval = 30 * time.Second

// Fetcher is the part of the engine the poller drives.
type Fetcher interface {
	FetchThreads(ctx context.Context, force bool) error
	Refresh(ctx context.Context) error
	IsLoggedIn() bool
}

// Poller runs fetch cycles on a fixed interval and on demand. A failed
// cycle is logged and reported; the loop keeps going.
type Poller struct {
	fetcher  Fetcher
	interval time.Duration
	logger   *slog.Logger

	resultCh  chan SyncResultMsg
	triggerCh chan bool
	quit      chan struct{}
	quitOnce  gosync.Once

	mu      gosync.Mutex
	status  SyncStatus
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPoller creates a Poller for f. A non-positive interval means 30s.
func NewPoller(f Fetcher, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Poller{
		fetcher:   f,
		interval:  interval,
		logger:    logging.WithOperation(logger, "poll"),
		resultCh:  make(chan SyncResultMsg, 16),
		triggerCh: make(chan bool, 16),
		quit:      make(chan struct{}),
	}
}

// Start returns a tea.Cmd that starts the polling goroutine and waits for
// its first result.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.running = true
	p.cancel = cancel
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	go func() {
		defer close(done)
		p.loop(ctx)
	}()

	return p.waitForResult()
}

// Stop halts the polling goroutine and waits for the cycle in flight.
// Pending WaitForNextResult commands return nil once Stop is called.
func (p *Poller) Stop() {
	p.quitOnce.Do(func() { close(p.quit) })

	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done
}

// Run polls until ctx is done. It is the headless counterpart of Start.
func (p *Poller) Run(ctx context.Context) error {
	p.loop(ctx)
	return ctx.Err()
}

// RunOnce performs a single cycle and returns its error.
func (p *Poller) RunOnce(ctx context.Context) error {
	return p.poll(ctx, false).Error
}

// Trigger requests an immediate cycle. With force the engine drops viewed
// threads and refetches everything.
func (p *Poller) Trigger(force bool) {
	select {
	case p.triggerCh <- force:
	default:
		// Channel full; a cycle is already pending.
	}
}

// Status returns the outcome of the most recent cycle.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) loop(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Do an initial fetch immediately.
	p.sendResult(p.poll(ctx, false))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sendResult(p.poll(ctx, false))
		case force := <-p.triggerCh:
			p.sendResult(p.poll(ctx, force))
		}
	}
}

func (p *Poller) poll(parent context.Context, force bool) SyncResultMsg {
	p.setStatus(SyncRunning, nil)

	ctx, cancel := context.WithTimeout(parent, cycleTimeout)
	defer cancel()

	start := time.Now()
	var err error
	if force {
		err = p.fetcher.Refresh(ctx)
	} else {
		err = p.fetcher.FetchThreads(ctx, false)
	}

	if err != nil {
		p.setStatus(SyncError, err)

		if gateway.IsAuthError(err) {
			p.logger.Warn("gmail session rejected", logging.Err(err))
			return SyncResultMsg{
				Error: err,
				AuthError: &AuthErrorMsg{
					Message: "Gmail session expired. Run 'gmailnotifier login' to sign in again.",
				},
			}
		}

		p.logger.Error("fetch cycle failed", logging.Err(err), logging.Duration(time.Since(start)))
		return SyncResultMsg{Error: err}
	}

	p.setStatus(SyncIdle, nil)
	p.logger.Debug("fetch cycle done", logging.Duration(time.Since(start)), slog.Bool("force", force))
	return SyncResultMsg{LoggedIn: p.fetcher.IsLoggedIn()}
}

func (p *Poller) setStatus(state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state == SyncIdle {
		p.status.LastSync = time.Now()
	}
}

// sendResult sends a SyncResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg SyncResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		select {
		case result := <-p.resultCh:
			return result
		case <-p.quit:
			return nil
		}
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next sync result.
// Call it after handling a SyncResultMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}

// Results exposes cycle outcomes to headless hosts.
func (p *Poller) Results() <-chan SyncResultMsg {
	return p.resultCh
}
