package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/gmail-notifier/internal/extract"
	"github.com/nhle/gmail-notifier/internal/keys"
	"github.com/nhle/gmail-notifier/internal/logging"
	"github.com/nhle/gmail-notifier/internal/model"
	"github.com/nhle/gmail-notifier/internal/notify"
	"github.com/nhle/gmail-notifier/internal/sync"
	"github.com/nhle/gmail-notifier/internal/ui"
	"github.com/nhle/gmail-notifier/internal/ui/command"
	configview "github.com/nhle/gmail-notifier/internal/ui/config"
	helpview "github.com/nhle/gmail-notifier/internal/ui/help"
	"github.com/nhle/gmail-notifier/internal/ui/thread"
	"github.com/nhle/gmail-notifier/internal/ui/threadlist"
)

// Engine is the part of sync.Engine the TUI drives.
type Engine interface {
	Thread(url string) (model.EmailThread, bool)
	IsLoggedIn() bool
	Email() string
	IsViewed(url string) bool
	GetNewThreads() []model.EmailThread
	GetUnreadThreads() []model.EmailThread
	IsNotified(url string) bool
	Dispatch(ctx context.Context, c sync.Command) error
	Viewed(ctx context.Context, url string)
	ClearViewed(ctx context.Context)
	On(fn sync.Listener) sync.Handle
	Off(h sync.Handle) bool
}

// ThreadsMsg carries the thread list published by the engine.
type ThreadsMsg struct {
	Threads []model.EmailThread
}

// BadgeMsg carries the unread badge label.
type BadgeMsg struct {
	Label string
}

// NotificationMsg shows a new-mail banner.
type NotificationMsg struct {
	Notification model.Notification
}

type clearBannerMsg struct {
	seq int
}

type errMsg struct {
	err error
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewThread
	ViewHelp
	ViewCommand
	ViewConfig
)

// Options configures the root model.
type Options struct {
	// MailboxURL is opened by the open-gmail command.
	MailboxURL string

	// NotificationTimeout is how long a banner stays up. Zero means 10s.
	NotificationTimeout time.Duration

	// Open shows url in a browser. Nil only displays the link.
	Open func(url string) error

	// Config is shown and edited in the settings view.
	Config model.AppConfig

	// Save and Check back the settings view. Nil Save makes it read-only.
	Save  configview.Saver
	Check configview.Checker

	Logger *slog.Logger
}

// Model is the root Bubble Tea model that manages view routing,
// layout, and access to the engine.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	engine       Engine
	poller       *sync.Poller
	keys         *keys.KeyMap
	threadList   threadlist.Model
	threadView   thread.Model
	helpView     helpview.Model
	commandView  command.Model
	configView   configview.Model
	opts         Options
	logger       *slog.Logger

	ready            bool
	badge            string
	banner           string
	bannerErr        bool
	bannerSeq        int
	authErrorMessage string
}

// New creates the root application model.
func New(e Engine, p *sync.Poller, opts Options) Model {
	k := keys.DefaultKeyMap()
	if opts.NotificationTimeout <= 0 {
		opts.NotificationTimeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return Model{
		currentView: ViewList,
		engine:      e,
		poller:      p,
		keys:        k,
		threadList:  threadlist.New(k, 80, 24),
		threadView:  thread.New(k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
		configView:  configview.New(opts.Config, opts.Save, opts.Check, k, 80, 24),
		opts:        opts,
		logger:      logging.WithOperation(logger, "tui"),
	}
}

// Run starts the TUI and blocks until it exits. Engine changes reach the
// program through listeners registered for the lifetime of the run. New
// mail is delivered to sink as well as shown as a banner.
func Run(m Model, sink notify.Sink, opts ...tea.ProgramOption) error {
	p := tea.NewProgram(m, opts...)

	sinks := notify.MultiSink{notify.SinkFunc(func(_ context.Context, n model.Notification) error {
		p.Send(NotificationMsg{Notification: n})
		return nil
	})}
	if sink != nil {
		sinks = append(sinks, sink)
	}
	notifier := notify.NewNotifier(m.engine, sinks, notify.WithLogger(m.logger))

	handles := []sync.Handle{
		m.engine.On(func(_ context.Context, threads []model.EmailThread) {
			p.Send(ThreadsMsg{Threads: threads})
		}),
		m.engine.On(notify.BadgeListener(m.engine, func(label string) {
			p.Send(BadgeMsg{Label: label})
		})),
		m.engine.On(notifier.Listen),
	}

	_, err := p.Run()

	for _, h := range handles {
		m.engine.Off(h)
	}
	m.poller.Stop()
	m.engine.ClearViewed(context.Background())

	if err != nil {
		return fmt.Errorf("running tui: %w", err)
	}
	return nil
}

// Init starts polling.
func (m Model) Init() tea.Cmd {
	return m.poller.Start()
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.resize()
		return m.updateActiveView(msg)

	case ThreadsMsg:
		cmd := m.threadList.SetThreads(msg.Threads, m.engine.IsViewed)
		m.threadList.SetLoggedIn(m.engine.IsLoggedIn())
		if open, ok := m.threadView.Thread(); ok && m.currentView == ViewThread && !containsURL(msg.Threads, open.URL) {
			m.threadView.Close()
			m.currentView = ViewList
		}
		return m, cmd

	case BadgeMsg:
		m.badge = msg.Label
		return m, nil

	case NotificationMsg:
		n := msg.Notification
		return m, m.showBanner("New mail: "+n.Title+" · "+firstLine(n.Message), false)

	case clearBannerMsg:
		if msg.seq == m.bannerSeq {
			m.banner = ""
			m.bannerErr = false
			m.resize()
		}
		return m, nil

	case errMsg:
		return m, m.showBanner(msg.err.Error(), true)

	case sync.SyncResultMsg:
		if msg.AuthError != nil {
			m.authErrorMessage = msg.AuthError.Message
		} else if msg.Error == nil {
			m.authErrorMessage = ""
		}
		m.threadList.SetLoggedIn(msg.LoggedIn)
		return m, m.poller.WaitForNextResult()

	case threadlist.OpenThreadMsg:
		t, ok := m.engine.Thread(msg.URL)
		if !ok {
			return m, nil
		}
		m.previousView = m.currentView
		m.currentView = ViewThread
		m.threadView.SetThread(t, m.engine.Email())
		return m, m.markViewed(msg.URL)

	case threadlist.ActionMsg:
		return m, m.dispatch(msg.Command)

	case threadlist.OpenWebMsg:
		link := extract.OpenWebLink(msg.URL)
		if m.opts.Open == nil {
			return m, m.showBanner("Open in browser: "+link, false)
		}
		return m, m.open(link)

	case configview.ConfigDoneMsg:
		m.currentView = ViewList
		return m, nil

	case configview.ConfigSavedMsg:
		m.opts.Config = msg.Config
		return m, m.showBanner("Settings saved. Restart to apply them.", false)

	case thread.BackMsg:
		m.threadView.Close()
		m.currentView = ViewList
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		cmd, err := m.executeCommand(msg)
		if err != nil {
			return m, m.showBanner(err.Error(), true)
		}
		return m, cmd

	case MenuMsg:
		cmd, err := m.menu(msg.ID)
		if err != nil {
			return m, m.showBanner(err.Error(), true)
		}
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.currentView == ViewList {
				return m, tea.Quit
			}

		case "?":
			// Do not intercept while a text input has focus
			if m.currentView == ViewCommand || m.currentView == ViewConfig {
				break
			}
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case ":":
			if m.currentView == ViewConfig {
				break
			}
			if m.currentView == ViewCommand {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewCommand
			return m, m.commandView.Focus()

		case "esc":
			if m.currentView == ViewHelp || m.currentView == ViewCommand {
				m.currentView = m.previousView
				return m, nil
			}

		case "r":
			if m.currentView == ViewList {
				m.poller.Trigger(true)
				return m, nil
			}

		case "c":
			if m.currentView == ViewList {
				m.previousView = m.currentView
				m.currentView = ViewConfig
				m.configView.Open()
				return m, m.configView.Init()
			}
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.threadList, cmd = m.threadList.Update(msg)
	case ViewThread:
		m.threadView, cmd = m.threadView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewConfig:
		m.configView, cmd = m.configView.Update(msg)
	}

	return m, cmd
}

func (m *Model) resize() {
	if !m.ready {
		return
	}
	w, h := m.layout.Width, m.layout.ContentHeight(m.banner != "")
	m.threadList.SetSize(w, h)
	m.threadView.SetSize(w, h)
	m.helpView.SetSize(w, h)
	m.commandView.SetSize(w, h)
	m.configView.SetSize(w, h)
}

// showBanner displays text until the notification timeout clears it. A
// newer banner cancels the pending clear of an older one.
func (m *Model) showBanner(text string, isErr bool) tea.Cmd {
	m.bannerSeq++
	m.banner = text
	m.bannerErr = isErr
	m.resize()

	seq := m.bannerSeq
	return tea.Tick(m.opts.NotificationTimeout, func(time.Time) tea.Msg {
		return clearBannerMsg{seq: seq}
	})
}

// Engine calls that notify listeners run inside commands. Running them in
// Update would block on Program.Send while the event loop waits.

func (m Model) markViewed(url string) tea.Cmd {
	e := m.engine
	return func() tea.Msg {
		e.Viewed(context.Background(), url)
		return nil
	}
}

func (m Model) dispatch(c sync.Command) tea.Cmd {
	e, logger := m.engine, m.logger
	return func() tea.Msg {
		if err := e.Dispatch(context.Background(), c); err != nil {
			logger.Warn("command rejected", logging.Command(c.Cmd), logging.Err(err))
			return errMsg{err: err}
		}
		return nil
	}
}

func (m Model) open(url string) tea.Cmd {
	open := m.opts.Open
	return func() tea.Msg {
		if err := open(url); err != nil {
			return errMsg{err: fmt.Errorf("opening %s: %w", url, err)}
		}
		return nil
	}
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Gmail", m.engine.Email(), m.badge, m.syncStatus())
	var banner string
	if m.banner != "" {
		banner = m.layout.RenderBanner(m.banner)
		if m.bannerErr {
			banner = m.layout.RenderError(m.banner)
		}
	}
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, banner, m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewList:
		return m.threadList.View()
	case ViewThread:
		return m.threadView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewConfig:
		return m.configView.View()
	default:
		return ""
	}
}

// syncStatus returns a short string describing the poll state.
func (m Model) syncStatus() string {
	status := m.poller.Status()
	switch status.State {
	case sync.SyncRunning:
		return "syncing"
	case sync.SyncError:
		return "⚠ unreachable"
	}
	if status.LastSync.IsZero() {
		return "idle"
	}
	return "synced " + status.LastSync.Format("15:04")
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	// Show auth error prominently when present.
	if m.authErrorMessage != "" && m.currentView == ViewList {
		return m.authErrorMessage
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return ": close command | enter execute | esc back"
	case ViewConfig:
		return "e edit | enter test session | esc back"
	case ViewThread:
		return "esc back | space toggle | g expand | t toggle all | R reply-to | a archive | o web"
	default:
		return "q quit | ? help | enter open | a archive | d delete | m read | A read all | r refresh | c settings"
	}
}

func containsURL(threads []model.EmailThread, url string) bool {
	for _, t := range threads {
		if t.URL == url {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
