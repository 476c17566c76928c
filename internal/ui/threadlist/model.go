package threadlist

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/gmail-notifier/internal/keys"
	"github.com/nhle/gmail-notifier/internal/model"
	"github.com/nhle/gmail-notifier/internal/sync"
	"github.com/nhle/gmail-notifier/internal/theme"
)

// OpenThreadMsg is sent when the user opens a thread.
type OpenThreadMsg struct {
	URL string
}

// ActionMsg asks the parent to dispatch a command to the engine.
type ActionMsg struct {
	Command sync.Command
}

// OpenWebMsg asks the parent to show the web link of a thread.
type OpenWebMsg struct {
	URL string
}

// Model is the inbox thread list.
type Model struct {
	list     list.Model
	keys     *keys.KeyMap
	loggedIn bool
	width    int
	height   int
}

// New creates a new thread list model.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height)
	l.Title = "Inbox"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle
	l.SetStatusBarItemName("thread", "threads")

	return Model{
		list:   l,
		keys:   k,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// SetThreads replaces the list content. viewed reports threads already
// opened in this session.
func (m *Model) SetThreads(threads []model.EmailThread, viewed func(url string) bool) tea.Cmd {
	items := make([]list.Item, len(threads))
	for i, t := range threads {
		items[i] = ThreadItem{Thread: t, Viewed: viewed(t.URL)}
	}
	return m.list.SetItems(items)
}

// SetLoggedIn switches the empty state between "inbox zero" and "sign in".
func (m *Model) SetLoggedIn(v bool) {
	m.loggedIn = v
}

// Selected returns the thread under the cursor.
func (m Model) Selected() (model.EmailThread, bool) {
	item, ok := m.list.SelectedItem().(ThreadItem)
	if !ok {
		return model.EmailThread{}, false
	}
	return item.Thread, true
}

// URLs returns the url of every listed thread in display order.
func (m Model) URLs() []string {
	items := m.list.Items()
	urls := make([]string, 0, len(items))
	for _, it := range items {
		if ti, ok := it.(ThreadItem); ok {
			urls = append(urls, ti.Thread.URL)
		}
	}
	return urls
}

// Update handles messages for the thread list.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if cmd, handled := m.handleKeys(msg); handled {
			return m, cmd
		}
	}

	// Delegate to list model for navigation and other messages
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleKeys(msg tea.KeyMsg) (tea.Cmd, bool) {
	if key.Matches(msg, m.keys.MarkAllRead) {
		urls := m.URLs()
		if len(urls) == 0 {
			return nil, true
		}
		return emit(ActionMsg{Command: sync.Command{Cmd: sync.CmdMarkAllAsRead, URLs: urls}}), true
	}

	thread, ok := m.Selected()
	if !ok {
		return nil, false
	}

	var name string
	switch {
	case key.Matches(msg, m.keys.Select):
		return emit(OpenThreadMsg{URL: thread.URL}), true
	case key.Matches(msg, m.keys.OpenWeb):
		return emit(OpenWebMsg{URL: thread.URL}), true
	case key.Matches(msg, m.keys.Archive):
		name = sync.CmdArchive
	case key.Matches(msg, m.keys.Delete):
		name = sync.CmdDeleteMail
	case key.Matches(msg, m.keys.Spam):
		name = sync.CmdMarkAsSpam
	case key.Matches(msg, m.keys.MarkRead):
		name = sync.CmdMarkAsRead
	case key.Matches(msg, m.keys.MarkUnread):
		name = sync.CmdMarkAsUnread
	case key.Matches(msg, m.keys.Star):
		name = sync.CmdStar
	default:
		return nil, false
	}
	return emit(ActionMsg{Command: sync.Command{Cmd: name, URL: thread.URL}}), true
}

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

// View renders the thread list.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}
	return m.list.View()
}

// renderEmptyState shows guidance text when the list is empty.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if !m.loggedIn {
		return style.Render(
			"Not signed in to Gmail.\n\n" +
				"Run 'gmailnotifier login' and press r to retry.",
		)
	}
	return style.Render("No unread mail.")
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
}
