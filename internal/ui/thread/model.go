package thread

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/gmail-notifier/internal/collapse"
	"github.com/nhle/gmail-notifier/internal/extract"
	"github.com/nhle/gmail-notifier/internal/keys"
	"github.com/nhle/gmail-notifier/internal/model"
	"github.com/nhle/gmail-notifier/internal/sync"
	"github.com/nhle/gmail-notifier/internal/theme"
	"github.com/nhle/gmail-notifier/internal/ui/threadlist"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// slot is one addressable line group in the view: a message, or the
// placeholder standing in for the collapsed middle of the thread.
type slot struct {
	index int
	group bool
}

// Model is the open-thread view. Which messages show their body is decided
// by a collapse.State that lives as long as the view.
type Model struct {
	thread   *model.EmailThread
	state    *collapse.State
	cursor   int
	notice   string
	me       string
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a new thread view model.
func New(k *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height)
	vp.Style = lipgloss.NewStyle()

	return Model{
		state:    collapse.New(0),
		viewport: vp,
		keys:     k,
		width:    width,
		height:   height,
	}
}

// SetThread shows t with a fresh collapse state. me is the account address,
// used to pick the reply-to contact.
func (m *Model) SetThread(t model.EmailThread, me string) {
	m.thread = &t
	m.me = me
	m.state = collapse.New(len(t.Messages))
	m.cursor = len(m.slots()) - 1
	m.notice = ""
	m.refresh()
	m.viewport.GotoBottom()
}

// Thread returns the thread on display.
func (m Model) Thread() (model.EmailThread, bool) {
	if m.thread == nil {
		return model.EmailThread{}, false
	}
	return *m.thread, true
}

// Close discards the thread and its collapse state.
func (m *Model) Close() {
	m.thread = nil
	m.state = collapse.New(0)
	m.cursor = 0
	m.notice = ""
}

// Init returns the initial command for the thread view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the thread view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok || m.thread == nil {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(keyMsg, m.keys.Back):
		return m, func() tea.Msg { return BackMsg{} }

	case key.Matches(keyMsg, m.keys.Down):
		if m.cursor < len(m.slots())-1 {
			m.cursor++
		}
		m.refresh()
		return m, nil

	case key.Matches(keyMsg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		m.refresh()
		return m, nil

	case key.Matches(keyMsg, m.keys.ToggleMessage):
		slots := m.slots()
		if m.cursor < len(slots) {
			s := slots[m.cursor]
			if s.group {
				m.state.ExpandGroup()
			} else {
				m.state.ToggleContent(s.index)
			}
		}
		m.clampCursor()
		m.refresh()
		return m, nil

	case key.Matches(keyMsg, m.keys.ExpandGroup):
		m.state.ExpandGroup()
		m.clampCursor()
		m.refresh()
		return m, nil

	case key.Matches(keyMsg, m.keys.ToggleAll):
		m.state.ToggleAll()
		m.clampCursor()
		m.refresh()
		return m, nil

	case key.Matches(keyMsg, m.keys.ReplyTo):
		if c, ok := extract.ParseReplyTo(m.thread.ThreadDetail, m.me); ok {
			m.notice = fmt.Sprintf("Reply to: %s <%s>", c.Name, c.Email)
		} else {
			m.notice = "Every message in this thread is from you."
		}
		m.refresh()
		return m, nil

	case key.Matches(keyMsg, m.keys.OpenWeb):
		url := m.thread.URL
		return m, func() tea.Msg { return threadlist.OpenWebMsg{URL: url} }

	case key.Matches(keyMsg, m.keys.Archive):
		return m, m.action(sync.CmdArchive)
	case key.Matches(keyMsg, m.keys.Delete):
		return m, m.action(sync.CmdDeleteMail)
	case key.Matches(keyMsg, m.keys.Spam):
		return m, m.action(sync.CmdMarkAsSpam)
	case key.Matches(keyMsg, m.keys.MarkUnread):
		return m, m.action(sync.CmdMarkAsUnread)
	}

	// Delegate to viewport for scrolling (pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) action(name string) tea.Cmd {
	url := m.thread.URL
	return tea.Sequence(
		func() tea.Msg { return threadlist.ActionMsg{Command: sync.Command{Cmd: name, URL: url}} },
		func() tea.Msg { return BackMsg{} },
	)
}

// slots lists what is rendered, in order. A collapsed group occupies one
// slot at its first hidden index.
func (m Model) slots() []slot {
	if m.thread == nil {
		return nil
	}
	first := m.state.FirstHidden()
	var out []slot
	for i := range m.thread.Messages {
		if m.state.GroupCollapsed(i) {
			if i == first {
				out = append(out, slot{index: i, group: true})
			}
			continue
		}
		out = append(out, slot{index: i})
	}
	return out
}

func (m *Model) clampCursor() {
	if n := len(m.slots()); m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderContent())
}

// View renders the thread view.
func (m Model) View() string {
	if m.thread == nil {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No thread selected")
	}
	return m.viewport.View()
}

// renderContent builds the full thread content string for the viewport.
func (m Model) renderContent() string {
	if m.thread == nil {
		return ""
	}
	t := m.thread

	subject := t.Subject
	if subject == "" {
		subject = t.Title
	}
	sections := []string{
		lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render(subject),
	}
	if t.MessageCount > len(t.Messages) {
		sections = append(sections, theme.TimeStyle.Render(
			fmt.Sprintf("%d messages, %d shown", t.MessageCount, len(t.Messages)),
		))
	}
	if m.notice != "" {
		sections = append(sections, theme.HelpStyle.Render(m.notice))
	}
	sections = append(sections, "")

	for pos, s := range m.slots() {
		var block string
		if s.group {
			block = theme.CollapsedGroupStyle.Render(
				fmt.Sprintf("%d more messages", m.state.GroupSize()),
			)
		} else {
			block = m.renderMessage(t.Messages[s.index], m.state.ContentCollapsed(s.index))
		}

		if pos == m.cursor {
			block = theme.SelectedMessageStyle.Render(block)
		} else {
			block = theme.MessageStyle.Render(block)
		}
		sections = append(sections, block, "")
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderMessage(msg model.Message, collapsed bool) string {
	width := max(m.width-6, 20)

	header := theme.SenderStyle.Render(senderLabel(msg)) + "  " +
		theme.TimeStyle.Render(formatTime(msg.Time))

	if collapsed {
		return header + "\n" + theme.DimmedStyle.Render(firstLine(msg.ContentText, width))
	}

	lines := []string{header}
	if len(msg.To) > 0 {
		lines = append(lines, theme.TimeStyle.Render("to "+strings.Join(msg.To, ", ")))
	}
	if len(msg.Cc) > 0 {
		lines = append(lines, theme.TimeStyle.Render("cc "+strings.Join(msg.Cc, ", ")))
	}
	lines = append(lines, "", lipgloss.NewStyle().Width(width).Render(msg.ContentText))
	for _, a := range msg.Attachments {
		lines = append(lines, theme.AttachmentStyle.Render("📎 "+a.FileName))
	}
	return strings.Join(lines, "\n")
}

func senderLabel(msg model.Message) string {
	switch {
	case msg.SenderName != "" && msg.SenderEmail != "":
		return fmt.Sprintf("%s <%s>", msg.SenderName, msg.SenderEmail)
	case msg.SenderName != "":
		return msg.SenderName
	default:
		return msg.SenderEmail
	}
}

func formatTime(iso string) string {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return ""
	}
	return t.Local().Format("Mon, Jan 2, 2006 3:04 PM")
}

// firstLine flattens whitespace and cuts the text to width.
func firstLine(text string, width int) string {
	line := strings.Join(strings.Fields(text), " ")
	runes := []rune(line)
	if len(runes) <= width {
		return line
	}
	return string(runes[:width-1]) + "…"
}

// SetSize updates the thread view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
	m.refresh()
}
