package app

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/gmail-notifier/internal/model"
	"github.com/nhle/gmail-notifier/internal/sync"
	"github.com/nhle/gmail-notifier/internal/ui/command"
	"github.com/nhle/gmail-notifier/internal/ui/thread"
)

// Menu item ids.
const (
	MenuOpenGmail = "open-gmail"
	MenuRefresh   = "refresh"
)

var (
	// ErrUnknownMenuItem is returned for a menu item or palette command
	// with no handler.
	ErrUnknownMenuItem = errors.New("unknown menu item")

	// ErrNoSelection is returned when a thread command has no thread to act on.
	ErrNoSelection = errors.New("no thread selected")
)

// threadCommands maps palette names to engine commands that act on the
// selected thread.
var threadCommands = map[string]string{
	"archive": sync.CmdArchive,
	"delete":  sync.CmdDeleteMail,
	"spam":    sync.CmdMarkAsSpam,
	"read":    sync.CmdMarkAsRead,
	"unread":  sync.CmdMarkAsUnread,
	"star":    sync.CmdStar,
	"unstar":  sync.CmdUnstar,
}

// MenuMsg selects a menu item by id.
type MenuMsg struct {
	ID string
}

// menu runs the menu item id.
func (m *Model) menu(id string) (tea.Cmd, error) {
	switch id {
	case MenuRefresh:
		m.poller.Trigger(true)
		return nil, nil
	case MenuOpenGmail:
		if m.opts.Open == nil {
			return m.showBanner("Open in browser: "+m.opts.MailboxURL, false), nil
		}
		return m.open(m.opts.MailboxURL), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMenuItem, id)
}

// executeCommand resolves a palette command.
func (m *Model) executeCommand(c command.CommandMsg) (tea.Cmd, error) {
	switch c.Name {
	case MenuRefresh, MenuOpenGmail:
		return m.menu(c.Name)
	case "sync":
		return m.menu(MenuRefresh)
	case "inbox":
		return m.menu(MenuOpenGmail)
	case "quit", "q":
		return tea.Quit, nil
	case "read-all":
		urls := m.threadList.URLs()
		if len(urls) == 0 {
			return nil, nil
		}
		return m.dispatch(sync.Command{Cmd: sync.CmdMarkAllAsRead, URLs: urls}), nil
	}

	name, ok := threadCommands[c.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMenuItem, c.Name)
	}
	t, ok := m.selected()
	if !ok {
		return nil, ErrNoSelection
	}

	cmd := m.dispatch(sync.Command{Cmd: name, URL: t.URL})
	if m.currentView == ViewThread && name != sync.CmdStar && name != sync.CmdUnstar {
		return tea.Sequence(cmd, func() tea.Msg { return thread.BackMsg{} }), nil
	}
	return cmd, nil
}

// selected is the open thread in the thread view, otherwise the one under
// the list cursor.
func (m Model) selected() (model.EmailThread, bool) {
	if m.currentView == ViewThread {
		return m.threadView.Thread()
	}
	return m.threadList.Selected()
}
