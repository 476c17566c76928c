package threadlist

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/gmail-notifier/internal/keys"
	"github.com/nhle/gmail-notifier/internal/model"
	"github.com/nhle/gmail-notifier/internal/sync"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func listWith(t *testing.T, urls ...string) Model {
	t.Helper()
	m := New(keys.DefaultKeyMap(), 80, 30)
	threads := make([]model.EmailThread, len(urls))
	for i, u := range urls {
		threads[i] = model.EmailThread{FeedEntry: model.FeedEntry{URL: u, Title: "t" + u}}
	}
	m.SetThreads(threads, func(string) bool { return false })
	m.SetLoggedIn(true)
	return m
}

func TestKeysEmitCommandsForSelection(t *testing.T) {
	tests := []struct {
		key  string
		want sync.Command
	}{
		{key: "a", want: sync.Command{Cmd: sync.CmdArchive, URL: "u1"}},
		{key: "d", want: sync.Command{Cmd: sync.CmdDeleteMail, URL: "u1"}},
		{key: "s", want: sync.Command{Cmd: sync.CmdMarkAsSpam, URL: "u1"}},
		{key: "m", want: sync.Command{Cmd: sync.CmdMarkAsRead, URL: "u1"}},
		{key: "u", want: sync.Command{Cmd: sync.CmdMarkAsUnread, URL: "u1"}},
		{key: "*", want: sync.Command{Cmd: sync.CmdStar, URL: "u1"}},
		{key: "A", want: sync.Command{Cmd: sync.CmdMarkAllAsRead, URLs: []string{"u1", "u2"}}},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			m := listWith(t, "u1", "u2")

			_, cmd := m.Update(runes(tt.key))
			require.NotNil(t, cmd)
			assert.Equal(t, ActionMsg{Command: tt.want}, cmd())
		})
	}
}

func TestEnterOpensThread(t *testing.T) {
	m := listWith(t, "u1")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, OpenThreadMsg{URL: "u1"}, cmd())
}

func TestOpenWebKey(t *testing.T) {
	m := listWith(t, "u1")

	_, cmd := m.Update(runes("o"))
	require.NotNil(t, cmd)
	assert.Equal(t, OpenWebMsg{URL: "u1"}, cmd())
}

func TestEmptyList(t *testing.T) {
	m := listWith(t)

	_, ok := m.Selected()
	assert.False(t, ok)
	assert.Contains(t, m.View(), "No unread mail.")

	m.SetLoggedIn(false)
	assert.Contains(t, m.View(), "gmailnotifier login")

	_, cmd := m.Update(runes("A"))
	assert.Nil(t, cmd)
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		iso  string
		want string
	}{
		{iso: "2025-06-03T11:59:30Z", want: "just now"},
		{iso: "2025-06-03T11:15:00Z", want: "45m ago"},
		{iso: "2025-06-03T07:00:00Z", want: "5h ago"},
		{iso: "2025-06-01T12:00:00Z", want: "2d ago"},
		{iso: "not a time", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, relativeTime(tt.iso, now), tt.iso)
	}
}

func TestSubjectLine(t *testing.T) {
	assert.Equal(t, "(no subject)", subjectLine(model.EmailThread{}))
	assert.Equal(t, "Hi - see you", subjectLine(model.EmailThread{FeedEntry: model.FeedEntry{Title: "Hi", Summary: "see you"}}))
	assert.Equal(t, "Detail", subjectLine(model.EmailThread{ThreadDetail: model.ThreadDetail{Subject: "Detail"}}))
}
