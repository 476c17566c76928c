package config

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/gmail-notifier/internal/keys"
	"github.com/nhle/gmail-notifier/internal/model"
)

func TestApplyFields(t *testing.T) {
	base := *model.DefaultConfig()

	cfg, err := applyFields(base, formFields{
		accountIndex:  " 2 ",
		baseURL:       "",
		pollInterval:  "1m",
		timezone:      "Asia/Ho_Chi_Minh",
		readOnArchive: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.AccountIndex)
	assert.Equal(t, time.Minute, cfg.PollInterval)
	assert.Equal(t, "Asia/Ho_Chi_Minh", cfg.Timezone)
	assert.True(t, cfg.ReadOnArchive)
	assert.Equal(t, base.StorePath, cfg.StorePath)
	assert.Equal(t, "https://mail.google.com/mail/u/2", cfg.MailboxURL())

	_, err = applyFields(base, formFields{accountIndex: "x", pollInterval: "1m"})
	assert.Error(t, err)
	_, err = applyFields(base, formFields{accountIndex: "0", pollInterval: "soon"})
	assert.Error(t, err)
}

func TestValidators(t *testing.T) {
	assert.NoError(t, validateAccountIndex("0"))
	assert.Error(t, validateAccountIndex("-1"))
	assert.Error(t, validateAccountIndex("one"))

	assert.NoError(t, validateOptionalURL(""))
	assert.NoError(t, validateOptionalURL("http://127.0.0.1:8080/mail/u/0"))
	assert.Error(t, validateOptionalURL("mail.google.com"))

	assert.NoError(t, validateInterval("30s"))
	assert.Error(t, validateInterval("1s"))
	assert.Error(t, validateInterval("often"))

	assert.NoError(t, validateTimezone(""))
	assert.NoError(t, validateTimezone("UTC"))
	assert.Error(t, validateTimezone("Mars/Olympus"))

	assert.NoError(t, validateOptionalCookie(""))
	assert.NoError(t, validateOptionalCookie("Cookie: SID=abc"))
	assert.Error(t, validateOptionalCookie("garbage"))
}

func newSettings(save Saver, check Checker) Model {
	return New(*model.DefaultConfig(), save, check, keys.DefaultKeyMap(), 100, 40)
}

func TestEscClosesView(t *testing.T) {
	m := newSettings(nil, nil)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, ConfigDoneMsg{}, cmd())
}

func TestSummaryShowsMailbox(t *testing.T) {
	m := newSettings(nil, nil)

	view := m.View()
	assert.Contains(t, view, "Settings")
	assert.Contains(t, view, "https://mail.google.com/mail/u/0")
	assert.Contains(t, view, "disabled")
}

func TestEditOpensForm(t *testing.T) {
	m := newSettings(nil, nil)

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("e")})

	assert.Equal(t, ModeForm, m.mode)
	assert.NotNil(t, cmd)
	assert.Equal(t, "30s", m.fields.pollInterval)
	assert.Equal(t, "0", m.fields.accountIndex)
}

func TestSessionCheck(t *testing.T) {
	boom := errors.New("401")
	m := newSettings(nil, func(context.Context, model.AppConfig) error { return boom })

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, ModeValidating, m.mode)

	m, _ = m.Update(ValidateResultMsg{Err: boom})
	assert.Equal(t, ModeValidateResult, m.mode)
	assert.Contains(t, m.View(), "Session check failed")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ModeView, m.mode)
}

func TestLateCheckResultIsIgnored(t *testing.T) {
	m := newSettings(nil, func(context.Context, model.AppConfig) error { return nil })

	m, _ = m.Update(ValidateResultMsg{})

	assert.Equal(t, ModeView, m.mode)
}

func TestSubmitSaves(t *testing.T) {
	var (
		saved  model.AppConfig
		cookie string
	)
	m := newSettings(func(cfg model.AppConfig, c string) error {
		saved, cookie = cfg, c
		return nil
	}, nil)
	m.fillFields()
	m.fields.pollInterval = "2m"
	m.fields.cookie = " SID=abc "

	msg := m.submit()()
	internal, ok := msg.(configSavedInternalMsg)
	require.True(t, ok)
	require.NoError(t, internal.err)
	assert.Equal(t, 2*time.Minute, saved.PollInterval)
	assert.Equal(t, "SID=abc", cookie)

	m, cmd := m.Update(internal)
	require.NotNil(t, cmd)
	assert.Equal(t, ConfigSavedMsg{Config: saved}, cmd())
	assert.Equal(t, 2*time.Minute, m.cfg.PollInterval)
	assert.Contains(t, m.View(), "Settings saved")
}

func TestSubmitWithoutSaver(t *testing.T) {
	m := newSettings(nil, nil)
	m.fillFields()

	m, _ = m.Update(m.submit()())

	assert.Equal(t, ModeView, m.mode)
	assert.Contains(t, m.statusMsg, "read-only")
}
