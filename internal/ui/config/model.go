package config

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/gmail-notifier/internal/credential"
	"github.com/nhle/gmail-notifier/internal/keys"
	"github.com/nhle/gmail-notifier/internal/model"
	"github.com/nhle/gmail-notifier/internal/theme"
)

// checkTimeout bounds a session test.
const checkTimeout = 30 * time.Second

// ConfigMode represents the current state of the settings view.
type ConfigMode int

const (
	ModeView           ConfigMode = iota // Show current settings
	ModeForm                             // Editing
	ModeValidating                       // Testing the session
	ModeValidateResult                   // Show test result
)

// ConfigDoneMsg signals the settings view should close.
type ConfigDoneMsg struct{}

// ConfigSavedMsg signals the settings were written.
type ConfigSavedMsg struct {
	Config model.AppConfig
}

// ValidateResultMsg carries the result of a session test.
type ValidateResultMsg struct {
	Err error
}

type configSavedInternalMsg struct {
	cfg model.AppConfig
	err error
}

// Saver persists cfg. A non-empty cookie replaces the stored session.
type Saver func(cfg model.AppConfig, cookie string) error

// Checker tests that the stored session can read the inbox of cfg.
type Checker func(ctx context.Context, cfg model.AppConfig) error

// formFields holds the values huh binds to. It lives behind a pointer so
// copies of Model share it.
type formFields struct {
	accountIndex  string
	baseURL       string
	pollInterval  string
	timezone      string
	readOnArchive bool
	cookie        string
}

// Model is the Bubble Tea model for the settings view.
type Model struct {
	mode   ConfigMode
	cfg    model.AppConfig
	save   Saver
	check  Checker
	form   *huh.Form
	fields *formFields

	spinner    spinner.Model
	validError error

	// Status message for transient feedback
	statusMsg string

	keys          *keys.KeyMap
	width, height int
}

// New creates a settings view showing cfg.
func New(cfg model.AppConfig, save Saver, check Checker, k *keys.KeyMap, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		mode:    ModeView,
		cfg:     cfg,
		save:    save,
		check:   check,
		fields:  &formFields{},
		spinner: sp,
		keys:    k,
		width:   width,
		height:  height,
	}
}

// Init resets the view to the settings summary.
func (m Model) Init() tea.Cmd {
	return nil
}

// Open returns the view to its summary, dropping any half-filled form.
func (m *Model) Open() {
	m.mode = ModeView
	m.form = nil
	m.statusMsg = ""
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case configSavedInternalMsg:
		m.mode = ModeView
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error saving settings: %v", msg.err)
			return m, nil
		}
		m.cfg = msg.cfg
		m.statusMsg = "Settings saved. Restart to apply them."
		cfg := msg.cfg
		return m, func() tea.Msg { return ConfigSavedMsg{Config: cfg} }

	case ValidateResultMsg:
		if m.mode != ModeValidating {
			return m, nil
		}
		m.validError = msg.Err
		m.mode = ModeValidateResult
		return m, nil

	case spinner.TickMsg:
		if m.mode == ModeValidating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	if m.mode == ModeForm {
		return m.updateForm(msg)
	}
	return m, nil
}

// handleKeyMsg processes key messages based on the current mode.
func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch m.mode {
	case ModeView:
		return m.handleViewKeys(msg)
	case ModeForm:
		return m.updateForm(msg)
	case ModeValidateResult:
		switch msg.String() {
		case "enter", "esc":
			m.mode = ModeView
			m.validError = nil
			return m, nil
		case "r":
			return m.startValidate()
		}
		return m, nil
	case ModeValidating:
		// Only allow escape during validation
		if msg.String() == "esc" {
			m.mode = ModeView
			return m, nil
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleViewKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg { return ConfigDoneMsg{} }

	case msg.String() == "e":
		m.fillFields()
		m.form = m.buildForm()
		m.mode = ModeForm
		m.statusMsg = ""
		return m, m.form.Init()

	case msg.String() == "enter":
		return m.startValidate()
	}
	return m, nil
}

func (m Model) startValidate() (Model, tea.Cmd) {
	if m.check == nil {
		return m, nil
	}
	m.mode = ModeValidating
	m.validError = nil
	check, cfg := m.check, m.cfg
	return m, tea.Batch(
		m.spinner.Tick,
		func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
			defer cancel()
			return ValidateResultMsg{Err: check(ctx, cfg)}
		},
	)
}

// --- Form ---

func (m Model) fillFields() {
	*m.fields = formFields{
		accountIndex:  strconv.Itoa(m.cfg.AccountIndex),
		baseURL:       m.cfg.BaseURL,
		pollInterval:  m.cfg.PollInterval.String(),
		timezone:      m.cfg.Timezone,
		readOnArchive: m.cfg.ReadOnArchive,
	}
}

func (m Model) buildForm() *huh.Form {
	f := m.fields
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Account index").
				Description("The n in mail.google.com/mail/u/n").
				Value(&f.accountIndex).
				Validate(validateAccountIndex),
			huh.NewInput().
				Title("Mailbox URL").
				Description("Leave empty for mail.google.com").
				Placeholder("https://mail.google.com/mail/u/0").
				Value(&f.baseURL).
				Validate(validateOptionalURL),
			huh.NewInput().
				Title("Poll interval").
				Description("How often the inbox feed is fetched (e.g., 30s, 2m)").
				Value(&f.pollInterval).
				Validate(validateInterval),
			huh.NewInput().
				Title("Timezone").
				Description("IANA name used to read message dates; empty for local").
				Placeholder("Europe/Berlin").
				Value(&f.timezone).
				Validate(validateTimezone),
			huh.NewConfirm().
				Title("Mark read before archiving").
				Value(&f.readOnArchive),
			huh.NewInput().
				Title("Session cookie").
				Description("Paste a new Cookie header, or leave empty to keep the stored one").
				EchoMode(huh.EchoModePassword).
				Value(&f.cookie).
				Validate(validateOptionalCookie),
		),
	).WithWidth(m.formWidth()).WithShowHelp(false)
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m, m.submit()
	case huh.StateAborted:
		m.mode = ModeView
		m.form = nil
		return m, nil
	}
	return m, cmd
}

func (m Model) submit() tea.Cmd {
	cfg, err := applyFields(m.cfg, *m.fields)
	if err != nil {
		return func() tea.Msg { return configSavedInternalMsg{err: err} }
	}
	cookie := strings.TrimSpace(m.fields.cookie)
	save := m.save
	return func() tea.Msg {
		if save == nil {
			return configSavedInternalMsg{err: fmt.Errorf("settings are read-only")}
		}
		return configSavedInternalMsg{cfg: cfg, err: save(cfg, cookie)}
	}
}

// applyFields returns base with the form values applied.
func applyFields(base model.AppConfig, f formFields) (model.AppConfig, error) {
	n, err := strconv.Atoi(strings.TrimSpace(f.accountIndex))
	if err != nil {
		return base, fmt.Errorf("account index: %w", err)
	}
	d, err := time.ParseDuration(strings.TrimSpace(f.pollInterval))
	if err != nil {
		return base, fmt.Errorf("poll interval: %w", err)
	}

	cfg := base
	cfg.AccountIndex = n
	cfg.BaseURL = strings.TrimSpace(f.baseURL)
	cfg.PollInterval = d
	cfg.Timezone = strings.TrimSpace(f.timezone)
	cfg.ReadOnArchive = f.readOnArchive
	return cfg, nil
}

// --- View ---

// View renders the settings view.
func (m Model) View() string {
	switch m.mode {
	case ModeView:
		return m.viewSummary()
	case ModeForm:
		return m.viewForm()
	case ModeValidating:
		return m.viewValidating()
	case ModeValidateResult:
		return m.viewValidateResult()
	default:
		return ""
	}
}

func (m Model) viewSummary() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	b.WriteString(titleStyle.Render("Settings"))
	b.WriteString("\n\n")

	rows := [][2]string{
		{"Mailbox", m.cfg.MailboxURL()},
		{"Poll interval", m.cfg.PollInterval.String()},
		{"Timezone", orDefault(m.cfg.Timezone, "local")},
		{"Mark read on archive", strconv.FormatBool(m.cfg.ReadOnArchive)},
		{"Session store", m.cfg.StorePath},
		{"Metrics", orDefault(m.cfg.MetricsAddr, "disabled")},
	}
	labelStyle := lipgloss.NewStyle().Foreground(theme.ColorGray).Width(22)
	for _, r := range rows {
		b.WriteString(labelStyle.Render(r[0]))
		b.WriteString(r[1])
		b.WriteString("\n")
	}

	if m.statusMsg != "" {
		b.WriteString("\n")
		statusStyle := lipgloss.NewStyle().
			Foreground(theme.ColorYellow).
			Italic(true)
		b.WriteString(statusStyle.Render(m.statusMsg))
	}

	b.WriteString("\n\n")
	hintStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	b.WriteString(hintStyle.Render("e edit | enter test session | esc back"))

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(b.String())
}

func (m Model) viewForm() string {
	if m.form == nil {
		return ""
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(m.form.View())
}

func (m Model) viewValidating() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	content := fmt.Sprintf(
		"%s Reading the inbox feed...\n\nPress esc to cancel.",
		m.spinner.View(),
	)

	return style.Render(content)
}

func (m Model) viewValidateResult() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	var content string
	if m.validError != nil {
		errStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorRed)
		content = errStyle.Render("Session check failed") + "\n\n" +
			m.validError.Error() + "\n\n" +
			lipgloss.NewStyle().Foreground(theme.ColorGray).
				Render("r retry | enter/esc back")
	} else {
		okStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorGreen)
		content = okStyle.Render("Session OK") + "\n\n" +
			fmt.Sprintf("Read the feed of %s", m.cfg.MailboxURL()) + "\n\n" +
			lipgloss.NewStyle().Foreground(theme.ColorGray).
				Render("enter/esc back")
	}

	return style.Render(content)
}

// --- Helpers ---

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func validateAccountIndex(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return fmt.Errorf("account index must be a non-negative number")
	}
	return nil
}

func validateOptionalURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parsed, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., https://mail.google.com/mail/u/0)")
	}
	return nil
}

func validateInterval(s string) error {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d < 5*time.Second {
		return fmt.Errorf("poll interval must be at least 5s")
	}
	return nil
}

func validateTimezone(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if _, err := time.LoadLocation(strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("unknown timezone: %w", err)
	}
	return nil
}

func validateOptionalCookie(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	_, err := credential.NormalizeCookie(s)
	return err
}
