package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	d := DefaultConfig()
	assert.Equal(t, d.PollInterval, cfg.PollInterval)
	assert.Equal(t, d.Breaker, cfg.Breaker)
	assert.Equal(t, "https://mail.google.com/mail/u/0", cfg.MailboxURL())
}

func TestLoadConfig_ReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
account_index: 1
poll_interval: 45s
timezone: UTC
read_on_archive: true
breaker:
  max_failures: 9
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.AccountIndex)
	assert.Equal(t, 45*time.Second, cfg.PollInterval)
	assert.True(t, cfg.ReadOnArchive)
	assert.Equal(t, uint32(9), cfg.Breaker.MaxFailures)
	assert.Equal(t, time.Minute, cfg.Breaker.OpenTimeout)
	assert.Equal(t, "https://mail.google.com/mail/u/1", cfg.MailboxURL())
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("GMAILNOTIFIER_ACCOUNT_INDEX", "4")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.AccountIndex)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	want := DefaultConfig()
	want.BaseURL = "http://127.0.0.1:9000/mail/u/0"
	want.PollInterval = 2 * time.Minute
	want.MetricsAddr = ":9090"

	require.NoError(t, SaveConfig(path, want))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, want.BaseURL, got.BaseURL)
	assert.Equal(t, want.PollInterval, got.PollInterval)
	assert.Equal(t, want.MetricsAddr, got.MetricsAddr)
	assert.Equal(t, "http://127.0.0.1:9000/mail/u/0", got.MailboxURL())
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	cfg.Timezone = "Asia/Ho_Chi_Minh"
	loc, err = cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Ho_Chi_Minh", loc.String())

	cfg.Timezone = "Nowhere/Special"
	_, err = cfg.Location()
	assert.Error(t, err)
}
