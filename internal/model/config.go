package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// BreakerConfig tunes the circuit breaker that guards remote Gmail calls.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures uint32 `mapstructure:"max_failures" yaml:"max_failures"`

	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration `mapstructure:"open_timeout" yaml:"open_timeout"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	// AccountIndex selects the signed-in Google account (the n in /mail/u/n).
	AccountIndex int `mapstructure:"account_index" yaml:"account_index"`

	// BaseURL overrides the mailbox root. Empty means
	// https://mail.google.com/mail/u/{AccountIndex}.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// Timezone is the IANA zone used to interpret thread timestamps.
	// Empty means the local zone.
	Timezone string `mapstructure:"timezone" yaml:"timezone"`

	PollInterval        time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	GatewayTimeout      time.Duration `mapstructure:"gateway_timeout" yaml:"gateway_timeout"`
	EffectTimeout       time.Duration `mapstructure:"effect_timeout" yaml:"effect_timeout"`
	NotificationTimeout time.Duration `mapstructure:"notification_timeout" yaml:"notification_timeout"`

	// ReadOnArchive marks a thread read before archiving it.
	ReadOnArchive bool `mapstructure:"read_on_archive" yaml:"read_on_archive"`

	// StorePath is the sqlite file holding the session snapshot.
	StorePath string `mapstructure:"store_path" yaml:"store_path"`

	// MetricsAddr enables the prometheus endpoint when non-empty.
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr"`

	Breaker BreakerConfig `mapstructure:"breaker" yaml:"breaker"`
}

// MailboxURL returns the mailbox root for the configured account.
func (c *AppConfig) MailboxURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return fmt.Sprintf("https://mail.google.com/mail/u/%d", c.AccountIndex)
}

// Location resolves Timezone, falling back to time.Local.
func (c *AppConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ConfigDir returns ~/.config/gmail-notifier.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "gmail-notifier")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/gmail-notifier/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		PollInterval:        30 * time.Second,
		GatewayTimeout:      30 * time.Second,
		EffectTimeout:       30 * time.Second,
		NotificationTimeout: 10 * time.Second,
		StorePath:           filepath.Join(ConfigDir(), "session.db"),
		Breaker: BreakerConfig{
			MaxFailures: 5,
			OpenTimeout: time.Minute,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("account_index", d.AccountIndex)
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("timezone", d.Timezone)
	v.SetDefault("poll_interval", d.PollInterval)
	v.SetDefault("gateway_timeout", d.GatewayTimeout)
	v.SetDefault("effect_timeout", d.EffectTimeout)
	v.SetDefault("notification_timeout", d.NotificationTimeout)
	v.SetDefault("read_on_archive", d.ReadOnArchive)
	v.SetDefault("store_path", d.StorePath)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("breaker.max_failures", d.Breaker.MaxFailures)
	v.SetDefault("breaker.open_timeout", d.Breaker.OpenTimeout)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, defaults are used. Values may be overridden
// by GMAILNOTIFIER_* environment variables.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("GMAILNOTIFIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("account_index", cfg.AccountIndex)
	v.Set("base_url", cfg.BaseURL)
	v.Set("timezone", cfg.Timezone)
	v.Set("poll_interval", cfg.PollInterval.String())
	v.Set("gateway_timeout", cfg.GatewayTimeout.String())
	v.Set("effect_timeout", cfg.EffectTimeout.String())
	v.Set("notification_timeout", cfg.NotificationTimeout.String())
	v.Set("read_on_archive", cfg.ReadOnArchive)
	v.Set("store_path", cfg.StorePath)
	v.Set("metrics_addr", cfg.MetricsAddr)
	v.Set("breaker.max_failures", cfg.Breaker.MaxFailures)
	v.Set("breaker.open_timeout", cfg.Breaker.OpenTimeout.String())

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
