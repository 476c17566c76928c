package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/gmail-notifier/internal/app"
	"github.com/nhle/gmail-notifier/internal/model"
	"github.com/nhle/gmail-notifier/internal/notify"
	"github.com/nhle/gmail-notifier/internal/sync"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Open the terminal inbox",
		Long: `Open an interactive view of the unread inbox. New mail is announced in a
banner and recorded in the notification history. Logs go to watch.log in
the config directory because the terminal belongs to the interface.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			logPath := filepath.Join(model.ConfigDir(), "watch.log")
			if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
				return fmt.Errorf("creating log directory: %w", err)
			}
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
			if err != nil {
				return fmt.Errorf("opening log file: %w", err)
			}
			defer logFile.Close()

			logger, err := newLogger(logFile)
			if err != nil {
				return err
			}

			rt, err := newRuntime(cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			poller := sync.NewPoller(rt.engine, cfg.PollInterval, logger)
			m := app.New(rt.engine, poller, app.Options{
				MailboxURL:          cfg.MailboxURL(),
				NotificationTimeout: cfg.NotificationTimeout,
				Open:                openBrowser,
				Config:              *cfg,
				Save:                saveSettings,
				Check:               sessionChecker(logger),
				Logger:              logger,
			})

			return app.Run(m, notify.StoreSink{Store: rt.store}, tea.WithAltScreen())
		},
	}

	return cmd
}

// openBrowser hands url to the platform opener.
func openBrowser(url string) error {
	var c *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		c = exec.Command("open", url)
	case "windows":
		c = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		c = exec.Command("xdg-open", url)
	}
	return c.Start()
}
