package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/gmail-notifier/internal/model"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
)

// rootCmd represents the base command for the gmailnotifier application
var rootCmd = &cobra.Command{
	Use:   "gmailnotifier",
	Short: "Watches a Gmail inbox and announces new mail",
	Long: `gmailnotifier polls the unread feed of a signed-in Gmail account, keeps a
local view of the inbox and announces threads that arrive.

It can run as:
  - An interactive terminal inbox (watch, the default)
  - A headless poller that logs notifications (poll)`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "gmailnotifier version %s\n" .Version}}`)

	// If no subcommand is provided, open the terminal inbox
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "watch")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", model.DefaultConfigPath(), "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")

	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newPollCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newStatusCmd())
}
