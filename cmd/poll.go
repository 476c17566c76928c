package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/gmail-notifier/internal/logging"
	"github.com/nhle/gmail-notifier/internal/metrics"
	"github.com/nhle/gmail-notifier/internal/notify"
	"github.com/nhle/gmail-notifier/internal/sync"
)

const shutdownTimeout = 5 * time.Second

func newPollCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Poll the inbox without a terminal interface",
		Long: `Poll the unread feed on the configured interval, log the unread badge after
every change and log and record a notification when new mail arrives.

When metrics_addr is set, prometheus metrics are served on /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(os.Stderr)
			if err != nil {
				return err
			}

			rt, err := newRuntime(cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			notifier := notify.NewNotifier(rt.engine,
				notify.MultiSink{
					notify.LogSink{Logger: logger},
					notify.StoreSink{Store: rt.store},
				},
				notify.WithLogger(logger),
				notify.WithMetrics(rt.metrics),
			)
			badgeLogger := logging.WithOperation(logger, "badge")
			handles := []sync.Handle{
				rt.engine.On(notify.BadgeListener(rt.engine, func(label string) {
					badgeLogger.Info("unread badge", slog.String("label", label))
				})),
				rt.engine.On(notifier.Listen),
			}
			defer func() {
				for _, h := range handles {
					rt.engine.Off(h)
				}
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.MetricsAddr != "" {
				srv, err := metrics.NewServer(cfg.MetricsAddr, rt.metrics, logger)
				if err != nil {
					return err
				}
				go func() {
					if err := srv.Start(); err != nil {
						logger.Error("metrics server failed", logging.Err(err))
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
					defer cancel()
					if err := srv.Shutdown(shutdownCtx); err != nil {
						logger.Warn("metrics server shutdown failed", logging.Err(err))
					}
				}()
			}

			poller := sync.NewPoller(rt.engine, cfg.PollInterval, logger)
			if once {
				return poller.RunOnce(ctx)
			}

			logger.Info("polling inbox", slog.Duration("interval", cfg.PollInterval))
			if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run a single fetch cycle and exit")
	return cmd
}
