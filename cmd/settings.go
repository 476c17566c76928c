package cmd

import (
	"context"
	"log/slog"

	"github.com/nhle/gmail-notifier/internal/credential"
	"github.com/nhle/gmail-notifier/internal/extract"
	"github.com/nhle/gmail-notifier/internal/gateway"
	"github.com/nhle/gmail-notifier/internal/model"
)

// saveSettings writes cfg to the config file and, when given, stores a new
// session cookie for its account.
func saveSettings(cfg model.AppConfig, cookie string) error {
	if err := model.SaveConfig(cfgFile, &cfg); err != nil {
		return err
	}
	if cookie == "" {
		return nil
	}
	creds, err := credential.Open()
	if err != nil {
		return err
	}
	return creds.SetCookie(cfg.AccountIndex, cookie)
}

// sessionChecker reads and parses the inbox feed with the stored cookie.
func sessionChecker(logger *slog.Logger) func(ctx context.Context, cfg model.AppConfig) error {
	return func(ctx context.Context, cfg model.AppConfig) error {
		creds, err := credential.Open()
		if err != nil {
			return err
		}
		cookie, err := creds.Cookie(cfg.AccountIndex)
		if err != nil {
			return err
		}
		gw, err := gateway.New(gateway.Options{
			MailboxURL: cfg.MailboxURL(),
			Cookie:     cookie,
			Timeout:    cfg.GatewayTimeout,
			Logger:     logger,
		})
		if err != nil {
			return err
		}
		raw, err := gw.GetFeed(ctx)
		if err != nil {
			return err
		}
		_, err = extract.ExtractFeed(raw)
		return err
	}
}
