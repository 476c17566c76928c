package cmd

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/gmail-notifier/internal/credential"
)

func newLoginCmd() *cobra.Command {
	var (
		cookie  string
		account int
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the Gmail session cookie",
		Long: `Store the Cookie header of a signed-in mail.google.com browser tab in the
system keyring. Copy it from the developer tools network panel of any
request to mail.google.com.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("account") {
				account = cfg.AccountIndex
			}

			if cookie == "" {
				form := huh.NewForm(
					huh.NewGroup(
						huh.NewText().
							Title(fmt.Sprintf("Cookie header for account %d", account)).
							Description("Paste the Cookie request header of a signed-in Gmail tab.").
							Value(&cookie).
							Validate(func(s string) error {
								_, err := credential.NormalizeCookie(s)
								return err
							}),
					),
				)
				if err := form.Run(); err != nil {
					if errors.Is(err, huh.ErrUserAborted) {
						return nil
					}
					return fmt.Errorf("reading cookie: %w", err)
				}
			}

			creds, err := credential.Open()
			if err != nil {
				return err
			}
			if err := creds.SetCookie(account, cookie); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved Gmail session for account %d.\n", account)
			return nil
		},
	}

	cmd.Flags().StringVar(&cookie, "cookie", "", "cookie header; prompts when empty")
	cmd.Flags().IntVar(&account, "account", 0, "account index (the n in /mail/u/n); defaults to account_index")
	return cmd
}
