package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/gmail-notifier/internal/credential"
)

func newLogoutCmd() *cobra.Command {
	var account int

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the Gmail session and the cached inbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("account") {
				account = cfg.AccountIndex
			}

			creds, err := credential.Open()
			if err != nil {
				return err
			}
			if err := creds.DeleteCookie(account); err != nil && !errors.Is(err, credential.ErrNoCookie) {
				return err
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.ResetSession(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Signed out of account %d.\n", account)
			return nil
		},
	}

	cmd.Flags().IntVar(&account, "account", 0, "account index (the n in /mail/u/n); defaults to account_index")
	return cmd
}
