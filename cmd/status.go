package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/gmail-notifier/internal/store"
)

func newStatusCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last saved inbox snapshot and recent notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			return printStatus(cmd.Context(), cmd.OutOrStdout(), st, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "notifications", 5, "number of recent notifications to show")
	return cmd
}

func printStatus(ctx context.Context, w io.Writer, st store.Store, limit int) error {
	snap, err := st.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	updated, err := st.SnapshotUpdatedAt(ctx)
	if err != nil {
		return err
	}

	if updated.IsZero() {
		fmt.Fprintln(w, "No snapshot saved yet.")
	} else {
		fmt.Fprintf(w, "Snapshot:      %s\n", updated.Local().Format(time.DateTime))
	}
	fmt.Fprintf(w, "Signed in:     %t\n", snap.IsLoggedIn)
	if snap.Email != "" {
		fmt.Fprintf(w, "Account:       %s\n", snap.Email)
	}
	fmt.Fprintf(w, "Threads:       %d\n", len(snap.Threads))
	fmt.Fprintf(w, "Notified:      %d\n", len(snap.NotifiedEmails))

	for _, t := range snap.Threads {
		fmt.Fprintf(w, "  %s  %s\n", t.ModifiedAt, t.Title)
	}

	if limit <= 0 {
		return nil
	}
	notes, err := st.RecentNotifications(ctx, limit)
	if err != nil {
		return err
	}
	if len(notes) == 0 {
		return nil
	}
	fmt.Fprintln(w, "\nRecent notifications:")
	for _, n := range notes {
		from, _, _ := strings.Cut(n.Message, "\n")
		fmt.Fprintf(w, "  %s  %s (%s)\n", n.CreatedAt.Local().Format(time.DateTime), n.Title, from)
	}
	return nil
}
