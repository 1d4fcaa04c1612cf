package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadsciencee/modalkit/internal/db"
	"github.com/sadsciencee/modalkit/internal/journal"
)

const timeLayout = "2006-01-02 15:04:05.000"

func newJournalCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recorded modal sessions and their events",
		Long: `Without flags, list every recorded modal session. With --session, print
that session's events and toasts, oldest first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := cmd.Flags().GetString("session")
			if err != nil {
				return fmt.Errorf("getting session flag: %w", err)
			}
			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return fmt.Errorf("getting limit flag: %w", err)
			}

			return a.withJournal(cmd, func(store *journal.Store) error {
				if session == "" {
					return printSessions(cmd, store)
				}
				return printSession(cmd, store, session, limit)
			})
		},
	}
	cmd.Flags().String("session", "", "Modal id to show events for")
	cmd.Flags().Int("limit", journal.DefaultLimit, "Maximum number of events to show")
	cmd.AddCommand(newJournalPruneCmd(a))
	return cmd
}

func newJournalPruneCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete journal entries older than a duration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			age, err := cmd.Flags().GetDuration("older-than")
			if err != nil {
				return fmt.Errorf("getting older-than flag: %w", err)
			}
			return a.withJournal(cmd, func(store *journal.Store) error {
				n, err := store.Prune(cmd.Context(), time.Now().Add(-age))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d entries\n", n)
				return nil
			})
		},
	}
	cmd.Flags().Duration("older-than", 7*24*time.Hour, "Age of entries to delete")
	return cmd
}

// withJournal opens the configured journal database for fn.
func (a *app) withJournal(cmd *cobra.Command, fn func(*journal.Store) error) error {
	if err := a.setup(cmd, true); err != nil {
		return err
	}
	defer a.close()

	database, err := db.Open(a.cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer func() { _ = database.Close() }()

	return fn(journal.NewStore(database))
}

func printSessions(cmd *cobra.Command, store *journal.Store) error {
	sessions, err := store.Sessions(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions recorded")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tEVENTS\tTOASTS\tFIRST SEEN\tLAST SEEN")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n",
			s.ID, s.Events, s.Toasts, s.FirstSeen.Format(timeLayout), s.LastSeen.Format(timeLayout))
	}
	return w.Flush()
}

func printSession(cmd *cobra.Command, store *journal.Store, id string, limit int) error {
	ctx := cmd.Context()
	summary, err := store.Session(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}
	evts, err := store.List(ctx, id, limit)
	if err != nil {
		return err
	}
	toasts, err := store.Toasts(ctx, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session %s\n", summary.ID)
	fmt.Fprintln(out, strings.Repeat("─", 40))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSIDE\tEVENT\tKIND\tDETAIL")
	for _, e := range evts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Format(timeLayout), e.Side, e.Type, dash(e.Kind), dash(e.Detail))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(toasts) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Toasts:")
		for _, t := range toasts {
			printToast(out, t.Timestamp, t.Message, t.IsError)
		}
	}
	return nil
}

func printToast(out io.Writer, ts time.Time, message string, isError bool) {
	marker := "✓"
	if isError {
		marker = "✗"
	}
	fmt.Fprintf(out, "  %s %s %s\n", marker, ts.Format(timeLayout), message)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
