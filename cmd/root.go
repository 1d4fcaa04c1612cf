// Package cmd provides the modalkit CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sadsciencee/modalkit/internal/db"
	"github.com/sadsciencee/modalkit/internal/demo"
	"github.com/sadsciencee/modalkit/internal/journal"
	"github.com/sadsciencee/modalkit/internal/pubsub"
	"github.com/sadsciencee/modalkit/internal/transport/wsrelay"
	"github.com/sadsciencee/modalkit/internal/tui"
)

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "modalkit",
		Short: "Embedded app modal messaging toolkit",
		Long: `modalkit runs a host page and its modal over a typed message channel.

Without a subcommand it opens the host page in the terminal. The modal runs
in-process, or in a separate "modalkit guest" process when --relay is set.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runDemo(cmd)
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "Write a debug log to the data directory")
	cmd.PersistentFlags().String("config", "", "Config file (default is the XDG config path)")
	cmd.Flags().Bool("relay", false, "Reach the modal through the relay instead of in-process")

	cmd.AddCommand(
		newRelayCmd(a),
		newGuestCmd(a),
		newJournalCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return cmd
}

func (a *app) runDemo(cmd *cobra.Command) error {
	if err := a.setup(cmd, false); err != nil {
		return err
	}
	defer a.close()

	useRelay, err := cmd.Flags().GetBool("relay")
	if err != nil {
		return fmt.Errorf("getting relay flag: %w", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	hub := pubsub.NewHub()
	defer hub.Shutdown()

	if a.cfg.Journal.Enabled {
		stop, err := a.startJournal(ctx, hub)
		if err != nil {
			a.logger.Warn("journal disabled", zap.Error(err))
		} else {
			defer stop()
		}
	}

	opts := demo.Options{Config: a.cfg.Demo, Logger: a.logger, Hub: hub}
	if useRelay {
		client, err := wsrelay.Dial(ctx, a.cfg.Relay.URL, demo.HostContextName, wsrelay.WithClientLogger(a.logger))
		if err != nil {
			return fmt.Errorf("connecting to relay at %s: %w", a.cfg.Relay.URL, err)
		}
		defer func() { _ = client.Close() }()
		opts.Relay = client
	}

	d, err := demo.New(opts)
	if err != nil {
		return err
	}
	defer d.Shutdown()

	return tui.Run(d, hub, a.logger)
}

// startJournal records hub events until the returned func is called.
func (a *app) startJournal(ctx context.Context, hub *pubsub.Hub) (func(), error) {
	database, err := db.Open(a.cfg.Journal.Path)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	rec := journal.NewRecorder(journal.NewStore(database), a.logger)
	done := rec.Start(ctx, hub)
	return func() {
		cancel()
		<-done
		if err := database.Close(); err != nil {
			a.logger.Warn("closing journal", zap.Error(err))
		}
	}, nil
}

// Execute runs the root command.
func Execute() error {
	err := newRootCmd().Execute()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
