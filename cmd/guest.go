package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sadsciencee/modalkit/internal/demo"
	"github.com/sadsciencee/modalkit/internal/modalid"
	"github.com/sadsciencee/modalkit/internal/transport/wsrelay"
)

func newGuestCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guest",
		Short: "Run the modal page in its own process",
		Long: `Connect to the relay as the modal's browsing context and run the
products page until interrupted. Start it before "modalkit --relay".`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd, true); err != nil {
				return err
			}
			defer a.close()

			route, err := cmd.Flags().GetString("route")
			if err != nil {
				return fmt.Errorf("getting route flag: %w", err)
			}
			id, err := cmd.Flags().GetString("id")
			if err != nil {
				return fmt.Errorf("getting id flag: %w", err)
			}
			if route == "" {
				route = a.cfg.Demo.Route
			}
			if id == "" {
				id = a.cfg.Demo.ID
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			name, err := guestContextName(route, id)
			if err != nil {
				return err
			}
			client, err := wsrelay.Dial(ctx, a.cfg.Relay.URL, name, wsrelay.WithClientLogger(a.logger))
			if err != nil {
				return fmt.Errorf("connecting to relay at %s: %w", a.cfg.Relay.URL, err)
			}
			defer func() { _ = client.Close() }()

			unmount, err := demo.ProductsPage(route, a.logger)(client, id)
			if err != nil {
				return err
			}
			defer unmount()

			a.logger.Info("guest ready", zap.String("context", name))
			select {
			case <-ctx.Done():
			case <-client.Done():
				a.logger.Warn("relay connection lost", zap.String("context", name))
			}
			return nil
		},
	}
	cmd.Flags().String("route", "", "Modal route (default from config)")
	cmd.Flags().String("id", "", "Modal instance id (default from config)")
	return cmd
}

// guestContextName is the relay context a guest for route and id connects as.
// An auto id resolves separately in each process, so the host could never
// find the guest by name.
func guestContextName(route, id string) (string, error) {
	if modalid.IsAuto(id) {
		return "", fmt.Errorf("modal id %q cannot be shared across processes; pass the id the host mounts", id)
	}
	return modalid.Format(route, id).String(), nil
}
