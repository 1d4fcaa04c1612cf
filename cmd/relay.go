package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sadsciencee/modalkit/internal/transport/wsrelay"
)

const shutdownTimeout = 5 * time.Second

func newRelayCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the message relay between host and modal processes",
		Long: `Run the WebSocket relay that connects browsing contexts in different
processes. It serves:
  /ws?context=<name>  context connections
  /metrics            Prometheus metrics
  /healthz            liveness`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd, true); err != nil {
				return err
			}
			defer a.close()

			listen, err := cmd.Flags().GetString("listen")
			if err != nil {
				return fmt.Errorf("getting listen flag: %w", err)
			}
			if listen == "" {
				listen = a.cfg.Relay.Listen
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return serveRelay(ctx, listen, a.logger)
		},
	}
	cmd.Flags().String("listen", "", "Address to listen on (default from config)")
	return cmd
}

// serveRelay runs a relay server on addr until ctx is done.
func serveRelay(ctx context.Context, addr string, logger *zap.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return runRelay(ctx, ln, logger)
}

func runRelay(ctx context.Context, ln net.Listener, logger *zap.Logger) error {
	relay := wsrelay.NewServer(wsrelay.WithServerLogger(logger))
	srv := &http.Server{
		Handler:           relay.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	logger.Info("relay listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving relay: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Shutdown does not wait for hijacked websocket connections.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down relay: %w", err)
	}
	logger.Info("relay stopped")
	return nil
}
