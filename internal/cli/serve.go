package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var shutdownTimeout time.Duration

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 15*time.Second, "Time allowed for draining requests and notifications")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the portal HTTP API",
	Long:  "Applies migrations, starts the notification workers and serves the HTTP API until SIGINT or SIGTERM.",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.repo.Migrate(ctx); err != nil {
		a.close(context.Background())
		return err
	}
	if err := a.startNotifications(); err != nil {
		a.close(context.Background())
		return err
	}

	server := a.buildPortal().Server(a.cfg.Server.CORSOrigins...)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("portal listening", "addr", a.cfg.Server.Addr)
		errCh <- server.Serve(a.cfg.Server.Addr)
	}()

	select {
	case err = <-errCh:
	case <-ctx.Done():
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err = server.Shutdown(shutdownCtx)
		cancel()
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.close(drainCtx)
	return err
}
