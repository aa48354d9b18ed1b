package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gotogether/internal/app"
	"gotogether/internal/logging"
)

const startupTimeout = 10 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and chat server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts)
		},
	}
}

func runServe(parent context.Context, opts *RootOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	logger := logging.NewLogger(cfg.Log.Level)

	startCtx, cancel := context.WithTimeout(parent, startupTimeout)
	a, err := app.New(startCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("startup failed", "error", err)
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown cleanup failed", "error", err)
		}
	}()

	server := a.Server(cfg.Server)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			logger.Error("server error", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return err
	}
	logger.Info("server exited")
	return nil
}
