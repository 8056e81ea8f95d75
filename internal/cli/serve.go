package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/raysh454/sitelens/internal/app"
	"github.com/raysh454/sitelens/internal/logging"
	"github.com/raysh454/sitelens/internal/server"
	"github.com/spf13/cobra"
)

// shutdownTimeout bounds graceful shutdown of the API server.
const shutdownTimeout = 15 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.ListenAddr = addr
			}
			logger := opts.logger(cmd, cfg)

			svc, comps, err := app.NewFromConfig(cfg, logger)
			if err != nil {
				return err
			}
			defer comps.Close()

			srv, err := server.NewServer(server.Config{
				ListenAddr:  cfg.Server.ListenAddr,
				ReadTimeout: cfg.Server.ReadTimeout,
				Logger:      logger,
				Breakers:    comps.BreakerStates,
			}, svc)
			if err != nil {
				return err
			}

			ln, err := net.Listen("tcp", cfg.Server.ListenAddr)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), srv.HTTPServer(), ln, logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}

// serve runs hs on ln until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, hs *http.Server, ln net.Listener, logger logging.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", logging.Field{Key: "addr", Value: ln.Addr().String()})
		errCh <- hs.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("api server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
