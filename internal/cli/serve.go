package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"metricsfetcher/internal/api"
)

const shutdownTimeout = 5 * time.Second

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the metrics API over HTTP",
	Long: `Start the HTTP API.

Routes:
  GET /api/v1/metrics/:ticker
  GET /api/v1/history/:ticker?period=1y
  GET /api/v1/fx?from=EUR&to=USD
  GET /api/v1/stats
  GET /healthz

Example:
  metricsfetcher serve --addr :8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default HTTP_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, svc, logger, err := setup()
	if err != nil {
		return err
	}
	addr := serveAddr
	if addr == "" {
		addr = cfg.HTTPAddr
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewRouter(api.NewHandler(svc, logger)),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("server_starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-cmd.Context().Done():
	}

	logger.Info().Msg("server_shutting_down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
