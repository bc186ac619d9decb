package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/vango-dev/ssr/internal/config"
	"github.com/vango-dev/ssr/pkg/ssr"
)

func serveCmd(app App, loadConfig func() (*config.Config, error)) *cobra.Command {
	var (
		port    int
		host    string
		metrics bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve pages rendered on each request",
		Long: `Start an HTTP server rendering pages on each request.

Client assets are served from <build.output>/client/assets when that
directory exists.

Examples:
  ssr serve
  ssr serve --port=8080
  ssr serve --host=0.0.0.0 --metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Dev.Port = port
			}
			if host != "" {
				cfg.Dev.Host = host
			}

			ctx, cancel := signalContext()
			defer cancel()

			rc, err := ssr.NewRenderContext(ctx, ssr.Options{Config: cfg, Files: files(app)})
			if err != nil {
				return err
			}
			return serve(ctx, cmd, cfg, newServeHandler(rc, metrics))
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from ssr.json)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from ssr.json)")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "Expose Prometheus metrics on /metrics")

	return cmd
}

// newServeHandler returns the page router, with the metrics endpoint when
// metrics is set.
func newServeHandler(rc *ssr.RenderContext, metrics bool) http.Handler {
	r := ssr.NewRouter(rc)
	if metrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	return r
}

func serve(ctx context.Context, cmd *cobra.Command, cfg *config.Config, h http.Handler) error {
	out := cmd.OutOrStdout()
	srv := &http.Server{
		Addr:              cfg.DevAddress(),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	success(out, "Listening on http://%s%s", cfg.DevAddress(), cfg.BaseServer)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	fmt.Fprintln(out, "\n  Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
