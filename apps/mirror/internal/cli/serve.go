package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.temporal.io/sdk/client"

	"github.com/tilsley/treemirror/apps/mirror/internal/config"
	"github.com/tilsley/treemirror/apps/mirror/internal/execution"
	"github.com/tilsley/treemirror/apps/mirror/internal/handler"
	"github.com/tilsley/treemirror/apps/mirror/internal/platform/metrics"
	"github.com/tilsley/treemirror/apps/mirror/internal/platform/telemetry"
	temporalplatform "github.com/tilsley/treemirror/apps/mirror/internal/platform/temporal"
	"github.com/tilsley/treemirror/apps/mirror/internal/platform/validation"
	"github.com/tilsley/treemirror/schemas"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().IntP("port", "p", 0, "port to listen on")
	cmd.Flags().String("temporal-hostport", "", "run through Temporal at this address")
	bindFlags(a.v, cmd, map[string]string{
		"server.port":       "port",
		"temporal.hostport": "temporal-hostport",
	})
	return cmd
}

func (a *app) serve(parent context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.New(ctx, cfg.Telemetry.Enabled, "serve")
	if err != nil {
		return fmt.Errorf("telemetry init: %w", err)
	}
	defer shutdownTelemetry(tel, a.log)

	m := metrics.New()
	pipeline, err := build(ctx, cfg, m, a.log)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	runner, closeRunner, err := a.newRunner(ctx, cfg, pipeline, m)
	if err != nil {
		return err
	}
	defer closeRunner()

	validator, err := validation.New(schemas.OpenAPISpec)
	if err != nil {
		return fmt.Errorf("openapi validation middleware: %w", err)
	}
	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware(telemetry.ServiceName()), validator)
	handler.RegisterRoutes(router, runner, pipeline.reader, m.Handler(), a.log)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrors := make(chan error, 1)
	go func() {
		a.log.Info("starting treemirror", "port", cfg.Server.Port)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
		a.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	}
}

// newRunner picks Temporal when a host is configured and in-process runs
// otherwise.
func (a *app) newRunner(ctx context.Context, cfg *config.Config, p *deps, m *metrics.Metrics) (execution.Runner, func(), error) {
	if cfg.Temporal.HostPort == "" {
		local := execution.NewLocalRunner(ctx, p.svc, m, a.log)
		a.log.Info("runs execute in-process")
		return local, local.Wait, nil
	}

	tc, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("temporal client: %w", err)
	}
	a.log.Info("runs execute on temporal", "hostport", cfg.Temporal.HostPort, "taskQueue", temporalplatform.TaskQueue())
	return temporalplatform.NewEngine(tc), tc.Close, nil
}
