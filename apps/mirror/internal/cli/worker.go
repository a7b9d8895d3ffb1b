package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	otelcontrib "go.temporal.io/sdk/contrib/opentelemetry"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/tilsley/treemirror/apps/mirror/internal/execution"
	"github.com/tilsley/treemirror/apps/mirror/internal/platform/metrics"
	"github.com/tilsley/treemirror/apps/mirror/internal/platform/telemetry"
	temporalplatform "github.com/tilsley/treemirror/apps/mirror/internal/platform/temporal"
)

const defaultTemporalHostPort = "localhost:7233"

func newWorkerCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Execute mirror workflows from Temporal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.worker(cmd.Context())
		},
	}
	cmd.Flags().String("temporal-hostport", "", "Temporal frontend address")
	bindFlags(a.v, cmd, map[string]string{"temporal.hostport": "temporal-hostport"})
	return cmd
}

func (a *app) worker(ctx context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	tel, err := telemetry.New(ctx, cfg.Telemetry.Enabled, "worker")
	if err != nil {
		return fmt.Errorf("telemetry init: %w", err)
	}
	defer shutdownTelemetry(tel, a.log)

	pipeline, err := build(ctx, cfg, metrics.New(), a.log)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	hostPort := cfg.Temporal.HostPort
	if hostPort == "" {
		hostPort = defaultTemporalHostPort
	}
	tc, err := client.Dial(client.Options{HostPort: hostPort, Namespace: cfg.Temporal.Namespace})
	if err != nil {
		return fmt.Errorf("temporal client: %w", err)
	}
	defer tc.Close()

	workerOpts := worker.Options{}
	if cfg.Telemetry.Enabled {
		tracingInterceptor, err := otelcontrib.NewTracingInterceptor(otelcontrib.TracerOptions{})
		if err != nil {
			return fmt.Errorf("temporal tracing interceptor: %w", err)
		}
		workerOpts.Interceptors = []interceptor.WorkerInterceptor{tracingInterceptor}
	}

	w := worker.New(tc, temporalplatform.TaskQueue(), workerOpts)
	w.RegisterWorkflowWithOptions(execution.MirrorWorkflow, workflow.RegisterOptions{
		Name: temporalplatform.WorkflowName(),
	})
	w.RegisterActivity(execution.NewActivities(pipeline.svc, a.log))

	a.log.Info("temporal worker started", "taskQueue", temporalplatform.TaskQueue())
	if err := w.Run(worker.InterruptCh()); err != nil {
		return fmt.Errorf("temporal worker: %w", err)
	}
	return nil
}
