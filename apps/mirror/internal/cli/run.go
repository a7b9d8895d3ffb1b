package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tilsley/treemirror/apps/mirror/internal/platform/metrics"
	"github.com/tilsley/treemirror/apps/mirror/internal/platform/telemetry"
	"github.com/tilsley/treemirror/pkg/api"
)

func newRunCmd(a *app) *cobra.Command {
	var includeContent bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Mirror the target once and print the summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var req api.RunRequest
			if cmd.Flags().Changed("include-content") {
				req.IncludeContent = &includeContent
			}
			return a.run(cmd.Context(), req)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&includeContent, "include-content", true, "download file contents")
	f.String("output", "", "output file for the file store")
	f.String("format", "", "output format: json or yaml")
	f.Duration("timeout", 0, "overall deadline for the run")
	f.String("index-output", "", "write the bundle index to this file")
	bindFlags(a.v, cmd, map[string]string{
		"output":       "output",
		"format":       "format",
		"timeout":      "timeout",
		"index.output": "index-output",
	})
	return cmd
}

func (a *app) run(parent context.Context, req api.RunRequest) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.New(ctx, cfg.Telemetry.Enabled, "run")
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

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	started := time.Now()
	summary, runErr := pipeline.svc.Run(ctx, "", req)
	m.ObserveRun(summary, time.Since(started))

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	fmt.Fprintln(a.stdout, string(out))
	return runErr
}
