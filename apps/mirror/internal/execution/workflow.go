// Package execution runs mirror jobs as Temporal workflows.
package execution

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/tilsley/treemirror/apps/mirror/internal/gitrepo"
	"github.com/tilsley/treemirror/pkg/api"
)

// MirrorWorkflow locates the target and then materializes it.
//
// The walk itself happens inside MaterializeTarget; the workflow carries only
// the located entry and the final summary. The workflow ID doubles as the
// snapshot ID.
func MirrorWorkflow(ctx workflow.Context, req api.RunRequest) (api.Summary, error) {
	log := workflow.GetLogger(ctx)
	runID := workflow.GetInfo(ctx).WorkflowExecution.ID

	locateCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{errTypeNotFound},
		},
	})
	var target gitrepo.DirEntry
	if err := workflow.ExecuteActivity(locateCtx, "LocateTarget").Get(ctx, &target); err != nil {
		log.Error("locate failed", "error", err)
		return api.Summary{Error: err.Error()}, err
	}

	// Expansion records its own failures in the tree; a retry would only
	// repeat the whole walk, so a failed save is final.
	materializeCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 6 * time.Hour,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	var summary api.Summary
	in := MaterializeInput{RunID: runID, Target: target, Request: req}
	if err := workflow.ExecuteActivity(materializeCtx, "MaterializeTarget", in).Get(ctx, &summary); err != nil {
		log.Error("materialize failed", "target", target.Path, "error", err)
		return api.Summary{Error: err.Error()}, err
	}

	log.Info("mirror workflow complete", "target", summary.TargetPath,
		"directories", summary.Directories, "files", summary.Files)
	return summary, nil
}
