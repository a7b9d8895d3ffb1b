package temporalplatform

import (
	"context"
	"errors"
	"fmt"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/tilsley/treemirror/apps/mirror/internal/execution"
	"github.com/tilsley/treemirror/apps/mirror/internal/mirror"
	"github.com/tilsley/treemirror/pkg/api"
)

// Compile-time check: *Engine implements execution.Runner.
var _ execution.Runner = (*Engine)(nil)

const (
	taskQueue    = "treemirror"
	workflowName = "MirrorWorkflow"
)

// Engine starts mirror runs as Temporal workflows and reports on them.
type Engine struct {
	c client.Client
}

// NewEngine creates a new Temporal workflow engine.
func NewEngine(c client.Client) *Engine {
	return &Engine{c: c}
}

// TaskQueue returns the Temporal task queue name used by the engine.
func TaskQueue() string { return taskQueue }

// WorkflowName is the name MirrorWorkflow is registered under.
func WorkflowName() string { return workflowName }

// Start starts a MirrorWorkflow with the run ID as the workflow ID.
func (e *Engine) Start(ctx context.Context, runID string, req api.RunRequest) error {
	opts := client.StartWorkflowOptions{
		ID:        runID,
		TaskQueue: taskQueue,
	}
	if _, err := e.c.ExecuteWorkflow(ctx, opts, workflowName, req); err != nil {
		return fmt.Errorf("start workflow %q: %w", runID, err)
	}
	return nil
}

// GetStatus describes the workflow and, once it has closed, decodes its summary.
func (e *Engine) GetStatus(ctx context.Context, runID string) (*api.RunStatus, error) {
	desc, err := e.c.DescribeWorkflowExecution(ctx, runID, "")
	if err != nil {
		var nf *serviceerror.NotFound
		if errors.As(err, &nf) {
			return nil, mirror.ErrRunNotFound
		}
		return nil, fmt.Errorf("describe workflow %q: %w", runID, err)
	}

	st := &api.RunStatus{ID: runID, State: mapTemporalStatus(desc.GetWorkflowExecutionInfo().GetStatus())}
	if st.State == api.RunRunning {
		return st, nil
	}

	var summary api.Summary
	if err := e.c.GetWorkflow(ctx, runID, "").Get(ctx, &summary); err != nil {
		summary = api.Summary{Error: err.Error()}
	}
	st.Summary = &summary
	return st, nil
}

func mapTemporalStatus(s enumspb.WorkflowExecutionStatus) api.RunState {
	switch s {
	case enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		return api.RunCompleted
	case enumspb.WORKFLOW_EXECUTION_STATUS_FAILED,
		enumspb.WORKFLOW_EXECUTION_STATUS_CANCELED,
		enumspb.WORKFLOW_EXECUTION_STATUS_TERMINATED,
		enumspb.WORKFLOW_EXECUTION_STATUS_TIMED_OUT:
		return api.RunFailed
	default:
		return api.RunRunning
	}
}
