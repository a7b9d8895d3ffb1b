package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/tilsley/treemirror/apps/mirror/internal/gitrepo"
	"github.com/tilsley/treemirror/apps/mirror/internal/mirror"
	"github.com/tilsley/treemirror/pkg/api"
)

const (
	instrName = "github.com/tilsley/treemirror"

	// errTypeNotFound marks a locate failure that retrying cannot fix.
	errTypeNotFound = "TargetNotFound"
)

// Mirror is the part of mirror.Service the activities drive.
type Mirror interface {
	Locate(ctx context.Context) (gitrepo.DirEntry, error)
	Materialize(ctx context.Context, runID string, target gitrepo.DirEntry, includeContent bool) (*api.Summary, error)
	IncludeContent(req api.RunRequest) bool
}

var _ Mirror = (*mirror.Service)(nil)

// MaterializeInput is the input for the MaterializeTarget activity.
type MaterializeInput struct {
	RunID   string           `json:"runId"`
	Target  gitrepo.DirEntry `json:"target"`
	Request api.RunRequest   `json:"request"`
}

// Activities groups Temporal activity methods. The struct holds dependencies
// injected at startup.
type Activities struct {
	svc Mirror
	log *slog.Logger
}

// NewActivities creates a new Activities instance with the given dependencies.
func NewActivities(svc Mirror, log *slog.Logger) *Activities {
	return &Activities{svc: svc, log: log}
}

// LocateTarget finds the target directory. A missing target fails without retry.
func (a *Activities) LocateTarget(ctx context.Context) (gitrepo.DirEntry, error) {
	ctx, span := otel.Tracer(instrName).Start(ctx, "LocateTarget")
	defer span.End()

	target, err := a.svc.Locate(ctx)
	if err != nil {
		span.RecordError(err)
		var nf mirror.NotFoundError
		if errors.As(err, &nf) {
			return gitrepo.DirEntry{}, temporal.NewNonRetryableApplicationError(err.Error(), errTypeNotFound, err)
		}
		return gitrepo.DirEntry{}, fmt.Errorf("locate target: %w", err)
	}
	a.log.Info("LocateTarget activity found target", "path", target.Path)
	return target, nil
}

// MaterializeTarget expands and stores the tree inside the activity so that
// only the summary crosses the Temporal boundary.
func (a *Activities) MaterializeTarget(ctx context.Context, in MaterializeInput) (api.Summary, error) {
	ctx, span := otel.Tracer(instrName).Start(ctx, "MaterializeTarget",
		trace.WithAttributes(
			attribute.String("run.id", in.RunID),
			attribute.String("target.path", in.Target.Path),
		),
	)
	defer span.End()

	runID := in.RunID
	if runID == "" {
		runID = activity.GetInfo(ctx).WorkflowExecution.ID
	}
	summary, err := a.svc.Materialize(ctx, runID, in.Target, a.svc.IncludeContent(in.Request))
	if err != nil {
		span.RecordError(err)
		return api.Summary{}, fmt.Errorf("materialize %q: %w", in.Target.Path, err)
	}
	return *summary, nil
}
