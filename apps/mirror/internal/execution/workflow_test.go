package execution_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/tilsley/treemirror/apps/mirror/internal/execution"
	"github.com/tilsley/treemirror/apps/mirror/internal/gitrepo"
	"github.com/tilsley/treemirror/apps/mirror/internal/mirror"
	"github.com/tilsley/treemirror/pkg/api"
	"github.com/tilsley/treemirror/pkg/logging"
)

func ptr[T any](v T) *T { return &v }

// ─── stubMirror ───────────────────────────────────────────────────────────────

type stubMirror struct {
	target     gitrepo.DirEntry
	locateErr  error
	summary    *api.Summary
	saveErr    error
	defaultInc bool

	gotRunID   string
	gotInclude bool
}

func (s *stubMirror) Locate(context.Context) (gitrepo.DirEntry, error) {
	return s.target, s.locateErr
}

func (s *stubMirror) Materialize(_ context.Context, runID string, _ gitrepo.DirEntry, include bool) (*api.Summary, error) {
	s.gotRunID = runID
	s.gotInclude = include
	if s.saveErr != nil {
		return &api.Summary{Error: s.saveErr.Error()}, s.saveErr
	}
	return s.summary, nil
}

func (s *stubMirror) IncludeContent(req api.RunRequest) bool {
	if req.IncludeContent != nil {
		return *req.IncludeContent
	}
	return s.defaultInc
}

var tab = gitrepo.Dir("pyRevit.tab", "extensions/pyRevitCore.extension/pyRevit.tab")

// ─── Workflow ─────────────────────────────────────────────────────────────────

func TestMirrorWorkflow_Success(t *testing.T) {
	ts := &testsuite.WorkflowTestSuite{}
	env := ts.NewTestWorkflowEnvironment()

	acts := execution.NewActivities(nil, logging.Discard())
	env.RegisterActivity(acts)

	env.OnActivity(acts.LocateTarget, mock.Anything).Return(tab, nil)
	env.OnActivity(acts.MaterializeTarget, mock.Anything, mock.Anything).
		Return(func(_ context.Context, in execution.MaterializeInput) (api.Summary, error) {
			assert.Equal(t, tab, in.Target)
			assert.NotEmpty(t, in.RunID)
			assert.Equal(t, ptr(false), in.Request.IncludeContent)
			return api.Summary{TargetPath: in.Target.Path, Counts: api.Counts{Directories: 3, Files: 5}}, nil
		})

	env.ExecuteWorkflow(execution.MirrorWorkflow, api.RunRequest{IncludeContent: ptr(false)})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var summary api.Summary
	require.NoError(t, env.GetWorkflowResult(&summary))
	assert.Equal(t, tab.Path, summary.TargetPath)
	assert.Equal(t, api.Counts{Directories: 3, Files: 5}, summary.Counts)
	assert.Empty(t, summary.Error)
}

func TestMirrorWorkflow_NotFound_NoMaterialize(t *testing.T) {
	ts := &testsuite.WorkflowTestSuite{}
	env := ts.NewTestWorkflowEnvironment()

	acts := execution.NewActivities(nil, logging.Discard())
	env.RegisterActivity(acts)

	notFound := temporal.NewNonRetryableApplicationError("pyRevit.tab directory not found", "TargetNotFound", nil)
	env.OnActivity(acts.LocateTarget, mock.Anything).Return(gitrepo.DirEntry{}, notFound).Once()

	env.ExecuteWorkflow(execution.MirrorWorkflow, api.RunRequest{})

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	env.AssertNotCalled(t, "MaterializeTarget", mock.Anything, mock.Anything)
}

func TestMirrorWorkflow_MaterializeFails(t *testing.T) {
	ts := &testsuite.WorkflowTestSuite{}
	env := ts.NewTestWorkflowEnvironment()

	acts := execution.NewActivities(nil, logging.Discard())
	env.RegisterActivity(acts)

	env.OnActivity(acts.LocateTarget, mock.Anything).Return(tab, nil)
	env.OnActivity(acts.MaterializeTarget, mock.Anything, mock.Anything).
		Return(api.Summary{}, errors.New("save to redis: connection refused")).Once()

	env.ExecuteWorkflow(execution.MirrorWorkflow, api.RunRequest{})

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

// ─── Activities ───────────────────────────────────────────────────────────────

func TestLocateTarget_NotFound_IsNonRetryable(t *testing.T) {
	ts := &testsuite.WorkflowTestSuite{}
	env := ts.NewTestActivityEnvironment()
	stub := &stubMirror{locateErr: mirror.NotFoundError{Target: "pyRevit.tab", Start: "extensions"}}
	env.RegisterActivity(execution.NewActivities(stub, logging.Discard()))

	_, err := env.ExecuteActivity("LocateTarget")

	require.Error(t, err)
	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.NonRetryable())
	assert.Equal(t, "TargetNotFound", appErr.Type())
}

func TestLocateTarget_Success(t *testing.T) {
	ts := &testsuite.WorkflowTestSuite{}
	env := ts.NewTestActivityEnvironment()
	env.RegisterActivity(execution.NewActivities(&stubMirror{target: tab}, logging.Discard()))

	val, err := env.ExecuteActivity("LocateTarget")
	require.NoError(t, err)

	var got gitrepo.DirEntry
	require.NoError(t, val.Get(&got))
	assert.Equal(t, tab, got)
}

func TestMaterializeTarget_ResolvesIncludeContent(t *testing.T) {
	ts := &testsuite.WorkflowTestSuite{}
	env := ts.NewTestActivityEnvironment()
	stub := &stubMirror{
		defaultInc: true,
		summary:    &api.Summary{TargetPath: tab.Path, Counts: api.Counts{Directories: 1, Files: 2}},
	}
	env.RegisterActivity(execution.NewActivities(stub, logging.Discard()))

	val, err := env.ExecuteActivity("MaterializeTarget", execution.MaterializeInput{
		RunID:  "run-7",
		Target: tab,
	})
	require.NoError(t, err)

	var got api.Summary
	require.NoError(t, val.Get(&got))
	assert.Equal(t, 2, got.Files)
	assert.Equal(t, "run-7", stub.gotRunID)
	assert.True(t, stub.gotInclude)
}

func TestMaterializeTarget_SaveError(t *testing.T) {
	ts := &testsuite.WorkflowTestSuite{}
	env := ts.NewTestActivityEnvironment()
	stub := &stubMirror{saveErr: mirror.SaveError{Store: "file", Err: errors.New("read-only")}}
	env.RegisterActivity(execution.NewActivities(stub, logging.Discard()))

	_, err := env.ExecuteActivity("MaterializeTarget", execution.MaterializeInput{RunID: "run-8", Target: tab})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only")
}
