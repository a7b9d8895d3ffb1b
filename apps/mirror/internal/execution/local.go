package execution

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tilsley/treemirror/apps/mirror/internal/mirror"
	"github.com/tilsley/treemirror/pkg/api"
)

// Runner is implemented by LocalRunner and by the Temporal engine.
type Runner interface {
	Start(ctx context.Context, runID string, req api.RunRequest) error
	GetStatus(ctx context.Context, runID string) (*api.RunStatus, error)
}

// LocalRunner runs mirror jobs in goroutines of the serving process. Statuses
// are kept in memory and lost on restart.
type LocalRunner struct {
	base     context.Context
	svc      Mirror
	observer mirror.RunObserver
	log      *slog.Logger

	mu   sync.Mutex
	runs map[string]*api.RunStatus
	wg   sync.WaitGroup
}

// NewLocalRunner creates a LocalRunner. Runs are cancelled when base is.
// observer may be nil.
func NewLocalRunner(base context.Context, svc Mirror, observer mirror.RunObserver, log *slog.Logger) *LocalRunner {
	return &LocalRunner{
		base:     base,
		svc:      svc,
		observer: observer,
		log:      log,
		runs:     make(map[string]*api.RunStatus),
	}
}

// Start launches a run and returns immediately. The request context is not
// used by the run itself, which outlives the HTTP request.
func (r *LocalRunner) Start(_ context.Context, runID string, req api.RunRequest) error {
	r.mu.Lock()
	r.runs[runID] = &api.RunStatus{ID: runID, State: api.RunRunning}
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.execute(runID, req)
	}()
	return nil
}

func (r *LocalRunner) execute(runID string, req api.RunRequest) {
	started := time.Now()
	state := api.RunCompleted

	var summary *api.Summary
	target, err := r.svc.Locate(r.base)
	if err != nil {
		summary = &api.Summary{Error: err.Error()}
	} else {
		summary, err = r.svc.Materialize(r.base, runID, target, r.svc.IncludeContent(req))
	}
	if err != nil {
		state = api.RunFailed
		r.log.Error("run failed", "run_id", runID, "error", err)
	}
	if r.observer != nil {
		r.observer.ObserveRun(summary, time.Since(started))
	}

	r.mu.Lock()
	r.runs[runID] = &api.RunStatus{ID: runID, State: state, Summary: summary}
	r.mu.Unlock()
}

// GetStatus returns a copy of the run's current status.
func (r *LocalRunner) GetStatus(_ context.Context, runID string) (*api.RunStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.runs[runID]
	if !ok {
		return nil, mirror.ErrRunNotFound
	}
	cp := *st
	return &cp, nil
}

// Wait blocks until every started run has finished.
func (r *LocalRunner) Wait() {
	r.wg.Wait()
}
