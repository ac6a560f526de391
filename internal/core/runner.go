package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/catalogimport/internal/logging"
)

// ErrRunNotFound is returned for an unknown or expired run id.
var ErrRunNotFound = errors.New("import run not found")

// DefaultRetainFor is how long a finished run stays queryable.
const DefaultRetainFor = 5 * time.Minute

// RunnerOptions tune a Runner.
type RunnerOptions struct {
	MaxConcurrent int           // simultaneous runs
	MaxWait       time.Duration // how long Start waits for a free slot
	RetainFor     time.Duration // how long finished runs are kept
	RunTimeout    time.Duration // upper bound for one run; 0 means none
}

// RunStatus describes one run.
type RunStatus struct {
	ID         string         `json:"id"`
	FilePath   string         `json:"filePath"`
	State      RunState       `json:"state"`
	Progress   Progress       `json:"progress"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt,omitzero"`
	Outcome    *ImportOutcome `json:"outcome,omitempty"`
}

// Runner executes pipeline runs in the background, one store session per run.
type Runner struct {
	opener  SessionOpener
	updater EntityUpdater
	base    Config
	opts    RunnerOptions
	limiter *RunLimiter

	mu   sync.RWMutex
	runs map[string]*activeRun
	wg   sync.WaitGroup
}

type activeRun struct {
	id       string
	filePath string
	started  time.Time
	cancel   context.CancelFunc
	done     chan struct{}
	exec     *StepExecution

	mu       sync.Mutex
	pipeline *Pipeline
	outcome  *ImportOutcome
	err      error
	finished time.Time
	once     sync.Once
}

// NewRunner creates a runner. base supplies every Config field except
// FilePath, which each Start sets.
func NewRunner(opener SessionOpener, updater EntityUpdater, base Config, opts RunnerOptions) *Runner {
	if opts.RetainFor <= 0 {
		opts.RetainFor = DefaultRetainFor
	}
	return &Runner{
		opener:  opener,
		updater: updater,
		base:    base,
		opts:    opts,
		limiter: NewRunLimiter(opts.MaxConcurrent, opts.MaxWait),
		runs:    make(map[string]*activeRun),
	}
}

// Start validates the run configuration, waits for a free slot and starts
// importing filePath in the background. It returns the run id.
//
// Returns a *ConfigurationError for an invalid configuration and
// ErrTooManyRuns when no slot frees up in time.
func (r *Runner) Start(ctx context.Context, filePath string) (string, error) {
	cfg := r.base
	cfg.FilePath = filePath
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	if err := r.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	id := uuid.NewString()
	runCtx := logging.ContextWithRunID(context.Background(), id)
	var cancel context.CancelFunc
	if r.opts.RunTimeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, r.opts.RunTimeout)
	} else {
		runCtx, cancel = context.WithCancel(runCtx)
	}

	rn := &activeRun{
		id:       id,
		filePath: filePath,
		started:  time.Now(),
		cancel:   cancel,
		done:     make(chan struct{}),
		exec:     NewStepExecution(),
	}

	r.mu.Lock()
	r.runs[id] = rn
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.limiter.Release()
		defer func() {
			if p := recover(); p != nil {
				slog.Error("panic in import run", "run_id", id, "panic", p)
				rn.finish(nil, fmt.Errorf("internal error: %v", p))
			}
		}()
		r.execute(runCtx, rn, cfg)
	}()

	return id, nil
}

func (r *Runner) execute(ctx context.Context, rn *activeRun, cfg Config) {
	defer r.cleanup(rn.id)
	defer rn.cancel()

	out, err := r.runSession(ctx, rn, cfg)
	rn.finish(out, err)
}

// runSession runs the pipeline inside its own store session. The session is
// closed before the result is published.
func (r *Runner) runSession(ctx context.Context, rn *activeRun, cfg Config) (*ImportOutcome, error) {
	session, err := r.opener.Open(ctx)
	if err != nil {
		return nil, Fatal("open session", err)
	}
	defer func() {
		if err := session.Close(context.WithoutCancel(ctx)); err != nil {
			logging.FromContext(ctx).Warn("close session", "error", err)
		}
	}()

	p, err := New(cfg, SessionDependencies(session, r.updater))
	if err != nil {
		return nil, err
	}
	rn.mu.Lock()
	rn.pipeline = p
	rn.mu.Unlock()

	err = p.Run(ctx, rn.exec)
	return p.Outcome(rn.exec, time.Since(rn.started), err), err
}

// finish records the result once. A nil outcome means the run failed before
// a pipeline existed.
func (rn *activeRun) finish(out *ImportOutcome, err error) {
	rn.once.Do(func() {
		if out == nil {
			out = &ImportOutcome{
				Counters: rn.exec.Counters(),
				Warnings: rn.exec.Warnings(),
				State:    StateFailed,
				Duration: time.Since(rn.started),
			}
			if err != nil {
				out.Fatal = err.Error()
			}
		}
		rn.mu.Lock()
		rn.outcome = out
		rn.err = err
		rn.finished = time.Now()
		rn.mu.Unlock()
		close(rn.done)
	})
}

func (rn *activeRun) status() RunStatus {
	rn.mu.Lock()
	defer rn.mu.Unlock()

	st := RunStatus{
		ID:         rn.id,
		FilePath:   rn.filePath,
		State:      StateIdle,
		StartedAt:  rn.started,
		FinishedAt: rn.finished,
		Outcome:    rn.outcome,
	}
	if rn.pipeline != nil {
		st.Progress = rn.pipeline.Snapshot()
		st.State = st.Progress.State
	}
	if rn.outcome != nil {
		st.State = rn.outcome.State
	}
	return st
}

func (r *Runner) get(id string) (*activeRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rn, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return rn, nil
}

// Status returns the status of a run.
func (r *Runner) Status(id string) (RunStatus, error) {
	rn, err := r.get(id)
	if err != nil {
		return RunStatus{}, err
	}
	return rn.status(), nil
}

// List returns every known run, oldest first.
func (r *Runner) List() []RunStatus {
	r.mu.RLock()
	runs := make([]*activeRun, 0, len(r.runs))
	for _, rn := range r.runs {
		runs = append(runs, rn)
	}
	r.mu.RUnlock()

	out := make([]RunStatus, len(runs))
	for i, rn := range runs {
		out[i] = rn.status()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Cancel asks a run to stop after its current record.
func (r *Runner) Cancel(id string) error {
	rn, err := r.get(id)
	if err != nil {
		return err
	}
	rn.cancel()
	return nil
}

// CancelAll cancels every unfinished run.
func (r *Runner) CancelAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rn := range r.runs {
		rn.cancel()
	}
}

// Wait blocks until the run finishes and returns its outcome and error.
func (r *Runner) Wait(ctx context.Context, id string) (*ImportOutcome, error) {
	rn, err := r.get(id)
	if err != nil {
		return nil, err
	}
	select {
	case <-rn.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	rn.mu.Lock()
	defer rn.mu.Unlock()
	return rn.outcome, rn.err
}

// WaitForRuns blocks until every started run has finished or ctx is done.
func (r *Runner) WaitForRuns(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Limiter exposes the run limiter for status reporting.
func (r *Runner) Limiter() LimiterStatus {
	return r.limiter.Status()
}

func (r *Runner) cleanup(id string) {
	time.AfterFunc(r.opts.RetainFor, func() {
		r.mu.Lock()
		delete(r.runs, id)
		r.mu.Unlock()
	})
}
