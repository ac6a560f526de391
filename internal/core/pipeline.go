package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/catalogimport/internal/logging"
)

// RunState is the lifecycle state of a pipeline run.
type RunState string

const (
	StateIdle       RunState = "idle"
	StateReading    RunState = "reading"
	StateProcessing RunState = "processing"
	StateFinalizing RunState = "finalizing"
	StateDone       RunState = "done"
	StateFailed     RunState = "failed"
	StateCancelled  RunState = "cancelled"
)

// Terminal reports whether no further transitions can happen.
func (s RunState) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateCancelled
}

// Defaults for Config.
const (
	DefaultLocale           = "en_US"
	DefaultScope            = "ecommerce"
	DefaultElementName      = "import_processor"
	DefaultRecordTimeout    = 30 * time.Second
	DefaultFlushTimeout     = 2 * time.Minute
	DefaultProgressInterval = 100
)

// Config configures one pipeline run.
type Config struct {
	FilePath         string
	Delimiter        byte
	DefaultLocale    string // locale used for the identity lookup
	DefaultScope     string // scope used for the identity lookup
	Strict           bool   // decode composite column names and validate them
	RecordTimeout    time.Duration
	FlushTimeout     time.Duration
	ElementName      string // element name attached to warnings
	ProgressInterval int    // records between progress callbacks; 0 disables
}

// DefaultConfig returns a strict configuration for filePath.
func DefaultConfig(filePath string) Config {
	return Config{
		FilePath:         filePath,
		Delimiter:        DefaultDelimiter,
		DefaultLocale:    DefaultLocale,
		DefaultScope:     DefaultScope,
		Strict:           true,
		RecordTimeout:    DefaultRecordTimeout,
		FlushTimeout:     DefaultFlushTimeout,
		ElementName:      DefaultElementName,
		ProgressInterval: DefaultProgressInterval,
	}
}

// Validate returns a *ConfigurationError listing every problem found.
func (c Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.FilePath) == "" {
		problems = append(problems, "file path is required")
	}
	switch c.Delimiter {
	case 0, '\n', '\r':
		problems = append(problems, fmt.Sprintf("invalid delimiter %q", c.Delimiter))
	}
	if strings.TrimSpace(c.DefaultLocale) == "" {
		problems = append(problems, "default locale is required")
	}
	if strings.TrimSpace(c.DefaultScope) == "" {
		problems = append(problems, "default scope is required")
	}
	if c.RecordTimeout <= 0 {
		problems = append(problems, "record timeout must be positive")
	}
	if c.FlushTimeout <= 0 {
		problems = append(problems, "flush timeout must be positive")
	}
	if strings.TrimSpace(c.ElementName) == "" {
		problems = append(problems, "element name is required")
	}
	if c.ProgressInterval < 0 {
		problems = append(problems, "progress interval must not be negative")
	}

	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}

// Progress is a snapshot passed to a ProgressFunc.
type Progress struct {
	State      RunState `json:"state"`
	Records    int      `json:"records"`
	BytesRead  int64    `json:"bytesRead"`
	TotalBytes int64    `json:"totalBytes"`
	Percent    int      `json:"percent"`
}

// ProgressFunc receives progress snapshots. It is called from the run's
// goroutine and must not block.
type ProgressFunc func(Progress)

// Dependencies are the collaborators a pipeline drives.
type Dependencies struct {
	Query    EntityQuery
	Updater  EntityUpdater
	Factory  EntityFactory
	Saver    Saver
	Progress ProgressFunc // optional
}

// SessionDependencies wires a store session and an updater into Dependencies.
func SessionDependencies(s Session, updater EntityUpdater) Dependencies {
	return Dependencies{Query: s, Updater: updater, Factory: s, Saver: s}
}

// Pipeline imports one file: parse, resolve, merge and persist every record,
// isolating failures to the record that caused them.
type Pipeline struct {
	cfg      Config
	deps     Dependencies
	resolver *IdentityResolver
	merger   *Merger

	mu      sync.Mutex
	state   RunState
	records int
	counter *CountingReader
}

// New validates cfg and deps and returns an idle pipeline.
func New(cfg Config, deps Dependencies) (*Pipeline, error) {
	var problems []string
	if err := cfg.Validate(); err != nil {
		var ce *ConfigurationError
		errors.As(err, &ce)
		problems = append(problems, ce.Problems...)
	}
	if deps.Query == nil {
		problems = append(problems, "entity query is required")
	}
	if deps.Updater == nil {
		problems = append(problems, "entity updater is required")
	}
	if deps.Factory == nil {
		problems = append(problems, "entity factory is required")
	}
	if deps.Saver == nil {
		problems = append(problems, "saver is required")
	}
	if len(problems) > 0 {
		return nil, &ConfigurationError{Problems: problems}
	}

	return &Pipeline{
		cfg:      cfg,
		deps:     deps,
		resolver: NewIdentityResolver(deps.Query, cfg.DefaultLocale, cfg.DefaultScope),
		merger:   NewMerger(deps.Updater, cfg.Strict),
		state:    StateIdle,
	}, nil
}

// State returns the current run state.
func (p *Pipeline) State() RunState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Snapshot returns the current progress.
func (p *Pipeline) Snapshot() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Pipeline) snapshotLocked() Progress {
	prog := Progress{State: p.state, Records: p.records}
	if p.counter != nil {
		prog.BytesRead = p.counter.BytesRead()
		prog.TotalBytes = p.counter.Total()
		prog.Percent = p.counter.Progress()
	}
	return prog
}

func (p *Pipeline) setState(s RunState) {
	p.mu.Lock()
	p.state = s
	prog := p.snapshotLocked()
	p.mu.Unlock()
	p.notify(prog)
}

func (p *Pipeline) recordDone() {
	p.mu.Lock()
	p.records++
	n := p.records
	prog := p.snapshotLocked()
	p.mu.Unlock()
	if p.cfg.ProgressInterval > 0 && n%p.cfg.ProgressInterval == 0 {
		p.notify(prog)
	}
}

func (p *Pipeline) notify(prog Progress) {
	if p.deps.Progress != nil {
		p.deps.Progress(prog)
	}
}

// Run executes the import, reporting counters and warnings to exec.
//
// Record-level failures never escape: each becomes one warning and the run
// continues. Cancelling ctx stops the run before the next record; the record
// in flight finishes under its own timeout. Run returns a *FatalError when the
// run cannot continue, ErrRunCancelled after cancellation, or nil.
func (p *Pipeline) Run(ctx context.Context, exec ExecutionContext) error {
	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		return Fatal("run", errors.New("pipeline has already run"))
	}
	p.state = StateReading
	p.mu.Unlock()
	p.notify(p.Snapshot())

	log := logging.WithFields(ctx, "file", p.cfg.FilePath, "strict", p.cfg.Strict)
	start := time.Now()
	log.Info("import started")

	f, err := os.Open(p.cfg.FilePath)
	if err != nil {
		return p.fail(log, Fatal("open input", err))
	}
	defer f.Close()

	var size int64
	if fi, err := f.Stat(); err == nil {
		size = fi.Size()
	}
	counter := WrapForStreaming(f, size)
	p.mu.Lock()
	p.counter = counter
	p.mu.Unlock()

	rr, err := NewRecordReader(counter, p.cfg.Delimiter)
	if err != nil {
		return p.fail(log, Fatal("read header", err))
	}
	if p.cfg.Strict {
		if _, err := DecodeHeader(rr.Header()); err != nil {
			return p.fail(log, Fatal("decode header", err))
		}
	}

	identifier := p.deps.Factory.IdentifierAttribute()
	p.setState(StateProcessing)

	cancelled := false
	for !cancelled {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		rec, err := rr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var arity *RecordArityError
			if !errors.As(err, &arity) {
				return p.fail(log, Fatal("read records", err))
			}
			p.warn(ctx, exec, &RecordError{Line: arity.Line, Stage: StageParsing, Err: err},
				map[string]string{"raw": arity.Raw})
			p.recordDone()
			continue
		}

		res := p.processRecord(ctx, rec, identifier)
		switch {
		case res.err == nil:
			exec.IncrementCounter(CounterImported)
			if res.created {
				exec.IncrementCounter(CounterCreated)
			} else {
				exec.IncrementCounter(CounterUpdated)
			}
		case IsFatal(res.err):
			return p.fail(log, res.err)
		default:
			p.warn(ctx, exec, res.err, rec.Map())
		}
		p.recordDone()
	}

	for i := 0; i < rr.BlankLines(); i++ {
		exec.IncrementCounter(CounterBlankLines)
	}

	if err := p.flush(ctx, cancelled); err != nil {
		return p.fail(log, err)
	}

	if cancelled {
		p.setState(StateCancelled)
		log.Info("import cancelled", "records", p.Snapshot().Records, "duration_ms", time.Since(start).Milliseconds())
		return ErrRunCancelled
	}

	p.setState(StateDone)
	log.Info("import completed", "records", p.Snapshot().Records, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// recordResult is the outcome of one record. err is a *RecordError unless
// the store reported a fatal failure.
type recordResult struct {
	created bool
	err     error
}

func (p *Pipeline) processRecord(ctx context.Context, rec Record, identifier string) recordResult {
	raw, _ := rec.Get(identifier)
	id := strings.TrimSpace(raw)
	failed := func(stage RecordStage, err error) recordResult {
		if IsFatal(err) {
			return recordResult{err: err}
		}
		return recordResult{err: &RecordError{Line: rec.Line, Identifier: id, Stage: stage, Err: err}}
	}
	if id == "" {
		return failed(StageResolving, ErrMissingIdentifier)
	}

	// cancellation is only observed between records
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.RecordTimeout)
	defer cancel()

	entity, err := p.resolver.Resolve(rctx, identifier, id)
	if err != nil {
		return failed(StageResolving, err)
	}

	if entity == nil {
		entity = p.deps.Factory.NewEntity()
		if entity == nil {
			return failed(StageCreating, errors.New("factory returned no entity"))
		}
		entity.AddValue(p.deps.Factory.NewIdentifierValue(id))
	}
	created := entity.IsNew()

	if err := p.merger.Merge(rctx, entity, rec, identifier); err != nil {
		return failed(StageMerging, err)
	}

	if err := p.deps.Saver.Save(rctx, entity); err != nil {
		return failed(StagePersisting, err)
	}
	return recordResult{created: created}
}

// flush commits saved work once. After cancellation the caller's context is
// already done, so the flush runs detached from it within FlushTimeout.
func (p *Pipeline) flush(ctx context.Context, cancelled bool) error {
	p.setState(StateFinalizing)

	base := ctx
	if cancelled {
		base = context.WithoutCancel(ctx)
	}
	fctx, cancel := context.WithTimeout(base, p.cfg.FlushTimeout)
	defer cancel()

	if err := p.deps.Saver.Flush(fctx); err != nil {
		return Fatal("flush", err)
	}
	return nil
}

func (p *Pipeline) warn(ctx context.Context, exec ExecutionContext, err error, item map[string]string) {
	params := map[string]any{"code": MapError(err).Code}

	var re *RecordError
	if errors.As(err, &re) {
		params["line"] = re.Line
		params["stage"] = string(re.Stage)
		if re.Identifier != "" {
			params["identifier"] = re.Identifier
		}
	}

	exec.AddWarning(p.cfg.ElementName, err.Error(), params, item)
	exec.IncrementCounter(CounterWarned)
	logging.FromContext(ctx).Debug("record skipped", "error", err)
}

func (p *Pipeline) fail(log *slog.Logger, err error) error {
	p.setState(StateFailed)
	log.Error("import failed", "error", err)
	return err
}

// Import runs the pipeline with a fresh StepExecution and returns the outcome.
// The outcome is returned even when err is not nil.
func (p *Pipeline) Import(ctx context.Context) (*ImportOutcome, error) {
	exec := NewStepExecution()
	start := time.Now()
	err := p.Run(ctx, exec)
	return p.Outcome(exec, time.Since(start), err), err
}

// Outcome builds the outcome of a run that reported to exec.
func (p *Pipeline) Outcome(exec *StepExecution, elapsed time.Duration, runErr error) *ImportOutcome {
	prog := p.Snapshot()
	out := &ImportOutcome{
		Counters:  exec.Counters(),
		Warnings:  exec.Warnings(),
		State:     prog.State,
		Duration:  elapsed,
		BytesRead: prog.BytesRead,
	}
	if runErr != nil && !errors.Is(runErr, ErrRunCancelled) {
		out.Fatal = runErr.Error()
	}
	return out
}
