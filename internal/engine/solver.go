package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/unravel/internal/config"
	"github.com/ShayCichocki/unravel/internal/oracle"
	"github.com/ShayCichocki/unravel/internal/problem"
	"github.com/ShayCichocki/unravel/internal/strategy"
	"github.com/ShayCichocki/unravel/internal/timeline"
	"github.com/ShayCichocki/unravel/internal/workflow"
)

// defaultObjective is used when the caller does not state one.
const defaultObjective = "solve the problem completely"

// Solver owns one solve session: the shared timeline, the workflow arena,
// and the strategy stack. A Solver is created per session and drives the
// whole recursion tree; generated programs re-enter it through the runtime's
// Recurse.
type Solver struct {
	cfg      *config.Config
	oracle   oracle.Oracle
	arena    *workflow.Arena
	tl       *timeline.Timeline
	selector *strategy.Selector
	logger   *DebugLogger
	store    *timeline.Store

	sessionID string

	input    func(prompt string) (string, error)
	onResult func(value string)
	onTrace  func(text string)
}

// Option configures a Solver.
type Option func(*Solver)

// WithUserInput supplies the provider answering request_user_input steps.
func WithUserInput(fn func(prompt string) (string, error)) Option {
	return func(s *Solver) { s.input = fn }
}

// WithResultSink receives every emitted result value as it is produced.
func WithResultSink(fn func(value string)) Option {
	return func(s *Solver) { s.onResult = fn }
}

// WithTraceSink receives reasoning traces as they are emitted.
func WithTraceSink(fn func(text string)) Option {
	return func(s *Solver) { s.onTrace = fn }
}

// WithLogger sets the debug logger for this solver.
func WithLogger(l *DebugLogger) Option {
	return func(s *Solver) { s.logger = l }
}

// WithStore enables SQLite archival of the session timeline.
func WithStore(store *timeline.Store) Option {
	return func(s *Solver) { s.store = store }
}

// New creates a Solver for one session.
func New(cfg *config.Config, o oracle.Oracle, opts ...Option) *Solver {
	if cfg == nil {
		cfg = config.Default()
	}

	arena := workflow.NewArena()
	tl := timeline.New()

	s := &Solver{
		cfg:       cfg,
		oracle:    o,
		arena:     arena,
		tl:        tl,
		sessionID: uuid.New().String(),
		logger:    NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	setPackageLogger(s.logger)

	loopCfg := strategy.LoopConfig{
		Window:          cfg.Loop.Window,
		RepeatThreshold: cfg.Loop.RepeatThreshold,
		RapidRise:       cfg.Loop.RapidRise,
		RapidWindow:     cfg.Loop.RapidWindow,
	}

	recursive := strategy.NewRecursive(arena, tl, o, strategy.RecursiveConfig{
		MaxDepth:      cfg.Engine.MaxDepth,
		OracleTimeout: cfg.Engine.OracleTimeout,
		Loop:          loopCfg,
	})
	iterative := strategy.NewIterative(arena, tl, o, cfg.Engine.OracleTimeout)
	parallel := strategy.NewParallel(arena, tl, cfg.Engine.MaxDepth)

	s.selector = strategy.NewSelector(
		cfg.Strategies.Priority,
		[]strategy.Strategy{recursive, iterative, parallel},
		recursive,
	)

	return s
}

// SessionID returns the unique id of this solve session.
func (s *Solver) SessionID() string {
	return s.sessionID
}

// Timeline returns the session's shared timeline.
func (s *Solver) Timeline() *timeline.Timeline {
	return s.tl
}

// Arena returns the session's workflow arena.
func (s *Solver) Arena() *workflow.Arena {
	return s.arena
}

// Solve runs the full pipeline for an externally-initiated problem: it
// starts a conversation turn, creates the root workflow through strategy
// selection, executes it, and returns the final result. On failure it
// returns a single TerminalError; the timeline carries the audit trail
// either way.
func (s *Solver) Solve(ctx context.Context, problemStatement, objective string) (string, error) {
	if objective == "" {
		objective = defaultObjective
	}

	turn := s.tl.StartTurn(problemStatement)
	debugLog("solve: turn %d problem=%q", turn, problemStatement)

	started := time.Now()
	if s.store != nil {
		if err := s.store.BeginSession(s.sessionID, problemStatement, started); err != nil {
			debugLog("solve: archive begin failed: %v", err)
		}
	}

	pctx := problem.New(problemStatement, objective)
	result, err := s.solveContext(ctx, pctx, nil)

	s.archive(result, err, time.Now())

	if err != nil {
		debugLog("solve: turn %d failed: %v", turn, err)
		return "", &TerminalError{Problem: problemStatement, Err: err}
	}

	debugLog("solve: turn %d done in %s", turn, time.Since(started))
	return result, nil
}

// Plan creates the root workflow for the problem without executing it, for
// inspect-before-run use. The returned instance is Ready; executing it is
// the caller's choice.
func (s *Solver) Plan(ctx context.Context, problemStatement, objective string) (*workflow.Instance, error) {
	if objective == "" {
		objective = defaultObjective
	}

	s.tl.StartTurn(problemStatement)
	pctx := problem.New(problemStatement, objective)

	st := s.selector.Select(pctx.Statement, pctx)
	debugLog("plan: strategy=%s problem=%q", st.Name(), problemStatement)

	inst, err := st.CreateWorkflow(ctx, pctx, nil)
	if err != nil {
		return nil, &TerminalError{Problem: problemStatement, Err: err}
	}
	return inst, nil
}

// solveContext runs strategy selection, workflow creation, and execution
// for one (sub-)problem. It is re-entered by generated programs through
// the runtime's Recurse; internal re-entry never starts a new turn.
func (s *Solver) solveContext(ctx context.Context, pctx problem.Context, parent *workflow.Instance) (string, error) {
	st := s.selector.Select(pctx.Statement, pctx)
	debugLog("solveContext: depth=%d strategy=%s problem=%q", pctx.Depth, st.Name(), pctx.Statement)

	inst, err := st.CreateWorkflow(ctx, pctx, parent)
	if err != nil {
		return "", fmt.Errorf("create workflow: %w", err)
	}

	return s.execute(ctx, inst)
}

// execute runs one workflow under the configured whole-workflow timeout.
// The deadline is surfaced through the workflow's own error path, so a
// timeout ends up as a workflow_error event like any other failure.
func (s *Solver) execute(ctx context.Context, inst *workflow.Instance) (string, error) {
	runCtx := ctx
	if s.cfg.Engine.WorkflowTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.Engine.WorkflowTimeout)
		defer cancel()
	}

	return inst.Execute(runCtx, s.runtimeFor(inst))
}

// archive persists the timeline snapshot and session outcome, best effort.
func (s *Solver) archive(result string, err error, finished time.Time) {
	if s.store == nil {
		return
	}

	if aerr := s.store.Archive(s.sessionID, s.tl); aerr != nil {
		debugLog("archive: events failed: %v", aerr)
	}

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	if aerr := s.store.FinishSession(s.sessionID, result, errMsg, finished); aerr != nil {
		debugLog("archive: finish failed: %v", aerr)
	}
}
