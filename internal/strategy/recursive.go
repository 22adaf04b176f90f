package strategy

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ShayCichocki/unravel/internal/oracle"
	"github.com/ShayCichocki/unravel/internal/problem"
	"github.com/ShayCichocki/unravel/internal/signals"
	"github.com/ShayCichocki/unravel/internal/timeline"
	"github.com/ShayCichocki/unravel/internal/workflow"
)

// UnrecoverableError indicates the strategy exhausted its recovery options:
// the oracle's program failed to compile and so did the synthesized
// fallback. It is recorded in the timeline before it propagates.
type UnrecoverableError struct {
	// Reason describes the failure chain.
	Reason string
	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *UnrecoverableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unrecoverable: %s: %v", e.Reason, e.Err)
	}
	return "unrecoverable: " + e.Reason
}

// Unwrap returns the underlying error.
func (e *UnrecoverableError) Unwrap() error {
	return e.Err
}

// RecursiveConfig holds the knobs for the recursive strategy.
type RecursiveConfig struct {
	// MaxDepth is the recursion depth at which creation short-circuits to
	// a base case. Defaults to 10 when zero.
	MaxDepth int
	// OracleTimeout bounds a single oracle invocation. Defaults to 60s
	// when zero.
	OracleTimeout time.Duration
	// Loop holds loop-detection thresholds.
	Loop LoopConfig
}

// Recursive is the default decomposition strategy. It asks the oracle for a
// program, compiles it, and enforces the recursion guards that guarantee
// termination. It acts as the catch-all default in selection.
type Recursive struct {
	arena  *workflow.Arena
	tl     *timeline.Timeline
	oracle oracle.Oracle
	cfg    RecursiveConfig
}

var _ Strategy = (*Recursive)(nil)

// NewRecursive creates the recursive strategy over the shared arena,
// timeline, and oracle.
func NewRecursive(arena *workflow.Arena, tl *timeline.Timeline, o oracle.Oracle, cfg RecursiveConfig) *Recursive {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 10
	}
	if cfg.OracleTimeout <= 0 {
		cfg.OracleTimeout = 60 * time.Second
	}
	if cfg.Loop.Window <= 0 {
		cfg.Loop = DefaultLoopConfig()
	}
	return &Recursive{arena: arena, tl: tl, oracle: o, cfg: cfg}
}

// Name implements Strategy.
func (r *Recursive) Name() string {
	return "recursive"
}

// CanHandle returns true unless an obvious infinite loop is already
// evident. The recursive strategy is the catch-all default: even when this
// returns false, selection falls back to it and CreateWorkflow answers the
// loop with a base case.
func (r *Recursive) CanHandle(problemStatement string, pctx problem.Context) bool {
	return !r.arena.HasShallower(problemStatement, pctx.Depth)
}

// CreateWorkflow builds a Ready workflow for the problem. Recursion guards
// (depth limit, loop detection) never fail: they silently yield a
// deterministic base-case workflow, which is what guarantees termination.
func (r *Recursive) CreateWorkflow(ctx context.Context, pctx problem.Context, parent *workflow.Instance) (*workflow.Instance, error) {
	// Depth guard first: it is the hard termination bound.
	if pctx.Depth >= r.cfg.MaxDepth {
		log.Printf("[strategy] recursive: depth %d reached max %d, yielding base case", pctx.Depth, r.cfg.MaxDepth)
		return r.baseCase(pctx, parent, "recursion_limit",
			fmt.Sprintf("recursion budget exhausted at depth %d (max %d) for problem: %s", pctx.Depth, r.cfg.MaxDepth, pctx.Statement))
	}

	if reason := detectLoop(r.cfg.Loop, r.arena, r.tl, parent, pctx.Statement, pctx.Depth); reason != "" {
		log.Printf("[strategy] recursive: loop detected (%s), yielding base case", reason)
		return r.baseCase(pctx, parent, "loop_detected",
			fmt.Sprintf("loop detected (%s); stopping decomposition of: %s", reason, pctx.Statement))
	}

	prompt := r.assemblePrompt(pctx, parent)

	text, err := r.generateWithRetry(ctx, prompt)
	if err != nil {
		// Oracle unavailability or timeout is recoverable: fall back to a
		// base case instead of failing the whole solve.
		log.Printf("[strategy] recursive: oracle failed after retry (%v), yielding base case", err)
		return r.baseCase(pctx, parent, "oracle_unavailable",
			fmt.Sprintf("oracle unavailable for problem %q: %v", pctx.Statement, err))
	}

	program, err := workflow.Compile(text)
	if err != nil {
		var compileErr *workflow.CompileError
		if !errors.As(err, &compileErr) {
			return nil, err
		}

		// One fallback attempt: a synthesized program reporting the
		// compile error as the result. If the fallback itself fails to
		// compile, nothing else can help.
		log.Printf("[strategy] recursive: compile failed (%v), synthesizing fallback program", err)
		fallbackText, merr := workflow.FallbackProgramText(fmt.Sprintf("could not compile generated program: %s", compileErr.Reason))
		if merr == nil {
			program, merr = workflow.Compile(fallbackText)
		}
		if merr != nil {
			unrec := &UnrecoverableError{Reason: "fallback program failed to compile", Err: merr}
			r.recordUnrecoverable(pctx, unrec)
			return nil, unrec
		}
		program.Fallback = true
	}

	inst := workflow.New(r.arena, r.tl, pctx, parent)
	if err := inst.AssignProgram(program); err != nil {
		unrec := &UnrecoverableError{Reason: "assign compiled program", Err: err}
		r.recordUnrecoverable(pctx, unrec)
		return nil, unrec
	}
	return inst, nil
}

// assemblePrompt merges extractor signals and the parent summary into the
// oracle prompt.
func (r *Recursive) assemblePrompt(pctx problem.Context, parent *workflow.Instance) string {
	sig := signals.Extract(r.tl, pctx)

	var parentSummary string
	if parent != nil {
		parentSummary = summarizeParent(parent.Problem, parent.Objective, parent.Context.Depth, sig.SuccessPatterns)
	}

	return BuildPrompt(pctx, sig, parentSummary)
}

// generateWithRetry invokes the oracle once and retries a single time when
// the call fails or the response is unusable (empty, too short, or lacking
// any primitive call). Each attempt gets its own timeout.
func (r *Recursive) generateWithRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		text, err := r.generateOnce(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if attempt == 1 {
			log.Printf("[strategy] recursive: oracle attempt 1 failed (%v), retrying", err)
		}
	}
	return "", lastErr
}

// generateOnce performs a single bounded oracle call and validates the
// response shape.
func (r *Recursive) generateOnce(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.OracleTimeout)
	defer cancel()

	text, err := r.oracle.Generate(callCtx, prompt, oracle.DefaultBudget)
	if err != nil {
		return "", err
	}
	if len(text) < workflow.MinProgramLen {
		return "", fmt.Errorf("%w: response too short (%d chars)", oracle.ErrUnavailable, len(text))
	}
	if !workflow.HasPrimitiveCall(text) {
		return "", fmt.Errorf("%w: response contains no primitive call", oracle.ErrUnavailable)
	}
	return text, nil
}

// baseCase builds the deterministic terminal workflow used when recursion
// must stop. The guard trigger is recorded through the program's reason
// step, so the timeline carries the controlled termination without raising.
func (r *Recursive) baseCase(pctx problem.Context, parent *workflow.Instance, guard, message string) (*workflow.Instance, error) {
	program := &workflow.Program{
		Steps: []workflow.Step{
			{Op: workflow.OpReason, Text: "recursion guard (" + guard + ") stopped decomposition"},
			{Op: workflow.OpEmit, Text: message},
		},
		Fallback: true,
	}

	inst := workflow.New(r.arena, r.tl, pctx, parent)
	if err := inst.AssignProgram(program); err != nil {
		return nil, fmt.Errorf("assign base-case program: %w", err)
	}
	return inst, nil
}

// recordUnrecoverable appends the failure to the timeline before it
// propagates, so the audit trail survives even unrecoverable errors.
func (r *Recursive) recordUnrecoverable(pctx problem.Context, err error) {
	r.tl.Append(timeline.EventWorkflowError, pctx.Depth, map[string]any{
		"error":   err.Error(),
		"problem": pctx.Statement,
	}, nil)
}
