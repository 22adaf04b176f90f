package strategy

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ShayCichocki/unravel/internal/oracle"
	"github.com/ShayCichocki/unravel/internal/problem"
	"github.com/ShayCichocki/unravel/internal/timeline"
	"github.com/ShayCichocki/unravel/internal/workflow"
)

const emitProgramText = `[{"op": "emit", "text": "the answer"}]`

func newRecursiveFixture(o oracle.Oracle, cfg RecursiveConfig) (*Recursive, *workflow.Arena, *timeline.Timeline) {
	arena := workflow.NewArena()
	tl := timeline.New()
	return NewRecursive(arena, tl, o, cfg), arena, tl
}

// depthContext derives a context at the given depth with a distinct
// statement per level.
func depthContext(depth int) problem.Context {
	ctx := problem.New("level 0", "objective 0")
	for i := 1; i <= depth; i++ {
		ctx = ctx.Sub(
			"level "+strings.Repeat("x", i),
			"objective "+strings.Repeat("x", i),
		)
	}
	return ctx
}

func TestRecursiveCompilesOracleProgram(t *testing.T) {
	script := oracle.NewScripted(oracle.Response{Text: emitProgramText})
	r, _, _ := newRecursiveFixture(script, RecursiveConfig{})

	inst, err := r.CreateWorkflow(context.Background(), problem.New("p", "o"), nil)
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	if inst.State() != workflow.StateReady {
		t.Errorf("expected ready workflow, got %s", inst.State())
	}
	program := inst.Program()
	if program.Fallback {
		t.Error("oracle-compiled program must not be marked fallback")
	}
	if len(program.Steps) != 1 || program.Steps[0].Op != workflow.OpEmit {
		t.Errorf("unexpected program %+v", program.Steps)
	}
	if script.Calls() != 1 {
		t.Errorf("expected one oracle call, got %d", script.Calls())
	}
}

func TestRecursiveDepthGuardYieldsBaseCase(t *testing.T) {
	script := oracle.NewScripted(oracle.Response{Text: emitProgramText})
	r, _, _ := newRecursiveFixture(script, RecursiveConfig{MaxDepth: 2})

	inst, err := r.CreateWorkflow(context.Background(), depthContext(2), nil)
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	program := inst.Program()
	if !program.Fallback {
		t.Error("expected a synthesized base-case program")
	}
	if program.Steps[0].Op != workflow.OpReason || !strings.Contains(program.Steps[0].Text, "recursion_limit") {
		t.Errorf("expected reason step naming the guard, got %+v", program.Steps[0])
	}
	if program.Steps[1].Op != workflow.OpEmit {
		t.Errorf("expected base case to emit, got %+v", program.Steps[1])
	}
	if script.Calls() != 0 {
		t.Errorf("depth guard must short-circuit before the oracle, got %d calls", script.Calls())
	}
}

func TestRecursiveLoopGuardYieldsBaseCase(t *testing.T) {
	script := oracle.NewScripted(oracle.Response{Text: emitProgramText})
	r, arena, tl := newRecursiveFixture(script, RecursiveConfig{})

	rootCtx := problem.New("plan a trip", "itinerary")
	root := workflow.New(arena, tl, rootCtx, nil)
	child := workflow.New(arena, tl, rootCtx.Sub("plan day 1", "day 1"), root)

	// Grandchild repeats the root's statement verbatim.
	looping := child.Context.Sub("plan a trip", "itinerary")
	inst, err := r.CreateWorkflow(context.Background(), looping, child)
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	program := inst.Program()
	if !program.Fallback {
		t.Error("expected base case for a detected loop")
	}
	if !strings.Contains(program.Steps[0].Text, "loop_detected") {
		t.Errorf("expected loop guard named in reason step, got %q", program.Steps[0].Text)
	}
	if script.Calls() != 0 {
		t.Errorf("loop guard must short-circuit before the oracle, got %d calls", script.Calls())
	}
}

func TestRecursiveConsultsOracleAfterSubtreeUnwinds(t *testing.T) {
	script := oracle.NewScripted(oracle.Response{Text: emitProgramText})
	r, arena, tl := newRecursiveFixture(script, RecursiveConfig{})

	rootCtx := problem.New("plan a trip", "itinerary")
	root := workflow.New(arena, tl, rootCtx, nil)

	// A deep subtree has just finished and its completions bubbled back
	// up through every level. The next sibling must still reach the
	// oracle rather than get a synthesized base case.
	for depth := 5; depth >= 1; depth-- {
		tl.Append(timeline.EventWorkflowComplete, depth, map[string]any{"result": "day planned"}, nil)
	}

	inst, err := r.CreateWorkflow(context.Background(), rootCtx.Sub("plan day 2", "day 2"), root)
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	if inst.Program().Fallback {
		t.Error("sibling after an unwound subtree must not be degraded to a base case")
	}
	if script.Calls() != 1 {
		t.Errorf("expected the oracle consulted once, got %d calls", script.Calls())
	}
}

func TestRecursiveRetriesOnceThenSucceeds(t *testing.T) {
	script := oracle.NewScripted(
		oracle.Response{Err: oracle.ErrUnavailable},
		oracle.Response{Text: emitProgramText},
	)
	r, _, _ := newRecursiveFixture(script, RecursiveConfig{})

	inst, err := r.CreateWorkflow(context.Background(), problem.New("p", "o"), nil)
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	if script.Calls() != 2 {
		t.Errorf("expected exactly 2 oracle calls, got %d", script.Calls())
	}
	// The retried program is the real one, not a fallback.
	if inst.Program().Fallback {
		t.Error("successful retry must carry the compiled program, not a base case")
	}
}

func TestRecursiveOracleFailureYieldsBaseCase(t *testing.T) {
	script := oracle.NewScripted(oracle.Response{Err: oracle.ErrUnavailable})
	r, _, _ := newRecursiveFixture(script, RecursiveConfig{})

	inst, err := r.CreateWorkflow(context.Background(), problem.New("p", "o"), nil)
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	if script.Calls() != 2 {
		t.Errorf("expected retry before giving up, got %d calls", script.Calls())
	}
	program := inst.Program()
	if !program.Fallback {
		t.Error("expected base case after oracle failure")
	}
	if !strings.Contains(program.Steps[0].Text, "oracle_unavailable") {
		t.Errorf("expected guard named in reason step, got %q", program.Steps[0].Text)
	}
}

func TestRecursiveRejectsDegenerateResponses(t *testing.T) {
	// Responses without any primitive call burn an attempt each.
	script := oracle.NewScripted(
		oracle.Response{Text: "Sure! Let me think about how to approach this problem."},
	)
	r, _, _ := newRecursiveFixture(script, RecursiveConfig{})

	inst, err := r.CreateWorkflow(context.Background(), problem.New("p", "o"), nil)
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	if script.Calls() != 2 {
		t.Errorf("expected both attempts spent, got %d calls", script.Calls())
	}
	if !inst.Program().Fallback {
		t.Error("expected base case when every response is degenerate")
	}
}

func TestRecursiveRejectsResponsesBelowCompileMinimum(t *testing.T) {
	// The sanity check shares the compiler's length floor, so a response
	// one byte under it never reaches Compile.
	script := oracle.NewScripted(
		oracle.Response{Text: strings.Repeat("x", workflow.MinProgramLen-1)},
	)
	r, _, _ := newRecursiveFixture(script, RecursiveConfig{})

	inst, err := r.CreateWorkflow(context.Background(), problem.New("p", "o"), nil)
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	if script.Calls() != 2 {
		t.Errorf("expected both attempts spent, got %d calls", script.Calls())
	}
	if !inst.Program().Fallback {
		t.Error("expected base case for a too-short response")
	}
}

func TestRecursiveCompileFallback(t *testing.T) {
	// A primitive call is mentioned so the response survives the sanity
	// check, but the step array is invalid.
	script := oracle.NewScripted(
		oracle.Response{Text: `[{"op": "emit"}] mentions "emit" but carries no text`},
	)
	r, _, _ := newRecursiveFixture(script, RecursiveConfig{})

	inst, err := r.CreateWorkflow(context.Background(), problem.New("p", "o"), nil)
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	program := inst.Program()
	if !program.Fallback {
		t.Error("expected synthesized fallback program after compile failure")
	}
	if len(program.Steps) != 1 || program.Steps[0].Op != workflow.OpEmit {
		t.Fatalf("expected single emit step, got %+v", program.Steps)
	}
	if !strings.Contains(program.Steps[0].Text, "could not compile") {
		t.Errorf("expected fallback to report the compile error, got %q", program.Steps[0].Text)
	}
}

func TestRecursiveCanHandle(t *testing.T) {
	script := oracle.NewScripted(oracle.Response{Text: emitProgramText})
	r, arena, tl := newRecursiveFixture(script, RecursiveConfig{})

	rootCtx := problem.New("plan a trip", "itinerary")
	workflow.New(arena, tl, rootCtx, nil)

	if !r.CanHandle("plan day 1", rootCtx.Sub("plan day 1", "day 1")) {
		t.Error("expected fresh sub-problem handled")
	}

	// The root statement reappearing at a deeper level is the obvious loop
	// the probe refuses.
	if r.CanHandle("plan a trip", rootCtx.Sub("plan a trip", "itinerary")) {
		t.Error("expected repeated shallower statement refused")
	}
}

func TestRecursiveUnrecoverableIsRecordedFirst(t *testing.T) {
	script := oracle.NewScripted(oracle.Response{Text: emitProgramText})
	r, _, tl := newRecursiveFixture(script, RecursiveConfig{})

	unrec := &UnrecoverableError{Reason: "fallback program failed to compile", Err: errors.New("boom")}
	r.recordUnrecoverable(problem.New("p", "o"), unrec)

	events := tl.ByType(timeline.EventWorkflowError)
	if len(events) != 1 {
		t.Fatalf("expected one workflow_error event, got %d", len(events))
	}
	msg, _ := events[0].Payload["error"].(string)
	if !strings.Contains(msg, "unrecoverable") {
		t.Errorf("expected recorded error text, got %q", msg)
	}
}
