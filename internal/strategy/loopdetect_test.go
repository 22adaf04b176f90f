package strategy

import (
	"strings"
	"testing"

	"github.com/ShayCichocki/unravel/internal/problem"
	"github.com/ShayCichocki/unravel/internal/timeline"
	"github.com/ShayCichocki/unravel/internal/workflow"
)

func TestAncestorRepeatDetectsExactMatch(t *testing.T) {
	arena := workflow.NewArena()
	tl := timeline.New()

	rootCtx := problem.New("plan a trip", "itinerary")
	root := workflow.New(arena, tl, rootCtx, nil)
	child := workflow.New(arena, tl, rootCtx.Sub("plan day 1", "day 1"), root)

	// The prospective grandchild repeats the root statement at depth 2.
	reason := ancestorRepeat(arena, child, "plan a trip", 2)
	if reason == "" {
		t.Fatal("expected ancestor repeat detected")
	}
	if !strings.Contains(reason, "depth 0") {
		t.Errorf("expected reason to name the ancestor depth, got %q", reason)
	}
}

func TestAncestorRepeatIgnoresDistinctStatements(t *testing.T) {
	arena := workflow.NewArena()
	tl := timeline.New()

	rootCtx := problem.New("plan a trip", "itinerary")
	root := workflow.New(arena, tl, rootCtx, nil)
	child := workflow.New(arena, tl, rootCtx.Sub("plan day 1", "day 1"), root)

	if reason := ancestorRepeat(arena, child, "book museum tickets", 2); reason != "" {
		t.Errorf("expected no repeat for a fresh statement, got %q", reason)
	}
	if reason := ancestorRepeat(arena, nil, "plan a trip", 1); reason != "" {
		t.Errorf("expected no repeat without a parent, got %q", reason)
	}
}

func TestEventCycleDetectsRepetition(t *testing.T) {
	cfg := DefaultLoopConfig()
	tl := timeline.New()

	// Two-event cycle repeated through the whole window.
	for i := 0; i < cfg.Window/2; i++ {
		tl.Append(timeline.EventRecursiveCall, 1, map[string]any{"problem": "same thing"}, nil)
		tl.Append(timeline.EventWorkflowError, 1, map[string]any{"error": "same failure"}, nil)
	}

	reason := eventCycle(cfg, tl)
	if reason == "" {
		t.Fatal("expected cycle detected")
	}
	if !strings.Contains(reason, "cycle") {
		t.Errorf("unexpected reason %q", reason)
	}
}

func TestEventCycleIgnoresVariedEvents(t *testing.T) {
	cfg := DefaultLoopConfig()
	tl := timeline.New()

	// Same types, but payloads vary: no cycle.
	problems := []string{"day 1", "day 2", "day 3", "day 4", "day 5"}
	for _, p := range problems {
		tl.Append(timeline.EventRecursiveCall, 1, map[string]any{"problem": p}, nil)
		tl.Append(timeline.EventWorkflowComplete, 1, map[string]any{"result": "solved " + p}, nil)
	}

	if reason := eventCycle(cfg, tl); reason != "" {
		t.Errorf("expected no cycle in varied events, got %q", reason)
	}
}

func TestEventCycleNeedsEnoughEvents(t *testing.T) {
	cfg := DefaultLoopConfig()
	tl := timeline.New()
	tl.Append(timeline.EventRecursiveCall, 1, nil, nil)

	if reason := eventCycle(cfg, tl); reason != "" {
		t.Errorf("expected no detection on a single event, got %q", reason)
	}
}

func TestRapidDescentDetectsDepthSpike(t *testing.T) {
	cfg := DefaultLoopConfig()
	tl := timeline.New()

	// Depth climbs 0 -> 5 within the rapid window.
	for depth := 0; depth <= 5; depth++ {
		tl.Append(timeline.EventRecursiveCall, depth, map[string]any{"d": depth}, nil)
	}

	reason := rapidDescent(cfg, tl)
	if reason == "" {
		t.Fatal("expected rapid descent detected")
	}
	if !strings.Contains(reason, "depth rose") {
		t.Errorf("unexpected reason %q", reason)
	}
}

func TestRapidDescentIgnoresUnwinding(t *testing.T) {
	cfg := DefaultLoopConfig()
	tl := timeline.New()

	// A finished subtree bubbles results back up: completions at
	// strictly decreasing depth. That is routine, not a runaway.
	for depth := 5; depth >= 0; depth-- {
		tl.Append(timeline.EventWorkflowComplete, depth, map[string]any{"result": "done"}, nil)
	}

	if reason := rapidDescent(cfg, tl); reason != "" {
		t.Errorf("expected unwinding subtree allowed, got %q", reason)
	}
}

func TestRapidDescentAllowsGradualDepth(t *testing.T) {
	cfg := DefaultLoopConfig()
	tl := timeline.New()

	// Plenty of activity per level keeps the rise inside any window.
	for depth := 0; depth <= 5; depth++ {
		for i := 0; i < cfg.RapidWindow; i++ {
			tl.Append(timeline.EventOracleReasoning, depth, map[string]any{"i": i}, nil)
		}
	}

	if reason := rapidDescent(cfg, tl); reason != "" {
		t.Errorf("expected gradual descent allowed, got %q", reason)
	}
}
