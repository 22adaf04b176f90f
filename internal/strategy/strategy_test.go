package strategy

import (
	"context"
	"testing"

	"github.com/ShayCichocki/unravel/internal/problem"
	"github.com/ShayCichocki/unravel/internal/workflow"
)

// stubStrategy is a controllable Strategy for selector tests.
type stubStrategy struct {
	name    string
	handles bool
	panics  bool
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) CanHandle(problemStatement string, pctx problem.Context) bool {
	if s.panics {
		panic("probe exploded")
	}
	return s.handles
}

func (s *stubStrategy) CreateWorkflow(ctx context.Context, pctx problem.Context, parent *workflow.Instance) (*workflow.Instance, error) {
	return nil, nil
}

func TestSelectorPriorityOrder(t *testing.T) {
	first := &stubStrategy{name: "first", handles: true}
	second := &stubStrategy{name: "second", handles: true}
	fallback := &stubStrategy{name: "fallback"}

	sel := NewSelector([]string{"second", "first"}, []Strategy{first, second}, fallback)

	got := sel.Select("p", problem.New("p", "o"))
	if got != second {
		t.Errorf("expected priority order to win, got %s", got.Name())
	}
}

func TestSelectorSkipsNonHandlers(t *testing.T) {
	first := &stubStrategy{name: "first", handles: false}
	second := &stubStrategy{name: "second", handles: true}
	fallback := &stubStrategy{name: "fallback"}

	sel := NewSelector([]string{"first", "second"}, []Strategy{first, second}, fallback)

	if got := sel.Select("p", problem.New("p", "o")); got != second {
		t.Errorf("expected second strategy, got %s", got.Name())
	}
}

func TestSelectorFallsBackWhenNothingMatches(t *testing.T) {
	first := &stubStrategy{name: "first", handles: false}
	fallback := &stubStrategy{name: "fallback", handles: false}

	sel := NewSelector([]string{"first"}, []Strategy{first}, fallback)

	// The fallback's own CanHandle is never consulted.
	if got := sel.Select("p", problem.New("p", "o")); got != fallback {
		t.Errorf("expected fallback, got %s", got.Name())
	}
}

func TestSelectorContainsPanickingProbe(t *testing.T) {
	angry := &stubStrategy{name: "angry", panics: true}
	calm := &stubStrategy{name: "calm", handles: true}
	fallback := &stubStrategy{name: "fallback"}

	sel := NewSelector([]string{"angry", "calm"}, []Strategy{angry, calm}, fallback)

	if got := sel.Select("p", problem.New("p", "o")); got != calm {
		t.Errorf("expected panicking probe skipped, got %s", got.Name())
	}
}

func TestSelectorAppendsUnlistedStrategies(t *testing.T) {
	listed := &stubStrategy{name: "listed", handles: false}
	unlisted := &stubStrategy{name: "unlisted", handles: true}
	fallback := &stubStrategy{name: "fallback"}

	sel := NewSelector([]string{"listed", "unknown-name"}, []Strategy{listed, unlisted}, fallback)

	if got := sel.Select("p", problem.New("p", "o")); got != unlisted {
		t.Errorf("expected unlisted strategy still reachable, got %s", got.Name())
	}
}
