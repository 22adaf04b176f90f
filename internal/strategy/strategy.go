// Package strategy provides decomposition strategies: polymorphic
// capabilities that decide whether they can handle a problem and, if so,
// produce a ready-to-run workflow for it.
package strategy

import (
	"context"
	"log"

	"github.com/ShayCichocki/unravel/internal/problem"
	"github.com/ShayCichocki/unravel/internal/workflow"
)

// Strategy is the two-method decomposition contract. CanHandle must be fast
// and side-effect-free; CreateWorkflow returns a Ready workflow or an
// error, never a half-initialized instance.
type Strategy interface {
	// Name identifies the strategy in configuration and logs.
	Name() string
	// CanHandle reports whether this strategy can take on the problem.
	CanHandle(problemStatement string, pctx problem.Context) bool
	// CreateWorkflow builds a Ready workflow for the problem, wired to the
	// parent (nil for the root) and the shared timeline.
	CreateWorkflow(ctx context.Context, pctx problem.Context, parent *workflow.Instance) (*workflow.Instance, error)
}

// Selector picks the first strategy, in priority order, whose CanHandle
// probe returns true. A probe that panics is logged and skipped rather
// than aborting selection. When nothing matches, the designated default is
// used; its CanHandle is never consulted.
type Selector struct {
	ordered  []Strategy
	fallback Strategy
}

// NewSelector builds a selector from the priority list of names and the
// available strategies. Names without a matching strategy are ignored;
// strategies missing from the priority list are appended in registration
// order so nothing silently disappears. The fallback must not be nil.
func NewSelector(priority []string, available []Strategy, fallback Strategy) *Selector {
	byName := make(map[string]Strategy, len(available))
	for _, s := range available {
		byName[s.Name()] = s
	}

	var ordered []Strategy
	used := make(map[string]bool)
	for _, name := range priority {
		if s, ok := byName[name]; ok && !used[name] {
			ordered = append(ordered, s)
			used[name] = true
		}
	}
	for _, s := range available {
		if !used[s.Name()] {
			ordered = append(ordered, s)
			used[s.Name()] = true
		}
	}

	return &Selector{ordered: ordered, fallback: fallback}
}

// Select returns the strategy that will handle the problem.
func (s *Selector) Select(problemStatement string, pctx problem.Context) Strategy {
	for _, candidate := range s.ordered {
		if probe(candidate, problemStatement, pctx) {
			return candidate
		}
	}
	return s.fallback
}

// probe runs CanHandle with panic containment. A misbehaving strategy is
// skipped, not fatal.
func probe(s Strategy, problemStatement string, pctx problem.Context) (handled bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[strategy] %s: can_handle panicked, skipping: %v", s.Name(), r)
			handled = false
		}
	}()
	return s.CanHandle(problemStatement, pctx)
}
