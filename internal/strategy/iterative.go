package strategy

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ShayCichocki/unravel/internal/oracle"
	"github.com/ShayCichocki/unravel/internal/problem"
	"github.com/ShayCichocki/unravel/internal/signals"
	"github.com/ShayCichocki/unravel/internal/timeline"
	"github.com/ShayCichocki/unravel/internal/workflow"
)

// iterativeMarkers are the problem-statement cues that suggest in-place
// refinement rather than decomposition.
var iterativeMarkers = []string{"refine", "improve", "revise", "polish", "iterate"}

// Iterative handles problems that ask for refinement of an existing result
// rather than decomposition. It generates a single-pass program and strips
// any recurse steps the oracle emits anyway, so an iterative workflow never
// descends.
type Iterative struct {
	arena   *workflow.Arena
	tl      *timeline.Timeline
	oracle  oracle.Oracle
	timeout time.Duration
}

var _ Strategy = (*Iterative)(nil)

// NewIterative creates the iterative strategy.
func NewIterative(arena *workflow.Arena, tl *timeline.Timeline, o oracle.Oracle, timeout time.Duration) *Iterative {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Iterative{arena: arena, tl: tl, oracle: o, timeout: timeout}
}

// Name implements Strategy.
func (s *Iterative) Name() string {
	return "iterative"
}

// CanHandle matches refinement-style problems.
func (s *Iterative) CanHandle(problemStatement string, pctx problem.Context) bool {
	lower := strings.ToLower(problemStatement)
	for _, marker := range iterativeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// CreateWorkflow asks the oracle for a non-recursive program. Oracle
// failure falls back to a base case the same way the recursive strategy
// does.
func (s *Iterative) CreateWorkflow(ctx context.Context, pctx problem.Context, parent *workflow.Instance) (*workflow.Instance, error) {
	sig := signals.Extract(s.tl, pctx)
	prompt := BuildPrompt(pctx, sig, "") +
		"\n\nThis problem asks for refinement: solve it in place with reason and emit steps only, no recurse."

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	text, err := s.oracle.Generate(callCtx, prompt, oracle.DefaultBudget)
	cancel()

	var program *workflow.Program
	if err == nil {
		program, err = workflow.Compile(text)
	}
	if err != nil {
		log.Printf("[strategy] iterative: generation failed (%v), yielding base case", err)
		program = workflow.EmitProgram(fmt.Sprintf("could not refine %q: %v", pctx.Statement, err))
	} else {
		program = stripRecursion(program)
	}

	inst := workflow.New(s.arena, s.tl, pctx, parent)
	if err := inst.AssignProgram(program); err != nil {
		return nil, fmt.Errorf("assign iterative program: %w", err)
	}
	return inst, nil
}

// stripRecursion removes recurse steps from a program, demoting each to a
// reasoning trace so the decision still shows up in the timeline. If
// nothing emittable remains, a placeholder emit is appended to keep the
// program valid.
func stripRecursion(p *workflow.Program) *workflow.Program {
	out := &workflow.Program{Source: p.Source, Fallback: p.Fallback}

	var hasEmit bool
	for _, step := range p.Steps {
		if step.Op == workflow.OpRecurse {
			out.Steps = append(out.Steps, workflow.Step{
				Op:   workflow.OpReason,
				Text: fmt.Sprintf("skipped decomposition into %q: iterative workflows do not recurse", step.Problem),
			})
			continue
		}
		if step.Op == workflow.OpEmit {
			hasEmit = true
		}
		out.Steps = append(out.Steps, step)
	}

	if !hasEmit {
		out.Steps = append(out.Steps, workflow.Step{Op: workflow.OpEmit, Text: "refinement produced no direct result"})
	}
	return out
}
