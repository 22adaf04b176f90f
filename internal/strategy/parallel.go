package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/unravel/internal/problem"
	"github.com/ShayCichocki/unravel/internal/timeline"
	"github.com/ShayCichocki/unravel/internal/workflow"
)

// Parallel handles problems that enumerate independent sub-problems, one
// per list item. It synthesizes a program of recurse steps marked for
// concurrent dispatch; the engine's parallel-execution helper runs the
// children on a worker pool.
type Parallel struct {
	arena    *workflow.Arena
	tl       *timeline.Timeline
	maxDepth int
}

var _ Strategy = (*Parallel)(nil)

// NewParallel creates the parallel strategy.
func NewParallel(arena *workflow.Arena, tl *timeline.Timeline, maxDepth int) *Parallel {
	if maxDepth <= 0 {
		maxDepth = 10
	}
	return &Parallel{arena: arena, tl: tl, maxDepth: maxDepth}
}

// Name implements Strategy.
func (s *Parallel) Name() string {
	return "parallel"
}

// CanHandle matches problems that enumerate two or more independent items
// as a bulleted or numbered list, while recursion budget remains for the
// children.
func (s *Parallel) CanHandle(problemStatement string, pctx problem.Context) bool {
	if pctx.Depth+1 >= s.maxDepth {
		return false
	}
	return len(splitItems(problemStatement)) >= 2
}

// CreateWorkflow synthesizes one recurse step per enumerated item and marks
// the program for concurrent dispatch.
func (s *Parallel) CreateWorkflow(ctx context.Context, pctx problem.Context, parent *workflow.Instance) (*workflow.Instance, error) {
	items := splitItems(pctx.Statement)
	if len(items) < 2 {
		return nil, fmt.Errorf("parallel strategy needs at least 2 enumerable items, got %d", len(items))
	}

	program := &workflow.Program{Parallel: true}
	program.Steps = append(program.Steps, workflow.Step{
		Op:   workflow.OpReason,
		Text: fmt.Sprintf("dispatching %d independent sub-problems concurrently", len(items)),
	})
	for _, item := range items {
		program.Steps = append(program.Steps, workflow.Step{
			Op:        workflow.OpRecurse,
			Problem:   item,
			Objective: pctx.Objective,
		})
	}

	inst := workflow.New(s.arena, s.tl, pctx, parent)
	if err := inst.AssignProgram(program); err != nil {
		return nil, fmt.Errorf("assign parallel program: %w", err)
	}
	return inst, nil
}

// splitItems extracts enumerated items from a problem statement. It
// recognizes "-" and "*" bullets and "1." style numbering, one item per
// line.
func splitItems(statement string) []string {
	var items []string
	for _, line := range strings.Split(statement, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "- "):
			items = append(items, strings.TrimSpace(trimmed[2:]))
		case strings.HasPrefix(trimmed, "* "):
			items = append(items, strings.TrimSpace(trimmed[2:]))
		default:
			if item, ok := numberedItem(trimmed); ok {
				items = append(items, item)
			}
		}
	}
	return items
}

// numberedItem strips "1." or "1)" prefixes.
func numberedItem(line string) (string, bool) {
	for i, r := range line {
		if r >= '0' && r <= '9' {
			continue
		}
		if i > 0 && (r == '.' || r == ')') {
			rest := strings.TrimSpace(line[i+1:])
			return rest, rest != ""
		}
		break
	}
	return "", false
}
