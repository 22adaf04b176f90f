package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/ShayCichocki/unravel/internal/problem"
	"github.com/ShayCichocki/unravel/internal/signals"
	"github.com/ShayCichocki/unravel/internal/timeline"
)

// Summary condenses one session's timeline into the numbers a caller cares
// about after a solve finishes.
type Summary struct {
	// Workflows is the total number of workflow executions started.
	Workflows int
	// Completed is the number that finished successfully.
	Completed int
	// Failed is the number that finished with an error.
	Failed int
	// RecursiveCalls counts re-entries into the solver.
	RecursiveCalls int
	// UserInputs counts user input requests.
	UserInputs int
	// MaxDepth is the deepest recursion level reached.
	MaxDepth int
	// Elapsed is the cumulative workflow execution time.
	Elapsed time.Duration
}

// Summarize computes the session summary from a timeline.
func Summarize(tl *timeline.Timeline) Summary {
	sig := signals.Extract(tl, problem.Context{})

	return Summary{
		Workflows:      len(tl.ByType(timeline.EventWorkflowStart)),
		Completed:      sig.CompletedWorkflows,
		Failed:         sig.FailedWorkflows,
		RecursiveCalls: sig.RecursiveCalls,
		UserInputs:     len(tl.ByType(timeline.EventUserInputRequest)),
		MaxDepth:       sig.MaxDepth,
		Elapsed:        sig.CumulativeElapsed,
	}
}

// String renders the summary as a single human-readable line.
func (s Summary) String() string {
	parts := []string{
		fmt.Sprintf("%d workflows (%d ok, %d failed)", s.Workflows, s.Completed, s.Failed),
		fmt.Sprintf("%d recursive calls", s.RecursiveCalls),
		fmt.Sprintf("max depth %d", s.MaxDepth),
		fmt.Sprintf("elapsed %s", s.Elapsed.Round(time.Millisecond)),
	}
	if s.UserInputs > 0 {
		parts = append(parts, fmt.Sprintf("%d user inputs", s.UserInputs))
	}
	return strings.Join(parts, ", ")
}
