// Package signals derives quantitative and qualitative signals from a
// session's timeline. Extraction is read-only: it never appends events or
// mutates the context it is given.
package signals

import (
	"time"

	"github.com/ShayCichocki/unravel/internal/problem"
	"github.com/ShayCichocki/unravel/internal/timeline"
)

// recentErrorWindow bounds how many workflow_error events are mined for
// constraint-violation text.
const recentErrorWindow = 10

// Pattern names recognized while scanning the timeline.
const (
	// PatternRecursiveDecomposition is reported when more than two
	// recursive calls have completed successfully.
	PatternRecursiveDecomposition = "recursive_decomposition"
	// PatternUserInteraction is reported when user input was requested.
	PatternUserInteraction = "user_interaction"
)

// Signals is a snapshot of computable context derived from the timeline.
type Signals struct {
	// RecursiveCalls is the number of recursive calls made so far.
	RecursiveCalls int
	// CompletedWorkflows is the number of workflows that finished
	// successfully.
	CompletedWorkflows int
	// FailedWorkflows is the number of workflows that failed.
	FailedWorkflows int
	// CumulativeElapsed is the total time spent executing workflows.
	CumulativeElapsed time.Duration
	// FailureRatio is FailedWorkflows over all finished workflows, zero
	// when nothing has finished yet.
	FailureRatio float64
	// MaxDepth is the deepest recursion level seen so far.
	MaxDepth int
	// ConstraintViolations holds error text mined from recent
	// workflow_error events.
	ConstraintViolations []string
	// SuccessPatterns lists recognized patterns of what has worked.
	SuccessPatterns []string
	// Depth is the depth of the context the signals were extracted for.
	Depth int
}

// Extract scans the timeline and returns the signals for the given context.
func Extract(tl *timeline.Timeline, ctx problem.Context) Signals {
	sig := Signals{Depth: ctx.Depth}
	if tl == nil {
		return sig
	}

	var successfulSubCalls int
	var userInput bool
	var errorTexts []string

	for _, ev := range tl.Events() {
		if ev.Depth > sig.MaxDepth {
			sig.MaxDepth = ev.Depth
		}

		switch ev.Type {
		case timeline.EventRecursiveCall:
			sig.RecursiveCalls++
		case timeline.EventWorkflowComplete:
			sig.CompletedWorkflows++
			sig.CumulativeElapsed += elapsedOf(ev)
			if ev.Depth > 0 {
				successfulSubCalls++
			}
		case timeline.EventWorkflowError:
			sig.FailedWorkflows++
			sig.CumulativeElapsed += elapsedOf(ev)
			if text, ok := ev.Payload["error"].(string); ok && text != "" {
				errorTexts = append(errorTexts, text)
			}
		case timeline.EventUserInputRequest:
			userInput = true
		}
	}

	finished := sig.CompletedWorkflows + sig.FailedWorkflows
	if finished > 0 {
		sig.FailureRatio = float64(sig.FailedWorkflows) / float64(finished)
	}

	if len(errorTexts) > recentErrorWindow {
		errorTexts = errorTexts[len(errorTexts)-recentErrorWindow:]
	}
	sig.ConstraintViolations = errorTexts

	if successfulSubCalls > 2 {
		sig.SuccessPatterns = append(sig.SuccessPatterns, PatternRecursiveDecomposition)
	}
	if userInput {
		sig.SuccessPatterns = append(sig.SuccessPatterns, PatternUserInteraction)
	}

	return sig
}

// elapsedOf reads the elapsed_ms payload field recorded by workflow
// completion and error events.
func elapsedOf(ev timeline.Event) time.Duration {
	switch v := ev.Payload["elapsed_ms"].(type) {
	case int64:
		return time.Duration(v) * time.Millisecond
	case int:
		return time.Duration(v) * time.Millisecond
	case float64:
		return time.Duration(v) * time.Millisecond
	default:
		return 0
	}
}
