package strategy

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/unravel/internal/problem"
	"github.com/ShayCichocki/unravel/internal/signals"
)

// programPrompt is the prompt template for program generation. The step
// array format and the four primitives are fixed; the merged execution
// context is spliced into the middle.
const programPrompt = `Produce a program that solves this problem, or decomposes it into smaller sub-problems.

Problem:
%s

Objective:
%s

Recursion depth: %d

Execution context:
%s

Return ONLY a JSON array of steps with this exact structure (no other text):
[
  {"op": "reason", "text": "why this approach"},
  {"op": "recurse", "problem": "smaller sub-problem", "objective": "what solving it must achieve"},
  {"op": "ask", "text": "question for the user"},
  {"op": "emit", "text": "the result"}
]

Available primitives (the ONLY allowed ops):
- emit: report a result value for this problem
- recurse: hand a strictly smaller sub-problem back to the engine
- ask: request input from the user
- reason: record a reasoning trace

Guidelines:
- Every program must contain at least one emit or recurse step
- recurse only with a sub-problem genuinely smaller than the current one
- Prefer emit over recurse when the problem is directly answerable
- Never recurse with the same problem statement you were given
- Keep programs short: a handful of steps, not dozens`

// BuildPrompt combines the problem, objective, depth, and merged context
// signals into the oracle prompt.
func BuildPrompt(pctx problem.Context, sig signals.Signals, parentSummary string) string {
	return fmt.Sprintf(programPrompt, pctx.Statement, pctx.Objective, pctx.Depth, renderContext(pctx, sig, parentSummary))
}

// renderContext flattens the quantitative and qualitative signals plus the
// parent summary into prompt text.
func renderContext(pctx problem.Context, sig signals.Signals, parentSummary string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "- original problem: %s\n", pctx.Original)
	fmt.Fprintf(&b, "- recursive calls so far: %d\n", sig.RecursiveCalls)
	fmt.Fprintf(&b, "- workflows finished: %d ok, %d failed (failure ratio %.2f)\n",
		sig.CompletedWorkflows, sig.FailedWorkflows, sig.FailureRatio)
	fmt.Fprintf(&b, "- cumulative execution time: %s\n", sig.CumulativeElapsed)
	fmt.Fprintf(&b, "- max depth reached: %d\n", sig.MaxDepth)

	if len(sig.SuccessPatterns) > 0 {
		fmt.Fprintf(&b, "- approaches that worked: %s\n", strings.Join(sig.SuccessPatterns, ", "))
	}
	if len(sig.ConstraintViolations) > 0 {
		b.WriteString("- recent failures:\n")
		for _, violation := range sig.ConstraintViolations {
			fmt.Fprintf(&b, "  - %s\n", violation)
		}
	}

	if len(pctx.Constraints) > 0 {
		b.WriteString("- constraints:\n")
		for name, value := range pctx.Constraints {
			fmt.Fprintf(&b, "  - %s: %s\n", name, value)
		}
	}
	if len(pctx.Assumptions) > 0 {
		b.WriteString("- assumptions:\n")
		for _, assumption := range pctx.Assumptions {
			fmt.Fprintf(&b, "  - %s\n", assumption)
		}
	}

	if parentSummary != "" {
		fmt.Fprintf(&b, "- parent workflow: %s\n", parentSummary)
	}

	return strings.TrimRight(b.String(), "\n")
}

// summarizeParent renders the parent's problem, objective, depth, and the
// session's recognized success patterns for inclusion in a child's prompt.
func summarizeParent(parentProblem, parentObjective string, parentDepth int, patterns []string) string {
	summary := fmt.Sprintf("solving %q (objective: %s) at depth %d", parentProblem, parentObjective, parentDepth)
	if len(patterns) > 0 {
		summary += ", patterns: " + strings.Join(patterns, ", ")
	}
	return summary
}
