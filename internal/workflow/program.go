// Package workflow provides the executable unit of recursive problem
// solving: compiled programs, workflow instances, and the arena that links
// instances into a recursion tree.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Op identifies one of the four primitive operations a compiled program may
// perform. The instruction set is closed: oracle output using any other
// operation fails compilation.
type Op string

const (
	// OpEmit reports a result value for the workflow.
	OpEmit Op = "emit"
	// OpRecurse re-enters the solver with a sub-problem at depth+1.
	OpRecurse Op = "recurse"
	// OpAsk requests input from the user.
	OpAsk Op = "ask"
	// OpReason records a reasoning trace.
	OpReason Op = "reason"
)

// Step is a single primitive operation within a program.
type Step struct {
	// Op is the primitive to execute.
	Op Op `json:"op"`
	// Text carries the value for emit and reason steps and the prompt for
	// ask steps.
	Text string `json:"text,omitempty"`
	// Problem is the sub-problem statement for recurse steps.
	Problem string `json:"problem,omitempty"`
	// Objective is the sub-objective for recurse steps.
	Objective string `json:"objective,omitempty"`
}

// Program is a closed, ordered sequence of primitive steps compiled from
// oracle output. A program is assigned to a workflow exactly once.
type Program struct {
	// Steps are executed in order.
	Steps []Step
	// Source is the raw oracle text the program was compiled from. Empty
	// for synthesized base-case and fallback programs.
	Source string
	// Fallback marks programs synthesized by the engine rather than
	// compiled from oracle output.
	Fallback bool
	// Parallel marks the program's recurse steps as independent: the
	// runtime may dispatch them concurrently through BatchRuntime.
	Parallel bool
}

// SubProblem is one (problem, objective) pair handed to the parallel
// execution helper.
type SubProblem struct {
	// Problem is the sub-problem statement.
	Problem string
	// Objective is what solving the sub-problem must achieve.
	Objective string
}

// Runtime is the environment a compiled program executes against. It is
// supplied by the embedding application; the engine's own implementation
// bridges Recurse back into the solver.
type Runtime interface {
	// EmitResult reports a result value produced by the program.
	EmitResult(value string)
	// RequestUserInput asks the user a question and returns the answer.
	RequestUserInput(prompt string) (string, error)
	// Recurse solves a sub-problem at depth+1 and returns its result.
	Recurse(ctx context.Context, subProblem, subObjective string) (string, error)
	// EmitReasoningTrace records free-form reasoning text.
	EmitReasoningTrace(text string)
}

// BatchRuntime is implemented by runtimes that can dispatch independent
// sub-problems concurrently. When a program is marked Parallel and the
// runtime supports batching, its recurse steps are handed over as one
// batch; otherwise they run sequentially through Recurse.
type BatchRuntime interface {
	// RecurseAll solves the sub-problems concurrently, one child workflow
	// per pair, and returns the results in input order.
	RecurseAll(ctx context.Context, subs []SubProblem) ([]string, error)
}

// CompileError indicates oracle output could not be compiled into a
// program.
type CompileError struct {
	// Reason describes what was wrong with the text.
	Reason string
	// Source is the text that failed to compile, truncated for display.
	Source string
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	return fmt.Sprintf("compile program: %s", e.Reason)
}

// MinProgramLen is the shortest oracle response worth attempting to
// compile. Anything shorter cannot contain a valid step array.
const MinProgramLen = 10

// Compile parses oracle output into a Program. The expected format is a
// JSON array of step objects; surrounding prose is tolerated and stripped,
// the same way decomposition responses are handled. Compile validates that
// every step uses a known op, carries its required fields, and that the
// program contains at least one emit or recurse step.
func Compile(text string) (*Program, error) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < MinProgramLen {
		return nil, &CompileError{Reason: "response too short to contain a program", Source: preview(trimmed)}
	}

	jsonStart := strings.Index(trimmed, "[")
	jsonEnd := strings.LastIndex(trimmed, "]")
	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		return nil, &CompileError{Reason: "no JSON step array found", Source: preview(trimmed)}
	}
	jsonStr := trimmed[jsonStart : jsonEnd+1]

	var steps []Step
	if err := json.Unmarshal([]byte(jsonStr), &steps); err != nil {
		return nil, &CompileError{Reason: fmt.Sprintf("unmarshal steps: %v", err), Source: preview(trimmed)}
	}
	if len(steps) == 0 {
		return nil, &CompileError{Reason: "empty step list", Source: preview(trimmed)}
	}

	var hasOutcome bool
	for i, step := range steps {
		switch step.Op {
		case OpEmit:
			if step.Text == "" {
				return nil, &CompileError{Reason: fmt.Sprintf("step %d: emit requires text", i), Source: preview(trimmed)}
			}
			hasOutcome = true
		case OpRecurse:
			if step.Problem == "" {
				return nil, &CompileError{Reason: fmt.Sprintf("step %d: recurse requires a problem", i), Source: preview(trimmed)}
			}
			hasOutcome = true
		case OpAsk:
			if step.Text == "" {
				return nil, &CompileError{Reason: fmt.Sprintf("step %d: ask requires a prompt", i), Source: preview(trimmed)}
			}
		case OpReason:
			if step.Text == "" {
				return nil, &CompileError{Reason: fmt.Sprintf("step %d: reason requires text", i), Source: preview(trimmed)}
			}
		default:
			return nil, &CompileError{Reason: fmt.Sprintf("step %d: unknown op %q", i, step.Op), Source: preview(trimmed)}
		}
	}
	if !hasOutcome {
		return nil, &CompileError{Reason: "program has no emit or recurse step", Source: preview(trimmed)}
	}

	return &Program{Steps: steps, Source: text}, nil
}

// HasPrimitiveCall reports whether the raw oracle text mentions any of the
// four primitive ops. It is a cheap pre-compilation sanity check used to
// reject degenerate responses before spending a retry on them.
func HasPrimitiveCall(text string) bool {
	for _, op := range []Op{OpEmit, OpRecurse, OpAsk, OpReason} {
		if strings.Contains(text, fmt.Sprintf("%q", string(op))) {
			return true
		}
	}
	return false
}

// EmitProgram builds a synthesized one-step program that reports the given
// result. Used for base cases and compile-error fallbacks.
func EmitProgram(result string) *Program {
	return &Program{
		Steps:    []Step{{Op: OpEmit, Text: result}},
		Fallback: true,
	}
}

// FallbackProgramText renders the source of a one-step emit program
// reporting the given result. It exists so compile-error fallbacks go
// through the same Compile path as oracle output.
func FallbackProgramText(result string) (string, error) {
	steps := []Step{{Op: OpEmit, Text: result}}
	data, err := json.Marshal(steps)
	if err != nil {
		return "", fmt.Errorf("marshal fallback program: %w", err)
	}
	return string(data), nil
}

// preview truncates text for inclusion in error messages.
func preview(text string) string {
	const max = 200
	if len(text) <= max {
		return text
	}
	return text[:max] + "... (truncated)"
}
