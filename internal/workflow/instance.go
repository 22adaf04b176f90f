package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/unravel/internal/problem"
	"github.com/ShayCichocki/unravel/internal/timeline"
)

// State represents the lifecycle state of a workflow instance.
type State string

const (
	// StateCreated means the instance exists but has no program yet.
	StateCreated State = "created"
	// StateReady means a program has been assigned and the instance can run.
	StateReady State = "ready"
	// StateRunning means the instance is currently executing.
	StateRunning State = "running"
	// StateCompleted means the instance finished successfully. Terminal.
	StateCompleted State = "completed"
	// StateFailed means the instance finished with an error. Terminal.
	StateFailed State = "failed"
)

// ErrNoProgram is returned when Execute is called on an instance that has
// not been assigned a program. This is a programming error and fails fast
// rather than silently doing nothing.
var ErrNoProgram = fmt.Errorf("workflow has no compiled program assigned")

// ErrAlreadyExecuted is returned when Execute is called on an instance that
// already ran. A solved instance is never re-executed; re-solving the same
// problem creates a new instance.
var ErrAlreadyExecuted = fmt.Errorf("workflow already executed")

// ErrProgramAssigned is returned when a second program assignment is
// attempted. The program is set exactly once, by a strategy.
var ErrProgramAssigned = fmt.Errorf("workflow program already assigned")

// Instance is one executable attempt at solving a (sub-)problem, positioned
// in the recursion tree. Instances share a single timeline with every
// ancestor and descendant; the parent link is a weak id resolved through
// the arena.
type Instance struct {
	// ID is the unique identifier for this instance.
	ID string
	// Problem is the problem statement this instance addresses.
	Problem string
	// Objective is what this instance must achieve.
	Objective string
	// Context is the immutable problem context at this depth.
	Context problem.Context

	arena    *Arena
	timeline *timeline.Timeline
	parentID string

	mu       sync.Mutex
	program  *Program
	state    State
	result   string
	err      error
}

// New creates an instance in the Created state, registers it in the arena,
// and links it under the parent (which may be nil for the root).
func New(arena *Arena, tl *timeline.Timeline, ctx problem.Context, parent *Instance) *Instance {
	inst := &Instance{
		ID:        uuid.New().String(),
		Problem:   ctx.Statement,
		Objective: ctx.Objective,
		Context:   ctx,
		arena:     arena,
		timeline:  tl,
		state:     StateCreated,
	}
	if parent != nil {
		inst.parentID = parent.ID
	}
	arena.add(inst)
	return inst
}

// Timeline returns the shared timeline this instance records to.
func (w *Instance) Timeline() *timeline.Timeline {
	return w.timeline
}

// State returns the current lifecycle state.
func (w *Instance) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Program returns the assigned program, or nil while the instance is in the
// Created state.
func (w *Instance) Program() *Program {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.program
}

// Result returns the result recorded by a completed execution.
func (w *Instance) Result() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result
}

// Err returns the error recorded by a failed execution.
func (w *Instance) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// AssignProgram moves the instance from Created to Ready. It may be called
// exactly once; any further assignment is rejected.
func (w *Instance) AssignProgram(p *Program) error {
	if p == nil {
		return fmt.Errorf("assign nil program")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateCreated {
		return ErrProgramAssigned
	}
	w.program = p
	w.state = StateReady
	return nil
}

// Execute runs the compiled program against the given runtime environment.
// A workflow_start event is appended before the first step; on success a
// workflow_complete event carries the result and elapsed time, on failure a
// workflow_error event carries the error and elapsed time and the error is
// returned, never swallowed. Executing an instance without a program fails
// fast with ErrNoProgram.
func (w *Instance) Execute(ctx context.Context, env Runtime, args ...string) (string, error) {
	w.mu.Lock()
	switch w.state {
	case StateCreated:
		w.mu.Unlock()
		return "", ErrNoProgram
	case StateRunning:
		w.mu.Unlock()
		return "", fmt.Errorf("workflow %s is already running", w.ID)
	case StateCompleted, StateFailed:
		w.mu.Unlock()
		return "", ErrAlreadyExecuted
	}
	program := w.program
	w.state = StateRunning
	w.mu.Unlock()

	start := time.Now()
	w.timeline.Append(timeline.EventWorkflowStart, w.Context.Depth, map[string]any{
		"problem":   w.Problem,
		"objective": w.Objective,
		"args":      args,
	}, map[string]string{"workflow": w.ID, "parent": w.parentID})

	result, err := w.runSteps(ctx, env, program)
	elapsed := time.Since(start)

	if err != nil {
		w.timeline.Append(timeline.EventWorkflowError, w.Context.Depth, map[string]any{
			"error":      err.Error(),
			"elapsed_ms": elapsed.Milliseconds(),
		}, map[string]string{"workflow": w.ID})

		w.mu.Lock()
		w.state = StateFailed
		w.err = err
		w.mu.Unlock()
		return "", err
	}

	w.timeline.Append(timeline.EventWorkflowComplete, w.Context.Depth, map[string]any{
		"result":     result,
		"elapsed_ms": elapsed.Milliseconds(),
	}, map[string]string{"workflow": w.ID})

	w.mu.Lock()
	w.state = StateCompleted
	w.result = result
	w.mu.Unlock()
	return result, nil
}

// runSteps executes the program's steps in order. The result is the text of
// the last emit step, or the last recurse result when the program never
// emits. Programs marked Parallel dispatch their recurse steps as one
// concurrent batch when the runtime supports it.
func (w *Instance) runSteps(ctx context.Context, env Runtime, program *Program) (string, error) {
	if program.Parallel {
		if batch, ok := env.(BatchRuntime); ok {
			return w.runParallelSteps(ctx, env, batch, program)
		}
	}
	return w.runSequentialSteps(ctx, env, program)
}

func (w *Instance) runSequentialSteps(ctx context.Context, env Runtime, program *Program) (string, error) {
	var result string
	var emitted bool

	for i, step := range program.Steps {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("step %d interrupted: %w", i, err)
		}

		switch step.Op {
		case OpEmit:
			env.EmitResult(step.Text)
			result = step.Text
			emitted = true

		case OpRecurse:
			w.timeline.Append(timeline.EventRecursiveCall, w.Context.Depth, map[string]any{
				"problem":   step.Problem,
				"objective": step.Objective,
			}, map[string]string{"workflow": w.ID})

			sub, err := env.Recurse(ctx, step.Problem, step.Objective)
			if err != nil {
				return "", fmt.Errorf("recurse into %q: %w", step.Problem, err)
			}
			if !emitted {
				result = sub
			}

		case OpAsk:
			answer, err := env.RequestUserInput(step.Text)
			if err != nil {
				return "", fmt.Errorf("request user input: %w", err)
			}
			w.timeline.Append(timeline.EventUserInputRequest, w.Context.Depth, map[string]any{
				"prompt": step.Text,
				"answer": answer,
			}, map[string]string{"workflow": w.ID})

		case OpReason:
			w.timeline.Append(timeline.EventOracleReasoning, w.Context.Depth, map[string]any{
				"text": step.Text,
			}, map[string]string{"workflow": w.ID})
			env.EmitReasoningTrace(step.Text)
		}
	}

	return result, nil
}

// runParallelSteps executes non-recurse steps in order and dispatches all
// recurse steps as a single concurrent batch at the position of the first
// one. Each sub-problem still gets its own recursive_call event before
// dispatch, preserving causal order per child.
func (w *Instance) runParallelSteps(ctx context.Context, env Runtime, batch BatchRuntime, program *Program) (string, error) {
	var subs []SubProblem
	for _, step := range program.Steps {
		if step.Op == OpRecurse {
			subs = append(subs, SubProblem{Problem: step.Problem, Objective: step.Objective})
		}
	}

	var result string
	var emitted, dispatched bool

	for i, step := range program.Steps {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("step %d interrupted: %w", i, err)
		}

		switch step.Op {
		case OpEmit:
			env.EmitResult(step.Text)
			result = step.Text
			emitted = true

		case OpRecurse:
			if dispatched {
				continue
			}
			dispatched = true

			for _, sub := range subs {
				w.timeline.Append(timeline.EventRecursiveCall, w.Context.Depth, map[string]any{
					"problem":   sub.Problem,
					"objective": sub.Objective,
				}, map[string]string{"workflow": w.ID})
			}

			results, err := batch.RecurseAll(ctx, subs)
			if err != nil {
				return "", fmt.Errorf("parallel recurse: %w", err)
			}
			if !emitted {
				result = strings.Join(results, "\n")
			}

		case OpAsk:
			answer, err := env.RequestUserInput(step.Text)
			if err != nil {
				return "", fmt.Errorf("request user input: %w", err)
			}
			w.timeline.Append(timeline.EventUserInputRequest, w.Context.Depth, map[string]any{
				"prompt": step.Text,
				"answer": answer,
			}, map[string]string{"workflow": w.ID})

		case OpReason:
			w.timeline.Append(timeline.EventOracleReasoning, w.Context.Depth, map[string]any{
				"text": step.Text,
			}, map[string]string{"workflow": w.ID})
			env.EmitReasoningTrace(step.Text)
		}
	}

	return result, nil
}
