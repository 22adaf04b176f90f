package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/unravel/internal/workflow"
)

// runtimeEnv is the engine's runtime environment for one workflow
// instance. Recurse re-enters the solver with the instance as parent
// carrier; RecurseAll fans independent sub-problems out on a bounded
// worker pool.
type runtimeEnv struct {
	solver *Solver
	inst   *workflow.Instance
}

var _ workflow.Runtime = (*runtimeEnv)(nil)
var _ workflow.BatchRuntime = (*runtimeEnv)(nil)

// runtimeFor binds a runtime environment to the given instance.
func (s *Solver) runtimeFor(inst *workflow.Instance) *runtimeEnv {
	return &runtimeEnv{solver: s, inst: inst}
}

// EmitResult forwards the value to the configured result sink.
func (r *runtimeEnv) EmitResult(value string) {
	if r.solver.onResult != nil {
		r.solver.onResult(value)
	}
}

// RequestUserInput forwards the prompt to the configured provider.
func (r *runtimeEnv) RequestUserInput(prompt string) (string, error) {
	if r.solver.input == nil {
		return "", ErrNoUserInput
	}
	return r.solver.input(prompt)
}

// EmitReasoningTrace forwards the trace to the configured sink.
func (r *runtimeEnv) EmitReasoningTrace(text string) {
	if r.solver.onTrace != nil {
		r.solver.onTrace(text)
	}
}

// Recurse re-enters the solver for a sub-problem at depth+1, with the
// current instance as the parent-context carrier.
func (r *runtimeEnv) Recurse(ctx context.Context, subProblem, subObjective string) (string, error) {
	sub := r.inst.Context.Sub(subProblem, subObjective)
	return r.solver.solveContext(ctx, sub, r.inst)
}

// RecurseAll solves independent sub-problems concurrently: one child
// workflow per pair, run on a worker pool bounded by the configured worker
// count (or serialized when parallel execution is disabled). Results come
// back in input order; the first failure cancels the remaining children
// and is returned.
func (r *runtimeEnv) RecurseAll(ctx context.Context, subs []workflow.SubProblem) ([]string, error) {
	results := make([]string, len(subs))

	g, gctx := errgroup.WithContext(ctx)
	limit := r.solver.cfg.Engine.MaxWorkers
	if !r.solver.cfg.Engine.Parallel || limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, sub := range subs {
		g.Go(func() error {
			res, err := r.Recurse(gctx, sub.Problem, sub.Objective)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
