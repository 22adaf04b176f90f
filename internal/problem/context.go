// Package problem defines the immutable problem context carried through a
// recursive decomposition.
package problem

// Context is an immutable snapshot of what is being solved at one recursion
// depth. Child contexts are derived with Sub, never by mutation.
type Context struct {
	// Statement is the problem being solved at this depth.
	Statement string
	// Objective is what a solution at this depth must achieve.
	Objective string
	// Original is the problem statement of the oldest ancestor.
	Original string
	// Depth is the recursion depth, zero for the root.
	Depth int
	// Constraints holds named constraints on acceptable solutions.
	Constraints map[string]string
	// Assumptions lists assumptions made so far, in the order they were added.
	Assumptions []string
}

// New creates a root context (depth zero) for the given problem and
// objective. Original is set to the problem statement itself.
func New(statement, objective string) Context {
	return Context{
		Statement: statement,
		Objective: objective,
		Original:  statement,
	}
}

// Sub derives a child context for a sub-problem. Depth is incremented,
// constraints and assumptions are copied by value, and Original is carried
// down unchanged from the oldest ancestor. Sub is a pure function: the
// receiver is never modified.
func (c Context) Sub(subProblem, subObjective string) Context {
	return Context{
		Statement:   subProblem,
		Objective:   subObjective,
		Original:    c.Original,
		Depth:       c.Depth + 1,
		Constraints: copyConstraints(c.Constraints),
		Assumptions: copyAssumptions(c.Assumptions),
	}
}

// WithConstraint returns a copy of the context with one constraint added.
func (c Context) WithConstraint(name, value string) Context {
	out := c
	out.Constraints = copyConstraints(c.Constraints)
	if out.Constraints == nil {
		out.Constraints = make(map[string]string, 1)
	}
	out.Constraints[name] = value
	return out
}

// WithAssumption returns a copy of the context with one assumption appended.
func (c Context) WithAssumption(assumption string) Context {
	out := c
	out.Assumptions = append(copyAssumptions(c.Assumptions), assumption)
	return out
}

func copyConstraints(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyAssumptions(a []string) []string {
	if a == nil {
		return nil
	}
	out := make([]string, len(a))
	copy(out, a)
	return out
}
