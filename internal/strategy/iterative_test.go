package strategy

import (
	"context"
	"strings"
	"testing"

	"github.com/ShayCichocki/unravel/internal/oracle"
	"github.com/ShayCichocki/unravel/internal/problem"
	"github.com/ShayCichocki/unravel/internal/timeline"
	"github.com/ShayCichocki/unravel/internal/workflow"
)

func newIterativeFixture(o oracle.Oracle) *Iterative {
	return NewIterative(workflow.NewArena(), timeline.New(), o, 0)
}

func TestIterativeCanHandle(t *testing.T) {
	s := newIterativeFixture(oracle.NewScripted())

	tests := []struct {
		statement string
		want      bool
	}{
		{"Refine the introduction paragraph", true},
		{"improve the error messages", true},
		{"Revise and polish the summary", true},
		{"plan a trip to Lisbon", false},
		{"decompose this into steps", false},
	}

	for _, tt := range tests {
		if got := s.CanHandle(tt.statement, problem.New(tt.statement, "o")); got != tt.want {
			t.Errorf("CanHandle(%q) = %v, want %v", tt.statement, got, tt.want)
		}
	}
}

func TestIterativeStripsRecursion(t *testing.T) {
	script := oracle.NewScripted(oracle.Response{Text: `[
		{"op": "reason", "text": "tighten the prose"},
		{"op": "recurse", "problem": "rewrite paragraph 2", "objective": "clearer"},
		{"op": "emit", "text": "refined text"}
	]`})
	s := newIterativeFixture(script)

	inst, err := s.CreateWorkflow(context.Background(), problem.New("refine the draft", "clearer draft"), nil)
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	program := inst.Program()
	if len(program.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(program.Steps))
	}
	for _, step := range program.Steps {
		if step.Op == workflow.OpRecurse {
			t.Fatal("iterative program must not contain recurse steps")
		}
	}
	// The dropped recursion survives as a reasoning trace.
	if program.Steps[1].Op != workflow.OpReason || !strings.Contains(program.Steps[1].Text, "rewrite paragraph 2") {
		t.Errorf("expected demoted recurse step, got %+v", program.Steps[1])
	}
	if program.Steps[2].Op != workflow.OpEmit || program.Steps[2].Text != "refined text" {
		t.Errorf("expected original emit preserved, got %+v", program.Steps[2])
	}
}

func TestIterativeAppendsPlaceholderEmit(t *testing.T) {
	script := oracle.NewScripted(oracle.Response{Text: `[
		{"op": "reason", "text": "thinking"},
		{"op": "recurse", "problem": "sub", "objective": "o"}
	]`})
	s := newIterativeFixture(script)

	inst, err := s.CreateWorkflow(context.Background(), problem.New("refine it", "better"), nil)
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	steps := inst.Program().Steps
	last := steps[len(steps)-1]
	if last.Op != workflow.OpEmit {
		t.Errorf("expected placeholder emit appended, got %+v", last)
	}
}

func TestIterativeOracleFailureYieldsBaseCase(t *testing.T) {
	script := oracle.NewScripted(oracle.Response{Err: oracle.ErrUnavailable})
	s := newIterativeFixture(script)

	inst, err := s.CreateWorkflow(context.Background(), problem.New("refine it", "better"), nil)
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	program := inst.Program()
	if !program.Fallback {
		t.Error("expected base case after oracle failure")
	}
	if len(program.Steps) != 1 || program.Steps[0].Op != workflow.OpEmit {
		t.Errorf("expected single emit, got %+v", program.Steps)
	}
	if !strings.Contains(program.Steps[0].Text, "could not refine") {
		t.Errorf("expected failure reported in result, got %q", program.Steps[0].Text)
	}
}
