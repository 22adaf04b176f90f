package workflow

import (
	"errors"
	"testing"
)

func TestCompileValidProgram(t *testing.T) {
	text := `Here is the plan:
[
  {"op": "reason", "text": "split the trip into days"},
  {"op": "recurse", "problem": "plan day 1", "objective": "day 1 itinerary"},
  {"op": "emit", "text": "itinerary assembled"}
]
Done.`

	program, err := Compile(text)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if len(program.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(program.Steps))
	}
	if program.Steps[0].Op != OpReason {
		t.Errorf("expected first step reason, got %s", program.Steps[0].Op)
	}
	if program.Steps[1].Problem != "plan day 1" {
		t.Errorf("unexpected recurse problem %q", program.Steps[1].Problem)
	}
	if program.Source != text {
		t.Error("expected Source to keep the raw oracle text")
	}
	if program.Fallback {
		t.Error("compiled oracle output should not be marked fallback")
	}
}

func TestCompileRejections(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"too short", "ok"},
		{"no step array", "I think the answer is to plan each day separately."},
		{"malformed json", `[{"op": "emit", "text": }]`},
		{"empty list", "steps: [] nothing to do"},
		{"unknown op", `[{"op": "delete", "text": "rm -rf"}]`},
		{"emit without text", `[{"op": "emit"}, {"op": "recurse", "problem": "p"}]`},
		{"recurse without problem", `[{"op": "recurse", "objective": "o"}]`},
		{"ask without prompt", `[{"op": "ask"}, {"op": "emit", "text": "x"}]`},
		{"no outcome step", `[{"op": "reason", "text": "thinking"}, {"op": "ask", "text": "ok?"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.text)
			if err == nil {
				t.Fatal("expected compile error")
			}
			var ce *CompileError
			if !errors.As(err, &ce) {
				t.Errorf("expected *CompileError, got %T", err)
			}
		})
	}
}

func TestHasPrimitiveCall(t *testing.T) {
	if !HasPrimitiveCall(`[{"op": "emit", "text": "x"}]`) {
		t.Error("expected primitive call detected")
	}
	if HasPrimitiveCall("Sure! Let me think about that problem for a while.") {
		t.Error("expected no primitive call in plain prose")
	}
}

func TestEmitProgram(t *testing.T) {
	program := EmitProgram("the answer")

	if len(program.Steps) != 1 || program.Steps[0].Op != OpEmit {
		t.Fatalf("expected a single emit step, got %+v", program.Steps)
	}
	if program.Steps[0].Text != "the answer" {
		t.Errorf("unexpected emit text %q", program.Steps[0].Text)
	}
	if !program.Fallback {
		t.Error("expected synthesized program marked fallback")
	}
}

func TestFallbackProgramTextCompiles(t *testing.T) {
	text, err := FallbackProgramText(`result with "quotes" and
newlines`)
	if err != nil {
		t.Fatalf("FallbackProgramText: %v", err)
	}

	program, err := Compile(text)
	if err != nil {
		t.Fatalf("fallback text must compile: %v", err)
	}
	if program.Steps[0].Text != "result with \"quotes\" and\nnewlines" {
		t.Errorf("round trip lost the result: %q", program.Steps[0].Text)
	}
}
