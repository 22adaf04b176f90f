package oracle

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
)

func TestNewAnthropicClientRequiresKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := NewAnthropicClient(AnthropicConfig{})
	if err == nil {
		t.Fatal("expected error without an API key")
	}
}

func TestNewAnthropicClientDefaultModel(t *testing.T) {
	client, err := NewAnthropicClient(AnthropicConfig{APIKey: "sk-ant-test"})
	if err != nil {
		t.Fatalf("NewAnthropicClient: %v", err)
	}
	if client.Model() != anthropic.ModelClaudeSonnet4_20250514 {
		t.Errorf("unexpected default model %s", client.Model())
	}
}

func TestTranslateModelForBedrock(t *testing.T) {
	tests := []struct {
		name  string
		model anthropic.Model
		want  anthropic.Model
	}{
		{
			"known model translated",
			anthropic.ModelClaudeSonnet4_20250514,
			"us.anthropic.claude-sonnet-4-20250514-v1:0",
		},
		{
			"unknown model passed through",
			"custom-model",
			"custom-model",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := translateModelForBedrock(tt.model); got != tt.want {
				t.Errorf("translateModelForBedrock(%s) = %s, want %s", tt.model, got, tt.want)
			}
		})
	}
}

func TestTokenTracker(t *testing.T) {
	tracker := NewTokenTracker()

	tracker.Add(100, 50)
	tracker.Add(200, 75)

	in, out := tracker.Total()
	if in != 300 || out != 125 {
		t.Errorf("expected totals 300/125, got %d/%d", in, out)
	}
	if tracker.Calls() != 2 {
		t.Errorf("expected 2 calls, got %d", tracker.Calls())
	}
}
