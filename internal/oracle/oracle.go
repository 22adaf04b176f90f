// Package oracle abstracts the external generative capability that turns a
// prompt into candidate program text.
package oracle

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the oracle could not be reached or did not
// answer within its budget. Callers treat it as recoverable and fall back
// to a base-case program.
var ErrUnavailable = errors.New("oracle unavailable")

// Budget bounds a single oracle invocation.
type Budget struct {
	// MaxTokens caps the response size.
	MaxTokens int64
}

// DefaultBudget is used when the caller does not specify one.
var DefaultBudget = Budget{MaxTokens: 4096}

// Oracle generates candidate program text for a prompt. Implementations
// must be safe for concurrent use: independent sub-problems may invoke the
// oracle in parallel.
type Oracle interface {
	// Generate returns program text for the prompt, or an error. Respect
	// ctx cancellation; a deadline exceeded error is reported wrapped in
	// ErrUnavailable by the Anthropic adapter.
	Generate(ctx context.Context, prompt string, budget Budget) (string, error)
}
