package engine

import (
	"fmt"
)

// TerminalError is the single user-visible failure returned by a top-level
// Solve. Intermediate recursive failures stay invisible unless they
// propagate unhandled all the way up, at which point they arrive wrapped in
// one of these with a human-readable message.
type TerminalError struct {
	// Problem is the top-level problem statement that failed.
	Problem string
	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *TerminalError) Error() string {
	return fmt.Sprintf("solving %q failed: %v", e.Problem, e.Err)
}

// Unwrap returns the underlying error.
func (e *TerminalError) Unwrap() error {
	return e.Err
}

// ErrNoUserInput is returned by the default runtime when a generated
// program requests user input but the embedding application supplied no
// provider.
var ErrNoUserInput = fmt.Errorf("no user input provider configured")
