package oracle

import (
	"context"
	"fmt"
	"sync"
)

// Response configures one oracle turn in a scripted sequence.
type Response struct {
	// Text is the program text to return.
	Text string
	// Err is returned instead of Text when non-nil.
	Err error
}

// Scripted is a deterministic Oracle for tests and dry runs. Each call
// consumes the next configured response; when the script is exhausted the
// last response repeats, which keeps adversarial always-recurse scripts
// one-liners.
type Scripted struct {
	mu        sync.Mutex
	index     int
	calls     int
	responses []Response
}

var _ Oracle = (*Scripted)(nil)

// NewScripted creates a scripted oracle from the given responses.
func NewScripted(responses ...Response) *Scripted {
	cloned := make([]Response, len(responses))
	copy(cloned, responses)
	return &Scripted{responses: cloned}
}

// Generate returns the next scripted response.
func (s *Scripted) Generate(ctx context.Context, prompt string, budget Budget) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if len(s.responses) == 0 {
		return "", fmt.Errorf("%w: script is empty", ErrUnavailable)
	}

	current := s.responses[s.index]
	if s.index < len(s.responses)-1 {
		s.index++
	}
	if current.Err != nil {
		return "", current.Err
	}
	return current.Text, nil
}

// Calls returns how many times Generate has been invoked.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
