// Package timeline provides the shared, append-only event log for a solve
// session. A single Timeline is created per session and shared by the root
// workflow and every descendant spawned during recursive decomposition.
package timeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of timeline event.
type EventType string

const (
	// EventTurnStart marks the beginning of an externally-initiated turn.
	EventTurnStart EventType = "turn_start"
	// EventWorkflowStart indicates a workflow has begun execution.
	EventWorkflowStart EventType = "workflow_start"
	// EventWorkflowComplete indicates a workflow finished successfully.
	EventWorkflowComplete EventType = "workflow_complete"
	// EventWorkflowError indicates a workflow failed.
	EventWorkflowError EventType = "workflow_error"
	// EventRecursiveCall indicates a generated program re-entered the solver.
	EventRecursiveCall EventType = "recursive_call"
	// EventOracleReasoning carries a reasoning trace emitted by a program.
	EventOracleReasoning EventType = "oracle_reasoning"
	// EventUserInputRequest indicates a program asked the user for input.
	EventUserInputRequest EventType = "user_input_request"
)

// Event is a single immutable entry in the timeline. Events are created
// only by Timeline.Append and never modified afterwards.
type Event struct {
	// ID is the unique identifier for this event.
	ID string
	// Timestamp is when the event was appended.
	Timestamp time.Time
	// Type is the kind of event.
	Type EventType
	// Turn is the conversation turn this event belongs to.
	Turn int
	// Depth is the recursion depth at which the event occurred.
	Depth int
	// Payload carries event-specific data (result text, error message,
	// elapsed time, and so on).
	Payload map[string]any
	// Refs holds named links to related workflow and context IDs.
	Refs map[string]string
}

// Timeline is an append-only ordered log of events plus a monotonically
// increasing conversation-turn counter. Append is safe under concurrent
// writers; queries never mutate the log.
type Timeline struct {
	mu     sync.RWMutex
	events []Event
	turn   int
}

// New creates an empty Timeline.
func New() *Timeline {
	return &Timeline{}
}

// Append records an event and returns a copy of it. It never fails: a nil
// payload or refs map is accepted, and the timeline stays usable while
// other components are handling errors.
func (t *Timeline) Append(eventType EventType, depth int, payload map[string]any, refs map[string]string) Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	ev := Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Type:      eventType,
		Turn:      t.turn,
		Depth:     depth,
		Payload:   copyPayload(payload),
		Refs:      copyRefs(refs),
	}
	t.events = append(t.events, ev)
	return ev
}

// StartTurn increments the conversation-turn counter and records a
// turn_start event carrying the user's request. It must be called exactly
// once per externally-initiated top-level solve, and never by internal
// recursive calls.
func (t *Timeline) StartTurn(userRequest string) int {
	t.mu.Lock()
	t.turn++
	turn := t.turn
	ev := Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Type:      EventTurnStart,
		Turn:      turn,
		Payload:   map[string]any{"request": userRequest},
	}
	t.events = append(t.events, ev)
	t.mu.Unlock()
	return turn
}

// Turn returns the current conversation turn number.
func (t *Timeline) Turn() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.turn
}

// Len returns the number of events recorded so far.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.events)
}

// Events returns a snapshot of all events in append order.
func (t *Timeline) Events() []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// ByType returns all events of the given type, in append order.
func (t *Timeline) ByType(eventType EventType) []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Event
	for _, ev := range t.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// ByTurn returns all events belonging to the given conversation turn, in
// append order.
func (t *Timeline) ByTurn(turn int) []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Event
	for _, ev := range t.events {
		if ev.Turn == turn {
			out = append(out, ev)
		}
	}
	return out
}

// Tail returns the last n events in append order. If fewer than n events
// exist, all events are returned.
func (t *Timeline) Tail(n int) []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if n <= 0 {
		return nil
	}
	start := len(t.events) - n
	if start < 0 {
		start = 0
	}
	out := make([]Event, len(t.events)-start)
	copy(out, t.events[start:])
	return out
}

// copyPayload returns a shallow copy of the payload map so callers cannot
// mutate an appended event.
func copyPayload(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// copyRefs returns a copy of the refs map.
func copyRefs(r map[string]string) map[string]string {
	if r == nil {
		return nil
	}
	out := make(map[string]string, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
