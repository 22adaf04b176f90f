package strategy

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ShayCichocki/unravel/internal/timeline"
	"github.com/ShayCichocki/unravel/internal/workflow"
)

// LoopConfig holds the tunable thresholds for loop detection. The zero
// value is unusable; use DefaultLoopConfig.
type LoopConfig struct {
	// Window is how many trailing events the cycle detector inspects.
	Window int
	// RepeatThreshold is the minimum number of repetitions of an
	// event-type+payload cycle before it counts as a loop.
	RepeatThreshold int
	// RapidRise is the depth increase within RapidWindow events that
	// triggers the rapid-descent heuristic.
	RapidRise int
	// RapidWindow is the event window for the rapid-descent heuristic.
	RapidWindow int
}

// DefaultLoopConfig returns the default detection thresholds.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		Window:          10,
		RepeatThreshold: 2,
		RapidRise:       3,
		RapidWindow:     6,
	}
}

// detectLoop checks the three loop heuristics for a prospective workflow at
// the given statement and depth. It returns a human-readable reason when a
// loop is evident, empty string otherwise.
func detectLoop(cfg LoopConfig, arena *workflow.Arena, tl *timeline.Timeline, parent *workflow.Instance, statement string, depth int) string {
	if reason := ancestorRepeat(arena, parent, statement, depth); reason != "" {
		return reason
	}
	if reason := eventCycle(cfg, tl); reason != "" {
		return reason
	}
	if reason := rapidDescent(cfg, tl); reason != "" {
		return reason
	}
	return ""
}

// ancestorRepeat reports a loop when the problem statement exactly matches
// an ancestor's at a shallower depth.
func ancestorRepeat(arena *workflow.Arena, parent *workflow.Instance, statement string, depth int) string {
	if parent == nil {
		return ""
	}

	chain := append([]*workflow.Instance{parent}, arena.Ancestors(parent)...)
	for _, ancestor := range chain {
		if ancestor.Problem == statement && ancestor.Context.Depth < depth {
			return fmt.Sprintf("problem statement repeats ancestor at depth %d", ancestor.Context.Depth)
		}
	}
	return ""
}

// eventCycle reports a loop when the trailing Window events consist of a
// repeating event-type+payload cycle.
func eventCycle(cfg LoopConfig, tl *timeline.Timeline) string {
	if tl == nil || cfg.Window < 2 {
		return ""
	}

	tail := tl.Events()
	if len(tail) > cfg.Window {
		tail = tail[len(tail)-cfg.Window:]
	}
	if len(tail) < 2 {
		return ""
	}

	prints := make([]string, len(tail))
	for i, ev := range tail {
		prints[i] = fingerprint(ev)
	}

	repeats := cfg.RepeatThreshold
	if repeats < 2 {
		repeats = 2
	}

	for cycleLen := 1; cycleLen*repeats <= len(prints); cycleLen++ {
		if hasCycle(prints, cycleLen, repeats) {
			return fmt.Sprintf("repeating %d-event cycle in last %d events", cycleLen, len(prints))
		}
	}
	return ""
}

// hasCycle reports whether the trailing cycleLen*repeats fingerprints are
// the same cycle repeated.
func hasCycle(prints []string, cycleLen, repeats int) bool {
	span := cycleLen * repeats
	tail := prints[len(prints)-span:]
	for i := cycleLen; i < span; i++ {
		if tail[i] != tail[i-cycleLen] {
			return false
		}
	}
	return true
}

// rapidDescent reports a loop when recursion depth rises by more than
// RapidRise levels within the last RapidWindow events.
func rapidDescent(cfg LoopConfig, tl *timeline.Timeline) string {
	if tl == nil || cfg.RapidWindow <= 0 || cfg.RapidRise <= 0 {
		return ""
	}

	tail := tl.Tail(cfg.RapidWindow)
	if len(tail) < 2 {
		return ""
	}

	// Only a rise counts: track the lowest depth seen so far and measure
	// how far any later event climbs above it. A completed subtree
	// unwinding from depth N back to the root is the mirror shape and
	// must not trip the guard.
	rise := 0
	floor := tail[0].Depth
	for _, ev := range tail[1:] {
		if ev.Depth < floor {
			floor = ev.Depth
		} else if d := ev.Depth - floor; d > rise {
			rise = d
		}
	}

	if rise > cfg.RapidRise {
		return fmt.Sprintf("depth rose %d levels within last %d events", rise, len(tail))
	}
	return ""
}

// fingerprint produces a stable type+payload identity for cycle matching.
func fingerprint(ev timeline.Event) string {
	if len(ev.Payload) == 0 {
		return string(ev.Type)
	}

	keys := make([]string, 0, len(ev.Payload))
	for k := range ev.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := string(ev.Type)
	for _, k := range keys {
		v, err := json.Marshal(ev.Payload[k])
		if err != nil {
			continue
		}
		out += "|" + k + "=" + string(v)
	}
	return out
}
