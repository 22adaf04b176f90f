package workflow

import (
	"sync"
)

// Arena is an id-indexed registry of workflow instances. Parents are stored
// as ids rather than owning pointers, which keeps the recursion tree free
// of ownership cycles; children are owned as ordered id lists per parent.
type Arena struct {
	mu        sync.RWMutex
	instances map[string]*Instance
	children  map[string][]string
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{
		instances: make(map[string]*Instance),
		children:  make(map[string][]string),
	}
}

// add registers an instance and links it under its parent. Called from
// workflow.New only.
func (a *Arena) add(inst *Instance) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.instances[inst.ID] = inst
	if inst.parentID != "" {
		a.children[inst.parentID] = append(a.children[inst.parentID], inst.ID)
	}
}

// Get returns the instance with the given id, or nil.
func (a *Arena) Get(id string) *Instance {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.instances[id]
}

// Len returns the number of registered instances.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.instances)
}

// Parent returns the parent of the given instance, or nil for the root.
func (a *Arena) Parent(inst *Instance) *Instance {
	if inst == nil || inst.parentID == "" {
		return nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.instances[inst.parentID]
}

// Children returns the owned children of the given instance, in creation
// order.
func (a *Arena) Children(inst *Instance) []*Instance {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ids := a.children[inst.ID]
	out := make([]*Instance, 0, len(ids))
	for _, id := range ids {
		if child := a.instances[id]; child != nil {
			out = append(out, child)
		}
	}
	return out
}

// Root walks the parent chain and returns the root of the tree containing
// inst. Calling Root on the root returns the instance itself. The walk is
// O(depth); a visited set stops traversal if a cycle were ever introduced
// by construction error.
func (a *Arena) Root(inst *Instance) *Instance {
	a.mu.RLock()
	defer a.mu.RUnlock()

	seen := make(map[string]bool)
	cur := inst
	for cur != nil && cur.parentID != "" {
		if seen[cur.ID] {
			break
		}
		seen[cur.ID] = true
		parent := a.instances[cur.parentID]
		if parent == nil {
			break
		}
		cur = parent
	}
	return cur
}

// Siblings returns the parent's children minus the instance itself, empty
// for the root.
func (a *Arena) Siblings(inst *Instance) []*Instance {
	if inst == nil || inst.parentID == "" {
		return nil
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	ids := a.children[inst.parentID]
	out := make([]*Instance, 0, len(ids))
	for _, id := range ids {
		if id == inst.ID {
			continue
		}
		if sibling := a.instances[id]; sibling != nil {
			out = append(out, sibling)
		}
	}
	return out
}

// HasShallower reports whether any registered instance carries the exact
// problem statement at a depth shallower than the given one. Used as the
// cheap "obvious loop" probe during strategy selection.
func (a *Arena) HasShallower(statement string, depth int) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for _, inst := range a.instances {
		if inst.Problem == statement && inst.Context.Depth < depth {
			return true
		}
	}
	return false
}

// Ancestors returns the chain of ancestors from the instance's parent up to
// the root, nearest first.
func (a *Arena) Ancestors(inst *Instance) []*Instance {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []*Instance
	seen := make(map[string]bool)
	cur := inst
	for cur != nil && cur.parentID != "" {
		if seen[cur.ID] {
			break
		}
		seen[cur.ID] = true
		parent := a.instances[cur.parentID]
		if parent == nil {
			break
		}
		out = append(out, parent)
		cur = parent
	}
	return out
}
