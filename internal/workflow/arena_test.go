package workflow

import (
	"testing"

	"github.com/ShayCichocki/unravel/internal/problem"
	"github.com/ShayCichocki/unravel/internal/timeline"
)

// buildTree creates root -> (childA, childB), childA -> grandchild.
func buildTree(t *testing.T) (*Arena, *Instance, *Instance, *Instance, *Instance) {
	t.Helper()

	arena := NewArena()
	tl := timeline.New()

	rootCtx := problem.New("plan a trip", "itinerary")
	root := New(arena, tl, rootCtx, nil)
	childA := New(arena, tl, rootCtx.Sub("plan day 1", "day 1"), root)
	childB := New(arena, tl, rootCtx.Sub("plan day 2", "day 2"), root)
	grandchild := New(arena, tl, childA.Context.Sub("book tickets", "tickets"), childA)

	return arena, root, childA, childB, grandchild
}

func TestArenaParentChild(t *testing.T) {
	arena, root, childA, childB, grandchild := buildTree(t)

	if arena.Len() != 4 {
		t.Fatalf("expected 4 instances, got %d", arena.Len())
	}

	if got := arena.Parent(root); got != nil {
		t.Errorf("expected nil parent for root, got %v", got)
	}
	if got := arena.Parent(grandchild); got != childA {
		t.Errorf("expected grandchild's parent to be childA")
	}

	children := arena.Children(root)
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}
	if children[0] != childA || children[1] != childB {
		t.Error("expected children in creation order")
	}
	if got := arena.Children(grandchild); len(got) != 0 {
		t.Errorf("expected leaf to have no children, got %d", len(got))
	}
}

func TestArenaRoot(t *testing.T) {
	arena, root, _, _, grandchild := buildTree(t)

	if got := arena.Root(grandchild); got != root {
		t.Error("expected Root to walk up to the tree root")
	}
	// Root is idempotent on the root itself.
	if got := arena.Root(root); got != root {
		t.Error("expected Root(root) == root")
	}
}

func TestArenaSiblings(t *testing.T) {
	arena, root, childA, childB, _ := buildTree(t)

	sibs := arena.Siblings(childA)
	if len(sibs) != 1 || sibs[0] != childB {
		t.Errorf("expected childB as only sibling, got %d siblings", len(sibs))
	}

	if got := arena.Siblings(root); got != nil {
		t.Errorf("expected nil siblings for root, got %d", len(got))
	}
}

func TestArenaAncestors(t *testing.T) {
	arena, root, childA, _, grandchild := buildTree(t)

	chain := arena.Ancestors(grandchild)
	if len(chain) != 2 {
		t.Fatalf("expected 2 ancestors, got %d", len(chain))
	}
	if chain[0] != childA || chain[1] != root {
		t.Error("expected ancestors nearest first")
	}

	if got := arena.Ancestors(root); len(got) != 0 {
		t.Errorf("expected no ancestors for root, got %d", len(got))
	}
}

func TestArenaHasShallower(t *testing.T) {
	arena, _, _, _, _ := buildTree(t)

	if !arena.HasShallower("plan a trip", 2) {
		t.Error("expected the root statement to be found below depth 2")
	}
	if arena.HasShallower("plan a trip", 0) {
		t.Error("expected no instance shallower than the root itself")
	}
	if arena.HasShallower("unrelated problem", 5) {
		t.Error("expected unknown statement not found")
	}
}
