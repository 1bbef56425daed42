package command

import (
	"testing"
)

func TestHistoryPushEviction(t *testing.T) {
	h := newHistory(2)

	a := &entry{id: "a"}
	b := &entry{id: "b"}
	c := &entry{id: "c"}

	if evicted := h.push(a); evicted != nil {
		t.Fatalf("unexpected eviction: %v", evicted.id)
	}
	if evicted := h.push(b); evicted != nil {
		t.Fatalf("unexpected eviction: %v", evicted.id)
	}
	evicted := h.push(c)
	if evicted == nil || evicted.id != "a" {
		t.Fatalf("expected eviction of oldest entry a, got %+v", evicted)
	}
	if len(h.undo) != 2 {
		t.Fatalf("expected undo depth 2, got %d", len(h.undo))
	}
	if top := h.peekUndo(); top.id != "c" {
		t.Fatalf("expected top of stack c, got %s", top.id)
	}
}

func TestHistoryRedoLifecycle(t *testing.T) {
	h := newHistory(10)

	a := &entry{id: "a"}
	h.push(a)

	if e := h.popUndo(); e != a {
		t.Fatalf("expected popped entry a")
	}
	h.pushRedo(a)

	if e := h.popRedo(); e != a {
		t.Fatalf("expected redo entry a")
	}
	if e := h.popRedo(); e != nil {
		t.Fatalf("expected empty redo stack, got %v", e.id)
	}
	if e := h.popUndo(); e != nil {
		t.Fatalf("expected empty undo stack, got %v", e.id)
	}
}

func TestHistoryClearRedoReturnsDropped(t *testing.T) {
	h := newHistory(10)
	h.pushRedo(&entry{id: "x"})
	h.pushRedo(&entry{id: "y"})

	dropped := h.clearRedo()
	if len(dropped) != 2 {
		t.Fatalf("expected 2 dropped entries, got %d", len(dropped))
	}
	if len(h.redo) != 0 {
		t.Fatalf("expected empty redo stack after clear")
	}
}

func TestEntryReleaseExactlyOnce(t *testing.T) {
	released := 0
	e := &entry{cmd: &releaseTracker{name: "r", released: &released}}

	e.release()
	e.release()
	if released != 1 {
		t.Fatalf("expected exactly one release, got %d", released)
	}

	// Nil entries and commands without Release are no-ops.
	var nilEntry *entry
	nilEntry.release()
	(&entry{cmd: NewFunc("plain", nil)}).release()
}
