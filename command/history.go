package command

import (
	"time"
)

// JournalAction identifies what happened to a command in the audit
// journal.
type JournalAction string

const (
	ActionExecuted JournalAction = "executed"
	ActionUndone   JournalAction = "undone"
	ActionRedone   JournalAction = "redone"
	ActionFailed   JournalAction = "failed"
)

// JournalEntry is an append-only audit record. Every command submitted to
// the processor is journaled, including irreversible commands and failed
// operations, independent of undo-stack membership.
type JournalEntry struct {
	CommandID   string        `json:"commandId,omitempty"`
	CommandName string        `json:"commandName"`
	Action      JournalAction `json:"action"`
	At          time.Time     `json:"at"`
	Error       string        `json:"error,omitempty"`
}

// entry is one executed command held in history. The entry owns the
// command instance and, through it, the undo data captured during
// Execute.
type entry struct {
	id         string
	cmd        Command
	reversible bool
	executedAt time.Time
	released   bool
}

// release frees the entry's captured resources exactly once. Safe on nil.
func (e *entry) release() {
	if e == nil || e.released {
		return
	}
	e.released = true
	if releaser, ok := e.cmd.(Releaser); ok {
		releaser.Release()
	}
}

// history holds the undo stack (most recent last), the redo stack (most
// recent last), and the audit journal. Not safe for concurrent use; the
// Processor serializes access.
type history struct {
	maxDepth int
	undo     []*entry
	redo     []*entry
	journal  []JournalEntry
}

func newHistory(maxDepth int) *history {
	return &history{maxDepth: maxDepth}
}

// push appends an entry to the undo stack and returns the evicted oldest
// entry when the stack exceeds the maximum depth, nil otherwise. The
// evicted entry is permanently unrecoverable.
func (h *history) push(e *entry) *entry {
	h.undo = append(h.undo, e)
	if len(h.undo) <= h.maxDepth {
		return nil
	}
	evicted := h.undo[0]
	h.undo = h.undo[1:]
	return evicted
}

// peekUndo returns the most recent undo entry without removing it.
func (h *history) peekUndo() *entry {
	if len(h.undo) == 0 {
		return nil
	}
	return h.undo[len(h.undo)-1]
}

// popUndo removes and returns the most recent undo entry.
func (h *history) popUndo() *entry {
	if len(h.undo) == 0 {
		return nil
	}
	e := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	return e
}

// pushRedo appends an undone entry to the redo stack.
func (h *history) pushRedo(e *entry) {
	h.redo = append(h.redo, e)
}

// popRedo removes and returns the most recently undone entry.
func (h *history) popRedo() *entry {
	if len(h.redo) == 0 {
		return nil
	}
	e := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	return e
}

// clearRedo empties the redo stack and returns the discarded entries so
// the caller can release them. Executing a new command always clears the
// redo stack: there is no redo branching.
func (h *history) clearRedo() []*entry {
	dropped := h.redo
	h.redo = nil
	return dropped
}

// record appends an audit journal entry.
func (h *history) record(je JournalEntry) {
	h.journal = append(h.journal, je)
}

// journalSnapshot returns a copy of the audit journal.
func (h *history) journalSnapshot() []JournalEntry {
	out := make([]JournalEntry, len(h.journal))
	copy(out, h.journal)
	return out
}
