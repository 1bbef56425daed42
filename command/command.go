// Package command implements the reversible-command execution engine of
// the substrate. User-facing actions are wrapped into Command values and
// serialized through a Processor, which maintains undo/redo history and
// publishes lifecycle events on an event bus so other services can react
// to executed, undone, and redone commands.
package command

import (
	"context"
)

// Command is a unit of work submitted to the Processor. A command is
// immutable once constructed except for internally captured undo data
// recorded during Execute; that captured state is owned exclusively by
// the command instance.
type Command interface {
	// Name identifies the command kind, e.g. "sequence.insert".
	Name() string

	// Execute performs the work and returns its result. Commands that
	// capture undo data (prior field values and the like) must do so
	// during Execute so a later Undo is deterministic.
	Execute(ctx context.Context) (interface{}, error)
}

// ReversibleCommand is a Command whose effect can be exactly undone.
// Commands that do not implement ReversibleCommand are irreversible:
// they are recorded in history for auditing but excluded from undo.
type ReversibleCommand interface {
	Command

	// Undo reconstructs the state prior to Execute using the undo data
	// captured during Execute.
	Undo(ctx context.Context) error
}

// Releaser is an optional interface for commands holding releasable
// resources in their captured undo data. Release is called exactly once
// when a history entry becomes permanently unrecoverable: evicted from a
// full undo stack, dropped after a failed undo or redo, or discarded by a
// redo-stack clear.
type Releaser interface {
	Release()
}

// Func adapts a closure into an irreversible Command.
type Func struct {
	name    string
	execute func(ctx context.Context) (interface{}, error)
}

// NewFunc creates an irreversible command from a closure.
func NewFunc(name string, execute func(ctx context.Context) (interface{}, error)) *Func {
	return &Func{name: name, execute: execute}
}

// Name returns the command name.
func (f *Func) Name() string { return f.name }

// Execute runs the closure.
func (f *Func) Execute(ctx context.Context) (interface{}, error) {
	return f.execute(ctx)
}

// ReversibleFunc adapts an execute/undo closure pair into a
// ReversibleCommand.
type ReversibleFunc struct {
	Func
	undo func(ctx context.Context) error
}

// NewReversibleFunc creates a reversible command from an execute/undo
// closure pair.
func NewReversibleFunc(name string, execute func(ctx context.Context) (interface{}, error), undo func(ctx context.Context) error) *ReversibleFunc {
	return &ReversibleFunc{
		Func: Func{name: name, execute: execute},
		undo: undo,
	}
}

// Undo runs the undo closure.
func (f *ReversibleFunc) Undo(ctx context.Context) error {
	return f.undo(ctx)
}
