package command

import (
	"errors"
	"fmt"
)

var (
	// History errors
	ErrNoHistory     = errors.New("no history")
	ErrNotReversible = errors.New("command is not reversible")

	// Processor errors
	ErrCommandNil = errors.New("command cannot be nil")
)

// CommandExecutionError reports that a domain command's own execute (or
// re-execute during redo) failed. History is unaffected by the failure.
type CommandExecutionError struct {
	// CommandName is the name of the failing command.
	CommandName string
	// CommandID identifies the command instance, when one was assigned.
	CommandID string
	// Err is the error returned by the command.
	Err error
}

// Error implements the error interface.
func (e *CommandExecutionError) Error() string {
	return fmt.Sprintf("command %q failed: %v", e.CommandName, e.Err)
}

// Unwrap returns the command's own error.
func (e *CommandExecutionError) Unwrap() error {
	return e.Err
}
