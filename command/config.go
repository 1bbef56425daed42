package command

import (
	"errors"
	"fmt"
)

// Config validation errors.
var (
	ErrInvalidHistoryDepth = errors.New("max history depth must be positive")
	ErrInvalidPublishMode  = errors.New("publish mode must be sync or async")
)

// Publish modes for command lifecycle events. The mode is fixed per
// processor instance so subscribers can rely on event ordering relative
// to Execute returning.
const (
	PublishModeSync  = "sync"
	PublishModeAsync = "async"
)

// Config defines the configuration for the command processor.
//
// Example YAML configuration:
//
//	maxHistoryDepth: 100
//	publishMode: sync
type Config struct {
	// MaxHistoryDepth is the maximum number of entries on the undo
	// stack. Executing a command beyond this depth evicts the oldest
	// entry, which becomes permanently unrecoverable.
	MaxHistoryDepth int `json:"maxHistoryDepth,omitempty" yaml:"maxHistoryDepth,omitempty" toml:"maxHistoryDepth" env:"MAX_HISTORY_DEPTH" default:"100"`

	// PublishMode selects whether lifecycle events are published
	// synchronously (before Execute/Undo/Redo return) or asynchronously
	// on the bus's dispatch queue. "sync" or "async".
	PublishMode string `json:"publishMode,omitempty" yaml:"publishMode,omitempty" toml:"publishMode" env:"PUBLISH_MODE" default:"sync"`
}

// ValidateConfig applies defaults and performs additional validation on
// the configuration.
func (c *Config) ValidateConfig() error {
	if c.MaxHistoryDepth == 0 {
		c.MaxHistoryDepth = 100
	}
	if c.MaxHistoryDepth < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidHistoryDepth, c.MaxHistoryDepth)
	}

	if c.PublishMode == "" {
		c.PublishMode = PublishModeSync
	}
	if c.PublishMode != PublishModeSync && c.PublishMode != PublishModeAsync {
		return fmt.Errorf("%w: %q", ErrInvalidPublishMode, c.PublishMode)
	}

	return nil
}
