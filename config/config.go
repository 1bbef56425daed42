// Package config loads and watches the substrate configuration. Config
// structs carry json/yaml/toml/env tags and apply their own defaults
// through ValidateConfig; feeders wire them from YAML or TOML files with
// an environment-variable overlay.
package config

import (
	"fmt"

	"github.com/GoCodeAlone/substrate/command"
	"github.com/GoCodeAlone/substrate/eventbus"
)

// Config is the root configuration for the substrate components.
//
// Example YAML:
//
//	eventBus:
//	  queueSize: 256
//	  maxSyncDepth: 8
//	command:
//	  maxHistoryDepth: 100
//	  publishMode: sync
type Config struct {
	// EventBus configures the event bus.
	EventBus eventbus.Config `json:"eventBus,omitempty" yaml:"eventBus,omitempty" toml:"eventBus"`

	// Command configures the command processor.
	Command command.Config `json:"command,omitempty" yaml:"command,omitempty" toml:"command"`
}

// ValidateConfig applies defaults and validates all sections.
func (c *Config) ValidateConfig() error {
	if err := c.EventBus.ValidateConfig(); err != nil {
		return fmt.Errorf("eventBus: %w", err)
	}
	if err := c.Command.ValidateConfig(); err != nil {
		return fmt.Errorf("command: %w", err)
	}
	return nil
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	// Defaults never fail validation.
	_ = cfg.ValidateConfig()
	return cfg
}
