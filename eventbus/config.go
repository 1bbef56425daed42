package eventbus

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Config validation errors.
var (
	ErrInvalidQueueSize         = errors.New("queue size must be positive")
	ErrInvalidSyncDepth         = errors.New("max sync depth must be positive")
	ErrInvalidHistoryLimit      = errors.New("history limit must be positive")
	ErrInvalidHistoryTTL        = errors.New("history TTL must be positive")
	ErrInvalidRetentionSchedule = errors.New("invalid retention schedule")
)

// Config defines the configuration for the event bus.
//
// Example YAML configuration:
//
//	queueSize: 256
//	maxSyncDepth: 8
//	historyLimit: 128
//	historyTTL: 1h
//	retentionSchedule: "@every 10m"
type Config struct {
	// QueueSize is the capacity of the async publish queue. When the
	// queue is full, PublishAsync fails with ErrQueueFull rather than
	// blocking the publisher.
	QueueSize int `json:"queueSize,omitempty" yaml:"queueSize,omitempty" toml:"queueSize" env:"QUEUE_SIZE" default:"256"`

	// MaxSyncDepth caps reentrant synchronous publishes. A handler that
	// publishes synchronously from inside a synchronous dispatch deepens
	// the chain; exceeding the cap fails the inner publish with
	// ErrReentrantPublishDepth instead of recursing unboundedly.
	MaxSyncDepth int `json:"maxSyncDepth,omitempty" yaml:"maxSyncDepth,omitempty" toml:"maxSyncDepth" env:"MAX_SYNC_DEPTH" default:"8"`

	// HistoryLimit is the maximum number of events retained per topic for
	// the diagnostic history. Oldest entries are evicted first.
	HistoryLimit int `json:"historyLimit,omitempty" yaml:"historyLimit,omitempty" toml:"historyLimit" env:"HISTORY_LIMIT" default:"128"`

	// HistoryTTL is how long history entries are retained before the
	// scheduled sweep removes them.
	HistoryTTL time.Duration `json:"historyTTL,omitempty" yaml:"historyTTL,omitempty" toml:"historyTTL" env:"HISTORY_TTL" default:"1h"`

	// RetentionSchedule is the cron schedule for history retention
	// sweeps. Accepts standard cron expressions and the @every /
	// @hourly forms.
	RetentionSchedule string `json:"retentionSchedule,omitempty" yaml:"retentionSchedule,omitempty" toml:"retentionSchedule" env:"RETENTION_SCHEDULE" default:"@every 10m"`
}

// ValidateConfig applies defaults and performs additional validation on
// the configuration. This is called after basic struct tag validation.
func (c *Config) ValidateConfig() error {
	if c.QueueSize == 0 {
		c.QueueSize = 256
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQueueSize, c.QueueSize)
	}

	if c.MaxSyncDepth == 0 {
		c.MaxSyncDepth = 8
	}
	if c.MaxSyncDepth < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSyncDepth, c.MaxSyncDepth)
	}

	if c.HistoryLimit == 0 {
		c.HistoryLimit = 128
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidHistoryLimit, c.HistoryLimit)
	}

	if c.HistoryTTL == 0 {
		c.HistoryTTL = time.Hour
	}
	if c.HistoryTTL < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidHistoryTTL, c.HistoryTTL)
	}

	if c.RetentionSchedule == "" {
		c.RetentionSchedule = "@every 10m"
	}
	if _, err := cron.ParseStandard(c.RetentionSchedule); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidRetentionSchedule, c.RetentionSchedule, err)
	}

	return nil
}
