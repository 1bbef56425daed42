// Package eventbus implements the topic-addressed publish/subscribe bus of
// the substrate. Publishers are decoupled from subscribers via topic
// routing with deterministic ordering: handlers for a single event fire in
// descending priority order, ties broken by subscription registration
// order. Handler failures are isolated, reported through the bus's
// observer channel, and never reach the publisher.
package eventbus

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Priority determines the invocation order of handlers for the same
// event. Higher priorities fire first. The zero value is PriorityNormal
// so an unset priority behaves like a plain subscription.
type Priority int

const (
	// PriorityLow handlers fire after all others.
	PriorityLow Priority = iota - 1
	// PriorityNormal is the default priority.
	PriorityNormal
	// PriorityHigh handlers fire before normal and low.
	PriorityHigh
	// PriorityCritical handlers fire first.
	PriorityCritical
)

// String returns the lowercase name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority converts a priority name to a Priority value.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(s) {
	case "low":
		return PriorityLow, nil
	case "normal", "":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	case "critical":
		return PriorityCritical, nil
	default:
		return PriorityNormal, fmt.Errorf("%w: %q", ErrUnknownPriority, s)
	}
}

// Event represents a message on the bus. Events are immutable once
// published: the bus stamps ID and CreatedAt on its own copy and all
// handlers share the published value read-only.
type Event struct {
	// ID uniquely identifies the event. Assigned by the bus at publish
	// time when empty.
	ID string `json:"id"`

	// Topic is the routing key of the event. Topic names can use
	// hierarchical dotted patterns like "command.executed" or
	// "beat.layout.changed".
	Topic string `json:"topic"`

	// Payload is the data associated with the event. The payload is owned
	// by the event and must not be mutated by handlers.
	Payload interface{} `json:"payload"`

	// Metadata contains additional contextual information that does not
	// belong in the main payload. Optional.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// Priority is the event's priority level. Informational on the event
	// itself; handler ordering is governed by subscription priority.
	Priority Priority `json:"priority"`

	// CreatedAt is when the event was published. Stamped by the bus when
	// zero.
	CreatedAt time.Time `json:"createdAt"`
}

// EventHandler is a function invoked for each event matching its
// subscription. A returned error is captured by the bus, reported to
// error observers, and never propagated to the publisher.
type EventHandler func(ctx context.Context, event Event) error

// FilterFunc is an optional per-subscription predicate evaluated before
// the handler is invoked. Returning false skips the handler for that
// event without affecting other subscribers.
type FilterFunc func(event Event) bool

// LivenessFunc reports whether the subscribing object is still alive.
// Subscriptions whose liveness probe returns false are pruned lazily on
// the next dispatch instead of being invoked, so subscribers with a
// shorter natural lifetime than the bus need no explicit unsubscribe.
type LivenessFunc func() bool

// subscription binds a topic pattern to a handler with ordering and
// filtering metadata. Owned by the bus registry; callers hold only the id.
type subscription struct {
	id       string
	pattern  string
	handler  EventHandler
	priority Priority
	filter   FilterFunc
	alive    LivenessFunc
	seq      uint64
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*subscription)

// WithPriority sets the invocation priority of the subscription. Handlers
// with higher priority fire before handlers with lower priority for the
// same event.
func WithPriority(p Priority) SubscribeOption {
	return func(s *subscription) {
		s.priority = p
	}
}

// WithFilter sets a predicate evaluated before each invocation; events
// rejected by the filter skip this handler only.
func WithFilter(filter FilterFunc) SubscribeOption {
	return func(s *subscription) {
		s.filter = filter
	}
}

// WithLiveness attaches a liveness probe to the subscription. When the
// probe reports false during dispatch the subscription is silently
// removed from the registry.
func WithLiveness(alive LivenessFunc) SubscribeOption {
	return func(s *subscription) {
		s.alive = alive
	}
}

// validatePattern rejects malformed topic patterns. A pattern is an exact
// topic or a prefix wildcard where '*' is the final character, e.g.
// "beat.*" or "*".
func validatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("%w: pattern is empty", ErrInvalidTopicPattern)
	}
	if i := strings.IndexByte(pattern, '*'); i >= 0 && i != len(pattern)-1 {
		return fmt.Errorf("%w: %q (wildcard must be the final character)", ErrInvalidTopicPattern, pattern)
	}
	return nil
}

// validateTopic rejects malformed publish topics. Topics must be concrete:
// non-empty and wildcard-free.
func validateTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: topic is empty", ErrInvalidTopic)
	}
	if strings.ContainsRune(topic, '*') {
		return fmt.Errorf("%w: %q (wildcards are not allowed in publish topics)", ErrInvalidTopic, topic)
	}
	return nil
}

// matchTopic checks if an event topic matches a subscription topic
// pattern. Supports wildcard patterns like "user.*" matching
// "user.created", "user.updated", etc.
func matchTopic(eventTopic, pattern string) bool {
	if eventTopic == pattern {
		return true
	}

	if len(pattern) > 0 && pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(eventTopic) >= len(prefix) && eventTopic[:len(prefix)] == prefix
	}

	return false
}
