package eventbus

import (
	"errors"
	"fmt"
)

var (
	// Subscription errors
	ErrEventHandlerNil     = errors.New("event handler cannot be nil")
	ErrInvalidTopicPattern = errors.New("invalid topic pattern")
	ErrUnknownPriority     = errors.New("unknown priority")

	// Publish errors
	ErrInvalidTopic          = errors.New("invalid event topic")
	ErrQueueFull             = errors.New("async event queue is full")
	ErrBusDraining           = errors.New("event bus is draining")
	ErrReentrantPublishDepth = errors.New("reentrant publish depth exceeded")

	// Lifecycle errors
	ErrShutdownTimeout = errors.New("event bus shutdown timed out")
)

// HandlerError describes a subscriber failure during dispatch. It is
// reported through the bus's observer channel and logger; it never
// propagates to the publisher.
type HandlerError struct {
	// Topic of the event being dispatched.
	Topic string
	// SubscriptionID of the failing subscriber.
	SubscriptionID string
	// EventID of the event being dispatched.
	EventID string
	// Err is the error returned (or panic recovered) from the handler.
	Err error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("event handler failed: topic %q subscription %s: %v", e.Topic, e.SubscriptionID, e.Err)
}

// Unwrap returns the underlying handler error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}
