// Package substrate provides Observer pattern interfaces for reporting
// substrate activity to observability collaborators. Observers receive
// CloudEvents so external logging and metrics consumers can interoperate
// without the substrate depending on them.
package substrate

import (
	"context"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Observer defines the interface for objects that want to be notified of
// substrate events, such as event handler failures or command lifecycle
// transitions. Observers should handle events quickly to avoid delaying
// the component notifying them.
type Observer interface {
	// OnEvent is called when an event occurs that the observer is
	// interested in. The context can be used for cancellation.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier for this observer, used for
	// registration tracking and debugging.
	ObserverID() string
}

// ObserverInfo provides information about a registered observer.
type ObserverInfo struct {
	// ID is the unique identifier of the observer.
	ID string `json:"id"`

	// EventTypes are the event types this observer is subscribed to.
	// Empty slice means all events.
	EventTypes []string `json:"eventTypes"`

	// RegisteredAt indicates when the observer was registered.
	RegisteredAt time.Time `json:"registeredAt"`
}

// Event type constants for CloudEvents emitted by the substrate.
// Following the CloudEvents specification, these use reverse domain
// notation.
const (
	// Event bus events
	EventTypeHandlerFailed       = "com.substrate.eventbus.handler.failed"
	EventTypeSubscriptionPruned  = "com.substrate.eventbus.subscription.pruned"
	EventTypeBusStarted          = "com.substrate.eventbus.bus.started"
	EventTypeBusStopped          = "com.substrate.eventbus.bus.stopped"

	// Command processor events
	EventTypeCommandExecuted = "com.substrate.command.executed"
	EventTypeCommandFailed   = "com.substrate.command.failed"

	// Container events
	EventTypeContainerValidated = "com.substrate.container.validated"
	EventTypeContainerClosed    = "com.substrate.container.closed"

	// Configuration events
	EventTypeConfigReloaded     = "com.substrate.config.reloaded"
	EventTypeConfigReloadFailed = "com.substrate.config.reload.failed"
)

// observerRegistration holds information about a registered observer.
type observerRegistration struct {
	observer     Observer
	eventTypes   map[string]bool
	registeredAt time.Time
}

// ObserverRegistry is a thread-safe collection of observers that
// substrate components embed to emit CloudEvents. Notification is
// synchronous but isolated: an observer returning an error or panicking
// never affects other observers or the emitting component.
type ObserverRegistry struct {
	mu        sync.RWMutex
	observers map[string]*observerRegistration
	logger    Logger
}

// NewObserverRegistry creates an observer registry. The logger may be nil;
// observer failures are then dropped silently.
func NewObserverRegistry(logger Logger) *ObserverRegistry {
	return &ObserverRegistry{
		observers: make(map[string]*observerRegistration),
		logger:    logger,
	}
}

// RegisterObserver adds an observer to receive notifications. Observers
// can optionally filter events by type using the eventTypes parameter; an
// empty eventTypes means the observer receives all events. Registering an
// observer with an already-registered ID replaces the prior registration.
func (r *ObserverRegistry) RegisterObserver(observer Observer, eventTypes ...string) error {
	if observer == nil {
		return ErrObserverNil
	}

	eventTypeMap := make(map[string]bool, len(eventTypes))
	for _, eventType := range eventTypes {
		eventTypeMap[eventType] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers[observer.ObserverID()] = &observerRegistration{
		observer:     observer,
		eventTypes:   eventTypeMap,
		registeredAt: time.Now(),
	}
	return nil
}

// UnregisterObserver removes an observer. Idempotent: unregistering an
// observer that was never registered is a no-op.
func (r *ObserverRegistry) UnregisterObserver(observer Observer) error {
	if observer == nil {
		return ErrObserverNil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.observers, observer.ObserverID())
	return nil
}

// NotifyObservers sends a CloudEvent to all registered observers whose
// type filter accepts it. Observer errors and panics are logged and do
// not propagate to the caller.
func (r *ObserverRegistry) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	if event.Time().IsZero() {
		event.SetTime(time.Now())
	}
	if err := ValidateCloudEvent(event); err != nil {
		return err
	}

	r.mu.RLock()
	targets := make([]Observer, 0, len(r.observers))
	for _, registration := range r.observers {
		if len(registration.eventTypes) > 0 && !registration.eventTypes[event.Type()] {
			continue
		}
		targets = append(targets, registration.observer)
	}
	r.mu.RUnlock()

	for _, observer := range targets {
		r.notify(ctx, observer, event)
	}
	return nil
}

func (r *ObserverRegistry) notify(ctx context.Context, observer Observer, event cloudevents.Event) {
	defer func() {
		if rec := recover(); rec != nil && r.logger != nil {
			r.logger.Error("Observer panicked", "observerID", observer.ObserverID(), "eventType", event.Type(), "panic", rec)
		}
	}()

	if err := observer.OnEvent(ctx, event); err != nil && r.logger != nil {
		r.logger.Error("Observer error", "observerID", observer.ObserverID(), "eventType", event.Type(), "error", err)
	}
}

// GetObservers returns information about currently registered observers.
func (r *ObserverRegistry) GetObservers() []ObserverInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ObserverInfo, 0, len(r.observers))
	for id, registration := range r.observers {
		eventTypes := make([]string, 0, len(registration.eventTypes))
		for eventType := range registration.eventTypes {
			eventTypes = append(eventTypes, eventType)
		}
		infos = append(infos, ObserverInfo{
			ID:           id,
			EventTypes:   eventTypes,
			RegisteredAt: registration.registeredAt,
		})
	}
	return infos
}

// FunctionalObserver provides a simple way to create observers using
// functions, for quick observer creation without defining full structs.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver creates a new observer that uses the provided
// function to handle events.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) Observer {
	return &FunctionalObserver{
		id:      id,
		handler: handler,
	}
}

// OnEvent implements the Observer interface by calling the handler function.
func (f *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

// ObserverID implements the Observer interface by returning the observer ID.
func (f *FunctionalObserver) ObserverID() string {
	return f.id
}
