// Package substrate provides the decoupling substrate for an interactive
// editing application: a typed publish/subscribe event bus, a reversible
// command processor with undo/redo history, and a dependency injection
// container with cycle detection.
//
// The root package holds the contracts shared by the subpackages: the
// Logger interface used for structured logging, the CloudEvents-based
// Observer channel used to report handler failures and component
// lifecycle transitions to observability collaborators, and helpers for
// constructing well-formed CloudEvents.
//
// The substrate is domain-agnostic. Event payloads, command bodies, and
// service factories are supplied by the host application; see the
// eventbus, command, and container subpackages for the three components.
package substrate
