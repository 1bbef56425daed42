package container

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Registration errors
	ErrCapabilityEmpty = errors.New("capability name cannot be empty")
	ErrFactoryNil      = errors.New("factory cannot be nil")
	ErrInstanceNil     = errors.New("instance cannot be nil")

	// Resolution errors
	ErrServiceNotFound    = errors.New("service not registered")
	ErrCircularDependency = errors.New("circular dependency detected")
)

// DependencyInjectionError reports a resolution request for a capability
// that has no registration. It carries the set of registered capabilities
// for diagnosability.
type DependencyInjectionError struct {
	// Capability is the requested capability.
	Capability string
	// Registered lists the capabilities that are registered, sorted.
	Registered []string
}

// Error implements the error interface.
func (e *DependencyInjectionError) Error() string {
	if len(e.Registered) == 0 {
		return fmt.Sprintf("service not registered: %q (no capabilities registered)", e.Capability)
	}
	return fmt.Sprintf("service not registered: %q (registered: %s)", e.Capability, strings.Join(e.Registered, ", "))
}

// Unwrap allows errors.Is(err, ErrServiceNotFound).
func (e *DependencyInjectionError) Unwrap() error {
	return ErrServiceNotFound
}

// CircularDependencyError reports a dependency cycle detected during
// resolution. It carries the full resolution chain including the closing
// capability, e.g. A -> B -> C -> A.
type CircularDependencyError struct {
	// Chain is the resolution chain, ending with the capability that
	// closed the cycle.
	Chain []string
}

// Error implements the error interface.
func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Chain, " -> "))
}

// Unwrap allows errors.Is(err, ErrCircularDependency).
func (e *CircularDependencyError) Unwrap() error {
	return ErrCircularDependency
}
