// Package container implements the dependency-injection container of the
// substrate. Services are registered by capability (the name of the
// contract they fulfill) as factories or pre-built instances with
// singleton or transient lifetimes, and resolved with cycle detection:
// a circular registration fails with the full dependency chain instead of
// overflowing the call stack.
package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"sync"

	"github.com/GoCodeAlone/substrate"
)

// Lifetime governs whether a resolved instance is shared or freshly
// constructed per resolution.
type Lifetime int

const (
	// Transient instances are constructed fresh on every Resolve and
	// owned by the caller; the container retains no reference.
	Transient Lifetime = iota
	// Singleton instances are constructed at most once, cached, and
	// shared by all resolvers. The container owns them until Close.
	Singleton
)

// String returns the lowercase name of the lifetime.
func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "singleton"
	case Transient:
		return "transient"
	default:
		return fmt.Sprintf("lifetime(%d)", int(l))
	}
}

// Resolver resolves capabilities. Factories receive a Resolver scoped to
// the current resolution so their dependency lookups participate in
// cycle detection.
type Resolver interface {
	// Resolve returns the instance registered for a capability.
	Resolve(capability string) (interface{}, error)
}

// Factory constructs a service instance. The resolver argument must be
// used for any dependency lookups the factory performs.
type Factory func(r Resolver) (interface{}, error)

// registration maps a capability to its factory and lifetime.
type registration struct {
	capability   string
	factory      Factory
	lifetime     Lifetime
	declaredDeps []string

	// Singleton construction guard: exactly one construction; concurrent
	// resolvers block on mu and observe the cached instance. A failed
	// construction is not cached and retries on the next resolve.
	mu       sync.Mutex
	instance interface{}
	built    bool
}

// RegisterOption configures a registration.
type RegisterOption func(*registration)

// WithDependencies declares the capability's direct dependencies up
// front so they appear in DependencyGraph without constructing the
// service. Dependencies observed during construction are recorded
// regardless.
func WithDependencies(capabilities ...string) RegisterOption {
	return func(r *registration) {
		r.declaredDeps = append(r.declaredDeps, capabilities...)
	}
}

// Container registers and resolves services by capability. Register calls
// are a startup configuration step and are not safe concurrently with
// Resolve; Resolve calls for independent capabilities may run
// concurrently. Cycle detection operates on the per-call resolution
// chain, so two goroutines concurrently resolving mutually dependent
// singletons block on each other's construction locks instead of
// observing the cycle; run ValidateAllRegistrations at startup to surface
// cycles deterministically before concurrent use.
type Container struct {
	*substrate.ObserverRegistry

	mu            sync.RWMutex
	registrations map[string]*registration

	orderMu sync.Mutex
	order   []*registration // singleton construction order, for teardown

	graphMu sync.Mutex
	graph   map[string]map[string]struct{}

	logger substrate.Logger
}

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the structured logger.
func WithLogger(logger substrate.Logger) Option {
	return func(c *Container) {
		c.logger = logger
	}
}

// New creates an empty container.
func New(opts ...Option) *Container {
	c := &Container{
		registrations: make(map[string]*registration),
		graph:         make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = substrate.NewSlogLogger(nil)
	}
	c.ObserverRegistry = substrate.NewObserverRegistry(c.logger)
	return c
}

// Register maps a capability to a factory with the given lifetime. Any
// prior registration for the capability is overwritten: last registration
// wins.
func (c *Container) Register(capability string, factory Factory, lifetime Lifetime, opts ...RegisterOption) error {
	if capability == "" {
		return ErrCapabilityEmpty
	}
	if factory == nil {
		return fmt.Errorf("%w: capability %q", ErrFactoryNil, capability)
	}

	reg := &registration{capability: capability, factory: factory, lifetime: lifetime}
	for _, opt := range opts {
		opt(reg)
	}

	c.mu.Lock()
	c.registrations[capability] = reg
	c.mu.Unlock()

	c.recordEdges(capability, reg.declaredDeps)
	c.logger.Debug("Service registered", "capability", capability, "lifetime", lifetime.String())
	return nil
}

// RegisterInstance maps a capability to a pre-built instance. Instances
// always have singleton lifetime and participate in teardown in
// registration order.
func (c *Container) RegisterInstance(capability string, instance interface{}, opts ...RegisterOption) error {
	if capability == "" {
		return ErrCapabilityEmpty
	}
	if instance == nil {
		return fmt.Errorf("%w: capability %q", ErrInstanceNil, capability)
	}

	reg := &registration{capability: capability, lifetime: Singleton, instance: instance, built: true}
	for _, opt := range opts {
		opt(reg)
	}

	c.mu.Lock()
	c.registrations[capability] = reg
	c.mu.Unlock()

	c.orderMu.Lock()
	c.order = append(c.order, reg)
	c.orderMu.Unlock()

	c.recordEdges(capability, reg.declaredDeps)
	c.logger.Debug("Service instance registered", "capability", capability)
	return nil
}

// Resolve returns the instance registered for a capability, constructing
// it (and, recursively, its dependencies) as needed. Missing
// registrations fail with a DependencyInjectionError naming the
// registered capabilities; dependency cycles fail with a
// CircularDependencyError carrying the full chain.
func (c *Container) Resolve(capability string) (interface{}, error) {
	return c.resolve(capability, nil)
}

// resolution is the per-call Resolver handed to factories. Each recursive
// Resolve extends the chain, which exists only for the duration of the
// top-level call.
type resolution struct {
	c     *Container
	chain []string
}

// Resolve implements Resolver for factory dependency lookups.
func (r *resolution) Resolve(capability string) (interface{}, error) {
	return r.c.resolve(capability, r.chain)
}

func (c *Container) resolve(capability string, chain []string) (interface{}, error) {
	if len(chain) > 0 {
		c.recordEdges(chain[len(chain)-1], []string{capability})
	}

	if slices.Contains(chain, capability) {
		return nil, &CircularDependencyError{Chain: append(slices.Clone(chain), capability)}
	}

	c.mu.RLock()
	reg, ok := c.registrations[capability]
	c.mu.RUnlock()
	if !ok {
		return nil, &DependencyInjectionError{Capability: capability, Registered: c.capabilities()}
	}

	next := append(slices.Clone(chain), capability)

	if reg.lifetime == Transient {
		instance, err := reg.factory(&resolution{c: c, chain: next})
		if err != nil {
			return nil, fmt.Errorf("failed to construct %q: %w", capability, err)
		}
		return instance, nil
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.built {
		return reg.instance, nil
	}
	if reg.factory == nil {
		// An instance registration whose singleton was torn down by Close
		// cannot be rebuilt.
		return nil, &DependencyInjectionError{Capability: capability, Registered: c.capabilities()}
	}

	instance, err := reg.factory(&resolution{c: c, chain: next})
	if err != nil {
		return nil, fmt.Errorf("failed to construct %q: %w", capability, err)
	}
	reg.instance = instance
	reg.built = true

	c.orderMu.Lock()
	c.order = append(c.order, reg)
	c.orderMu.Unlock()

	c.logger.Debug("Singleton constructed", "capability", capability)
	return instance, nil
}

// capabilities returns the sorted registered capability names.
func (c *Container) capabilities() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.registrations))
	for name := range c.registrations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// recordEdges adds direct-dependency edges to the diagnostic graph.
func (c *Container) recordEdges(from string, to []string) {
	if len(to) == 0 {
		return
	}

	c.graphMu.Lock()
	defer c.graphMu.Unlock()
	edges, ok := c.graph[from]
	if !ok {
		edges = make(map[string]struct{})
		c.graph[from] = edges
	}
	for _, dep := range to {
		edges[dep] = struct{}{}
	}
}

// ValidateAllRegistrations eagerly resolves every registered capability
// with a fresh resolution context, surfacing missing-dependency and
// cycle errors at startup rather than at first use. All failures are
// returned, not just the first.
func (c *Container) ValidateAllRegistrations() []error {
	var failures []error
	for _, capability := range c.capabilities() {
		if _, err := c.resolve(capability, nil); err != nil {
			failures = append(failures, fmt.Errorf("capability %q: %w", capability, err))
		}
	}

	if len(failures) > 0 {
		c.logger.Error("Container validation failed", "failures", len(failures))
	}
	_ = c.NotifyObservers(context.Background(), substrate.NewCloudEvent(substrate.EventTypeContainerValidated, "container", map[string]interface{}{
		"capabilities": len(c.capabilities()),
		"failures":     len(failures),
	}, nil))
	return failures
}

// DependencyGraph returns a read-only snapshot of capability to
// direct-dependency edges, combining dependencies declared at
// registration with those observed during construction. It does not
// mutate container state.
func (c *Container) DependencyGraph() map[string][]string {
	c.graphMu.Lock()
	defer c.graphMu.Unlock()

	snapshot := make(map[string][]string, len(c.graph))
	for from, edges := range c.graph {
		deps := make([]string, 0, len(edges))
		for dep := range edges {
			deps = append(deps, dep)
		}
		sort.Strings(deps)
		snapshot[from] = deps
	}
	return snapshot
}

// Close tears down singleton instances in reverse construction order.
// Instances implementing io.Closer or Stop(context.Context) error are
// released; all release errors are aggregated. The container's singleton
// caches are reset.
func (c *Container) Close(ctx context.Context) error {
	c.orderMu.Lock()
	order := c.order
	c.order = nil
	c.orderMu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		reg := order[i]
		reg.mu.Lock()
		instance := reg.instance
		reg.instance = nil
		reg.built = false
		reg.mu.Unlock()

		if err := releaseInstance(ctx, instance); err != nil {
			errs = append(errs, fmt.Errorf("closing %q: %w", reg.capability, err))
		}
	}

	_ = c.NotifyObservers(ctx, substrate.NewCloudEvent(substrate.EventTypeContainerClosed, "container", map[string]interface{}{
		"released": len(order),
		"errors":   len(errs),
	}, nil))
	return errors.Join(errs...)
}

// stoppable is matched by services with a context-aware shutdown method.
type stoppable interface {
	Stop(ctx context.Context) error
}

func releaseInstance(ctx context.Context, instance interface{}) error {
	switch v := instance.(type) {
	case nil:
		return nil
	case stoppable:
		return v.Stop(ctx)
	case io.Closer:
		return v.Close()
	default:
		return nil
	}
}
