package container

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/substrate"
)

type greeter struct {
	prefix string
}

func TestSingletonResolvesToSameInstance(t *testing.T) {
	c := New()

	constructions := 0
	require.NoError(t, c.Register("greeter", func(r Resolver) (interface{}, error) {
		constructions++
		return &greeter{prefix: "hello"}, nil
	}, Singleton))

	first, err := c.Resolve("greeter")
	require.NoError(t, err)
	second, err := c.Resolve("greeter")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, constructions)
}

func TestTransientResolvesToDistinctInstances(t *testing.T) {
	c := New()

	require.NoError(t, c.Register("greeter", func(r Resolver) (interface{}, error) {
		return &greeter{prefix: "hello"}, nil
	}, Transient))

	first, err := c.Resolve("greeter")
	require.NoError(t, err)
	second, err := c.Resolve("greeter")
	require.NoError(t, err)

	assert.NotSame(t, first, second)
}

func TestMissingRegistration(t *testing.T) {
	c := New()
	require.NoError(t, c.RegisterInstance("known.a", &greeter{}))
	require.NoError(t, c.RegisterInstance("known.b", &greeter{}))

	_, err := c.Resolve("unknown")
	require.ErrorIs(t, err, ErrServiceNotFound)

	var diErr *DependencyInjectionError
	require.ErrorAs(t, err, &diErr)
	assert.Equal(t, "unknown", diErr.Capability)
	assert.Equal(t, []string{"known.a", "known.b"}, diErr.Registered)
}

func TestFactoryDependencyResolution(t *testing.T) {
	c := New()

	require.NoError(t, c.RegisterInstance("config", &greeter{prefix: "cfg"}))
	require.NoError(t, c.Register("service", func(r Resolver) (interface{}, error) {
		dep, err := r.Resolve("config")
		if err != nil {
			return nil, err
		}
		return &greeter{prefix: dep.(*greeter).prefix + "-svc"}, nil
	}, Singleton))

	instance, err := c.Resolve("service")
	require.NoError(t, err)
	assert.Equal(t, "cfg-svc", instance.(*greeter).prefix)
}

func TestCircularDependencyDetection(t *testing.T) {
	c := New()

	register := func(name, dep string) {
		require.NoError(t, c.Register(name, func(r Resolver) (interface{}, error) {
			return r.Resolve(dep)
		}, Singleton))
	}
	register("A", "B")
	register("B", "C")
	register("C", "A")

	_, err := c.Resolve("A")
	require.ErrorIs(t, err, ErrCircularDependency)

	var cycleErr *CircularDependencyError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []string{"A", "B", "C", "A"}, cycleErr.Chain)
}

func TestSelfDependencyIsACycle(t *testing.T) {
	c := New()
	require.NoError(t, c.Register("narcissist", func(r Resolver) (interface{}, error) {
		return r.Resolve("narcissist")
	}, Transient))

	_, err := c.Resolve("narcissist")
	require.ErrorIs(t, err, ErrCircularDependency)

	var cycleErr *CircularDependencyError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []string{"narcissist", "narcissist"}, cycleErr.Chain)
}

func TestLastRegistrationWins(t *testing.T) {
	c := New()

	require.NoError(t, c.RegisterInstance("svc", &greeter{prefix: "first"}))
	require.NoError(t, c.RegisterInstance("svc", &greeter{prefix: "second"}))

	instance, err := c.Resolve("svc")
	require.NoError(t, err)
	assert.Equal(t, "second", instance.(*greeter).prefix)
}

func TestRegistrationValidation(t *testing.T) {
	c := New()

	assert.ErrorIs(t, c.Register("", func(r Resolver) (interface{}, error) { return nil, nil }, Singleton), ErrCapabilityEmpty)
	assert.ErrorIs(t, c.Register("svc", nil, Singleton), ErrFactoryNil)
	assert.ErrorIs(t, c.RegisterInstance("", &greeter{}), ErrCapabilityEmpty)
	assert.ErrorIs(t, c.RegisterInstance("svc", nil), ErrInstanceNil)
}

func TestFailedSingletonConstructionRetries(t *testing.T) {
	c := New()

	attempts := 0
	require.NoError(t, c.Register("flaky", func(r Resolver) (interface{}, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("transient construction failure")
		}
		return &greeter{}, nil
	}, Singleton))

	_, err := c.Resolve("flaky")
	require.Error(t, err)

	// A failed construction is not cached; the next resolve retries.
	instance, err := c.Resolve("flaky")
	require.NoError(t, err)
	assert.NotNil(t, instance)
	assert.Equal(t, 2, attempts)
}

func TestValidateAllRegistrationsAggregatesFailures(t *testing.T) {
	c := New()

	require.NoError(t, c.RegisterInstance("healthy", &greeter{}))
	require.NoError(t, c.Register("missing-dep", func(r Resolver) (interface{}, error) {
		return r.Resolve("nowhere")
	}, Singleton))
	require.NoError(t, c.Register("self-cycle", func(r Resolver) (interface{}, error) {
		return r.Resolve("self-cycle")
	}, Singleton))

	failures := c.ValidateAllRegistrations()
	require.Len(t, failures, 2)

	joined := errors.Join(failures...)
	assert.ErrorIs(t, joined, ErrServiceNotFound)
	assert.ErrorIs(t, joined, ErrCircularDependency)
}

func TestValidationNotifiesObservers(t *testing.T) {
	c := New()
	require.NoError(t, c.RegisterInstance("healthy", &greeter{}))

	var seen []string
	require.NoError(t, c.RegisterObserver(substrate.NewFunctionalObserver("recorder", func(ctx context.Context, event substrate.CloudEvent) error {
		seen = append(seen, event.Type())
		return nil
	})))

	require.Empty(t, c.ValidateAllRegistrations())
	require.NoError(t, c.Close(context.Background()))

	assert.Equal(t, []string{substrate.EventTypeContainerValidated, substrate.EventTypeContainerClosed}, seen)
}

func TestDependencyGraph(t *testing.T) {
	c := New()

	require.NoError(t, c.RegisterInstance("config", &greeter{}))
	require.NoError(t, c.Register("bus", func(r Resolver) (interface{}, error) {
		return r.Resolve("config")
	}, Singleton))
	require.NoError(t, c.Register("processor", func(r Resolver) (interface{}, error) {
		if _, err := r.Resolve("bus"); err != nil {
			return nil, err
		}
		return r.Resolve("config")
	}, Singleton, WithDependencies("bus", "config")))

	// Declared dependencies appear before any construction.
	graph := c.DependencyGraph()
	assert.Equal(t, []string{"bus", "config"}, graph["processor"])
	assert.Empty(t, graph["bus"])

	_, err := c.Resolve("processor")
	require.NoError(t, err)

	// Observed dependencies are recorded during construction.
	graph = c.DependencyGraph()
	assert.Equal(t, []string{"config"}, graph["bus"])
	assert.Equal(t, []string{"bus", "config"}, graph["processor"])
}

// closeRecorder tracks teardown order.
type closeRecorder struct {
	name  string
	order *[]string
}

func (c *closeRecorder) Close() error {
	*c.order = append(*c.order, c.name)
	return nil
}

var _ io.Closer = (*closeRecorder)(nil)

// stopRecorder uses the context-aware shutdown shape.
type stopRecorder struct {
	name  string
	order *[]string
}

func (s *stopRecorder) Stop(ctx context.Context) error {
	*s.order = append(*s.order, s.name)
	return nil
}

func TestCloseReleasesInReverseConstructionOrder(t *testing.T) {
	c := New()

	var order []string
	require.NoError(t, c.Register("first", func(r Resolver) (interface{}, error) {
		return &closeRecorder{name: "first", order: &order}, nil
	}, Singleton))
	require.NoError(t, c.Register("second", func(r Resolver) (interface{}, error) {
		if _, err := r.Resolve("first"); err != nil {
			return nil, err
		}
		return &stopRecorder{name: "second", order: &order}, nil
	}, Singleton))

	_, err := c.Resolve("second")
	require.NoError(t, err)

	require.NoError(t, c.Close(context.Background()))
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestCloseAggregatesErrors(t *testing.T) {
	c := New()

	closeErr := errors.New("release failed")
	require.NoError(t, c.RegisterInstance("bad", &failingCloser{err: closeErr}))

	err := c.Close(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, closeErr)
}

type failingCloser struct {
	err error
}

func (f *failingCloser) Close() error { return f.err }

func TestLifetimeString(t *testing.T) {
	assert.Equal(t, "singleton", Singleton.String())
	assert.Equal(t, "transient", Transient.String())
	assert.Equal(t, "lifetime(9)", Lifetime(9).String())
}
