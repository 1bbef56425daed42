package eventbus

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/GoCodeAlone/substrate"
)

// publishDepthKey carries the reentrant sync-publish depth through the
// context handed to handlers.
type publishDepthKey struct{}

func publishDepth(ctx context.Context) int {
	depth, _ := ctx.Value(publishDepthKey{}).(int)
	return depth
}

// Bus is the in-process event bus. It routes events to subscriptions by
// topic pattern, invoking handlers in descending priority order with ties
// broken by registration order, and isolates every handler failure from
// the publisher and from other subscribers.
//
// Synchronous publishes dispatch inline on the caller's goroutine.
// Asynchronous publishes enqueue to a bounded FIFO queue drained either
// by the dispatch loop goroutine (after Start) or cooperatively via Pump
// for hosts without a background execution context. Delivery order for
// async events is FIFO per bus.
type Bus struct {
	*substrate.ObserverRegistry

	config *Config
	logger substrate.Logger
	clock  clock.Clock

	mu   sync.RWMutex
	subs map[string]map[string]*subscription // pattern -> id -> subscription
	byID map[string]*subscription
	seq  uint64

	queueMu  sync.Mutex
	queue    chan Event
	started  bool
	draining bool

	cancel context.CancelFunc
	wg     sync.WaitGroup

	historyMu sync.RWMutex
	history   map[string][]Event
	cron      *cron.Cron
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the structured logger used for handler failures and
// subscription lifecycle logging.
func WithLogger(logger substrate.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// WithClock sets the clock used for event timestamps and retention
// cutoffs. Intended for tests.
func WithClock(c clock.Clock) Option {
	return func(b *Bus) {
		b.clock = c
	}
}

// New creates an event bus. A nil config uses defaults. The bus is usable
// immediately for Subscribe and synchronous Publish; call Start to run
// the async dispatch loop, or drain async publishes cooperatively with
// Pump.
func New(config *Config, opts ...Option) (*Bus, error) {
	if config == nil {
		config = &Config{}
	}
	if err := config.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("invalid event bus config: %w", err)
	}

	b := &Bus{
		config:  config,
		subs:    make(map[string]map[string]*subscription),
		byID:    make(map[string]*subscription),
		history: make(map[string][]Event),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = substrate.NewSlogLogger(nil)
	}
	if b.clock == nil {
		b.clock = clock.New()
	}
	b.ObserverRegistry = substrate.NewObserverRegistry(b.logger)
	b.queue = make(chan Event, config.QueueSize)

	return b, nil
}

// Subscribe registers a handler for a topic pattern and returns the
// opaque subscription identifier used to cancel it. The pattern is an
// exact topic or a prefix wildcard ("beat.*"). Options set priority,
// a filter predicate, and a liveness probe.
func (b *Bus) Subscribe(pattern string, handler EventHandler, opts ...SubscribeOption) (string, error) {
	if handler == nil {
		return "", ErrEventHandlerNil
	}
	if err := validatePattern(pattern); err != nil {
		return "", err
	}

	sub := &subscription{
		id:       uuid.NewString(),
		pattern:  pattern,
		handler:  handler,
		priority: PriorityNormal,
	}
	for _, opt := range opts {
		opt(sub)
	}

	b.mu.Lock()
	sub.seq = b.seq
	b.seq++
	if _, ok := b.subs[pattern]; !ok {
		b.subs[pattern] = make(map[string]*subscription)
	}
	b.subs[pattern][sub.id] = sub
	b.byID[sub.id] = sub
	b.mu.Unlock()

	b.logger.Debug("Subscription registered", "pattern", pattern, "id", sub.id, "priority", sub.priority.String())
	return sub.id, nil
}

// Unsubscribe removes a subscription by id. Idempotent: unsubscribing an
// unknown or already-removed id is a no-op.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	sub, ok := b.byID[id]
	if ok {
		b.removeLocked(sub)
	}
	b.mu.Unlock()

	if ok {
		b.logger.Debug("Subscription removed", "pattern", sub.pattern, "id", id)
	}
}

// removeLocked deletes a subscription from both indexes. Caller holds b.mu.
func (b *Bus) removeLocked(sub *subscription) {
	delete(b.byID, sub.id)
	if subs, ok := b.subs[sub.pattern]; ok {
		delete(subs, sub.id)
		if len(subs) == 0 {
			delete(b.subs, sub.pattern)
		}
	}
}

// Publish dispatches an event synchronously: all matching handlers run to
// completion on the caller's goroutine before Publish returns. Handler
// errors are isolated and reported; Publish fails only on a malformed
// topic or when the reentrant publish depth cap is exceeded.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	depth := publishDepth(ctx)
	if depth >= b.config.MaxSyncDepth {
		return fmt.Errorf("%w: topic %q at depth %d", ErrReentrantPublishDepth, event.Topic, depth)
	}

	stamped, err := b.stamp(event)
	if err != nil {
		return err
	}

	b.dispatch(context.WithValue(ctx, publishDepthKey{}, depth+1), stamped)
	return nil
}

// PublishAsync enqueues an event on the bus's FIFO queue and returns
// immediately. Dispatch happens on the bus's dispatch loop (or the next
// Pump call). Fails with ErrQueueFull when the queue is at capacity and
// ErrBusDraining once Stop has begun.
func (b *Bus) PublishAsync(ctx context.Context, event Event) error {
	_ = ctx

	stamped, err := b.stamp(event)
	if err != nil {
		return err
	}

	b.queueMu.Lock()
	defer b.queueMu.Unlock()
	if b.draining {
		return ErrBusDraining
	}
	select {
	case b.queue <- stamped:
		return nil
	default:
		return fmt.Errorf("%w: capacity %d", ErrQueueFull, cap(b.queue))
	}
}

// stamp validates the topic and fills in event metadata on a copy.
func (b *Bus) stamp(event Event) (Event, error) {
	if err := validateTopic(event.Topic); err != nil {
		return Event{}, err
	}
	if event.ID == "" {
		event.ID = substrate.NewEventID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = b.clock.Now()
	}
	return event, nil
}

// Start runs the async dispatch loop and the history retention schedule.
// Calling Start on a running bus is a no-op.
func (b *Bus) Start(ctx context.Context) error {
	b.queueMu.Lock()
	if b.draining {
		b.queueMu.Unlock()
		return ErrBusDraining
	}
	if b.started {
		b.queueMu.Unlock()
		return nil
	}
	b.started = true
	b.queueMu.Unlock()

	b.cron = cron.New()
	if _, err := b.cron.AddFunc(b.config.RetentionSchedule, b.sweepHistory); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidRetentionSchedule, b.config.RetentionSchedule, err)
	}
	b.cron.Start()

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b.cancel = cancel
	b.wg.Add(1)
	go b.dispatchLoop(loopCtx)

	_ = b.NotifyObservers(ctx, substrate.NewCloudEvent(substrate.EventTypeBusStarted, "eventbus", map[string]interface{}{
		"queueSize": b.config.QueueSize,
	}, nil))
	return nil
}

// Stop drains the bus: new async publishes are rejected with
// ErrBusDraining while already queued events are dispatched. Stop waits
// for the dispatch loop to finish draining, bounded by ctx, and returns
// ErrShutdownTimeout if the deadline expires first. On a bus that was
// never started the remaining queue is drained inline.
func (b *Bus) Stop(ctx context.Context) error {
	b.queueMu.Lock()
	if b.draining {
		b.queueMu.Unlock()
		return nil
	}
	b.draining = true
	started := b.started
	close(b.queue)
	b.queueMu.Unlock()

	if b.cron != nil {
		<-b.cron.Stop().Done()
	}

	if !started {
		for event := range b.queue {
			b.dispatch(ctx, event)
		}
		return nil
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ErrShutdownTimeout
	}

	if b.cancel != nil {
		b.cancel()
	}

	_ = b.NotifyObservers(ctx, substrate.NewCloudEvent(substrate.EventTypeBusStopped, "eventbus", nil, nil))
	return nil
}

// dispatchLoop drains the async queue until Stop closes it.
func (b *Bus) dispatchLoop(ctx context.Context) {
	defer b.wg.Done()

	for event := range b.queue {
		b.dispatch(ctx, event)
	}
}

// Pump cooperatively drains events queued by PublishAsync at the time of
// the call, dispatching them synchronously on the caller's goroutine, and
// returns the number dispatched. Intended for hosts with no background
// execution context that never Start the bus; ordering remains FIFO.
func (b *Bus) Pump(ctx context.Context) int {
	dispatched := 0
	for {
		select {
		case event, ok := <-b.queue:
			if !ok {
				return dispatched
			}
			b.dispatch(ctx, event)
			dispatched++
		default:
			return dispatched
		}
	}
}

// dispatch delivers one event to all matching live subscriptions in
// descending priority order, registration order within equal priority.
// Dead subscriptions discovered during iteration are pruned and skipped.
func (b *Bus) dispatch(ctx context.Context, event Event) {
	b.storeHistory(event)

	matches := b.matchingSubscriptions(event.Topic)
	var dead []*subscription
	for _, sub := range matches {
		if sub.alive != nil && !sub.alive() {
			dead = append(dead, sub)
			continue
		}
		if sub.filter != nil && !sub.filter(event) {
			continue
		}
		b.invoke(ctx, sub, event)
	}

	if len(dead) > 0 {
		b.prune(ctx, dead)
	}
}

// matchingSubscriptions snapshots the subscriptions matching a topic,
// sorted for dispatch.
func (b *Bus) matchingSubscriptions(topic string) []*subscription {
	b.mu.RLock()
	var matches []*subscription
	for pattern, subs := range b.subs {
		if !matchTopic(topic, pattern) {
			continue
		}
		for _, sub := range subs {
			matches = append(matches, sub)
		}
	}
	b.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].priority != matches[j].priority {
			return matches[i].priority > matches[j].priority
		}
		return matches[i].seq < matches[j].seq
	})
	return matches
}

// invoke runs a single handler, capturing errors and panics so one
// failing handler never prevents delivery to others.
func (b *Bus) invoke(ctx context.Context, sub *subscription, event Event) {
	defer func() {
		if rec := recover(); rec != nil {
			b.reportHandlerFailure(ctx, sub, event, fmt.Errorf("handler panic: %v", rec)) //nolint:err113 // panic value has no sentinel
		}
	}()

	if err := sub.handler(ctx, event); err != nil {
		b.reportHandlerFailure(ctx, sub, event, err)
	}
}

// reportHandlerFailure logs a HandlerError and emits it on the observer
// channel.
func (b *Bus) reportHandlerFailure(ctx context.Context, sub *subscription, event Event, err error) {
	handlerErr := &HandlerError{
		Topic:          event.Topic,
		SubscriptionID: sub.id,
		EventID:        event.ID,
		Err:            err,
	}
	b.logger.Error("Event handler failed", "topic", event.Topic, "subscription", sub.id, "error", handlerErr)

	_ = b.NotifyObservers(ctx, substrate.NewCloudEvent(substrate.EventTypeHandlerFailed, "eventbus", map[string]interface{}{
		"topic":          handlerErr.Topic,
		"subscriptionId": handlerErr.SubscriptionID,
		"eventId":        handlerErr.EventID,
		"error":          handlerErr.Error(),
	}, nil))
}

// prune removes dead subscriptions detected during dispatch.
func (b *Bus) prune(ctx context.Context, dead []*subscription) {
	b.mu.Lock()
	for _, sub := range dead {
		b.removeLocked(sub)
	}
	b.mu.Unlock()

	for _, sub := range dead {
		b.logger.Debug("Dead subscription pruned", "pattern", sub.pattern, "id", sub.id)
		_ = b.NotifyObservers(ctx, substrate.NewCloudEvent(substrate.EventTypeSubscriptionPruned, "eventbus", map[string]interface{}{
			"pattern":        sub.pattern,
			"subscriptionId": sub.id,
		}, nil))
	}
}

// Topics returns a list of all patterns with at least one subscription.
func (b *Bus) Topics() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	topics := make([]string, 0, len(b.subs))
	for pattern := range b.subs {
		topics = append(topics, pattern)
	}
	sort.Strings(topics)
	return topics
}

// SubscriberCount returns the number of subscriptions whose pattern
// matches the given topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for pattern, subs := range b.subs {
		if matchTopic(topic, pattern) {
			count += len(subs)
		}
	}
	return count
}

// storeHistory appends an event to the per-topic diagnostic history,
// evicting the oldest entry beyond the configured limit.
func (b *Bus) storeHistory(event Event) {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()

	entries := append(b.history[event.Topic], event)
	if len(entries) > b.config.HistoryLimit {
		entries = entries[len(entries)-b.config.HistoryLimit:]
	}
	b.history[event.Topic] = entries
}

// History returns a snapshot of the retained events for a topic, oldest
// first.
func (b *Bus) History(topic string) []Event {
	b.historyMu.RLock()
	defer b.historyMu.RUnlock()

	entries := b.history[topic]
	out := make([]Event, len(entries))
	copy(out, entries)
	return out
}

// sweepHistory removes history entries older than the retention TTL.
// Runs on the configured cron schedule while the bus is started.
func (b *Bus) sweepHistory() {
	cutoff := b.clock.Now().Add(-b.config.HistoryTTL)

	b.historyMu.Lock()
	defer b.historyMu.Unlock()

	for topic, entries := range b.history {
		kept := entries[:0:0]
		for _, event := range entries {
			if event.CreatedAt.After(cutoff) {
				kept = append(kept, event)
			}
		}
		if len(kept) == 0 {
			delete(b.history, topic)
			continue
		}
		b.history[topic] = kept
	}
}
