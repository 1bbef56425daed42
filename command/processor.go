package command

import (
	"context"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/GoCodeAlone/substrate"
	"github.com/GoCodeAlone/substrate/eventbus"
)

// Lifecycle event topics published on the event bus.
const (
	TopicCommandExecuted = "command.executed"
	TopicCommandUndone   = "command.undone"
	TopicCommandRedone   = "command.redone"
	TopicCommandFailed   = "command.failed"
)

// Lifecycle is the payload of command lifecycle events.
type Lifecycle struct {
	CommandID   string      `json:"commandId,omitempty"`
	CommandName string      `json:"commandName"`
	Result      interface{} `json:"result,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// Processor serializes state-mutating operations through a single
// undo/redo history. Execute, Undo, and Redo are mutually exclusive per
// processor instance and synchronous from the caller's perspective; any
// asynchronous work a command performs internally must complete before
// its Execute returns.
//
// Lifecycle events are published after the history mutex is released, so
// a synchronous subscriber may query CanUndo/CanRedo/UndoDepth/RedoDepth
// (or submit a follow-up command) from inside its handler.
type Processor struct {
	*substrate.ObserverRegistry

	mu     sync.Mutex
	hist   *history
	bus    *eventbus.Bus
	mode   string
	logger substrate.Logger
	clock  clock.Clock
}

// Option configures a Processor.
type Option func(*Processor)

// WithBus attaches the event bus that lifecycle events are published on.
// Without a bus the processor runs silently.
func WithBus(bus *eventbus.Bus) Option {
	return func(p *Processor) {
		p.bus = bus
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger substrate.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithClock sets the clock used for journal timestamps. Intended for
// tests.
func WithClock(c clock.Clock) Option {
	return func(p *Processor) {
		p.clock = c
	}
}

// NewProcessor creates a command processor. A nil config uses defaults.
func NewProcessor(config *Config, opts ...Option) (*Processor, error) {
	if config == nil {
		config = &Config{}
	}
	if err := config.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("invalid command processor config: %w", err)
	}

	p := &Processor{
		hist: newHistory(config.MaxHistoryDepth),
		mode: config.PublishMode,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = substrate.NewSlogLogger(nil)
	}
	if p.clock == nil {
		p.clock = clock.New()
	}
	p.ObserverRegistry = substrate.NewObserverRegistry(p.logger)

	return p, nil
}

// Execute runs a command. On success the command is pushed onto the undo
// stack (evicting the oldest entry at capacity), the redo stack is
// cleared, and a command.executed event is published. On failure history
// is untouched, a command.failed event is published, and the error is
// returned wrapped in a CommandExecutionError.
func (p *Processor) Execute(ctx context.Context, cmd Command) (interface{}, error) {
	if cmd == nil {
		return nil, ErrCommandNil
	}

	p.mu.Lock()
	result, err := cmd.Execute(ctx)
	now := p.clock.Now()
	if err != nil {
		p.hist.record(JournalEntry{CommandName: cmd.Name(), Action: ActionFailed, At: now, Error: err.Error()})
		p.mu.Unlock()
		p.reportFailure(ctx, "", cmd.Name(), err)
		return nil, &CommandExecutionError{CommandName: cmd.Name(), Err: err}
	}

	id := uuid.NewString()
	_, reversible := cmd.(ReversibleCommand)
	e := &entry{id: id, cmd: cmd, reversible: reversible, executedAt: now}

	p.hist.push(e).release()
	for _, dropped := range p.hist.clearRedo() {
		dropped.release()
	}
	p.hist.record(JournalEntry{CommandID: id, CommandName: cmd.Name(), Action: ActionExecuted, At: now})
	p.mu.Unlock()

	p.logger.Debug("Command executed", "command", cmd.Name(), "id", id, "reversible", reversible)
	p.publish(ctx, TopicCommandExecuted, Lifecycle{CommandID: id, CommandName: cmd.Name(), Result: result})
	return result, nil
}

// Undo reverses the most recently executed command and moves it onto the
// redo stack. Fails with ErrNoHistory on an empty undo stack and with
// ErrNotReversible when the most recent command is irreversible, leaving
// history untouched in both cases. If the command's own Undo fails, the
// command is dropped from history entirely (the processor cannot
// guarantee a consistent retry point) and the failure is surfaced.
func (p *Processor) Undo(ctx context.Context) error {
	p.mu.Lock()
	e := p.hist.peekUndo()
	if e == nil {
		p.mu.Unlock()
		return fmt.Errorf("%w: undo stack is empty", ErrNoHistory)
	}
	if !e.reversible {
		p.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotReversible, e.cmd.Name())
	}

	p.hist.popUndo()
	now := p.clock.Now()
	if err := e.cmd.(ReversibleCommand).Undo(ctx); err != nil {
		e.release()
		p.hist.record(JournalEntry{CommandID: e.id, CommandName: e.cmd.Name(), Action: ActionFailed, At: now, Error: err.Error()})
		p.mu.Unlock()
		p.reportFailure(ctx, e.id, e.cmd.Name(), err)
		return &CommandExecutionError{CommandName: e.cmd.Name(), CommandID: e.id, Err: err}
	}

	p.hist.pushRedo(e)
	p.hist.record(JournalEntry{CommandID: e.id, CommandName: e.cmd.Name(), Action: ActionUndone, At: now})
	p.mu.Unlock()

	p.logger.Debug("Command undone", "command", e.cmd.Name(), "id", e.id)
	p.publish(ctx, TopicCommandUndone, Lifecycle{CommandID: e.id, CommandName: e.cmd.Name()})
	return nil
}

// Redo re-executes the most recently undone command and pushes it back
// onto the undo stack. Fails with ErrNoHistory on an empty redo stack. A
// failed re-execution drops the command from history and surfaces the
// error.
func (p *Processor) Redo(ctx context.Context) (interface{}, error) {
	p.mu.Lock()
	e := p.hist.popRedo()
	if e == nil {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: redo stack is empty", ErrNoHistory)
	}

	result, err := e.cmd.Execute(ctx)
	now := p.clock.Now()
	if err != nil {
		e.release()
		p.hist.record(JournalEntry{CommandID: e.id, CommandName: e.cmd.Name(), Action: ActionFailed, At: now, Error: err.Error()})
		p.mu.Unlock()
		p.reportFailure(ctx, e.id, e.cmd.Name(), err)
		return nil, &CommandExecutionError{CommandName: e.cmd.Name(), CommandID: e.id, Err: err}
	}

	p.hist.push(e).release()
	p.hist.record(JournalEntry{CommandID: e.id, CommandName: e.cmd.Name(), Action: ActionRedone, At: now})
	p.mu.Unlock()

	p.logger.Debug("Command redone", "command", e.cmd.Name(), "id", e.id)
	p.publish(ctx, TopicCommandRedone, Lifecycle{CommandID: e.id, CommandName: e.cmd.Name(), Result: result})
	return result, nil
}

// CanUndo reports whether the undo stack is non-empty. O(1), never fails.
func (p *Processor) CanUndo() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.hist.undo) > 0
}

// CanRedo reports whether the redo stack is non-empty. O(1), never fails.
func (p *Processor) CanRedo() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.hist.redo) > 0
}

// UndoDepth returns the number of entries on the undo stack.
func (p *Processor) UndoDepth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.hist.undo)
}

// RedoDepth returns the number of entries on the redo stack.
func (p *Processor) RedoDepth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.hist.redo)
}

// Journal returns a snapshot of the audit journal, oldest first.
func (p *Processor) Journal() []JournalEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hist.journalSnapshot()
}

// publish emits a lifecycle event on the bus in the configured mode.
// Publish failures are logged, never surfaced to the command caller.
func (p *Processor) publish(ctx context.Context, topic string, payload Lifecycle) {
	if p.bus == nil {
		return
	}

	event := eventbus.Event{Topic: topic, Payload: payload}
	var err error
	if p.mode == PublishModeAsync {
		err = p.bus.PublishAsync(ctx, event)
	} else {
		err = p.bus.Publish(ctx, event)
	}
	if err != nil {
		p.logger.Warn("Failed to publish command lifecycle event", "topic", topic, "command", payload.CommandName, "error", err)
	}
}

// reportFailure publishes a command.failed event and notifies the
// observer channel.
func (p *Processor) reportFailure(ctx context.Context, id, name string, err error) {
	p.logger.Error("Command failed", "command", name, "id", id, "error", err)
	p.publish(ctx, TopicCommandFailed, Lifecycle{CommandID: id, CommandName: name, Error: err.Error()})

	_ = p.NotifyObservers(ctx, substrate.NewCloudEvent(substrate.EventTypeCommandFailed, "command", map[string]interface{}{
		"commandId":   id,
		"commandName": name,
		"error":       err.Error(),
	}, nil))
}
