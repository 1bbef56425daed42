// Command substrate-demo wires the substrate components together: a
// container holding the configuration, event bus and command processor,
// a handful of reversible commands executed against a document, and a
// bus subscription printing the command lifecycle events.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/GoCodeAlone/substrate"
	"github.com/GoCodeAlone/substrate/command"
	"github.com/GoCodeAlone/substrate/config"
	"github.com/GoCodeAlone/substrate/container"
	"github.com/GoCodeAlone/substrate/eventbus"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "substrate-demo: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	logger := substrate.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	c := container.New(container.WithLogger(logger))

	if err := c.Register("config", func(r container.Resolver) (interface{}, error) {
		return config.Load(configPath, "substrate")
	}, container.Singleton); err != nil {
		return err
	}

	if err := c.Register("eventbus", func(r container.Resolver) (interface{}, error) {
		cfg, err := r.Resolve("config")
		if err != nil {
			return nil, err
		}
		return eventbus.New(&cfg.(*config.Config).EventBus, eventbus.WithLogger(logger))
	}, container.Singleton, container.WithDependencies("config")); err != nil {
		return err
	}

	if err := c.Register("command.processor", func(r container.Resolver) (interface{}, error) {
		cfg, err := r.Resolve("config")
		if err != nil {
			return nil, err
		}
		bus, err := r.Resolve("eventbus")
		if err != nil {
			return nil, err
		}
		return command.NewProcessor(&cfg.(*config.Config).Command,
			command.WithBus(bus.(*eventbus.Bus)),
			command.WithLogger(logger))
	}, container.Singleton, container.WithDependencies("config", "eventbus")); err != nil {
		return err
	}

	if failures := c.ValidateAllRegistrations(); len(failures) > 0 {
		for _, err := range failures {
			logger.Error("Registration validation failed", "error", err)
		}
		return fmt.Errorf("container validation failed with %d error(s)", len(failures))
	}
	defer func() {
		if err := c.Close(ctx); err != nil {
			logger.Error("Container teardown failed", "error", err)
		}
	}()

	busInstance, err := c.Resolve("eventbus")
	if err != nil {
		return err
	}
	bus := busInstance.(*eventbus.Bus)
	if err := bus.Start(ctx); err != nil {
		return err
	}

	// Print every command lifecycle event the processor publishes.
	_, err = bus.Subscribe("command.*", func(ctx context.Context, evt eventbus.Event) error {
		payload := evt.Payload.(command.Lifecycle)
		logger.Info("Command event", "topic", evt.Topic, "command", payload.CommandName)
		return nil
	})
	if err != nil {
		return err
	}

	procInstance, err := c.Resolve("command.processor")
	if err != nil {
		return err
	}
	proc := procInstance.(*command.Processor)

	// Edit a document through reversible commands, then walk the history.
	var doc strings.Builder
	appendText := func(text string) command.ReversibleCommand {
		return command.NewReversibleFunc("append-text",
			func(ctx context.Context) (interface{}, error) {
				doc.WriteString(text)
				return doc.String(), nil
			},
			func(ctx context.Context) error {
				content := doc.String()
				doc.Reset()
				doc.WriteString(strings.TrimSuffix(content, text))
				return nil
			})
	}

	for _, text := range []string{"hello", ", ", "world"} {
		if _, err := proc.Execute(ctx, appendText(text)); err != nil {
			return err
		}
	}
	logger.Info("Document after edits", "content", doc.String())

	if err := proc.Undo(ctx); err != nil {
		return err
	}
	logger.Info("Document after undo", "content", doc.String())

	if _, err := proc.Redo(ctx); err != nil {
		return err
	}
	logger.Info("Document after redo", "content", doc.String())

	for _, entry := range proc.Journal() {
		logger.Info("Journal entry", "command", entry.CommandName, "action", entry.Action)
	}

	return bus.Stop(ctx)
}
