package command

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cucumber/godog"
)

// processorBDDContext holds the test context for undo/redo BDD scenarios.
type processorBDDContext struct {
	processor *Processor
	counter   int
	lastErr   error
}

func (c *processorBDDContext) aCommandProcessorWithHistoryDepth(depth int) error {
	p, err := NewProcessor(&Config{MaxHistoryDepth: depth})
	if err != nil {
		return err
	}
	c.processor = p
	c.counter = 0
	c.lastErr = nil
	return nil
}

func (c *processorBDDContext) iExecuteACommandAdding(delta int) error {
	_, err := c.processor.Execute(context.Background(), &counterCommand{counter: &c.counter, delta: delta})
	c.lastErr = err
	return err
}

func (c *processorBDDContext) iExecuteAnIrreversibleCommand() error {
	_, err := c.processor.Execute(context.Background(), NewFunc("irreversible.noop", func(ctx context.Context) (interface{}, error) {
		return nil, nil
	}))
	c.lastErr = err
	return err
}

func (c *processorBDDContext) iUndoTheLastCommand() error {
	c.lastErr = c.processor.Undo(context.Background())
	return nil
}

func (c *processorBDDContext) iRedoTheLastCommand() error {
	_, err := c.processor.Redo(context.Background())
	c.lastErr = err
	return nil
}

func (c *processorBDDContext) theCounterShouldBe(expected int) error {
	if c.counter != expected {
		return fmt.Errorf("expected counter %d, got %d", expected, c.counter)
	}
	return nil
}

func (c *processorBDDContext) undoShouldNotBeAvailable() error {
	if c.processor.CanUndo() {
		return errors.New("expected undo to be unavailable")
	}
	return nil
}

func (c *processorBDDContext) redoShouldNotBeAvailable() error {
	if c.processor.CanRedo() {
		return errors.New("expected redo to be unavailable")
	}
	return nil
}

func (c *processorBDDContext) theLastOperationShouldFailWithNoHistory() error {
	if !errors.Is(c.lastErr, ErrNoHistory) {
		return fmt.Errorf("expected ErrNoHistory, got %v", c.lastErr)
	}
	return nil
}

func (c *processorBDDContext) theLastOperationShouldFailAsNotReversible() error {
	if !errors.Is(c.lastErr, ErrNotReversible) {
		return fmt.Errorf("expected ErrNotReversible, got %v", c.lastErr)
	}
	return nil
}

func (c *processorBDDContext) theUndoDepthShouldBe(expected int) error {
	if depth := c.processor.UndoDepth(); depth != expected {
		return fmt.Errorf("expected undo depth %d, got %d", expected, depth)
	}
	return nil
}

func TestProcessorBDD(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			ctx := &processorBDDContext{}

			sc.Step(`^a command processor with history depth (\d+)$`, ctx.aCommandProcessorWithHistoryDepth)
			sc.Step(`^I execute a command adding (\d+)$`, ctx.iExecuteACommandAdding)
			sc.Step(`^I execute an irreversible command$`, ctx.iExecuteAnIrreversibleCommand)
			sc.Step(`^I undo the last command$`, ctx.iUndoTheLastCommand)
			sc.Step(`^I redo the last command$`, ctx.iRedoTheLastCommand)
			sc.Step(`^the counter should be (\d+)$`, ctx.theCounterShouldBe)
			sc.Step(`^undo should not be available$`, ctx.undoShouldNotBeAvailable)
			sc.Step(`^redo should not be available$`, ctx.redoShouldNotBeAvailable)
			sc.Step(`^the last operation should fail with no history$`, ctx.theLastOperationShouldFailWithNoHistory)
			sc.Step(`^the last operation should fail as not reversible$`, ctx.theLastOperationShouldFailAsNotReversible)
			sc.Step(`^the undo depth should be (\d+)$`, ctx.theUndoDepthShouldBe)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/undo_redo.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
