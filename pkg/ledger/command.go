package ledger

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Action is the payload of a Command.
// The Ledger never inspects it, it only sequences the Execute and Undo calls.
type Action interface {
	Execute(ctx context.Context) error
	Undo(ctx context.Context) error
}

type State int32

const (
	Created State = iota
	Executed
	Undone
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Executed:
		return "executed"
	case Undone:
		return "undone"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Command is a single undoable operation.
// A Command can't be executed again until it is undone.
type Command struct {
	ID   uuid.UUID
	Name string

	action Action
	state  atomic.Int32
}

func NewCommand(name string, action Action) *Command {
	return &Command{ID: uuid.New(), Name: name, action: action}
}

// Func creates a Command from an execute and an undo function.
// A nil undo makes the Command's undo a no-op.
func Func(name string, execute, undo func(ctx context.Context) error) *Command {
	return NewCommand(name, funcAction{execute: execute, undo: undo})
}

func (c *Command) State() State { return State(c.state.Load()) }

func (c *Command) String() string {
	return fmt.Sprintf("%s(%s)", c.Name, c.State())
}

// claim moves the command into the Executed state and returns the state it left.
func (c *Command) claim() (State, bool) {
	for {
		prev := State(c.state.Load())
		if prev == Executed {
			return prev, false
		}
		if c.state.CompareAndSwap(int32(prev), int32(Executed)) {
			return prev, true
		}
	}
}

type funcAction struct {
	execute func(ctx context.Context) error
	undo    func(ctx context.Context) error
}

func (a funcAction) Execute(ctx context.Context) error {
	if a.execute == nil {
		return nil
	}
	return a.execute(ctx)
}

func (a funcAction) Undo(ctx context.Context) error {
	if a.undo == nil {
		return nil
	}
	return a.undo(ctx)
}
