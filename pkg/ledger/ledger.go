// Package ledger keeps an undoable history of executed commands.
//
// The Ledger is meant to be scoped to a single session or request.
// It is not safe for concurrent use.
package ledger

import (
	"context"
	"time"

	"go.llib.dev/frameless/pkg/errorkit"
	"go.llib.dev/frameless/pkg/logger"
	"go.llib.dev/frameless/pkg/logging"
	"go.llib.dev/testcase/clock"

	"go.llib.dev/sharedrt/pkg/observe"
)

const (
	ErrDoubleExecution errorkit.Error = "ledger: command is already executed"
	ErrUndoFailure     errorkit.Error = "ledger: undo failed"
	ErrInvalidCommand  errorkit.Error = "ledger: invalid command"
)

// Entry is a command on the ledger and the time it got executed.
type Entry struct {
	Command    *Command
	ExecutedAt time.Time
}

// Ledger is a LIFO history of executed commands.
// Its zero value is ready to use.
//
// An Action may execute further commands on the same Ledger.
// Those nested commands land on the Ledger before their parent,
// so undoing reverts the parent first.
// When the parent fails, the nested commands it executed are undone
// and taken off the Ledger as well.
type Ledger struct {
	// Name [optional] labels the ledger in logs, metrics and traces.
	Name string
	// Logger [optional]
	//
	// default: the package level logger
	Logger  *logging.Logger
	Metrics observe.Metrics
	Tracer  observe.Tracer

	done   []Entry
	undone []*Command
	// nesting counts the actions in progress.
	nesting int
}

// Execute runs cmd and records it on success.
// A failed command is not recorded, and it goes back to the state it had before.
// A top-level Execute discards the commands that could be redone.
func (l *Ledger) Execute(ctx context.Context, cmd *Command) (rErr error) {
	ctx, span := l.span(ctx, "ledger.execute", cmd)
	defer func() { l.finish(ctx, span, "execute", rErr) }()

	if err := l.execute(ctx, cmd); err != nil {
		return err
	}
	if l.nesting == 0 {
		l.undone = nil
	}
	return nil
}

// Undo reverts the most recently executed command.
// It reports false when there was nothing to undo.
//
// A command that fails to undo stays on the ledger as Executed,
// and the error is returned as an ErrUndoFailure.
// Commands its undo action executed on the Ledger are rolled back.
func (l *Ledger) Undo(ctx context.Context) (_ bool, rErr error) {
	if len(l.done) == 0 {
		l.debug(ctx, "nothing to undo")
		return false, nil
	}
	last := len(l.done) - 1
	e := l.done[last]
	l.done = l.done[:last]

	ctx, span := l.span(ctx, "ledger.undo", e.Command)
	defer func() { l.finish(ctx, span, "undo", rErr) }()

	mark := len(l.done)
	if err := l.revert(ctx, e.Command); err != nil {
		rbErr := l.rollback(ctx, mark)
		l.done = append(l.done, e)
		return false, errorkit.Merge(ErrUndoFailure.Wrap(err), rbErr)
	}
	e.Command.state.Store(int32(Undone))
	l.undone = append(l.undone, e.Command)
	l.debug(ctx, "command undone", logging.Field("command", e.Command.Name))
	return true, nil
}

// Redo executes again the most recently undone command.
// It reports false when there was nothing to redo.
// A failing redo keeps the command redoable.
func (l *Ledger) Redo(ctx context.Context) (_ bool, rErr error) {
	if len(l.undone) == 0 {
		l.debug(ctx, "nothing to redo")
		return false, nil
	}
	last := len(l.undone) - 1
	cmd := l.undone[last]
	l.undone = l.undone[:last]

	ctx, span := l.span(ctx, "ledger.redo", cmd)
	defer func() { l.finish(ctx, span, "redo", rErr) }()

	if err := l.execute(ctx, cmd); err != nil {
		l.undone = append(l.undone, cmd)
		return false, err
	}
	return true, nil
}

func (l *Ledger) execute(ctx context.Context, cmd *Command) error {
	if cmd == nil || cmd.action == nil {
		return ErrInvalidCommand.F("missing command action")
	}
	prev, ok := cmd.claim()
	if !ok {
		return ErrDoubleExecution.F("%s", cmd.Name)
	}

	mark := len(l.done)
	if err := l.run(ctx, cmd); err != nil {
		rbErr := l.rollback(ctx, mark)
		cmd.state.Store(int32(prev))
		l.debug(ctx, "command failed", logging.Field("command", cmd.Name), logging.ErrField(err))
		return errorkit.Merge(err, rbErr)
	}
	l.done = append(l.done, Entry{Command: cmd, ExecutedAt: clock.Now()})
	l.debug(ctx, "command executed", logging.Field("command", cmd.Name))
	return nil
}

func (l *Ledger) run(ctx context.Context, cmd *Command) error {
	l.nesting++
	defer func() { l.nesting-- }()
	return cmd.action.Execute(ctx)
}

func (l *Ledger) revert(ctx context.Context, cmd *Command) error {
	l.nesting++
	defer func() { l.nesting-- }()
	return cmd.action.Undo(ctx)
}

// rollback undoes the commands recorded above mark, newest first.
// They leave the Ledger without becoming redoable.
func (l *Ledger) rollback(ctx context.Context, mark int) error {
	var errs []error
	for len(l.done) > mark {
		last := len(l.done) - 1
		e := l.done[last]
		l.done = l.done[:last]
		if err := l.revert(ctx, e.Command); err != nil {
			errs = append(errs, ErrUndoFailure.Wrap(err))
			continue
		}
		e.Command.state.Store(int32(Created))
		l.debug(ctx, "command rolled back", logging.Field("command", e.Command.Name))
	}
	return errorkit.Merge(errs...)
}

// Len is the number of commands that can be undone.
func (l *Ledger) Len() int { return len(l.done) }

// RedoLen is the number of commands that can be redone.
func (l *Ledger) RedoLen() int { return len(l.undone) }

// History returns the undoable commands, oldest first.
func (l *Ledger) History() []Entry {
	return append([]Entry(nil), l.done...)
}

func (l *Ledger) span(ctx context.Context, name string, cmd *Command) (context.Context, observe.Span) {
	attrs := map[string]string{"ledger": l.Name}
	if cmd != nil {
		attrs["command"] = cmd.Name
		attrs["command.id"] = cmd.ID.String()
	}
	return observe.TracerOrNop(l.Tracer).StartSpan(ctx, name, attrs)
}

func (l *Ledger) finish(ctx context.Context, span observe.Span, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics := observe.MetricsOrNop(l.Metrics)
	metrics.IncrementCounter(ctx, observe.MetricLedgerOperations, map[string]string{
		"ledger": l.Name,
		"op":     op,
		"result": result,
	})
	metrics.RecordValue(ctx, observe.MetricLedgerDepth, float64(len(l.done)), map[string]string{
		"ledger": l.Name,
	})
	span.End(err)
}

func (l *Ledger) debug(ctx context.Context, msg string, ds ...logging.Detail) {
	ds = append(ds, logging.Field("ledger", l.Name))
	if l.Logger != nil {
		l.Logger.Debug(ctx, msg, ds...)
		return
	}
	logger.Debug(ctx, msg, ds...)
}
