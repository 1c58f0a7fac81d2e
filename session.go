package sharedrt

import (
	"context"

	"github.com/google/uuid"

	"go.llib.dev/sharedrt/pkg/intern"
	"go.llib.dev/sharedrt/pkg/ledger"
)

// Session is the per-user side of a Runtime.
// It shares the Runtime's Store but keeps its own undo history.
//
// Session is not safe for concurrent use.
type Session[K comparable, V any] struct {
	ID uuid.UUID

	runtime *Runtime[K, V]
	ledger  *ledger.Ledger
}

// Acquire returns a reference to the shared value of key from the Runtime's Store.
func (s *Session[K, V]) Acquire(ctx context.Context, key K, factory intern.Factory[V]) (*intern.Ref[K, V], error) {
	return s.runtime.store().GetOrCreate(ctx, key, factory)
}

// Apply authorizes req with the guard chain, and executes cmd on the session ledger when it is allowed.
// A denied request returns ErrDenied and cmd is not executed.
func (s *Session[K, V]) Apply(ctx context.Context, req Request[K], cmd *ledger.Command) error {
	req.Session = s.ID
	if req.Operation == "" && cmd != nil {
		req.Operation = cmd.Name
	}
	if err := s.runtime.authorize(ctx, req); err != nil {
		return err
	}
	return s.ledger.Execute(ctx, cmd)
}

func (s *Session[K, V]) Undo(ctx context.Context) (bool, error) {
	return s.ledger.Undo(ctx)
}

func (s *Session[K, V]) Redo(ctx context.Context) (bool, error) {
	return s.ledger.Redo(ctx)
}

// History lists the session's undoable commands, oldest first.
func (s *Session[K, V]) History() []ledger.Entry {
	return s.ledger.History()
}
