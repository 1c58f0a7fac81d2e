package chain

import (
	"context"

	"go.llib.dev/frameless/pkg/logging"

	"go.llib.dev/sharedrt/pkg/observe"
)

// Builder is the setup phase of a Chain.
// Handlers can only be appended while building, and the built Chain no longer changes.
//
// Builder is not safe for concurrent use.
type Builder[Req, Res any] struct {
	Name    string
	Logger  *logging.Logger
	Metrics observe.Metrics
	Tracer  observe.Tracer

	handlers []Handler[Req, Res]
}

func (b *Builder[Req, Res]) Append(hs ...Handler[Req, Res]) *Builder[Req, Res] {
	b.handlers = append(b.handlers, hs...)
	return b
}

// AppendFunc appends a Link made from the claims predicate and the do function.
func (b *Builder[Req, Res]) AppendFunc(name string,
	claims func(ctx context.Context, req Req) bool,
	do func(ctx context.Context, req Req) (Res, error),
) *Builder[Req, Res] {
	return b.Append(Link[Req, Res]{Name: name, Claims: claims, Do: do})
}

func (b *Builder[Req, Res]) Len() int { return len(b.handlers) }

// Build returns a Chain holding a copy of the appended handlers.
// Appending to the Builder afterwards doesn't affect the built Chain.
func (b *Builder[Req, Res]) Build() *Chain[Req, Res] {
	c := New(b.handlers...)
	c.Name = b.Name
	c.Logger = b.Logger
	c.Metrics = b.Metrics
	c.Tracer = b.Tracer
	return c
}
