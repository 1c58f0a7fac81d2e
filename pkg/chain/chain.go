// Package chain implements an ordered dispatch chain.
//
// A request is offered to each Handler in turn.
// The first Handler that claims it processes it, and the rest of the chain is not consulted.
package chain

import (
	"context"
	"fmt"
	"strconv"

	"go.llib.dev/frameless/pkg/logger"
	"go.llib.dev/frameless/pkg/logging"

	"go.llib.dev/sharedrt/pkg/observe"
)

// Handler is a single step of a Chain.
//
// CanHandle must be free of side effects, since it is consulted for every request passing by.
type Handler[Req, Res any] interface {
	CanHandle(ctx context.Context, req Req) bool
	Process(ctx context.Context, req Req) (Res, error)
}

// Named is an optional interface for a Handler to report its name in an Outcome, logs and metrics.
type Named interface {
	HandlerName() string
}

// Outcome is the result of a dispatch.
type Outcome[Res any] struct {
	// Handled tells whether any Handler claimed the request.
	Handled bool
	// Result is the claiming Handler's result.
	Result Res
	// Handler is the name of the claiming Handler.
	Handler string
	// Position is the index of the claiming Handler in the Chain.
	// It is -1 when the request was not handled.
	Position int
}

// Chain is an immutable, ordered list of Handlers.
//
// Chain is safe for concurrent use, as long as its Handlers are.
type Chain[Req, Res any] struct {
	// Name [optional] labels the chain in logs, metrics and traces.
	Name string
	// Logger [optional]
	//
	// default: the package level logger
	Logger *logging.Logger
	// Metrics [optional] counts dispatch outcomes.
	Metrics observe.Metrics
	// Tracer [optional] wraps every dispatch in a span.
	Tracer observe.Tracer

	handlers []Handler[Req, Res]
	names    []string
}

// New assembles a Chain from handlers, in the given order.
// Nil handlers are left out.
func New[Req, Res any](handlers ...Handler[Req, Res]) *Chain[Req, Res] {
	c := &Chain[Req, Res]{
		handlers: make([]Handler[Req, Res], 0, len(handlers)),
		names:    make([]string, 0, len(handlers)),
	}
	for _, h := range handlers {
		if h == nil {
			continue
		}
		c.names = append(c.names, nameOf(h, len(c.handlers)))
		c.handlers = append(c.handlers, h)
	}
	return c
}

// Handle dispatches req along the chain.
//
// An unclaimed request is not an error, it yields an Outcome where Handled is false.
// The returned error is always the claiming Handler's own Process error.
func (c *Chain[Req, Res]) Handle(ctx context.Context, req Req) (Outcome[Res], error) {
	ctx, span := observe.TracerOrNop(c.Tracer).StartSpan(ctx, "chain.handle", map[string]string{"chain": c.Name})

	for i, h := range c.handlers {
		if !h.CanHandle(ctx, req) {
			continue
		}
		name := c.names[i]
		span.AddAttribute("chain.handler", name)
		span.AddAttribute("chain.position", strconv.Itoa(i))
		c.debug(ctx, "request claimed", logging.Field("handler", name), logging.Field("position", i))

		res, err := h.Process(ctx, req)
		if err != nil {
			c.count(ctx, "failure", name)
			span.End(err)
			return Outcome[Res]{Handled: true, Handler: name, Position: i}, err
		}
		c.count(ctx, "handled", name)
		span.End(nil)
		return Outcome[Res]{Handled: true, Result: res, Handler: name, Position: i}, nil
	}

	c.debug(ctx, "request left unhandled", logging.Field("handlers", len(c.handlers)))
	c.count(ctx, "unhandled", "")
	span.End(nil)
	return Outcome[Res]{Position: -1}, nil
}

func (c *Chain[Req, Res]) Len() int {
	if c == nil {
		return 0
	}
	return len(c.handlers)
}

// Names lists the handler names in dispatch order.
func (c *Chain[Req, Res]) Names() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.names...)
}

func (c *Chain[Req, Res]) count(ctx context.Context, outcome, handler string) {
	observe.MetricsOrNop(c.Metrics).IncrementCounter(ctx, observe.MetricChainDispatches, map[string]string{
		"chain":   c.Name,
		"outcome": outcome,
		"handler": handler,
	})
}

func (c *Chain[Req, Res]) debug(ctx context.Context, msg string, ds ...logging.Detail) {
	ds = append(ds, logging.Field("chain", c.Name))
	if c.Logger != nil {
		c.Logger.Debug(ctx, msg, ds...)
		return
	}
	logger.Debug(ctx, msg, ds...)
}

func nameOf(h any, position int) string {
	if n, ok := h.(Named); ok && n.HandlerName() != "" {
		return n.HandlerName()
	}
	if s, ok := h.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T#%d", h, position)
}

// Link is the struct form of a Handler.
// A Link without Claims never claims a request.
type Link[Req, Res any] struct {
	Name   string
	Claims func(ctx context.Context, req Req) bool
	Do     func(ctx context.Context, req Req) (Res, error)
}

func (l Link[Req, Res]) CanHandle(ctx context.Context, req Req) bool {
	return l.Claims != nil && l.Do != nil && l.Claims(ctx, req)
}

func (l Link[Req, Res]) Process(ctx context.Context, req Req) (Res, error) {
	return l.Do(ctx, req)
}

func (l Link[Req, Res]) HandlerName() string { return l.Name }
