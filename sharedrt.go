// Package sharedrt ties the runtime building blocks together.
//
// A Runtime owns the process wide interning Store and the guard Chain
// that authorizes mutations. Each user session gets its own Session,
// which executes the session's commands on a private undo Ledger.
//
// The building blocks are usable on their own as well:
//   - pkg/intern: canonical instances shared by key
//   - pkg/lazy: deferred, construct once values
//   - pkg/chain: ordered dispatch where the first claiming handler wins
//   - pkg/ledger: undoable command history
package sharedrt

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.llib.dev/frameless/pkg/errorkit"
	"go.llib.dev/frameless/pkg/logger"
	"go.llib.dev/frameless/pkg/logging"

	"go.llib.dev/sharedrt/pkg/chain"
	"go.llib.dev/sharedrt/pkg/intern"
	"go.llib.dev/sharedrt/pkg/ledger"
	"go.llib.dev/sharedrt/pkg/observe"
)

const ErrDenied errorkit.Error = "sharedrt: request denied"

// Request describes a mutation that the guard chain has to authorize.
type Request[K comparable] struct {
	// Session is the ID of the requesting session.
	Session uuid.UUID
	// Key is the shared resource the mutation touches.
	Key K
	// Operation names the mutation, usually the command's name.
	Operation string
}

// Verdict is the guard chain's answer to a Request.
type Verdict struct {
	Allow  bool
	Reason string
}

// Guards is the chain that authorizes session mutations.
type Guards[K comparable] = chain.Chain[Request[K], Verdict]

// Runtime is the process scoped part of sharedrt.
// Its zero value is ready to use, and its Sessions may run on separate goroutines.
type Runtime[K comparable, V any] struct {
	// Store [optional] is shared by every Session.
	// The zero value Runtime creates one on first use.
	Store *intern.Store[K, V]
	// Guards [optional] authorizes every Session.Apply.
	Guards *Guards[K]
	// DenyUnhandled makes a request that no guard claimed denied.
	// By default such requests are allowed.
	DenyUnhandled bool
	// Logger [optional]
	//
	// default: the package level logger
	Logger  *logging.Logger
	Metrics observe.Metrics
	Tracer  observe.Tracer

	mutex sync.Mutex
}

// New builds a Runtime from the configuration.
func New[K comparable, V any](cfg Config) *Runtime[K, V] {
	return &Runtime[K, V]{
		Store: &intern.Store[K, V]{
			Name:             "sharedrt",
			Capacity:         cfg.StoreCapacity,
			TTL:              cfg.StoreTTL,
			ReleaseOnLastRef: cfg.StoreReleaseOnLastRef,
		},
		DenyUnhandled: cfg.DenyUnhandled,
	}
}

// NewSession starts a Session with a ledger of its own.
func (rt *Runtime[K, V]) NewSession() *Session[K, V] {
	id := uuid.New()
	return &Session[K, V]{
		ID:      id,
		runtime: rt,
		ledger: &ledger.Ledger{
			Name:    id.String(),
			Logger:  rt.Logger,
			Metrics: rt.Metrics,
			Tracer:  rt.Tracer,
		},
	}
}

// Close tears down the shared store.
func (rt *Runtime[K, V]) Close(ctx context.Context) error {
	rt.mutex.Lock()
	store := rt.Store
	rt.mutex.Unlock()
	if store == nil {
		return nil
	}
	return store.Close(ctx)
}

func (rt *Runtime[K, V]) store() *intern.Store[K, V] {
	rt.mutex.Lock()
	defer rt.mutex.Unlock()
	if rt.Store == nil {
		rt.Store = &intern.Store[K, V]{Name: "sharedrt"}
	}
	return rt.Store
}

func (rt *Runtime[K, V]) authorize(ctx context.Context, req Request[K]) error {
	if rt.Guards == nil {
		return nil
	}
	out, err := rt.Guards.Handle(ctx, req)
	if err != nil {
		return err
	}
	switch {
	case !out.Handled && rt.DenyUnhandled:
		return rt.deny(ctx, req, "", "no guard claimed the request")
	case out.Handled && !out.Result.Allow:
		return rt.deny(ctx, req, out.Handler, out.Result.Reason)
	default:
		return nil
	}
}

func (rt *Runtime[K, V]) deny(ctx context.Context, req Request[K], guard, reason string) error {
	observe.MetricsOrNop(rt.Metrics).IncrementCounter(ctx, observe.MetricSessionDenials, map[string]string{
		"guard":     guard,
		"operation": req.Operation,
	})
	ds := []logging.Detail{
		logging.Field("session", req.Session.String()),
		logging.Field("operation", req.Operation),
		logging.Field("guard", guard),
		logging.Field("reason", reason),
	}
	if rt.Logger != nil {
		rt.Logger.Info(ctx, "request denied", ds...)
	} else {
		logger.Info(ctx, "request denied", ds...)
	}
	if reason == "" {
		return ErrDenied
	}
	return ErrDenied.F("%s", reason)
}
