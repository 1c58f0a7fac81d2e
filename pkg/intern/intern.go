// Package intern canonicalises immutable values by their key.
//
// A Store hands out a shared instance for every key instead of allocating duplicates.
// Callers hold counted references to the shared value,
// and the Store's eviction policy decides what happens to a value once nobody references it.
// By default nothing is ever evicted, and values live as long as the Store itself.
package intern

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"go.llib.dev/frameless/pkg/errorkit"
	"go.llib.dev/frameless/pkg/logger"
	"go.llib.dev/frameless/pkg/logging"
	"go.llib.dev/testcase/clock"

	"go.llib.dev/sharedrt/internal/keylock"
	"go.llib.dev/sharedrt/pkg/observe"
)

const (
	ErrConstructionFailure errorkit.Error = "intern: construction failed"
	ErrClosed              errorkit.Error = "intern: store is closed"
)

// Factory builds the value for a key.
// It must be deterministic for a given key.
type Factory[V any] func(ctx context.Context) (V, error)

// Store is a process-scoped interning cache.
// Its zero value is ready to use and retains every value until Close.
//
// Store is safe for concurrent use.
// Concurrent requests for the same missing key run the Factory only once,
// while requests for different keys never wait on each other's Factory.
type Store[K comparable, V any] struct {
	// Name [optional] labels the store in logs and metrics.
	Name string
	// Capacity [optional] bounds the number of entries.
	// When exceeded, the least recently used unreferenced entries are evicted.
	// Referenced entries are never evicted, so the store may stay above Capacity while they are in use.
	//
	// default: unbounded
	Capacity int
	// TTL [optional] evicts unreferenced entries which stayed idle for longer than TTL.
	// Expired entries are swept on store access or with Sweep.
	//
	// default: no expiry
	TTL time.Duration
	// ReleaseOnLastRef [optional] evicts an entry as soon as its last reference is released.
	ReleaseOnLastRef bool
	// OnEvict [optional] is called for every value leaving the store, including on Close.
	// It is never called while the store's internal lock is held.
	OnEvict func(ctx context.Context, key K, value V) error
	// Logger [optional] is used for debug and warning logs.
	//
	// default: the package level logger
	Logger *logging.Logger
	// Metrics [optional] receives lookup, eviction and size measurements.
	Metrics observe.Metrics

	keys keylock.Factory[K]

	m       sync.Mutex
	entries map[K]*entry[K, V]
	idle    list.List // unreferenced entries, least recently released first
	closed  bool
}

type entry[K comparable, V any] struct {
	key       K
	value     V
	refs      int
	idleSince time.Time
	elem      *list.Element
	evicted   bool
}

// GetOrCreate returns a reference to the shared value of key.
// On a miss, factory is called exactly once and its result is stored under key.
// A failing factory caches nothing, and the key stays eligible for a retry.
func (s *Store[K, V]) GetOrCreate(ctx context.Context, key K, factory Factory[V]) (*Ref[K, V], error) {
	if ref, ok, err := s.lookup(ctx, key); err != nil || ok {
		return ref, err
	}

	unlock := s.keys.Lock(key)
	defer unlock()

	// another caller may have won the construction while we waited on the key
	if ref, ok, err := s.lookup(ctx, key); err != nil || ok {
		return ref, err
	}

	if factory == nil {
		return nil, ErrConstructionFailure.F("no factory given for %v", key)
	}

	value, err := factory(ctx)
	if err != nil {
		s.count(ctx, observe.MetricInternLookups, "failure")
		s.debug(ctx, "intern factory failed", logging.Field("key", fmt.Sprint(key)), logging.ErrField(err))
		return nil, ErrConstructionFailure.Wrap(err)
	}
	s.count(ctx, observe.MetricInternLookups, "miss")

	ref, evicted, err := s.insert(key, value)
	if err != nil {
		// the store was closed while the factory ran
		evicted = append(evicted, &entry[K, V]{key: key, value: value})
	}
	s.dispose(ctx, evicted)
	return ref, err
}

// Lookup returns a reference to the value of key when it is already interned.
func (s *Store[K, V]) Lookup(ctx context.Context, key K) (*Ref[K, V], bool) {
	ref, ok, err := s.lookup(ctx, key)
	if err != nil {
		return nil, false
	}
	return ref, ok
}

func (s *Store[K, V]) lookup(ctx context.Context, key K) (*Ref[K, V], bool, error) {
	s.m.Lock()
	if s.closed {
		s.m.Unlock()
		return nil, false, ErrClosed
	}
	expired := s.expired()
	e, ok := s.entries[key]
	if ok {
		s.pin(e)
	}
	s.m.Unlock()

	s.dispose(ctx, expired)
	if !ok {
		return nil, false, nil
	}
	s.count(ctx, observe.MetricInternLookups, "hit")
	return &Ref[K, V]{store: s, entry: e}, true, nil
}

func (s *Store[K, V]) insert(key K, value V) (*Ref[K, V], []*entry[K, V], error) {
	s.m.Lock()
	defer s.m.Unlock()
	if s.closed {
		return nil, nil, ErrClosed
	}
	if s.entries == nil {
		s.entries = make(map[K]*entry[K, V])
	}
	e := &entry[K, V]{key: key, value: value, refs: 1}
	s.entries[key] = e
	return &Ref[K, V]{store: s, entry: e}, s.overflow(), nil
}

// Sweep evicts the entries whose TTL expired, and reports how many were evicted.
func (s *Store[K, V]) Sweep(ctx context.Context) int {
	s.m.Lock()
	expired := s.expired()
	s.m.Unlock()
	s.dispose(ctx, expired)
	return len(expired)
}

// Len returns the number of interned values.
func (s *Store[K, V]) Len() int {
	s.m.Lock()
	defer s.m.Unlock()
	return len(s.entries)
}

// Keys returns the currently interned keys in no particular order.
func (s *Store[K, V]) Keys() []K {
	s.m.Lock()
	defer s.m.Unlock()
	keys := make([]K, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}

// Refs reports the number of live references to the value of key.
func (s *Store[K, V]) Refs(key K) int {
	s.m.Lock()
	defer s.m.Unlock()
	if e, ok := s.entries[key]; ok {
		return e.refs
	}
	return 0
}

// Close tears the store down and releases every value, referenced or not.
// References obtained earlier keep returning their value, but the store no longer tracks them.
func (s *Store[K, V]) Close(ctx context.Context) error {
	s.m.Lock()
	if s.closed {
		s.m.Unlock()
		return nil
	}
	s.closed = true
	all := make([]*entry[K, V], 0, len(s.entries))
	for _, e := range s.entries {
		s.remove(e)
		all = append(all, e)
	}
	s.m.Unlock()

	var errs []error
	for _, e := range all {
		errs = append(errs, s.onEvict(ctx, e))
	}
	s.gauge(ctx, 0)
	return errorkit.Merge(errs...)
}

// unpin must be called by Ref only.
func (s *Store[K, V]) unpin(e *entry[K, V]) {
	s.m.Lock()
	e.refs--
	if e.refs > 0 || e.evicted {
		s.m.Unlock()
		return
	}
	var evicted []*entry[K, V]
	if s.ReleaseOnLastRef {
		s.remove(e)
		evicted = append(evicted, e)
	} else {
		e.idleSince = clock.Now()
		e.elem = s.idle.PushBack(e)
		evicted = s.overflow()
	}
	s.m.Unlock()
	s.dispose(context.Background(), evicted)
}

// pin must be called while s.m is held.
func (s *Store[K, V]) pin(e *entry[K, V]) {
	if e.elem != nil {
		s.idle.Remove(e.elem)
		e.elem = nil
	}
	e.refs++
}

// remove must be called while s.m is held.
func (s *Store[K, V]) remove(e *entry[K, V]) {
	delete(s.entries, e.key)
	if e.elem != nil {
		s.idle.Remove(e.elem)
		e.elem = nil
	}
	e.evicted = true
}

// overflow must be called while s.m is held.
func (s *Store[K, V]) overflow() []*entry[K, V] {
	var evicted []*entry[K, V]
	for s.Capacity > 0 && len(s.entries) > s.Capacity {
		front := s.idle.Front()
		if front == nil {
			break
		}
		e := front.Value.(*entry[K, V])
		s.remove(e)
		evicted = append(evicted, e)
	}
	return evicted
}

// expired must be called while s.m is held.
func (s *Store[K, V]) expired() []*entry[K, V] {
	if s.TTL <= 0 {
		return nil
	}
	var (
		evicted []*entry[K, V]
		now     = clock.Now()
	)
	for front := s.idle.Front(); front != nil; front = s.idle.Front() {
		e := front.Value.(*entry[K, V])
		if now.Sub(e.idleSince) < s.TTL {
			break
		}
		s.remove(e)
		evicted = append(evicted, e)
	}
	return evicted
}

func (s *Store[K, V]) dispose(ctx context.Context, evicted []*entry[K, V]) {
	if len(evicted) == 0 {
		return
	}
	for _, e := range evicted {
		s.count(ctx, observe.MetricInternEvictions, "evicted")
		if err := s.onEvict(ctx, e); err != nil {
			s.warn(ctx, "intern OnEvict hook failed",
				logging.Field("key", fmt.Sprint(e.key)),
				logging.ErrField(err))
		}
	}
	s.gauge(ctx, s.Len())
}

func (s *Store[K, V]) onEvict(ctx context.Context, e *entry[K, V]) error {
	s.debug(ctx, "intern entry released", logging.Field("key", fmt.Sprint(e.key)))
	if s.OnEvict == nil {
		return nil
	}
	return s.OnEvict(ctx, e.key, e.value)
}

func (s *Store[K, V]) count(ctx context.Context, name, result string) {
	observe.MetricsOrNop(s.Metrics).IncrementCounter(ctx, name, map[string]string{
		"store":  s.Name,
		"result": result,
	})
}

func (s *Store[K, V]) gauge(ctx context.Context, n int) {
	observe.MetricsOrNop(s.Metrics).RecordValue(ctx, observe.MetricInternEntries, float64(n), map[string]string{
		"store": s.Name,
	})
}

func (s *Store[K, V]) debug(ctx context.Context, msg string, ds ...logging.Detail) {
	ds = append(ds, logging.Field("store", s.Name))
	if s.Logger != nil {
		s.Logger.Debug(ctx, msg, ds...)
		return
	}
	logger.Debug(ctx, msg, ds...)
}

func (s *Store[K, V]) warn(ctx context.Context, msg string, ds ...logging.Detail) {
	ds = append(ds, logging.Field("store", s.Name))
	if s.Logger != nil {
		s.Logger.Warn(ctx, msg, ds...)
		return
	}
	logger.Warn(ctx, msg, ds...)
}

// Ref is a counted reference to an interned value.
// Two references obtained for equal keys share the very same value.
type Ref[K comparable, V any] struct {
	store    *Store[K, V]
	entry    *entry[K, V]
	released sync.Once
}

func (r *Ref[K, V]) Key() K { return r.entry.key }

func (r *Ref[K, V]) Value() V { return r.entry.value }

// Same reports whether both references point to the same interned value.
func (r *Ref[K, V]) Same(oth *Ref[K, V]) bool {
	return r != nil && oth != nil && r.entry == oth.entry
}

// Release drops this reference. Calling it more than once has no further effect.
// The value itself stays valid for the holder, but the store may evict it once it is unreferenced.
func (r *Ref[K, V]) Release() {
	r.released.Do(func() { r.store.unpin(r.entry) })
}

func (r *Ref[K, V]) String() string {
	return fmt.Sprintf("intern.Ref(%v)", r.entry.key)
}
