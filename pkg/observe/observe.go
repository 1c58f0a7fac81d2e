// Package observe defines the instrumentation hooks that the sharedrt components report to.
// The interfaces carry no dependency on any telemetry backend,
// see the otelobserve package for an OpenTelemetry implementation.
package observe

import "context"

// Metrics collects counters and current values.
type Metrics interface {
	IncrementCounter(ctx context.Context, name string, labels map[string]string)
	RecordValue(ctx context.Context, name string, value float64, labels map[string]string)
}

// Tracer starts spans around component operations.
type Tracer interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, Span)
}

type Span interface {
	AddAttribute(key, value string)
	// End finishes the span. A non-nil err marks the span as failed.
	End(err error)
}

// Metric names reported by the sharedrt components.
const (
	MetricInternLookups    = "sharedrt_intern_lookups_total"
	MetricInternEvictions  = "sharedrt_intern_evictions_total"
	MetricInternEntries    = "sharedrt_intern_entries"
	MetricChainDispatches  = "sharedrt_chain_dispatch_total"
	MetricLedgerOperations = "sharedrt_ledger_operations_total"
	MetricLedgerDepth      = "sharedrt_ledger_depth"
	MetricSessionDenials   = "sharedrt_session_denials_total"
)

type nopMetrics struct{}

func (nopMetrics) IncrementCounter(context.Context, string, map[string]string) {}
func (nopMetrics) RecordValue(context.Context, string, float64, map[string]string) {}

type nopTracer struct{}

func (nopTracer) StartSpan(ctx context.Context, _ string, _ map[string]string) (context.Context, Span) {
	return ctx, nopSpan{}
}

type nopSpan struct{}

func (nopSpan) AddAttribute(string, string) {}

func (nopSpan) End(error) {}

// MetricsOrNop returns m, or a Metrics that discards everything when m is nil.
func MetricsOrNop(m Metrics) Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}

// TracerOrNop returns t, or a Tracer that records nothing when t is nil.
func TracerOrNop(t Tracer) Tracer {
	if t == nil {
		return nopTracer{}
	}
	return t
}
