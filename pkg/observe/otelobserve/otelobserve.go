// Package otelobserve implements the observe hooks with the OpenTelemetry API.
//
//	meter := provider.Meter("sharedrt")
//	store := &intern.Store[string, *Glyph]{Metrics: otelobserve.NewMetrics(meter)}
package otelobserve

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"go.llib.dev/sharedrt/pkg/observe"
)

// Metrics maps observe.Metrics onto OpenTelemetry instruments:
//   - IncrementCounter -> Int64Counter
//   - RecordValue -> Float64Gauge
//
// Instruments are created on first use and reused afterwards.
type Metrics struct {
	meter metric.Meter

	mutex    sync.Mutex
	counters map[string]metric.Int64Counter
	gauges   map[string]metric.Float64Gauge
}

var _ observe.Metrics = (*Metrics)(nil)

func NewMetrics(meter metric.Meter) *Metrics {
	return &Metrics{
		meter:    meter,
		counters: make(map[string]metric.Int64Counter),
		gauges:   make(map[string]metric.Float64Gauge),
	}
}

func (m *Metrics) IncrementCounter(ctx context.Context, name string, labels map[string]string) {
	counter, ok := m.counter(name)
	if !ok {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(toAttributes(labels)...))
}

func (m *Metrics) RecordValue(ctx context.Context, name string, value float64, labels map[string]string) {
	gauge, ok := m.gauge(name)
	if !ok {
		return
	}
	gauge.Record(ctx, value, metric.WithAttributes(toAttributes(labels)...))
}

func (m *Metrics) counter(name string) (metric.Int64Counter, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if c, ok := m.counters[name]; ok {
		return c, true
	}
	c, err := m.meter.Int64Counter(name, metric.WithDescription("sharedrt operation counter"))
	if err != nil {
		return nil, false
	}
	m.counters[name] = c
	return c, true
}

func (m *Metrics) gauge(name string) (metric.Float64Gauge, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if g, ok := m.gauges[name]; ok {
		return g, true
	}
	g, err := m.meter.Float64Gauge(name, metric.WithDescription("sharedrt current value"))
	if err != nil {
		return nil, false
	}
	m.gauges[name] = g
	return g, true
}

// Tracer maps observe.Tracer onto an OpenTelemetry trace.Tracer.
type Tracer struct {
	tracer trace.Tracer
}

var _ observe.Tracer = Tracer{}

func NewTracer(tracer trace.Tracer) Tracer {
	return Tracer{tracer: tracer}
}

func (t Tracer) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, observe.Span) {
	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(toAttributes(attrs)...))
	return ctx, spanAdapter{span: span}
}

type spanAdapter struct {
	span trace.Span
}

func (s spanAdapter) AddAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

func (s spanAdapter) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}

func toAttributes(labels map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}
