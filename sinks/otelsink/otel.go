// Package otelsink records pipeline gauges as OpenTelemetry synchronous
// gauges.
package otelsink

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Sink creates one Float64Gauge per metric key and caches it. Keys are
// used as instrument names unchanged, dots are valid there.
type Sink struct {
	meter  metric.Meter
	record []metric.RecordOption

	mu     sync.RWMutex
	gauges map[string]metric.Float64Gauge
}

type Option func(*Sink)

// Attributes recorded with every measurement.
func WithAttributes(attrs ...attribute.KeyValue) Option {
	return func(s *Sink) {
		s.record = append(s.record, metric.WithAttributes(attrs...))
	}
}

func NewSink(meter metric.Meter, opts ...Option) *Sink {
	s := &Sink{
		meter:  meter,
		gauges: make(map[string]metric.Float64Gauge),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Gauge records value on the instrument for name. The SDK rejects some
// keys as instrument names, such as those starting with a digit, yet
// still hands back a working instrument: the reading is recorded and the
// name error is returned on first use only.
func (s *Sink) Gauge(name string, value float64) error {
	g, err := s.gauge(name)
	if g == nil {
		return err
	}
	g.Record(context.Background(), value, s.record...)
	return err
}

func (s *Sink) gauge(name string) (metric.Float64Gauge, error) {
	s.mu.RLock()
	g, ok := s.gauges[name]
	s.mu.RUnlock()
	if ok {
		return g, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Double-check after acquiring write lock
	if g, ok = s.gauges[name]; ok {
		return g, nil
	}
	g, err := s.meter.Float64Gauge(name, metric.WithDescription("librdkafka statistic"))
	if g == nil {
		return nil, fmt.Errorf("failed to create gauge %s: %w", name, err)
	}
	s.gauges[name] = g
	if err != nil {
		return g, fmt.Errorf("gauge %s: %w", name, err)
	}
	return g, nil
}
