// Package prom exposes pipeline gauges as prometheus gauges.
package prom

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	exporters "github.com/juvenn/rdkafka-exporters"
)

// Sink registers one prometheus gauge per metric key on first use.
// Keys are mapped with exporters.PromName, so "topics.rx_ver_drops"
// is exposed as "topics_rx_ver_drops". Keys that map to the same name
// update the same gauge. Safe for concurrent use.
type Sink struct {
	registerer  prometheus.Registerer
	namespace   string
	constLabels prometheus.Labels

	mu     sync.Mutex
	gauges map[string]prometheus.Gauge
}

type Option func(*Sink)

// Prefix every metric name with ns and an underscore.
func WithNamespace(ns string) Option {
	return func(s *Sink) {
		s.namespace = ns
	}
}

// Labels attached to every gauge.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(s *Sink) {
		s.constLabels = labels
	}
}

func NewSink(registerer prometheus.Registerer, opts ...Option) *Sink {
	s := &Sink{
		registerer: registerer,
		gauges:     make(map[string]prometheus.Gauge),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sink) Gauge(name string, value float64) error {
	g, err := s.gauge(name)
	if err != nil {
		return err
	}
	g.Set(value)
	return nil
}

func (s *Sink) gauge(name string) (prometheus.Gauge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.gauges[name]; ok {
		return g, nil
	}
	// keys mapping to the same name share one gauge, so Help is constant
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        exporters.PromName(prometheus.BuildFQName(s.namespace, "", name)),
		Help:        "librdkafka statistic",
		ConstLabels: s.constLabels,
	})
	if err := s.registerer.Register(g); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, fmt.Errorf("register gauge for %s: %w", name, err)
		}
		existing, ok := are.ExistingCollector.(prometheus.Gauge)
		if !ok {
			return nil, fmt.Errorf("metric for %s is registered as %T, not a gauge", name, are.ExistingCollector)
		}
		g = existing
	}
	s.gauges[name] = g
	return g, nil
}
