package exporters

import (
	"fmt"

	"github.com/rcrowley/go-metrics"
)

// RegistrySink stores gauges in a go-metrics registry, where a Reporter
// picks them up on its next poll.
type RegistrySink struct {
	registry metrics.Registry
}

func NewRegistrySink(registry metrics.Registry) *RegistrySink {
	return &RegistrySink{registry: registry}
}

func (rs *RegistrySink) Gauge(name string, value float64) error {
	metric := rs.registry.GetOrRegister(name, metrics.NewGaugeFloat64)
	gauge, ok := metric.(metrics.GaugeFloat64)
	if !ok {
		return fmt.Errorf("metric %s is registered as %T, not a float gauge", name, metric)
	}
	gauge.Update(value)
	return nil
}
