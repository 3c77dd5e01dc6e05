package exporters

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Sink receives gauge readings. Implementations shared across
// goroutines must synchronize themselves.
type Sink interface {
	Gauge(name string, value float64) error
}

type SinkFunc func(name string, value float64) error

func (fn SinkFunc) Gauge(name string, value float64) error {
	return fn(name, value)
}

// MultiSink delivers every gauge to each of its sinks. A failing or
// panicking sink does not keep the gauge from the others.
type MultiSink []Sink

func (ms MultiSink) Gauge(name string, value float64) error {
	var errs []error
	for _, s := range ms {
		if err := deliver(s, name, value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Report sends every numeric entry of flat to sink as a gauge and
// returns flat unchanged. Delivery is best effort: a failing or
// panicking sink only loses that one reading.
func Report(flat *FlatMetrics, sink Sink) *FlatMetrics {
	return report(flat, sink, log.Logger)
}

func report(flat *FlatMetrics, sink Sink, logger zerolog.Logger) *FlatMetrics {
	flat.Each(func(key string, v Value) {
		num, ok := numeric(v)
		if !ok {
			return
		}
		if err := deliver(sink, key, num); err != nil {
			logger.Debug().Err(err).Str("metric", key).Float64("value", num).Msg("gauge delivery failed")
		}
	})
	return flat
}

func deliver(sink Sink, key string, value float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return sink.Gauge(key, value)
}

// numeric coerces a leaf to a finite float. Booleans are not numeric;
// strings are numeric when they parse as a float after trimming.
func numeric(v Value) (float64, bool) {
	var f float64
	switch v.Kind() {
	case KindNumber:
		f, _ = v.Float()
	case KindString:
		s, _ := v.Str()
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
