// Package statsd writes pipeline gauges as statsd gauge datagrams.
package statsd

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/smira/go-statsd"
)

// Sink sends "<prefix><name>:<value>|g" lines through a buffered statsd
// client. Negative values are sent as a reset to zero followed by the
// value, so daemons do not read them as deltas. Safe for concurrent use.
type Sink struct {
	prefix        string
	flushInterval time.Duration
	logger        *zerolog.Logger
	client        *statsd.Client
}

type Option func(*Sink)

// Prefix prepended to every metric name, a trailing dot is added when
// missing.
func WithPrefix(prefix string) Option {
	return func(s *Sink) {
		if prefix != "" && !strings.HasSuffix(prefix, ".") {
			prefix += "."
		}
		s.prefix = prefix
	}
}

// How long gauges are buffered before a datagram is sent, default to
// 100ms.
func WithFlushInterval(du time.Duration) Option {
	return func(s *Sink) {
		s.flushInterval = du
	}
}

// Logger for send errors, default to the client's stderr logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Sink) {
		s.logger = &logger
	}
}

// Dial creates a sink sending to a statsd daemon at addr, such as
// "127.0.0.1:8125".
func Dial(addr string, opts ...Option) (*Sink, error) {
	if _, err := net.ResolveUDPAddr("udp", addr); err != nil {
		return nil, fmt.Errorf("resolve statsd %s: %w", addr, err)
	}
	s := &Sink{flushInterval: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(s)
	}
	clientOpts := []statsd.Option{
		statsd.MetricPrefix(s.prefix),
		statsd.FlushInterval(s.flushInterval),
	}
	if s.logger != nil {
		clientOpts = append(clientOpts, statsd.Logger(s.logger))
	}
	s.client = statsd.NewClient(addr, clientOpts...)
	return s, nil
}

// statsd names use ':' '|' and '@' as separators
var nameEscaper = strings.NewReplacer(":", "_", "|", "_", "@", "_", "\n", "_")

// Gauge buffers the reading; delivery errors surface in the logger only.
func (s *Sink) Gauge(name string, value float64) error {
	s.client.FGauge(nameEscaper.Replace(name), value)
	return nil
}

// Close flushes buffered gauges and closes the socket.
func (s *Sink) Close() error {
	return s.client.Close()
}
