package exporters

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Pipeline turns raw statistics snapshots into gauges: flatten, filter,
// then report to a sink. It holds no per-snapshot state and may be
// shared by concurrent callers when its sink allows that.
type Pipeline struct {
	sink       Sink
	filter     Filter
	unfiltered bool
	logger     zerolog.Logger
	keep       func(*FlatMetrics) *FlatMetrics
}

type Option func(*Pipeline)

// Keep only metrics with a segment matched by f. A nil filter fails
// pipeline construction.
func WithFilter(f Filter) Option {
	return func(p *Pipeline) {
		p.filter = f
		p.unfiltered = false
	}
}

// Keep only metrics with a segment in names.
func WithWhitelist(names ...string) Option {
	if len(names) == 0 {
		return WithFilter(nil)
	}
	return WithFilter(NewWhitelist(names...))
}

// Report every numeric metric. The blacklist is not applied either.
func WithoutFilter() Option {
	return func(p *Pipeline) {
		p.filter = nil
		p.unfiltered = true
	}
}

// Logger for delivery failures, default to zerolog's global logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// NewPipeline builds a pipeline reporting to sink. Without options it
// filters with DefaultWhitelist. Invalid options return an error
// wrapping ErrConfiguration.
func NewPipeline(sink Sink, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		sink:   sink,
		filter: DefaultWhitelist,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	if sink == nil {
		return nil, configErrorf("a sink is required")
	}
	if p.unfiltered {
		p.keep = func(flat *FlatMetrics) *FlatMetrics { return flat }
		return p, nil
	}
	if p.filter == nil {
		return nil, configErrorf("filter must be set, use WithoutFilter to disable filtering")
	}
	if fn, ok := p.filter.(FilterFunc); ok && fn == nil {
		return nil, configErrorf("filter func is nil")
	}
	filter := p.filter
	p.keep = func(flat *FlatMetrics) *FlatMetrics { return FilterKeys(flat, filter) }
	return p, nil
}

// Process flattens, filters and reports one snapshot, returning the
// metrics that were offered to the sink. The only error is a
// *DecodeError from a malformed wrapped message.
func (p *Pipeline) Process(snapshot Value) (*FlatMetrics, error) {
	flat, err := Flatten(snapshot)
	if err != nil {
		return nil, err
	}
	return report(p.keep(flat), p.sink, p.logger), nil
}

// ProcessJSON decodes a JSON snapshot, raw or message-wrapped, and
// processes it.
func (p *Pipeline) ProcessJSON(data []byte) (*FlatMetrics, error) {
	snapshot, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return p.Process(snapshot)
}
