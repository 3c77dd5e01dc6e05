package exporters

import (
	"testing"
	"time"

	"github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memEmitter struct {
	batches [][]Datum
	closed  bool
}

func (em *memEmitter) Emit(data ...Datum) error {
	em.batches = append(em.batches, data)
	return nil
}

func (em *memEmitter) Close() error {
	em.closed = true
	return nil
}

func TestRegistrySink(t *testing.T) {
	reg := metrics.NewRegistry()
	sink := NewRegistrySink(reg)
	require.NoError(t, sink.Gauge("rtt.avg", 1.5))
	require.NoError(t, sink.Gauge("rtt.avg", 2.5))

	g, ok := reg.Get("rtt.avg").(metrics.GaugeFloat64)
	require.True(t, ok)
	assert.Equal(t, 2.5, g.Value())

	reg.Register("req", metrics.NewCounter())
	assert.Error(t, sink.Gauge("req", 1))
}

func TestReporterAutoReset(t *testing.T) {
	reg := metrics.NewRegistry()
	p, err := NewPipeline(NewRegistrySink(reg))
	require.NoError(t, err)
	em := &memEmitter{}
	rep, err := NewReporter(reg, time.Hour, WithEmitters(em), WithAutoReset(true),
		WithLabels("host", "node1", "client", "rdkafka#consumer-1"), WithLogfn(t.Logf))
	require.NoError(t, err)

	_, err = p.ProcessJSON([]byte(`{"brokers":{"b1":{"tx":3,"rx":4}}}`))
	require.NoError(t, err)
	rep.report()
	_, err = p.ProcessJSON([]byte(`{"brokers":{"b1":{"tx":5}}}`))
	require.NoError(t, err)
	require.NoError(t, rep.Close())

	require.Len(t, em.batches, 2)
	assert := assert.New(t)
	assert.Len(em.batches[0], 2)
	assert.Equal(map[string]string{"host": "node1", "client": "rdkafka#consumer-1"}, em.batches[0][0].Labels)
	require.Len(t, em.batches[1], 1)
	assert.Equal("brokers.b1.tx", em.batches[1][0].Name)
	assert.Equal(5.0, em.batches[1][0].Fields["gauge"])
	assert.True(em.closed)
	// closing twice is harmless
	assert.NoError(rep.Close())
}

// lateRegistry runs arrive right after a poll walked its metrics.
type lateRegistry struct {
	metrics.Registry
	arrive func()
}

func (r *lateRegistry) Each(fn func(string, interface{})) {
	r.Registry.Each(fn)
	r.arrive()
}

func TestReporterAutoResetKeepsLateGauges(t *testing.T) {
	base := metrics.NewRegistry()
	sink := NewRegistrySink(base)
	arrived := false
	reg := &lateRegistry{Registry: base, arrive: func() {
		if !arrived {
			arrived = true
			require.NoError(t, sink.Gauge("brokers.b1.rx", 9))
		}
	}}
	em := &memEmitter{}
	rep, err := NewReporter(reg, time.Hour, WithEmitters(em), WithAutoReset(true), WithLogfn(t.Logf))
	require.NoError(t, err)

	require.NoError(t, sink.Gauge("brokers.b1.tx", 3))
	rep.report()
	require.NoError(t, rep.Close())

	require.Len(t, em.batches, 2)
	require.Len(t, em.batches[0], 1)
	assert.Equal(t, "brokers.b1.tx", em.batches[0][0].Name)
	require.Len(t, em.batches[1], 1)
	assert.Equal(t, "brokers.b1.rx", em.batches[1][0].Name)
}

func TestNewReporterValidation(t *testing.T) {
	reg := metrics.NewRegistry()
	_, err := NewReporter(reg, time.Second)
	assert.Error(t, err)
	_, err = NewReporter(reg, 0, WithEmitters(&memEmitter{}))
	assert.Error(t, err)
	_, err = NewReporter(nil, time.Second, WithEmitters(&memEmitter{}))
	assert.Error(t, err)
	rep, err := NewReporter(reg, 0, WithEmitters(&memEmitter{}), WithPollInterval(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, time.Minute, rep.interval)
	assert.Panics(t, func() { WithLabels("odd") })
}
