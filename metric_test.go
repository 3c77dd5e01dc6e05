package exporters

import (
	"testing"
	"time"

	"github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
)

func TestEncodeInfluxLine(t *testing.T) {
	cases := []struct {
		datum *Datum
		out   string
	}{
		{
			datum: &Datum{Name: "rtt", Type: TypeGauge, Time: time.Unix(1667123357, 0),
				Labels: map[string]string{"host": "localhost"},
				Fields: map[string]float64{"gauge": 1}},
			out: "rtt,host=localhost gauge=1 1667123357",
		},
		{
			datum: &Datum{Name: "req", Type: TypeCounter, Time: time.Unix(1667123357, 0),
				Labels: map[string]string{"region": "us-west-2", "host": "localhost"},
				Fields: map[string]float64{"max": 10, "count": 1}},
			out: "req,host=localhost,region=us-west-2 count=1,max=10 1667123357",
		},
		{
			// separators in names are escaped
			datum: &Datum{Name: "brokers.a b,c.rtt", Type: TypeGauge, Time: time.Unix(1667123357, 0),
				Labels: map[string]string{"k=1": "v 1"},
				Fields: map[string]float64{"gauge": 2.5}},
			out: `brokers.a\ b\,c.rtt,k\=1=v\ 1 gauge=2.5 1667123357`,
		},
	}
	assert := assert.New(t)
	for _, tc := range cases {
		line := tc.datum.EncodeInfluxLine("s")
		assert.Equal(tc.out, line)
	}
	ms := (&Datum{Name: "rtt", Time: time.UnixMilli(1667123357123), Fields: map[string]float64{"gauge": 1}}).EncodeInfluxLine("ms")
	assert.Equal("rtt gauge=1 1667123357123", ms)
}

func TestEncodePromLines(t *testing.T) {
	cases := []struct {
		datum *Datum
		out   string
	}{
		{
			datum: &Datum{Name: "req", Type: TypeCounter, Time: time.Unix(1667123357, 0),
				Labels: map[string]string{"host": "localhost"},
				Fields: map[string]float64{"count": 1}},
			out: `req_count{host="localhost"} 1 1667123357000`,
		},
		{
			datum: &Datum{Name: "req", Type: TypeCounter, Time: time.Unix(1667123357, 0),
				Labels: map[string]string{"host": "localhost", "region": "us-west-2"},
				Fields: map[string]float64{"max": 10, "count": 1}},
			out: `req_count{host="localhost",region="us-west-2"} 1 1667123357000
req_max{host="localhost",region="us-west-2"} 10 1667123357000`,
		},
		{
			datum: &Datum{Name: "topics.test4.partitions.0.lo_offset", Type: TypeGauge, Time: time.Unix(1667123357, 0),
				Fields: map[string]float64{"gauge": -1001}},
			out: `topics_test4_partitions_0_lo_offset_gauge -1001 1667123357000`,
		},
	}
	assert := assert.New(t)
	for _, tc := range cases {
		line := tc.datum.EncodePromLines()
		assert.Equal(tc.out, line)
	}
}

func TestPromName(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("topics_rx_ver_drops", PromName("topics.rx_ver_drops"))
	assert.Equal("topics_test4_partitions__1_lo_offset", PromName("topics.test4.partitions.-1.lo_offset"))
	assert.Equal("__rtt", PromName("0.rtt"))
	assert.Equal("broker:9092", PromName("broker:9092"))
	assert.Equal("", PromName(""))
}

func TestDatumFromMetric(t *testing.T) {
	assert := assert.New(t)
	now := time.Unix(1667123357, 0)

	g := metrics.NewGaugeFloat64()
	g.Update(2.5)
	d := DatumFromMetric("rtt.avg", g, now)
	assert.Equal(&Datum{Name: "rtt.avg", Type: TypeGauge, Time: now, Fields: map[string]float64{"gauge": 2.5}}, d)

	c := metrics.NewCounter()
	c.Inc(3)
	d = DatumFromMetric("req", c, now)
	assert.Equal(TypeCounter, d.Type)
	assert.Equal(3.0, d.Fields["count"])

	assert.Nil(DatumFromMetric("hist", metrics.NewHistogram(metrics.NewUniformSample(10)), now))
}
