package exporters

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestFilterConfigOption(t *testing.T) {
	cases := []struct {
		doc     string
		keep    []string
		invalid bool
	}{
		{doc: `{}`, keep: []string{"brokers.b.rtt"}},
		{doc: `mode: default`, keep: []string{"brokers.b.rtt"}},
		{doc: `mode: " None "`, keep: []string{"brokers.b.rtt", "msg_max", "topics.t.partitions.-1.msgs"}},
		{doc: "mode: whitelist\nwhitelist: [msg_max]", keep: []string{"msg_max"}},
		{doc: `mode: whitelist`, invalid: true},
		{doc: "mode: default\nwhitelist: [rtt]", invalid: true},
		{doc: `mode: regexp`, invalid: true},
	}
	for _, tc := range cases {
		var conf FilterConfig
		require.NoError(t, yaml.Unmarshal([]byte(tc.doc), &conf), tc.doc)
		opt, err := conf.Option()
		if tc.invalid {
			assert.True(t, errors.Is(err, ErrConfiguration), tc.doc)
			continue
		}
		require.NoError(t, err, tc.doc)

		sink := &recordingSink{}
		p, err := NewPipeline(sink, opt)
		require.NoError(t, err, tc.doc)
		flat, err := p.ProcessJSON([]byte(`{"brokers":{"b":{"rtt":1}},"msg_max":2,"topics":{"t":{"partitions":{"-1":{"msgs":0}}}}}`))
		require.NoError(t, err)
		assert.Equal(t, tc.keep, flat.Keys(), tc.doc)
	}
}
