package exporters

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadSnapshot(t *testing.T, name string) Value {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	v, err := Decode(data)
	require.NoError(t, err)
	return v
}

func TestSanitize(t *testing.T) {
	cases := []struct {
		in, out string
	}{
		{"ana", "ana"},
		{"bad:key", "bad_key"},
		{"rx.ver/drops", "rx_ver_drops"},
		{"a;b:c.d/e", "a_b_c_d_e"},
		{"localhost:9092/bootstrap", "localhost_9092_bootstrap"},
		{"-1", "-1"},
		{"", ""},
		{"::", "__"},
	}
	assert := assert.New(t)
	for _, tc := range cases {
		out := Sanitize(tc.in)
		assert.Equal(tc.out, out, tc.in)
		assert.Equal(out, Sanitize(out), "idempotent for %q", tc.in)
		assert.False(strings.ContainsAny(out, ":.;/"), tc.in)
	}
}

func TestFlattenNonComposite(t *testing.T) {
	for _, v := range []Value{Null(), String("hola"), Number(42), Bool(true)} {
		flat, err := Flatten(v)
		require.NoError(t, err, v.String())
		assert.Equal(t, 0, flat.Len(), v.String())
	}
}

func TestFlattenEmptyComposites(t *testing.T) {
	flat, err := Flatten(Object())
	require.NoError(t, err)
	assert.Equal(t, 0, flat.Len())

	v, err := Decode([]byte(`{"toppars":{},"list":[],"nested":{"a":{"b":[]}},"gone":null}`))
	require.NoError(t, err)
	flat, err = Flatten(v)
	require.NoError(t, err)
	assert.Equal(t, 0, flat.Len())
}

func TestFlattenKeysAndOrder(t *testing.T) {
	v, err := Decode([]byte(`{
		"pepe": {"pepe": 45, "ana": 23, "bad:key": "bad!"},
		"ana": 63,
		"list": [1, {"x": true}, [7]],
		"bad:ana": "hola!"
	}`))
	require.NoError(t, err)
	flat, err := Flatten(v)
	require.NoError(t, err)

	assert := assert.New(t)
	assert.Equal([]string{
		"pepe.pepe", "pepe.ana", "pepe.bad_key",
		"ana",
		"list.0", "list.1.x", "list.2.0",
		"bad_ana",
	}, flat.Keys())
	assert.Equal(map[string]any{
		"pepe.pepe":    45.0,
		"pepe.ana":     23.0,
		"pepe.bad_key": "bad!",
		"ana":          63.0,
		"list.0":       1.0,
		"list.1.x":     true,
		"list.2.0":     7.0,
		"bad_ana":      "hola!",
	}, flat.Map())
}

func TestFlattenWrappedMessage(t *testing.T) {
	inner := `{"pepe":{"pepe":45,"ana":23,"juanito":45,"bad:key":"bad!"},"ana":63,"juanito":45,"bad:ana":"hola!"}`
	wrapped := Object(Field{Key: "message", Value: String(inner)})

	flat, err := Flatten(wrapped)
	require.NoError(t, err)
	assert := assert.New(t)
	assert.Equal(63.0, flat.Map()["ana"])
	assert.Equal(23.0, flat.Map()["pepe.ana"])
	assert.Equal(45.0, flat.Map()["juanito"])
	assert.Equal("hola!", flat.Map()["bad_ana"])
	assert.Equal("bad!", flat.Map()["pepe.bad_key"])
	_, ok := flat.Get("message")
	assert.False(ok)
}

func TestFlattenMessageNotString(t *testing.T) {
	flat, err := Flatten(Object(Field{Key: "message", Value: Number(3)}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"message": 3.0}, flat.Map())
}

func TestFlattenMalformedMessage(t *testing.T) {
	_, err := Flatten(Object(Field{Key: "message", Value: String("{not json")}))
	require.Error(t, err)
	var decodeErr *DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

func TestFlattenMessageOfLeaf(t *testing.T) {
	flat, err := Flatten(Object(Field{Key: "message", Value: String(`"hola"`)}))
	require.NoError(t, err)
	assert.Equal(t, 0, flat.Len())
}

func TestFlattenCollisionKeepsFirstPosition(t *testing.T) {
	v := Object(
		Field{Key: "a:b", Value: Number(1)},
		Field{Key: "c", Value: Number(2)},
		Field{Key: "a_b", Value: Number(3)},
	)
	flat, err := Flatten(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"a_b", "c"}, flat.Keys())
	got, _ := flat.Get("a_b")
	assert.Equal(t, Number(3), got)
}

func TestFlattenRealSnapshot(t *testing.T) {
	flat, err := Flatten(loadSnapshot(t, "consumer_stats.json"))
	require.NoError(t, err)

	assert := assert.New(t)
	m := flat.Map()
	assert.Equal(-1001.0, m["topics.test4.partitions.-1.lo_offset"])
	assert.Equal(-1001.0, m["topics.test4.partitions.0.lo_offset"])
	assert.Equal(6143.0, m["topics.test4.partitions.0.stored_offset"])
	assert.Equal("UP", m["brokers.mediawiki-vagrant_dev_9092_0.state"])
	assert.Equal(0.0, m["brokers.localhost_9092_bootstrap.rtt.avg"])
	assert.Equal(0.0, m["brokers.mediawiki-vagrant_dev_9092_0.toppars.test4.partition"])
	assert.Equal(false, m["topics.test4.partitions.0.unknown"])
	assert.Equal(100000.0, m["msg_max"])
	for _, key := range flat.Keys() {
		for _, segment := range strings.Split(key, Separator) {
			assert.Equal(Sanitize(segment), segment, key)
		}
	}
}

func TestFromAny(t *testing.T) {
	s := "boxed"
	v := FromAny(map[string]any{
		"b":   []any{1, "x", nil},
		"a":   &s,
		"z":   map[string]any{},
		"num": 2.5,
		"ok":  true,
	})
	flat, err := Flatten(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b.0", "b.1", "num", "ok"}, flat.Keys())
	assert.Equal(t, "boxed", flat.Map()["a"])
	assert.Equal(t, Null(), FromAny(struct{}{}))
}
