package exporters

import "strings"

// Separator joins path segments into a metric key.
const Separator = "."

// messageField holds a JSON-encoded snapshot when the transport wraps
// the payload instead of passing it through.
const messageField = "message"

var sanitizer = strings.NewReplacer(
	":", "_",
	".", "_",
	";", "_",
	"/", "_",
)

// Sanitize replaces the characters that would break a dotted metric
// key, namely ':', '.', ';' and '/', with '_'.
func Sanitize(segment string) string {
	return sanitizer.Replace(segment)
}

type Entry struct {
	Key   string
	Value Value
}

// FlatMetrics maps dotted keys to leaf values. Keys iterate in the order
// they were first set.
type FlatMetrics struct {
	entries []Entry
	index   map[string]int
}

func NewFlatMetrics() *FlatMetrics {
	return &FlatMetrics{index: make(map[string]int)}
}

// Set inserts or overwrites a key. An overwritten key keeps its
// original position.
func (fm *FlatMetrics) Set(key string, v Value) {
	if i, ok := fm.index[key]; ok {
		fm.entries[i].Value = v
		return
	}
	fm.index[key] = len(fm.entries)
	fm.entries = append(fm.entries, Entry{Key: key, Value: v})
}

func (fm *FlatMetrics) Get(key string) (Value, bool) {
	i, ok := fm.index[key]
	if !ok {
		return Value{}, false
	}
	return fm.entries[i].Value, true
}

func (fm *FlatMetrics) Len() int {
	return len(fm.entries)
}

func (fm *FlatMetrics) Keys() []string {
	keys := make([]string, 0, len(fm.entries))
	for _, e := range fm.entries {
		keys = append(keys, e.Key)
	}
	return keys
}

func (fm *FlatMetrics) Each(fn func(key string, v Value)) {
	for _, e := range fm.entries {
		fn(e.Key, e.Value)
	}
}

// Map returns the entries as plain Go values, handy for tests and
// for serializing a processed snapshot.
func (fm *FlatMetrics) Map() map[string]any {
	m := make(map[string]any, len(fm.entries))
	for _, e := range fm.entries {
		m[e.Key] = e.Value.Interface()
	}
	return m
}

// Flatten walks a snapshot depth first and returns every leaf keyed by
// its sanitized path. Input that is not an object or array yields an
// empty set. An object carrying a string "message" field is treated as
// a wrapped snapshot; the only error returned is a *DecodeError for a
// message that is not valid JSON.
func Flatten(snapshot Value) (*FlatMetrics, error) {
	flat := NewFlatMetrics()
	if !snapshot.IsComposite() {
		return flat, nil
	}
	if msg, ok := snapshot.Field(messageField); ok {
		if s, ok := msg.Str(); ok {
			unwrapped, err := DecodeString(s)
			if err != nil {
				return nil, err
			}
			snapshot = unwrapped
		}
	}
	flatten(snapshot, "", flat)
	return flat, nil
}

func flatten(node Value, prefix string, flat *FlatMetrics) {
	node.Each(func(segment string, child Value) {
		key := Sanitize(segment)
		if prefix != "" {
			key = prefix + Separator + key
		}
		switch {
		case child.IsLeaf():
			flat.Set(key, child)
		case child.IsComposite():
			flatten(child, key, flat)
		}
	})
}
