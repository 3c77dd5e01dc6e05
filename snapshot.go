package exporters

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	}
	return "null"
}

// A field of an object value, in source order.
type Field struct {
	Key   string
	Value Value
}

// Value is one node of a telemetry snapshot. It is either a leaf
// (string, number, bool), a composite (object or array) or null.
// The zero Value is null.
type Value struct {
	kind   Kind
	str    string
	num    float64
	flag   bool
	fields []Field
	elems  []Value
}

func Null() Value              { return Value{} }
func String(s string) Value    { return Value{kind: KindString, str: s} }
func Number(f float64) Value   { return Value{kind: KindNumber, num: f} }
func Bool(b bool) Value        { return Value{kind: KindBool, flag: b} }
func Object(fs ...Field) Value { return Value{kind: KindObject, fields: fs} }
func Array(vs ...Value) Value  { return Value{kind: KindArray, elems: vs} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsLeaf() bool {
	return v.kind == KindString || v.kind == KindNumber || v.kind == KindBool
}

func (v Value) IsComposite() bool {
	return v.kind == KindObject || v.kind == KindArray
}

// Field looks up an object field by key. The last occurrence wins.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	for i := len(v.fields) - 1; i >= 0; i-- {
		if v.fields[i].Key == key {
			return v.fields[i].Value, true
		}
	}
	return Value{}, false
}

// Each visits the children of a composite in order. Array indexes
// are passed as decimal strings.
func (v Value) Each(fn func(segment string, child Value)) {
	switch v.kind {
	case KindObject:
		for _, f := range v.fields {
			fn(f.Key, f.Value)
		}
	case KindArray:
		for i, e := range v.elems {
			fn(strconv.Itoa(i), e)
		}
	}
}

func (v Value) Str() (string, bool)    { return v.str, v.kind == KindString }
func (v Value) Float() (float64, bool) { return v.num, v.kind == KindNumber }
func (v Value) Boolean() (bool, bool)  { return v.flag, v.kind == KindBool }
func (v Value) Len() int               { return len(v.fields) + len(v.elems) }

// Interface converts a leaf back to a plain Go value. Composites and
// null convert to nil.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.flag
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.str)
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.flag)
	case KindObject, KindArray:
		return fmt.Sprintf("%s(%d)", v.kind, v.Len())
	}
	return "null"
}

// FromAny classifies a Go-native payload, as produced by encoding/json
// into an interface{}. Map keys are sorted so the result is
// deterministic. Pointers to strings and json.Number are unwrapped to
// their primitive values; anything unrecognised becomes null.
func FromAny(x any) Value {
	switch x := x.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case string:
		return String(x)
	case *string:
		if x == nil {
			return Null()
		}
		return String(*x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return Number(f)
		}
		return String(x.String())
	case bool:
		return Bool(x)
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case int:
		return Number(float64(x))
	case int32:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case uint32:
		return Number(float64(x))
	case uint64:
		return Number(float64(x))
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]Field, 0, len(keys))
		for _, k := range keys {
			fields = append(fields, Field{Key: k, Value: FromAny(x[k])})
		}
		return Object(fields...)
	case []any:
		elems := make([]Value, 0, len(x))
		for _, e := range x {
			elems = append(elems, FromAny(e))
		}
		return Array(elems...)
	}
	return Null()
}
