package exporters

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/bytedance/sonic/ast"
)

var errInvalidJSON = errors.New("invalid JSON document")

// Decode parses one JSON document into a Value. Object fields keep
// their document order, so flattening a decoded snapshot is
// deterministic.
func Decode(data []byte) (Value, error) {
	if !sonic.Valid(data) {
		return Value{}, &DecodeError{Cause: errInvalidJSON}
	}
	root, err := sonic.Get(data)
	if err != nil {
		return Value{}, &DecodeError{Cause: err}
	}
	v, err := fromNode(&root)
	if err != nil {
		return Value{}, &DecodeError{Cause: err}
	}
	return v, nil
}

// DecodeString is Decode for payloads that already arrive as strings,
// such as a wrapped message field.
func DecodeString(s string) (Value, error) {
	return Decode([]byte(s))
}

func fromNode(n *ast.Node) (Value, error) {
	switch n.TypeSafe() {
	case ast.V_NULL:
		return Null(), nil
	case ast.V_TRUE:
		return Bool(true), nil
	case ast.V_FALSE:
		return Bool(false), nil
	case ast.V_STRING:
		s, err := n.String()
		if err != nil {
			return Value{}, err
		}
		return String(s), nil
	case ast.V_NUMBER:
		f, err := n.Float64()
		if err != nil {
			if inf, ok := outOfRange(n); ok {
				return Number(inf), nil
			}
			return Value{}, err
		}
		return Number(f), nil
	case ast.V_OBJECT:
		fields := make([]Field, 0, 8)
		err := eachChild(n, func(path ast.Sequence, child Value) {
			fields = append(fields, Field{Key: *path.Key, Value: child})
		})
		if err != nil {
			return Value{}, err
		}
		return Object(fields...), nil
	case ast.V_ARRAY:
		elems := make([]Value, 0, 8)
		err := eachChild(n, func(_ ast.Sequence, child Value) {
			elems = append(elems, child)
		})
		if err != nil {
			return Value{}, err
		}
		return Array(elems...), nil
	}
	if err := n.Check(); err != nil {
		return Value{}, err
	}
	return Value{}, fmt.Errorf("unexpected JSON node type %d", n.TypeSafe())
}

// outOfRange returns ±Inf for a well-formed number beyond float64 range.
// Reporting skips non-finite values, so only that one entry is lost.
func outOfRange(n *ast.Node) (float64, bool) {
	raw, err := n.Raw()
	if err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if errors.Is(err, strconv.ErrRange) && math.IsInf(f, 0) {
		return f, true
	}
	return 0, false
}

func eachChild(n *ast.Node, fn func(path ast.Sequence, child Value)) error {
	var childErr error
	err := n.ForEach(func(path ast.Sequence, node *ast.Node) bool {
		v, err := fromNode(node)
		if err != nil {
			childErr = err
			return false
		}
		fn(path, v)
		return true
	})
	if childErr != nil {
		return childErr
	}
	return err
}
