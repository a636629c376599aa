package filter

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/populationgenomics/metamist-sub002/internal/apierror"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindTimestamp
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTimestamp:
		return "timestamp"
	case KindArray:
		return "array"
	default:
		return "invalid"
	}
}

// Value is a typed filter operand. The zero Value is invalid.
type Value struct {
	kind  Kind
	s     string
	i     int64
	f     float64
	b     bool
	t     time.Time
	elem  Kind
	elems []Value
}

func String(s string) Value {
	return Value{kind: KindString, s: s}
}

func Int(i int64) Value {
	return Value{kind: KindInt, i: i}
}

func Float(f float64) Value {
	return Value{kind: KindFloat, f: f}
}

func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

func Timestamp(t time.Time) Value {
	return Value{kind: KindTimestamp, t: t}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsValid() bool {
	return v.kind != KindInvalid
}

func (v Value) Elem() Kind {
	return v.elem
}

func (v Value) Len() int {
	return len(v.elems)
}

func (v Value) Time() time.Time {
	return v.t
}

func (v Value) Str() string {
	return v.s
}

// Elems returns a copy of the elements of an array value.
func (v Value) Elems() []Value {
	out := make([]Value, len(v.elems))
	copy(out, v.elems)
	return out
}

// ArrayOf builds a homogeneous array value. Int and float elements are widened to float.
func ArrayOf(values []Value) (Value, error) {
	elem := KindInvalid
	for _, v := range values {
		switch {
		case v.kind == KindInvalid || v.kind == KindArray:
			return Value{}, apierror.NewInvalidFilter("array elements must be scalar values, got %s", v.kind)
		case elem == KindInvalid:
			elem = v.kind
		case elem == v.kind:
		case isNumeric(elem) && isNumeric(v.kind):
			elem = KindFloat
		default:
			return Value{}, apierror.NewInvalidFilter("array mixes %s and %s values", elem, v.kind)
		}
	}

	elems := make([]Value, len(values))
	for i, v := range values {
		if elem == KindFloat && v.kind == KindInt {
			v = Float(float64(v.i))
		}
		elems[i] = v
	}
	return Value{kind: KindArray, elem: elem, elems: elems}, nil
}

func isNumeric(k Kind) bool {
	return k == KindInt || k == KindFloat
}

// Interface returns the host representation of the value.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindTimestamp:
		return v.t
	case KindArray:
		out := make([]interface{}, len(v.elems))
		for i, e := range v.elems {
			out[i] = e.Interface()
		}
		return out
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindTimestamp:
		return v.t.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

// Equal reports whether two values hold the same variant and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindTimestamp:
		return v.t.Equal(o.t)
	case KindArray:
		if len(v.elems) != len(o.elems) {
			return false
		}
		for i := range v.elems {
			if !v.elems[i].Equal(o.elems[i]) {
				return false
			}
		}
		return true
	default:
		return v.Interface() == o.Interface()
	}
}

// NewValue converts a host value into a Value. This is the only place the dynamic type
// of a caller-supplied operand is inspected; named string types (enums) lower to their
// underlying string.
func NewValue(raw interface{}) (Value, error) {
	switch v := raw.(type) {
	case nil:
		return Value{}, apierror.NewInvalidFilter("null is not a filter value")
	case Value:
		if !v.IsValid() {
			return Value{}, apierror.NewInvalidFilter("invalid filter value")
		}
		return v, nil
	case string:
		return String(v), nil
	case bool:
		return Bool(v), nil
	case int:
		return Int(int64(v)), nil
	case int32:
		return Int(int64(v)), nil
	case int64:
		return Int(v), nil
	case float32:
		return Float(float64(v)), nil
	case float64:
		return Float(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := v.Float64()
		if err != nil {
			return Value{}, apierror.NewInvalidFilter("invalid number %q", v.String())
		}
		return Float(f), nil
	case time.Time:
		return Timestamp(v), nil
	case *time.Time:
		if v == nil {
			return Value{}, apierror.NewInvalidFilter("null is not a filter value")
		}
		return Timestamp(*v), nil
	}

	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return Int(int64(rv.Uint())), nil
	case reflect.Uint, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return Value{}, apierror.NewInvalidFilter("integer %d is out of range", u)
		}
		return Int(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Slice, reflect.Array:
		values := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem, err := NewValue(rv.Index(i).Interface())
			if err != nil {
				return Value{}, err
			}
			values[i] = elem
		}
		return ArrayOf(values)
	case reflect.Ptr:
		if rv.IsNil() {
			return Value{}, apierror.NewInvalidFilter("null is not a filter value")
		}
		return NewValue(rv.Elem().Interface())
	}
	return Value{}, apierror.NewInvalidFilter("unsupported filter value type %T", raw)
}

// parseValue infers a Value from a query-string operand.
func parseValue(value string) Value {
	if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
		return Int(intVal)
	}

	if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
		return Float(floatVal)
	}

	if value == "true" {
		return Bool(true)
	}
	if value == "false" {
		return Bool(false)
	}

	if timeVal, err := ParseDateTime(value); err == nil {
		return Timestamp(timeVal)
	}

	return String(value)
}
