// Package jsonv is a small tagged JSON value model with insertion-ordered
// objects. Documents built from it serialize deterministically, and the tree
// can be walked and mutated in place.
package jsonv

import (
	"encoding/json"
	"math"
	"strconv"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	// Undefined is the zero Kind. Undefined members are treated as absent
	// and never serialized.
	Undefined Kind = iota
	Null
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "undefined"
	}
}

// Value is a JSON value. The zero Value is Undefined.
//
// Objects are held by pointer, so copies of a Value share the same object and
// mutations through one copy are visible through the others. Use Clone for an
// independent copy.
type Value struct {
	kind Kind
	b    bool
	s    string // string payload, or the literal text of a number
	arr  []Value
	obj  *Obj
}

// NullValue returns a JSON null.
func NullValue() Value { return Value{kind: Null} }

// BoolValue wraps b.
func BoolValue(b bool) Value { return Value{kind: Bool, b: b} }

// StringValue wraps s.
func StringValue(s string) Value { return Value{kind: String, s: s} }

// IntValue wraps n as a JSON number.
func IntValue(n int64) Value { return Value{kind: Number, s: strconv.FormatInt(n, 10)} }

// NumberValue wraps a JSON number literal as read by a decoder.
func NumberValue(n json.Number) Value { return Value{kind: Number, s: n.String()} }

// ArrayValue wraps items. A nil slice still produces an (empty) array.
func ArrayValue(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: Array, arr: items}
}

// ObjectValue wraps o. A nil object produces an Undefined value.
func ObjectValue(o *Obj) Value {
	if o == nil {
		return Value{}
	}
	return Value{kind: Object, obj: o}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsDefined reports whether v holds anything, null included.
func (v Value) IsDefined() bool { return v.kind != Undefined }

// IsNull reports whether v is undefined or JSON null.
func (v Value) IsNull() bool { return v.kind == Undefined || v.kind == Null }

// Bool returns the boolean payload.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == Bool }

// Str returns the string payload.
func (v Value) Str() (string, bool) {
	if v.kind != String {
		return "", false
	}
	return v.s, true
}

// Number returns the number literal.
func (v Value) Number() (json.Number, bool) {
	if v.kind != Number {
		return "", false
	}
	return json.Number(v.s), true
}

// Items returns the array elements. The slice is shared with v.
func (v Value) Items() ([]Value, bool) {
	if v.kind != Array {
		return nil, false
	}
	return v.arr, true
}

// Obj returns the object payload, or nil when v is not an object.
func (v Value) Obj() *Obj {
	if v.kind != Object {
		return nil
	}
	return v.obj
}

// Text renders scalars the way a JavaScript toString would: strings are
// returned as-is, integral numbers without a fraction, booleans and null by
// name. Arrays and objects are rendered as compact JSON.
func (v Value) Text() string {
	switch v.kind {
	case String:
		return v.s
	case Number:
		if f, err := strconv.ParseFloat(v.s, 64); err == nil && f == math.Trunc(f) && math.Abs(f) < 1e15 {
			return strconv.FormatInt(int64(f), 10)
		}
		return v.s
	case Bool:
		return strconv.FormatBool(v.b)
	case Null:
		return "null"
	case Undefined:
		return ""
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case Array:
		items := make([]Value, len(v.arr))
		for i, item := range v.arr {
			items[i] = item.Clone()
		}
		return Value{kind: Array, arr: items}
	case Object:
		return Value{kind: Object, obj: v.obj.Clone()}
	default:
		return v
	}
}

// Equal reports whether a and b are structurally equal. Object member order
// is ignored; numbers compare by value.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Undefined, Null:
		return true
	case Bool:
		return a.b == b.b
	case String:
		return a.s == b.s
	case Number:
		if a.s == b.s {
			return true
		}
		fa, errA := strconv.ParseFloat(a.s, 64)
		fb, errB := strconv.ParseFloat(b.s, 64)
		return errA == nil && errB == nil && fa == fb
	case Array:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case Object:
		return a.obj.Equal(b.obj)
	}
	return false
}
