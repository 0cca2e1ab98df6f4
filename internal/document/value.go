package document

import (
	"fmt"
	"strconv"
)

// Value is a sealed interface representing the node types a document tree
// may contain. Only Null, String, Int, Float, Bool, Array, and *Object
// implement this.
type Value interface {
	value() // Sealed - only these types implement it
}

// Null represents a JSON null value.
// Using an explicit type ensures all Values satisfy the sealed interface.
type Null struct{}

func (Null) value() {}

// String represents a string leaf.
type String string

func (String) value() {}

// Int represents an integer leaf. Decoded from JSON numbers with no
// fractional or exponent part, so values up to int64 range round-trip
// without float64 precision loss.
type Int int64

func (Int) value() {}

// Float represents a non-integer numeric leaf.
type Float float64

func (Float) value() {}

// Bool represents a boolean leaf.
type Bool bool

func (Bool) value() {}

// Array represents an ordered sequence of Values.
type Array []Value

func (Array) value() {}

// Object represents a mapping of string keys to Values that preserves
// insertion order. Always handled by pointer so container identity is
// stable for cycle detection.
//
// Keys are unique: Set on an existing key replaces the value in place
// without changing its position.
type Object struct {
	keys   []string
	fields map[string]Value
}

func (*Object) value() {}

// NewObject creates an empty ordered object.
func NewObject() *Object {
	return &Object{fields: make(map[string]Value)}
}

// Set inserts or replaces the value for key. A new key is appended after
// all existing keys.
func (o *Object) Set(key string, v Value) {
	if o.fields == nil {
		o.fields = make(map[string]Value)
	}
	if _, exists := o.fields[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.fields[key] = v
}

// Get returns the value for key and whether it exists.
func (o *Object) Get(key string) (Value, bool) {
	v, ok := o.fields[key]
	return v, ok
}

// Keys returns the keys in insertion order. The returned slice is shared;
// callers must not modify it.
func (o *Object) Keys() []string {
	return o.keys
}

// Len returns the number of fields.
func (o *Object) Len() int {
	return len(o.keys)
}

// Field is a key-value pair for typed Object construction in tests and
// programmatic builders.
type Field struct {
	Key   string
	Value Value
}

// NewObjectFromFields creates an Object with the given fields in order.
func NewObjectFromFields(fields ...Field) *Object {
	obj := NewObject()
	for _, f := range fields {
		obj.Set(f.Key, f.Value)
	}
	return obj
}

// F is a shorthand for Field for ergonomic construction.
// Example: NewObjectFromFields(F("name", String("cart")), F("count", Int(5)))
func F(key string, v Value) Field {
	return Field{Key: key, Value: v}
}

// ScalarString renders a scalar leaf as its plain text form, used for
// mapping keys and reports. Containers are not scalars and return an error.
func ScalarString(v Value) (string, error) {
	switch val := v.(type) {
	case Null:
		return "null", nil
	case String:
		return string(val), nil
	case Int:
		return strconv.FormatInt(int64(val), 10), nil
	case Float:
		return strconv.FormatFloat(float64(val), 'g', -1, 64), nil
	case Bool:
		return strconv.FormatBool(bool(val)), nil
	default:
		return "", fmt.Errorf("not a scalar: %T", v)
	}
}

// IsScalar reports whether v is a leaf (not an Array or Object).
func IsScalar(v Value) bool {
	switch v.(type) {
	case Array, *Object:
		return false
	default:
		return true
	}
}
