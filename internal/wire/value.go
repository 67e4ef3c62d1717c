package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"unicode/utf16"
)

// Value is a sealed interface over JSON value kinds.
// Only Null, String, Number, Bool, Array and Object implement it.
type Value interface {
	wireValue()
}

// Null is the JSON null literal.
type Null struct{}

func (Null) wireValue() {}

// String is a JSON string.
type String string

func (String) wireValue() {}

// Number is a JSON number kept as its literal text.
// Keeping the text avoids float64 round-off and makes re-encoding exact.
type Number string

func (Number) wireValue() {}

// Bool is a JSON boolean.
type Bool bool

func (Bool) wireValue() {}

// Array is an ordered list of values.
type Array []Value

func (Array) wireValue() {}

// Object maps member names to values. Iterate with SortedKeys for
// deterministic order.
type Object map[string]Value

func (Object) wireValue() {}

// Int returns the Number for n.
func Int(n int64) Number {
	return Number(strconv.FormatInt(n, 10))
}

// Strings returns an Array of String values.
func Strings(ss ...string) Array {
	arr := make(Array, len(ss))
	for i, s := range ss {
		arr[i] = String(s)
	}
	return arr
}

// Int64 parses the number as an int64.
func (n Number) Int64() (int64, error) {
	return strconv.ParseInt(string(n), 10, 64)
}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
// Go's string comparison orders by UTF-8 bytes, which differs for
// characters outside the BMP.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

// Clone returns a shallow copy of the object.
func (obj Object) Clone() Object {
	out := make(Object, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	return out
}

// Has reports whether key is present with a non-null value.
func (obj Object) Has(key string) bool {
	v, ok := obj[key]
	if !ok {
		return false
	}
	_, isNull := v.(Null)
	return !isNull
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// MarshalJSON encodes the object canonically.
func (obj Object) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(obj)
}

// MarshalJSON encodes the array canonically.
func (arr Array) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(arr)
}

// MarshalJSON emits the literal number text.
func (n Number) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(n)
}

// MarshalJSON emits null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// UnmarshalJSON decodes a JSON object into an Object.
func (obj *Object) UnmarshalJSON(data []byte) error {
	v, err := FromJSON(data)
	if err != nil {
		return err
	}
	o, ok := v.(Object)
	if !ok {
		return fmt.Errorf("wire: expected object, got %T", v)
	}
	*obj = o
	return nil
}

// UnmarshalJSON decodes a JSON array into an Array.
func (arr *Array) UnmarshalJSON(data []byte) error {
	v, err := FromJSON(data)
	if err != nil {
		return err
	}
	a, ok := v.(Array)
	if !ok {
		return fmt.Errorf("wire: expected array, got %T", v)
	}
	*arr = a
	return nil
}

// FromJSON decodes a single JSON document into a Value.
// Numbers keep their literal text.
func FromJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("wire: decode: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("wire: trailing data after JSON value")
	}
	return FromAny(raw)
}

// FromAny converts a decoded Go value into a Value.
// Accepted inputs are the types produced by encoding/json (with UseNumber),
// Go integers and floats, and Values themselves.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case json.Number:
		return Number(val.String()), nil
	case int:
		return Int(int64(val)), nil
	case int64:
		return Int(val), nil
	case float64:
		return Number(strconv.FormatFloat(val, 'f', -1, 64)), nil
	case []string:
		return Strings(val...), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			w, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = w
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			w, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = w
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("wire: unsupported type %T", v)
	}
}

// ObjectFrom marshals a typed struct with encoding/json and converts the
// result to an Object. The struct must encode as a JSON object.
func ObjectFrom(v any) (Object, error) {
	if obj, ok := v.(Object); ok {
		return obj.Clone(), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal %T: %w", v, err)
	}
	val, err := FromJSON(data)
	if err != nil {
		return nil, err
	}
	obj, ok := val.(Object)
	if !ok {
		return nil, fmt.Errorf("wire: %T does not encode as an object", v)
	}
	return obj, nil
}

// Copy returns a deep copy of v.
func Copy(v Value) Value {
	switch val := v.(type) {
	case Array:
		out := make(Array, len(val))
		for i, elem := range val {
			out[i] = Copy(elem)
		}
		return out
	case Object:
		out := make(Object, len(val))
		for k, elem := range val {
			out[k] = Copy(elem)
		}
		return out
	default:
		return v
	}
}
