package filter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/roach88/jmapc/internal/wire"
)

// Condition is an entity-specific leaf predicate.
// Implementations are plain structs encoded with encoding/json; EntityType
// names the entity type the condition filters (e.g. "Task").
type Condition interface {
	EntityType() string
}

// Operator combines child filters.
type Operator string

const (
	OpAnd Operator = "AND"
	OpOr  Operator = "OR"
	OpNot Operator = "NOT"
)

// Valid reports whether op is one of the three combinators.
func (op Operator) Valid() bool {
	return op == OpAnd || op == OpOr || op == OpNot
}

var (
	// ErrTypeMismatch is returned when filters over different entity types
	// are compared or combined.
	ErrTypeMismatch = errors.New("filter: entity type mismatch")

	// ErrEmptyOperator is returned for an operator node without children.
	ErrEmptyOperator = errors.New("filter: operator has no conditions")

	// ErrNilCondition is returned for a leaf without a condition.
	ErrNilCondition = errors.New("filter: nil condition")

	// ErrReservedMember is returned when a condition encodes an "operator" member.
	ErrReservedMember = errors.New(`filter: condition encodes reserved "operator" member`)
)

// Any is the type-erased view of a Filter.
type Any interface {
	EntityType() string
	Serialize() (wire.Value, error)
}

// Filter is a predicate tree over conditions of type C.
type Filter[C Condition] struct {
	op         Operator
	leaf       bool
	condition  C
	conditions []Filter[C]
}

// Where wraps a single condition.
func Where[C Condition](c C) Filter[C] {
	return Filter[C]{leaf: true, condition: c}
}

// And matches when every child matches.
func And[C Condition](children ...Filter[C]) Filter[C] {
	return node(OpAnd, children)
}

// Or matches when at least one child matches.
func Or[C Condition](children ...Filter[C]) Filter[C] {
	return node(OpOr, children)
}

// Not matches when none of the children match.
func Not[C Condition](children ...Filter[C]) Filter[C] {
	return node(OpNot, children)
}

func node[C Condition](op Operator, children []Filter[C]) Filter[C] {
	return Filter[C]{op: op, conditions: append([]Filter[C](nil), children...)}
}

// IsZero reports whether f is the absent filter.
func (f Filter[C]) IsZero() bool {
	return !f.leaf && f.op == ""
}

// IsLeaf reports whether f wraps a single condition.
func (f Filter[C]) IsLeaf() bool {
	return f.leaf
}

// Operator returns the node operator, or "" for leaves.
func (f Filter[C]) Operator() Operator {
	return f.op
}

// Condition returns the leaf condition.
func (f Filter[C]) Condition() (C, bool) {
	return f.condition, f.leaf
}

// Children returns a copy of the node's child filters.
func (f Filter[C]) Children() []Filter[C] {
	return append([]Filter[C](nil), f.conditions...)
}

// EntityType returns the entity type of the first leaf in the tree,
// or "" if the tree has no leaves.
func (f Filter[C]) EntityType() string {
	if f.leaf {
		if isNil(f.condition) {
			return ""
		}
		return f.condition.EntityType()
	}
	for _, child := range f.conditions {
		if t := child.EntityType(); t != "" {
			return t
		}
	}
	return ""
}

// Serialize converts the tree into a wire value.
// The zero filter serializes as null.
func (f Filter[C]) Serialize() (wire.Value, error) {
	if f.IsZero() {
		return wire.Null{}, nil
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f.serialize()
}

func (f Filter[C]) serialize() (wire.Value, error) {
	if f.leaf {
		obj, err := wire.ObjectFrom(f.condition)
		if err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
		if _, ok := obj["operator"]; ok {
			return nil, ErrReservedMember
		}
		return obj, nil
	}

	children := make(wire.Array, len(f.conditions))
	for i, child := range f.conditions {
		v, err := child.serialize()
		if err != nil {
			return nil, fmt.Errorf("conditions[%d]: %w", i, err)
		}
		children[i] = v
	}
	return wire.Object{
		"operator":   wire.String(f.op),
		"conditions": children,
	}, nil
}

// MarshalJSON encodes the tree canonically.
func (f Filter[C]) MarshalJSON() ([]byte, error) {
	v, err := f.Serialize()
	if err != nil {
		return nil, err
	}
	return wire.MarshalCanonical(v)
}

// UnmarshalJSON decodes a tree. Objects with an "operator" member are nodes;
// anything else decodes into C. null decodes to the zero filter.
func (f *Filter[C]) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*f = Filter[C]{}
		return nil
	}
	var probe struct {
		Operator   *Operator         `json:"operator"`
		Conditions []json.RawMessage `json:"conditions"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("filter: %w", err)
	}

	if probe.Operator == nil {
		var c C
		if err := json.Unmarshal(data, &c); err != nil {
			return fmt.Errorf("filter: condition: %w", err)
		}
		*f = Where(c)
		return nil
	}

	if !probe.Operator.Valid() {
		return fmt.Errorf("filter: unknown operator %q", *probe.Operator)
	}
	children := make([]Filter[C], len(probe.Conditions))
	for i, raw := range probe.Conditions {
		if err := children[i].UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("conditions[%d]: %w", i, err)
		}
	}
	*f = Filter[C]{op: *probe.Operator, conditions: children}
	return nil
}

// isNil reports whether c is nil, including a nil pointer, map or
// interface held in a non-nil Condition.
func isNil(c Condition) bool {
	if c == nil {
		return true
	}
	switch v := reflect.ValueOf(c); v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
