package filter

import (
	"errors"
	"fmt"
)

// Validate checks the tree structure.
//
// Rules:
//  1. Operator nodes use AND, OR or NOT and have at least one child
//  2. Leaves carry a non-nil condition
//  3. Every leaf reports the same entity type
//
// Rule 3 can only fail when C is itself an interface type; concrete
// condition types make mixed trees impossible to construct.
func (f Filter[C]) Validate() error {
	if f.IsZero() {
		return nil
	}
	v := &validator{}
	walk(v, f, "$")
	return errors.Join(v.errs...)
}

type validator struct {
	entityType string
	errs       []error
}

func (v *validator) fail(path string, err error) {
	v.errs = append(v.errs, fmt.Errorf("%s: %w", path, err))
}

func walk[C Condition](v *validator, f Filter[C], path string) {
	if f.leaf {
		if isNil(f.condition) {
			v.fail(path, ErrNilCondition)
			return
		}
		t := f.condition.EntityType()
		if v.entityType == "" {
			v.entityType = t
		} else if t != v.entityType {
			v.fail(path, fmt.Errorf("%w: %q in %q tree", ErrTypeMismatch, t, v.entityType))
		}
		return
	}

	if !f.op.Valid() {
		v.fail(path, fmt.Errorf("filter: unknown operator %q", f.op))
		return
	}
	if len(f.conditions) == 0 {
		v.fail(path, ErrEmptyOperator)
		return
	}
	for i, child := range f.conditions {
		walk(v, child, fmt.Sprintf("%s.conditions[%d]", path, i))
	}
}
