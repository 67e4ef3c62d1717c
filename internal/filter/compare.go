package filter

import (
	"fmt"

	"github.com/roach88/jmapc/internal/wire"
)

// Compare orders two filters of the same condition type by their canonical
// encodings. The order is total but carries no protocol meaning; it exists
// so fixtures can be sorted deterministically.
func Compare[C Condition](a, b Filter[C]) (int, error) {
	return CompareAny(a, b)
}

// CompareAny orders two type-erased filters. Filters over different entity
// types fail with ErrTypeMismatch.
func CompareAny(a, b Any) (int, error) {
	at, bt := a.EntityType(), b.EntityType()
	if at != "" && bt != "" && at != bt {
		return 0, fmt.Errorf("%w: %q vs %q", ErrTypeMismatch, at, bt)
	}

	av, err := a.Serialize()
	if err != nil {
		return 0, err
	}
	bv, err := b.Serialize()
	if err != nil {
		return 0, err
	}
	return wire.Compare(av, bv)
}

// Equal reports whether two filters serialize identically.
func Equal[C Condition](a, b Filter[C]) bool {
	cmp, err := Compare(a, b)
	return err == nil && cmp == 0
}
