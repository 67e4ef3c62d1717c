package tasks

import (
	"errors"

	"github.com/roach88/jmapc/internal/method"
	"github.com/roach88/jmapc/internal/shape"
)

func init() {
	if err := Register(method.Default); err != nil {
		panic(err)
	}
}

// Register adds every task method and Core/echo to r. Registering twice
// is a no-op.
func Register(r *method.Registry) error {
	return errors.Join(
		method.Register[Get, GetResponse](r),
		method.Register[Set, SetResponse](r),
		method.Register[Query, QueryResponse](r),
		method.Register[Changes, ChangesResponse](r),
		method.Register[ListGet, ListGetResponse](r),
		method.Register[ListSet, ListSetResponse](r),
		method.Register[ListQuery, ListQueryResponse](r),
		method.Register[ListChanges, ListChangesResponse](r),
		shape.RegisterCore(r),
	)
}
