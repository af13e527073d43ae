package orm

import (
	"context"
	"fmt"
	"reflect"

	"github.com/syssam/strata"
	"github.com/syssam/strata/privacy"
	"github.com/syssam/strata/query"
)

// All runs q and returns its objects as T. Objects keep the type of the
// most derived entity their row designates, so polymorphic results need
// an interface T such as any.
func All[T any](ctx context.Context, c *Client, q *query.Query) ([]T, error) {
	objs, err := c.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(objs))
	for i, obj := range objs {
		v, ok := obj.(T)
		if !ok {
			entity := privacy.NewQuery(q).Entity()
			return nil, strata.NewMaterializeError(entity, "", fmt.Errorf("%T is not a %s", obj, reflect.TypeFor[T]()))
		}
		out[i] = v
	}
	return out, nil
}

// First returns the first object of q. It fails with a *strata.NotFoundError
// if q selects nothing.
func First[T any](ctx context.Context, c *Client, q *query.Query) (T, error) {
	var zero T
	objs, err := All[T](ctx, c, q.Limit(1))
	if err != nil {
		return zero, err
	}
	if len(objs) == 0 {
		return zero, strata.NewNotFoundError(privacy.NewQuery(q).Entity())
	}
	return objs[0], nil
}

// Only returns the single object of q. It fails with a
// *strata.NotFoundError if q selects nothing and with a
// *strata.NotSingularError if q selects more than one object.
func Only[T any](ctx context.Context, c *Client, q *query.Query) (T, error) {
	var zero T
	objs, err := All[T](ctx, c, q.Limit(2))
	if err != nil {
		return zero, err
	}
	switch len(objs) {
	case 1:
		return objs[0], nil
	case 0:
		return zero, strata.NewNotFoundError(privacy.NewQuery(q).Entity())
	default:
		return zero, strata.NewNotSingularError(privacy.NewQuery(q).Entity())
	}
}
