// Package reqid tags a context with the id of the fetch or network request
// it belongs to, so start and finish events can be correlated.
package reqid

import (
	"context"
	"math/rand/v2"
)

// key is the context key for the request ID.
type key struct{}

// NewContext returns a copy of parent carrying a new random request ID,
// and the ID. An ID already on parent is shadowed.
func NewContext(parent context.Context) (context.Context, int64) {
	id := rand.Int64()
	return context.WithValue(parent, key{}, id), id
}

// FromContext extracts the request ID from ctx.
// It returns the ID and whether it was present.
func FromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(key{}).(int64)
	return id, ok
}
