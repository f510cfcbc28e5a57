package executor

import (
	"context"
)

// Runtime resolves field values for the Executor.
//
// objectType is the parent object type name; for root fields it is the root
// type name. source is the parent value (the initial value for root fields)
// and args holds coerced argument values, including defaults.
//
// Implementations must be safe for concurrent use and must not mutate
// source or args.
type Runtime interface {
	// Resolve returns the raw value of a field. Return (nil, nil) for null.
	Resolve(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error)

	// ResolveType returns the concrete object type name of a value of an
	// interface or union type.
	ResolveType(ctx context.Context, abstractType string, value any) (string, error)

	// SerializeLeafValue converts a scalar or enum value into a JSON-safe Go
	// value. Enums serialize to their symbolic name.
	SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error)
}
