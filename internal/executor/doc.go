// Package executor runs validated GraphQL documents against a Runtime.
//
// # Model
//
// Execution is depth-first and synchronous. For each selection set the
// executor collects fields by response name (merging fields from fragment
// spreads and inline fragments whose type condition applies), resolves each
// field through Runtime.Resolve and completes the value against the field's
// return type:
//
//   - Scalars and enums are passed to Runtime.SerializeLeafValue.
//   - Objects recurse into the merged sub-selection.
//   - Interfaces and unions ask Runtime.ResolveType for the concrete object
//     type and check it is a possible type.
//   - Lists complete each item with the item type.
//
// # Errors
//
// Resolver and completion errors become located GraphQL errors carrying the
// response path. A null in a Non-Null position propagates to the nearest
// nullable ancestor; at the root the field is written as null and execution
// continues with the next root field.
//
// Variables are coerced against the operation's variable definitions before
// execution starts. A coercion failure yields a result with no data.
//
// Documents are expected to be validated against the schema
// (schema.ParseQuery); the executor does not repeat validation.
package executor
