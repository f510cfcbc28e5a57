package printer

import "errors"

var (
	// ErrUnsupported indicates a node variant or feature the printer cannot emit.
	ErrUnsupported = errors.New("printer: unsupported node")
	// ErrInvalidNode indicates a malformed node, such as a mutation without input
	// or a directive with a non-scalar argument.
	ErrInvalidNode = errors.New("printer: invalid node")
)
