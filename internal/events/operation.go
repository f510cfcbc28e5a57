package events

import "time"

// OperationStart is emitted when the server begins executing an operation.
// Transport is "http" or "ws".
type OperationStart struct {
	Transport     string
	OperationName string
	Query         string
}

// OperationFinish is emitted after the server executed an operation.
type OperationFinish struct {
	Transport     string
	OperationName string
	Errors        []error
	Duration      time.Duration
}
