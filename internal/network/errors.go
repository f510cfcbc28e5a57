package network

import (
	"errors"
	"strings"
)

var (
	ErrStatus       = errors.New("network: unexpected response status")
	ErrInvalidQuery = errors.New("network: printed query is not valid GraphQL")
	ErrNoMockData   = errors.New("network: no mock data for query")
	ErrProtocol     = errors.New("network: websocket protocol violation")
	ErrClosed       = errors.New("network: layer closed")
)

// GraphQLError is one entry of a response's errors list.
type GraphQLError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// ResponseError reports a response that carried GraphQL errors.
type ResponseError struct {
	Query  string
	Errors []GraphQLError
}

func (e *ResponseError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ge := range e.Errors {
		msgs[i] = ge.Message
	}
	return "network: " + e.Query + ": " + strings.Join(msgs, "; ")
}
