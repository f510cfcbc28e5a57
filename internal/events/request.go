package events

import "time"

// RequestStart is emitted before a network layer sends a query.
type RequestStart struct {
	Name     string
	Endpoint string
	Query    string
}

// RequestFinish is emitted after a network layer request completes.
type RequestFinish struct {
	Name     string
	Endpoint string
	Status   int
	Err      error
	Duration time.Duration
}
