package events

// FetchStart is emitted when a container issues a fetch.
// Context carries the container's context and the fetch request id.
type FetchStart struct {
	Container string
	Force     bool
	Queries   []string
	Variables map[string]any
}

// FetchReadyState is emitted for each readiness update of the container's
// current fetch.
type FetchReadyState struct {
	Container string
	Aborted   bool
	Done      bool
	Ready     bool
	Stale     bool
	Err       error
}

// FetchDiscarded is emitted when a readiness update arrives for a fetch that
// was superseded or cleaned up.
type FetchDiscarded struct {
	Container string
	Aborted   bool
	Done      bool
	Ready     bool
}
