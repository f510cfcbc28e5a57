package container

import (
	query "github.com/hanpama/genrelay/internal/query"
	record "github.com/hanpama/genrelay/internal/record"
)

// Store is the record store a container reads identities from. One store is
// normally shared by every container of a process.
type Store interface {
	record.RootIDSource

	// BuildFragmentQueryForDataID returns a root query that refetches fragment
	// for the record id.
	BuildFragmentQueryForDataID(fragment *query.Fragment, id string) *query.Root
	HasOptimisticUpdate(id string) bool
	// GetClientMutationIDs returns the ids of pending mutations affecting the
	// record, or nil when there are none.
	GetClientMutationIDs(id string) []string
	GetTransaction(clientMutationID string) Transaction
}

// Transaction is a pending mutation held by the store's mutation queue.
type Transaction interface {
	GetID() string
}

// QuerySet is a named collection of root queries dispatched as one fetch.
type QuerySet map[string]*query.Root

// Abortable is the handle of an issued fetch.
type Abortable interface {
	Abort()
}

// Fetcher issues query sets. Readiness callbacks must be delivered on the
// goroutine that owns the containers, never concurrently with them.
type Fetcher interface {
	// PrimeCache fetches only data missing from the store.
	PrimeCache(querySet QuerySet, onReadyStateChange func(ReadyState)) Abortable
	// ForceFetch fetches everything, reporting cached data as stale first.
	ForceFetch(querySet QuerySet, onReadyStateChange func(ReadyState)) Abortable
}

// Resolver reads the data a pointer refers to and keeps a subscription to it.
type Resolver interface {
	Resolve(pointer *record.FragmentPointer) any
	Reset()
}

// ResolverFactory creates the resolver for one fragment of one container.
// onUpdate is called when data behind the pointer changes.
type ResolverFactory func(store Store, pointer *record.FragmentPointer, onUpdate func()) Resolver

// Environment carries the collaborators injected into containers.
type Environment struct {
	Store       Store
	Fetcher     Fetcher
	NewResolver ResolverFactory
	// MockFetcher, when set, serves routes with UseMockData.
	MockFetcher Fetcher
}

func (e Environment) fetcherFor(route *Route) Fetcher {
	if route != nil && route.UseMockData && e.MockFetcher != nil {
		return e.MockFetcher
	}
	return e.Fetcher
}

// ReadyState is the progress of a fetch. Ready means resolvable data exists,
// even when the fetch is not Done yet.
type ReadyState struct {
	Aborted bool
	Done    bool
	Error   error
	Ready   bool
	Stale   bool
}

func (rs ReadyState) complete() bool {
	return rs.Aborted || rs.Done || rs.Error != nil
}

// State is what a container delivers to its listener.
type State struct {
	Data map[string]any
	ReadyState
}

type Listener func(State)

var doneState = ReadyState{Done: true, Ready: true}
