package container

import (
	"fmt"
	"sync"

	query "github.com/hanpama/genrelay/internal/query"
	record "github.com/hanpama/genrelay/internal/record"
)

// MockStore is an in-memory Store for tests. Records are registered with
// the Register helpers; queries built for records are plain node(id:)
// roots spreading the fragment.
type MockStore struct {
	records      map[string]*record.Record
	rootIDs      map[string]string
	optimistic   map[string]bool
	mutationIDs  map[string][]string
	transactions map[string]Transaction
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		records:      map[string]*record.Record{},
		rootIDs:      map[string]string{},
		optimistic:   map[string]bool{},
		mutationIDs:  map[string][]string{},
		transactions: map[string]Transaction{},
	}
}

// RegisterRecord stores rec under its id.
func (m *MockStore) RegisterRecord(rec *record.Record) *MockStore {
	m.records[rec.ID] = rec
	return m
}

// RegisterRoot maps fieldName(identifyingValue) to id.
func (m *MockStore) RegisterRoot(fieldName string, identifyingValue any, id string) *MockStore {
	m.rootIDs[rootKey(fieldName, identifyingValue)] = id
	return m
}

// RegisterOptimisticUpdate marks id as optimistically updated.
func (m *MockStore) RegisterOptimisticUpdate(id string) *MockStore {
	m.optimistic[id] = true
	return m
}

// RegisterTransaction adds a pending mutation affecting id.
func (m *MockStore) RegisterTransaction(id string, tx Transaction) *MockStore {
	m.mutationIDs[id] = append(m.mutationIDs[id], tx.GetID())
	m.transactions[tx.GetID()] = tx
	return m
}

// Record returns the registered record, or nil.
func (m *MockStore) Record(id string) *record.Record { return m.records[id] }

func (m *MockStore) BuildFragmentQueryForDataID(fragment *query.Fragment, id string) *query.Root {
	return &query.Root{
		Name:           fragment.DebugName() + "_" + id,
		FieldName:      "node",
		IdentifyingArg: &query.Call{Name: "id", Value: id, Type: "ID!"},
		Children:       []query.Node{&query.Field{SchemaName: "id"}, fragment},
	}
}

func (m *MockStore) HasOptimisticUpdate(id string) bool           { return m.optimistic[id] }
func (m *MockStore) GetClientMutationIDs(id string) []string      { return m.mutationIDs[id] }
func (m *MockStore) GetTransaction(mutationID string) Transaction { return m.transactions[mutationID] }

func (m *MockStore) GetRootDataID(fieldName string, identifyingValue any) string {
	return m.rootIDs[rootKey(fieldName, identifyingValue)]
}

func rootKey(fieldName string, identifyingValue any) string {
	if identifyingValue == nil {
		return fieldName
	}
	return fmt.Sprintf("%s(%v)", fieldName, identifyingValue)
}

// MockTransaction is a Transaction identified by ID.
type MockTransaction struct{ ID string }

func (t MockTransaction) GetID() string { return t.ID }

// MockRequest is one fetch issued through a MockFetcher. Tests drive it
// with Respond.
type MockRequest struct {
	QuerySet QuerySet
	Force    bool

	mu       sync.Mutex
	aborted  bool
	callback func(ReadyState)
}

// Abort marks the request aborted. Like a real fetcher it reports the abort
// through the callback.
func (r *MockRequest) Abort() {
	r.mu.Lock()
	r.aborted = true
	r.mu.Unlock()
	r.callback(ReadyState{Aborted: true})
}

// Aborted reports whether Abort was called.
func (r *MockRequest) Aborted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aborted
}

// Respond delivers rs to the issuer.
func (r *MockRequest) Respond(rs ReadyState) { r.callback(rs) }

// MockFetcher records issued fetches without performing them.
type MockFetcher struct {
	mu       sync.Mutex
	requests []*MockRequest
}

// NewMockFetcher creates an empty MockFetcher.
func NewMockFetcher() *MockFetcher { return &MockFetcher{} }

func (m *MockFetcher) PrimeCache(qs QuerySet, onReadyStateChange func(ReadyState)) Abortable {
	return m.record(qs, false, onReadyStateChange)
}

func (m *MockFetcher) ForceFetch(qs QuerySet, onReadyStateChange func(ReadyState)) Abortable {
	return m.record(qs, true, onReadyStateChange)
}

func (m *MockFetcher) record(qs QuerySet, force bool, cb func(ReadyState)) *MockRequest {
	req := &MockRequest{QuerySet: qs, Force: force, callback: cb}
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return req
}

// Requests returns the fetches issued so far, oldest first.
func (m *MockFetcher) Requests() []*MockRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockRequest(nil), m.requests...)
}

// Last returns the most recent fetch, or nil.
func (m *MockFetcher) Last() *MockRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// MockResolvers creates MockResolver values over a MockStore and keeps
// them for inspection.
type MockResolvers struct {
	created []*MockResolver
}

// Factory returns a ResolverFactory that reads records from the MockStore
// passed to it.
func (m *MockResolvers) Factory() ResolverFactory {
	return func(store Store, pointer *record.FragmentPointer, onUpdate func()) Resolver {
		r := &MockResolver{store: store.(*MockStore), onUpdate: onUpdate}
		m.created = append(m.created, r)
		return r
	}
}

// Created returns every resolver made so far.
func (m *MockResolvers) Created() []*MockResolver { return m.created }

// MockResolver resolves pointers to the records registered in a MockStore.
// It returns the previous result when the pointer ids did not change.
type MockResolver struct {
	store    *MockStore
	onUpdate func()

	Resets   int
	Resolved []*record.FragmentPointer

	lastIDs []string
	last    any
}

func (r *MockResolver) Resolve(pointer *record.FragmentPointer) any {
	r.Resolved = append(r.Resolved, pointer)
	ids := pointer.DataIDs()
	if r.last != nil && equalIDs(ids, r.lastIDs) {
		return r.last
	}
	var out any
	if pointer.IsPlural() {
		items := make([]any, len(ids))
		for i, id := range ids {
			if rec := r.store.Record(id); rec != nil {
				items[i] = rec
			}
		}
		out = items
	} else if rec := r.store.Record(pointer.DataID()); rec != nil {
		out = rec
	}
	r.lastIDs, r.last = ids, out
	return out
}

func (r *MockResolver) Reset() {
	r.Resets++
	r.lastIDs, r.last = nil, nil
}

// NotifyUpdate simulates a store change under the resolver's pointer.
func (r *MockResolver) NotifyUpdate() {
	r.lastIDs, r.last = nil, nil
	r.onUpdate()
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
