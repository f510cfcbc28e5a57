// Package memstore is an in-memory normalized record store. It ingests
// server-shaped payloads for root queries, answers cache checks for the
// network fetcher and resolves fragment pointers for containers.
package memstore

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	container "github.com/hanpama/genrelay/internal/container"
	query "github.com/hanpama/genrelay/internal/query"
)

// ErrPayload reports a payload whose shape does not follow its query.
var ErrPayload = errors.New("memstore: payload does not match query")

// linkedID and linkedIDs are stored in place of nested objects.
type (
	linkedID  string
	linkedIDs []string
)

// Store holds records keyed by id. Each record maps storage keys (schema
// name plus argument values) to scalars or links.
type Store struct {
	mu           sync.RWMutex
	records      map[string]map[string]any
	rootIDs      map[string]string
	version      uint64
	transactions map[string]*Transaction
	txOrder      []string
	subs         map[string]map[uint64]func()
	nextSub      uint64
}

func New() *Store {
	return &Store{
		records:      map[string]map[string]any{},
		rootIDs:      map[string]string{},
		transactions: map[string]*Transaction{},
		subs:         map[string]map[uint64]func(){},
	}
}

// Transaction is a pending mutation touching a set of records.
type Transaction struct {
	ID        string
	RecordIDs []string
}

func (t *Transaction) GetID() string { return t.ID }

// storageKey identifies a field's value within a record independent of the
// alias the query used.
func storageKey(f *query.Field) string {
	calls := f.CallsWithValues()
	if len(calls) == 0 {
		return f.SchemaName
	}
	parts := make([]string, len(calls))
	for i, c := range calls {
		parts[i] = fmt.Sprintf("%s:%v", c.Name, c.Value)
	}
	sort.Strings(parts)
	return f.SchemaName + "{" + strings.Join(parts, ",") + "}"
}

func rootKey(fieldName string, identifyingValue any) string {
	if identifyingValue == nil {
		return fieldName
	}
	return fmt.Sprintf("%s(%v)", fieldName, identifyingValue)
}

// GetRootDataID returns the record id stored for a root call. node(id:)
// calls resolve to the id itself once that record is known.
func (s *Store) GetRootDataID(fieldName string, identifyingValue any) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rootDataID(fieldName, identifyingValue)
}

func (s *Store) rootDataID(fieldName string, identifyingValue any) string {
	if id, ok := s.rootIDs[rootKey(fieldName, identifyingValue)]; ok {
		return id
	}
	if id, ok := identifyingValue.(string); ok && fieldName == "node" {
		if _, known := s.records[id]; known {
			return id
		}
	}
	return ""
}

// BuildFragmentQueryForDataID returns node(id: id) { id, ...fragment }.
func (s *Store) BuildFragmentQueryForDataID(fragment *query.Fragment, id string) *query.Root {
	return &query.Root{
		Name:           fragment.DebugName(),
		FieldName:      "node",
		IdentifyingArg: &query.Call{Name: "id", Value: id, Type: "ID!"},
		Children:       []query.Node{&query.Field{SchemaName: "id"}, fragment},
	}
}

// HasQuery reports whether every record and field root asks for is stored.
func (s *Store) HasQuery(root *query.Root) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	values := root.IdentifyingValues()
	if !root.IsPlural() {
		var value any
		if len(values) > 0 {
			value = values[0]
		}
		values = []any{value}
	}
	for _, v := range values {
		id := s.rootDataID(root.FieldName, v)
		if id == "" || !s.hasFields(id, root) {
			return false
		}
	}
	return true
}

func (s *Store) hasFields(id string, node query.Node) bool {
	rec, ok := s.records[id]
	if !ok {
		return false
	}
	for _, child := range node.GetChildren() {
		switch c := child.(type) {
		case *query.Fragment:
			if !s.hasFields(id, c) {
				return false
			}
		case *query.Field:
			v, ok := rec[storageKey(c)]
			if !ok {
				return false
			}
			switch l := v.(type) {
			case linkedID:
				if !s.hasFields(string(l), c) {
					return false
				}
			case linkedIDs:
				for _, item := range l {
					if item != "" && !s.hasFields(item, c) {
						return false
					}
				}
			}
		}
	}
	return true
}

// Ingest normalizes the server-shaped data returned for root. Plural roots
// take a list aligned with the identifying values.
func (s *Store) Ingest(root *query.Root, data any) error {
	w := &writer{store: s, written: map[string]bool{}}
	s.mu.Lock()
	err := w.ingestRoot(root, data)
	if len(w.written) > 0 {
		s.version++
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(w.written)
	return nil
}

type writer struct {
	store   *Store
	written map[string]bool
}

func (w *writer) ingestRoot(root *query.Root, data any) error {
	values := root.IdentifyingValues()
	if root.IsPlural() {
		items, ok := data.([]any)
		if !ok || len(items) != len(values) {
			return fmt.Errorf("%w: %s expects %d results", ErrPayload, root.FieldName, len(values))
		}
		for i, item := range items {
			if err := w.ingestCall(root, values[i], item); err != nil {
				return err
			}
		}
		return nil
	}
	var value any
	if len(values) > 0 {
		value = values[0]
	}
	return w.ingestCall(root, value, data)
}

func (w *writer) ingestCall(root *query.Root, value any, data any) error {
	key := rootKey(root.FieldName, value)
	if data == nil {
		delete(w.store.rootIDs, key)
		return nil
	}
	obj, ok := data.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: %s expects an object, got %T", ErrPayload, key, data)
	}
	id := objectID(obj, "client:root:"+key)
	w.store.rootIDs[key] = id
	return w.writeRecord(id, root, obj)
}

func objectID(obj map[string]any, fallback string) string {
	if id, ok := obj["id"].(string); ok && id != "" {
		return id
	}
	return fallback
}

func (w *writer) writeRecord(id string, node query.Node, obj map[string]any) error {
	rec := w.store.records[id]
	if rec == nil {
		rec = map[string]any{}
		w.store.records[id] = rec
	}
	w.written[id] = true
	for _, child := range node.GetChildren() {
		switch c := child.(type) {
		case *query.Fragment:
			if err := w.writeRecord(id, c, obj); err != nil {
				return err
			}
		case *query.Field:
			v, present := obj[c.SerializationKey()]
			if !present {
				continue
			}
			key := storageKey(c)
			if c.IsScalar() || v == nil {
				rec[key] = v
				continue
			}
			switch val := v.(type) {
			case map[string]any:
				childID := objectID(val, id+":"+key)
				rec[key] = linkedID(childID)
				if err := w.writeRecord(childID, c, val); err != nil {
					return err
				}
			case []any:
				ids := make(linkedIDs, len(val))
				for i, item := range val {
					if item == nil {
						continue
					}
					itemObj, ok := item.(map[string]any)
					if !ok {
						return fmt.Errorf("%w: %s[%d] expects an object, got %T", ErrPayload, key, i, item)
					}
					ids[i] = objectID(itemObj, fmt.Sprintf("%s:%s:%d", id, key, i))
					if err := w.writeRecord(ids[i], c, itemObj); err != nil {
						return err
					}
				}
				rec[key] = ids
			default:
				return fmt.Errorf("%w: %s expects an object or a list, got %T", ErrPayload, key, v)
			}
		}
	}
	return nil
}

// subscribe calls fn after any of ids is written.
func (s *Store) subscribe(ids []string, fn func()) (unsubscribe func()) {
	s.mu.Lock()
	s.nextSub++
	sub := s.nextSub
	for _, id := range ids {
		if s.subs[id] == nil {
			s.subs[id] = map[uint64]func(){}
		}
		s.subs[id][sub] = fn
	}
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, id := range ids {
			delete(s.subs[id], sub)
			if len(s.subs[id]) == 0 {
				delete(s.subs, id)
			}
		}
	}
}

func (s *Store) notify(written map[string]bool) {
	s.mu.RLock()
	seen := map[uint64]bool{}
	var order []uint64
	fns := map[uint64]func(){}
	for id := range written {
		for sub, fn := range s.subs[id] {
			if !seen[sub] {
				seen[sub] = true
				order = append(order, sub)
				fns[sub] = fn
			}
		}
	}
	s.mu.RUnlock()
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	for _, sub := range order {
		fns[sub]()
	}
}

// AddTransaction registers a pending mutation affecting recordIDs.
func (s *Store) AddTransaction(id string, recordIDs ...string) *Transaction {
	s.mu.Lock()
	tx := &Transaction{ID: id, RecordIDs: append([]string(nil), recordIDs...)}
	s.transactions[id] = tx
	s.txOrder = append(s.txOrder, id)
	s.mu.Unlock()
	return tx
}

// CommitTransaction forgets a pending mutation.
func (s *Store) CommitTransaction(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transactions, id)
	for i, txID := range s.txOrder {
		if txID == id {
			s.txOrder = append(s.txOrder[:i:i], s.txOrder[i+1:]...)
			break
		}
	}
}

func (s *Store) HasOptimisticUpdate(id string) bool {
	return s.GetClientMutationIDs(id) != nil
}

// GetClientMutationIDs returns pending mutation ids touching the record in
// the order they were added, or nil.
func (s *Store) GetClientMutationIDs(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for _, txID := range s.txOrder {
		for _, recordID := range s.transactions[txID].RecordIDs {
			if recordID == id {
				ids = append(ids, txID)
				break
			}
		}
	}
	return ids
}

func (s *Store) GetTransaction(clientMutationID string) container.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[clientMutationID]
	if !ok {
		return nil
	}
	return tx
}

var _ container.Store = (*Store)(nil)
