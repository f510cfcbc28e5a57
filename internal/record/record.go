// Package record defines the values exchanged between the store, resolvers
// and containers: resolved records and the fragment pointers tagged onto them.
package record

import (
	"errors"
	"fmt"

	query "github.com/hanpama/genrelay/internal/query"
)

// ErrPointerShape reports a pointer whose id shape disagrees with the
// plurality of its fragment.
var ErrPointerShape = errors.New("record: pointer shape does not match fragment plurality")

// Record is a resolved store record. Pointers holds the identity pointers of
// the fragments this record can satisfy, keyed by fragment concrete hash; a
// child container reads its pointer from there.
type Record struct {
	ID       string
	Fields   map[string]any
	Pointers map[string]*FragmentPointer
}

// Get returns the named field value.
func (r *Record) Get(name string) any {
	if r == nil {
		return nil
	}
	return r.Fields[name]
}

// PointerFor returns the pointer tagged for fragment, or nil.
func (r *Record) PointerFor(fragment *query.Fragment) *FragmentPointer {
	if r == nil || r.Pointers == nil {
		return nil
	}
	return r.Pointers[fragment.ConcreteHash()]
}

// Tag attaches p under its fragment's concrete hash.
func (r *Record) Tag(p *FragmentPointer) {
	if r.Pointers == nil {
		r.Pointers = make(map[string]*FragmentPointer)
	}
	r.Pointers[p.Fragment().ConcreteHash()] = p
}

// HasPointer reports whether v is a record carrying a pointer for the given
// concrete hash.
func HasPointer(v any, concreteHash string) bool {
	r, ok := v.(*Record)
	if !ok || r == nil {
		return false
	}
	_, ok = r.Pointers[concreteHash]
	return ok
}

// IsRecord reports whether v is a non-nil *Record.
func IsRecord(v any) bool {
	r, ok := v.(*Record)
	return ok && r != nil
}

// DataIDKey is the key carrying the store id in plain map data.
const DataIDKey = "__dataID__"

// GetDataID returns the store id of v when v is a record with an id, or a
// map carrying a string DataIDKey.
func GetDataID(v any) (string, bool) {
	switch r := v.(type) {
	case *Record:
		if r == nil || r.ID == "" {
			return "", false
		}
		return r.ID, true
	case map[string]any:
		id, ok := r[DataIDKey].(string)
		return id, ok && id != ""
	}
	return "", false
}

// FragmentPointer binds a fragment to the record id (singular fragments) or
// ordered record ids (plural fragments) that currently answer it.
type FragmentPointer struct {
	fragment *query.Fragment
	ids      []string
}

// NewFragmentPointer returns a pointer for a singular fragment.
func NewFragmentPointer(id string, fragment *query.Fragment) (*FragmentPointer, error) {
	if fragment.Plural {
		return nil, fmt.Errorf("%w: fragment %s is plural, got a single id", ErrPointerShape, fragment.DebugName())
	}
	return &FragmentPointer{fragment: fragment, ids: []string{id}}, nil
}

// NewPluralFragmentPointer returns a pointer for a plural fragment. ids may
// be empty but is never treated as a scalar.
func NewPluralFragmentPointer(ids []string, fragment *query.Fragment) (*FragmentPointer, error) {
	if !fragment.Plural {
		return nil, fmt.Errorf("%w: fragment %s is not plural, got a list of ids", ErrPointerShape, fragment.DebugName())
	}
	cp := make([]string, len(ids))
	copy(cp, ids)
	return &FragmentPointer{fragment: fragment, ids: cp}, nil
}

func (p *FragmentPointer) Fragment() *query.Fragment { return p.fragment }
func (p *FragmentPointer) IsPlural() bool            { return p.fragment.Plural }

// DataID returns the id of a singular pointer; it is "" for plural pointers.
func (p *FragmentPointer) DataID() string {
	if p.fragment.Plural {
		return ""
	}
	return p.ids[0]
}

// DataIDs returns a copy of the pointer's ids.
func (p *FragmentPointer) DataIDs() []string {
	cp := make([]string, len(p.ids))
	copy(cp, p.ids)
	return cp
}

func (p *FragmentPointer) String() string {
	if p.fragment.Plural {
		return fmt.Sprintf("%s%v", p.fragment.DebugName(), p.ids)
	}
	return fmt.Sprintf("%s(%s)", p.fragment.DebugName(), p.ids[0])
}
