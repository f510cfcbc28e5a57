package memstore

import (
	container "github.com/hanpama/genrelay/internal/container"
	query "github.com/hanpama/genrelay/internal/query"
	record "github.com/hanpama/genrelay/internal/record"
)

// Resolver reads fragment pointers out of a Store. Fragments nested in the
// pointer's fragment are not expanded: the records they apply to are tagged
// with pointers for them instead, for child containers to resolve.
type Resolver struct {
	store    *Store
	onUpdate func()

	unsubscribe func()
	pointer     *record.FragmentPointer
	version     uint64
	result      any
}

// NewResolver is a container.ResolverFactory over a *Store. Other stores
// resolve to nil.
func NewResolver(store container.Store, _ *record.FragmentPointer, onUpdate func()) container.Resolver {
	s, _ := store.(*Store)
	return &Resolver{store: s, onUpdate: onUpdate}
}

// Resolve returns a *record.Record for singular pointers and a []any of
// them for plural pointers. The previous result is returned while neither
// the pointer nor the store changed.
func (r *Resolver) Resolve(pointer *record.FragmentPointer) any {
	if r.store == nil || pointer == nil {
		return nil
	}
	r.store.mu.RLock()
	version := r.store.version
	if r.pointer == pointer && r.version == version {
		r.store.mu.RUnlock()
		return r.result
	}
	rd := &reader{store: r.store, touched: map[string]bool{}}
	var result any
	if pointer.IsPlural() {
		ids := pointer.DataIDs()
		items := make([]any, len(ids))
		for i, id := range ids {
			if rec := rd.readFragment(id, pointer.Fragment()); rec != nil {
				items[i] = rec
			}
		}
		result = items
	} else if rec := rd.readFragment(pointer.DataID(), pointer.Fragment()); rec != nil {
		result = rec
	}
	r.store.mu.RUnlock()

	if r.unsubscribe != nil {
		r.unsubscribe()
	}
	r.unsubscribe = r.store.subscribe(rd.touchedIDs(), r.handleChange)
	r.pointer, r.version, r.result = pointer, version, result
	return result
}

func (r *Resolver) handleChange() {
	if r.onUpdate != nil {
		r.onUpdate()
	}
}

// Reset drops the subscription and the cached result.
func (r *Resolver) Reset() {
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
	r.pointer, r.version, r.result = nil, 0, nil
}

type reader struct {
	store   *Store
	touched map[string]bool
}

func (rd *reader) touchedIDs() []string {
	ids := make([]string, 0, len(rd.touched))
	for id := range rd.touched {
		ids = append(ids, id)
	}
	return ids
}

func (rd *reader) readFragment(id string, fragment *query.Fragment) *record.Record {
	rd.touched[id] = true
	if _, ok := rd.store.records[id]; !ok {
		return nil
	}
	out := &record.Record{ID: id, Fields: map[string]any{}}
	rd.readChildren(id, fragment, out)
	return out
}

func (rd *reader) readChildren(id string, node query.Node, out *record.Record) {
	rec := rd.store.records[id]
	for _, child := range node.GetChildren() {
		switch c := child.(type) {
		case *query.Fragment:
			tagFragment(out, id, c)
		case *query.Field:
			v, ok := rec[storageKey(c)]
			if !ok {
				continue
			}
			switch l := v.(type) {
			case linkedID:
				out.Fields[c.ApplicationName()] = rd.readLinked(string(l), c)
			case linkedIDs:
				items := make([]any, len(l))
				for i, itemID := range l {
					if itemID == "" {
						continue
					}
					if item := rd.readLinked(itemID, c); item != nil {
						items[i] = item
					}
				}
				out.Fields[c.ApplicationName()] = items
			default:
				out.Fields[c.ApplicationName()] = v
			}
		}
	}
}

func (rd *reader) readLinked(id string, field *query.Field) any {
	rd.touched[id] = true
	if _, ok := rd.store.records[id]; !ok {
		return nil
	}
	out := &record.Record{ID: id, Fields: map[string]any{}}
	rd.readChildren(id, field, out)
	return out
}

func tagFragment(out *record.Record, id string, fragment *query.Fragment) {
	var p *record.FragmentPointer
	var err error
	if fragment.Plural {
		p, err = record.NewPluralFragmentPointer([]string{id}, fragment)
	} else {
		p, err = record.NewFragmentPointer(id, fragment)
	}
	if err == nil {
		out.Tag(p)
	}
}

var _ container.ResolverFactory = NewResolver
