package record

import (
	query "github.com/hanpama/genrelay/internal/query"
)

// RootIDSource maps a root call to a store id.
type RootIDSource interface {
	// GetRootDataID returns the id stored for fieldName called with
	// identifyingValue (nil for calls without an identifying argument), or ""
	// when the store has no result for the call.
	GetRootDataID(fieldName string, identifyingValue any) string
}

// NewRootValue builds the value a root container hands to its child
// container for one query: a *Record tagged with the root fragment's
// pointer, a []any of such records (nil where a call had no result) for
// plural root calls, or nil when nothing was found.
func NewRootValue(src RootIDSource, root *query.Root) any {
	fragment := rootFragment(root)
	if fragment == nil {
		return nil
	}
	if root.IsPlural() {
		values := root.IdentifyingValues()
		out := make([]any, len(values))
		for i, v := range values {
			if id := src.GetRootDataID(root.FieldName, v); id != "" {
				out[i] = taggedRecord(id, fragment)
			}
		}
		return out
	}
	var value any
	if values := root.IdentifyingValues(); len(values) > 0 {
		value = values[0]
	}
	id := src.GetRootDataID(root.FieldName, value)
	if id == "" {
		return nil
	}
	return taggedRecord(id, fragment)
}

func taggedRecord(id string, fragment *query.Fragment) *Record {
	var p *FragmentPointer
	if fragment.Plural {
		p, _ = NewPluralFragmentPointer([]string{id}, fragment)
	} else {
		p, _ = NewFragmentPointer(id, fragment)
	}
	r := &Record{ID: id}
	r.Tag(p)
	return r
}

func rootFragment(root *query.Root) *query.Fragment {
	for _, child := range root.Children {
		if f, ok := child.(*query.Fragment); ok {
			return f
		}
	}
	return nil
}
