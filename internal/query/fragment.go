package query

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Fragment is a named, reusable selection bound to a type. Plural fragments
// select a list of records rather than a single record.
type Fragment struct {
	Name       string
	Type       string
	Plural     bool
	Directives []Directive
	Children   []Node

	cloned bool
}

func (f *Fragment) GetChildren() []Node        { return f.Children }
func (f *Fragment) GetDirectives() []Directive { return f.Directives }
func (*Fragment) node()                        {}

// DebugName is the name printed for a top-level fragment.
func (f *Fragment) DebugName() string {
	if f.Name == "" {
		return "UnknownFragment"
	}
	return f.Name
}

// IsCloned reports whether the fragment was derived through Clone.
func (f *Fragment) IsCloned() bool { return f.cloned }

// Clone returns a copy of the fragment with the given children.
func (f *Fragment) Clone(children ...Node) *Fragment {
	c := *f
	c.Children = children
	c.cloned = true
	return &c
}

// ConcreteHash identifies the fragment definition regardless of the argument
// values bound into it. Records carry identity pointers under this key.
func (f *Fragment) ConcreteHash() string {
	return hashFragment(f, false)
}

// CompositeHash identifies the fragment including bound argument values and
// the composite hashes of nested fragments.
func (f *Fragment) CompositeHash() string {
	return hashFragment(f, true)
}

func hashFragment(f *Fragment, withValues bool) string {
	d := xxhash.New()
	w := hashWriter{d: d, withValues: withValues}
	w.str("fragment")
	w.str(f.Name)
	w.str(f.Type)
	w.bool(f.Plural)
	w.directives(f.Directives)
	w.children(f.Children)
	return strconv.FormatUint(d.Sum64(), 36)
}

type hashWriter struct {
	d          *xxhash.Digest
	withValues bool
}

func (w hashWriter) str(s string) {
	_, _ = w.d.WriteString(s)
	_, _ = w.d.Write([]byte{0})
}

func (w hashWriter) bool(b bool) {
	if b {
		w.str("1")
	} else {
		w.str("0")
	}
}

func (w hashWriter) value(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		w.str(fmt.Sprintf("%#v", v))
		return
	}
	w.str(string(b))
}

func (w hashWriter) directives(ds []Directive) {
	w.str(strconv.Itoa(len(ds)))
	for _, d := range ds {
		w.str(d.Name)
		for _, a := range d.Arguments {
			w.str(a.Name)
			w.value(a.Value)
		}
	}
}

func (w hashWriter) children(children []Node) {
	w.str("{")
	for _, child := range children {
		switch c := child.(type) {
		case *Field:
			w.str("field")
			w.str(c.SchemaName)
			w.str(c.Alias)
			for _, call := range c.Calls {
				w.str(call.Name)
				w.str(call.Type)
				if w.withValues {
					w.value(call.Value)
				}
			}
			w.directives(c.Directives)
			w.children(c.Children)
		case *Fragment:
			w.str("spread")
			w.str(hashFragment(c, w.withValues))
		default:
			w.str(fmt.Sprintf("%T", child))
		}
	}
	w.str("}")
}
