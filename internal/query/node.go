// Package query holds the immutable query-tree model consumed by the printer,
// the payload transformer and the containers. Trees are built by callers (or
// by generated code); this package never parses a query language.
package query

// Node is an immutable query-tree node. The concrete variants are *Root,
// *Mutation, *Fragment and *Field; the set is closed.
type Node interface {
	GetChildren() []Node
	GetDirectives() []Directive
	node()
}

// Call is a field, root or mutation argument. A non-empty Type marks the
// argument as typed: printers hoist typed arguments into variables instead of
// inlining the literal value.
type Call struct {
	Name  string
	Value any
	Type  string
}

// Directive is a `@name(arg: value, ...)` annotation.
type Directive struct {
	Name      string
	Arguments []DirectiveArgument
}

type DirectiveArgument struct {
	Name  string
	Value any
}

// BatchCall marks a root as a deferred query that depends on the result of
// another query.
type BatchCall struct {
	SourceQueryID    string
	SourceQueryPath  string
	SourceQueryAlias string
}

// Root is a top-level query: `query Name { fieldName(arg) { ... } }`.
type Root struct {
	Name           string
	FieldName      string
	IdentifyingArg *Call
	BatchCall      *BatchCall
	Directives     []Directive
	Children       []Node
}

func (r *Root) GetChildren() []Node        { return r.Children }
func (r *Root) GetDirectives() []Directive { return r.Directives }
func (*Root) node()                        {}

// IdentifyingValues returns the identifying argument value as a list. A
// slice value yields its elements; a scalar yields a single element; no
// argument yields nil.
func (r *Root) IdentifyingValues() []any {
	if r.IdentifyingArg == nil || r.IdentifyingArg.Value == nil {
		return nil
	}
	switch v := r.IdentifyingArg.Value.(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	default:
		return []any{v}
	}
}

// IsPlural reports whether the identifying argument holds a list of values.
func (r *Root) IsPlural() bool {
	if r.IdentifyingArg == nil {
		return false
	}
	switch r.IdentifyingArg.Value.(type) {
	case []any, []string:
		return true
	}
	return false
}

// Mutation is `mutation Name { callName(input: $input) { ... } }`.
type Mutation struct {
	Name             string
	Call             Call
	CallVariableName string
	InputType        string
	Children         []Node
}

func (m *Mutation) GetChildren() []Node      { return m.Children }
func (*Mutation) GetDirectives() []Directive { return nil }
func (*Mutation) node()                      {}

// Field selects one schema field.
type Field struct {
	SchemaName string
	Alias      string
	Calls      []Call
	Directives []Directive
	Children   []Node
}

func (f *Field) GetChildren() []Node        { return f.Children }
func (f *Field) GetDirectives() []Directive { return f.Directives }
func (*Field) node()                        {}

// ApplicationName is the name consumers address the field by.
func (f *Field) ApplicationName() string { return f.SchemaName }

// SerializationKey is the key the field's value appears under on the wire.
func (f *Field) SerializationKey() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.SchemaName
}

// IsScalar reports whether the field selects no subfields.
func (f *Field) IsScalar() bool { return len(f.Children) == 0 }

// CallsWithValues returns the calls whose value is not nil.
func (f *Field) CallsWithValues() []Call {
	var out []Call
	for _, c := range f.Calls {
		if c.Value != nil {
			out = append(out, c)
		}
	}
	return out
}

// CallType returns the declared type of the named call, or "" when the call
// is untyped or absent.
func (f *Field) CallType(name string) string {
	for _, c := range f.Calls {
		if c.Name == name {
			return c.Type
		}
	}
	return ""
}
