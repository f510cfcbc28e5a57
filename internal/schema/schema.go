// Package schema loads GraphQL SDL and validates executable documents
// against it. Type lookups hand out gqlparser definitions directly.
package schema

import (
	"errors"
	"fmt"
	"io"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// ErrInvalidSchema reports SDL that does not parse or validate.
var ErrInvalidSchema = errors.New("schema: invalid SDL")

type Schema struct {
	ast *ast.Schema
}

// BuildFromSDL parses and validates sdl. name appears in error locations.
func BuildFromSDL(name, sdl string) (*Schema, error) {
	s, err := gqlparser.LoadSchema(&ast.Source{Name: name, Input: sdl})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	return &Schema{ast: s}, nil
}

// AST returns the underlying gqlparser schema.
func (s *Schema) AST() *ast.Schema { return s.ast }

// RootType returns the root object type serving op, or nil.
func (s *Schema) RootType(op ast.Operation) *ast.Definition {
	switch op {
	case ast.Query:
		return s.ast.Query
	case ast.Mutation:
		return s.ast.Mutation
	case ast.Subscription:
		return s.ast.Subscription
	}
	return nil
}

func (s *Schema) Type(name string) *ast.Definition { return s.ast.Types[name] }

// Applies reports whether a selection with typeCondition applies to values
// of the object type.
func (s *Schema) Applies(object *ast.Definition, typeCondition string) bool {
	if typeCondition == "" || typeCondition == object.Name {
		return true
	}
	def := s.ast.Types[typeCondition]
	if def == nil || !def.IsAbstractType() {
		return false
	}
	for _, t := range s.ast.GetPossibleTypes(def) {
		if t.Name == object.Name {
			return true
		}
	}
	return false
}

// ParseQuery parses text and validates it against the schema. Fields of a
// valid document carry their definitions.
func (s *Schema) ParseQuery(text string) (*ast.QueryDocument, gqlerror.List) {
	return gqlparser.LoadQuery(s.ast, text)
}

// Render writes the schema as SDL, leaving out built-in definitions.
func (s *Schema) Render(w io.Writer) {
	formatter.NewFormatter(w).FormatSchema(s.ast)
}
