// Package language wraps gqlparser for the places that need to look at
// printed query text: outgoing request validation and tests.
package language

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

type (
	QueryDocument  = ast.QueryDocument
	SelectionSet   = ast.SelectionSet
	Field          = ast.Field
	InlineFragment = ast.InlineFragment
	FragmentSpread = ast.FragmentSpread
)

// ParseQuery parses source without schema validation.
func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ValidateQuery checks that text is a syntactically valid executable document
// holding exactly one operation, and that every fragment spread refers to a
// fragment defined in the same document.
func ValidateQuery(text string) error {
	doc, err := ParseQuery(text)
	if err != nil {
		return err
	}
	if len(doc.Operations) != 1 {
		return fmt.Errorf("expected exactly one operation, got %d", len(doc.Operations))
	}
	defined := make(map[string]struct{}, len(doc.Fragments))
	for _, f := range doc.Fragments {
		defined[f.Name] = struct{}{}
	}
	var missing string
	var walk func(SelectionSet)
	walk = func(set SelectionSet) {
		for _, sel := range set {
			switch s := sel.(type) {
			case *Field:
				walk(s.SelectionSet)
			case *InlineFragment:
				walk(s.SelectionSet)
			case *FragmentSpread:
				if _, ok := defined[s.Name]; !ok && missing == "" {
					missing = s.Name
				}
			}
		}
	}
	walk(doc.Operations[0].SelectionSet)
	for _, f := range doc.Fragments {
		walk(f.SelectionSet)
	}
	if missing != "" {
		return fmt.Errorf("undefined fragment %q", missing)
	}
	return nil
}
