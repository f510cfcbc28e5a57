package executor

import (
	"github.com/vektah/gqlparser/v2/ast"
)

// collectedFieldMap preserves field order from the original query
type collectedFieldMap struct {
	fields []collectedField
	index  map[string]int
}

type collectedField struct {
	ResponseName string
	Fields       []*ast.Field
}

func (cfm *collectedFieldMap) add(responseName string, field *ast.Field) {
	if idx, exists := cfm.index[responseName]; exists {
		cfm.fields[idx].Fields = append(cfm.fields[idx].Fields, field)
		return
	}
	cfm.index[responseName] = len(cfm.fields)
	cfm.fields = append(cfm.fields, collectedField{ResponseName: responseName, Fields: []*ast.Field{field}})
}

func (cfm *collectedFieldMap) orderedFields() []collectedField {
	return cfm.fields
}

func collectFields(state *executionState, objectType *ast.Definition, selectionSet ast.SelectionSet) *collectedFieldMap {
	grouped := &collectedFieldMap{index: make(map[string]int)}
	collectFieldsImpl(state, objectType, selectionSet, grouped, make(map[string]bool))
	return grouped
}

func collectFieldsImpl(state *executionState, objectType *ast.Definition, selectionSet ast.SelectionSet, grouped *collectedFieldMap, visitedFragments map[string]bool) {
	for _, selection := range selectionSet {
		switch sel := selection.(type) {
		case *ast.Field:
			if !shouldIncludeNode(state, sel.Directives) {
				continue
			}
			responseName := sel.Alias
			if responseName == "" {
				responseName = sel.Name
			}
			grouped.add(responseName, sel)

		case *ast.InlineFragment:
			if !shouldIncludeNode(state, sel.Directives) {
				continue
			}
			if !state.schema.Applies(objectType, sel.TypeCondition) {
				continue
			}
			collectFieldsImpl(state, objectType, sel.SelectionSet, grouped, visitedFragments)

		case *ast.FragmentSpread:
			if !shouldIncludeNode(state, sel.Directives) {
				continue
			}
			if visitedFragments[sel.Name] {
				continue
			}
			visitedFragments[sel.Name] = true

			fragmentDef := sel.Definition
			if fragmentDef == nil {
				fragmentDef = state.document.Fragments.ForName(sel.Name)
			}
			if fragmentDef == nil || !state.schema.Applies(objectType, fragmentDef.TypeCondition) {
				continue
			}
			collectFieldsImpl(state, objectType, fragmentDef.SelectionSet, grouped, visitedFragments)
		}
	}
}

// shouldIncludeNode applies @skip and @include.
func shouldIncludeNode(state *executionState, directives ast.DirectiveList) bool {
	if skip := directives.ForName("skip"); skip != nil {
		if v, ok := directiveArgument(state, skip, "if").(bool); ok && v {
			return false
		}
	}
	if include := directives.ForName("include"); include != nil {
		if v, ok := directiveArgument(state, include, "if").(bool); ok && !v {
			return false
		}
	}
	return true
}

func directiveArgument(state *executionState, directive *ast.Directive, name string) any {
	arg := directive.Arguments.ForName(name)
	if arg == nil {
		return nil
	}
	return valueFromAST(arg.Value, state.variableValues)
}
