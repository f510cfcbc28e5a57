package executor

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	schema "github.com/hanpama/genrelay/internal/schema"
	"github.com/vektah/gqlparser/v2/ast"
)

type Path []PathElement

type PathElement any

// executionState holds the state of one operation.
type executionState struct {
	ctx            context.Context
	runtime        Runtime
	schema         *schema.Schema
	document       *ast.QueryDocument
	variableValues map[string]any
	errors         []GraphQLError
}

type Executor struct {
	runtime Runtime
	schema  *schema.Schema
}

func NewExecutor(runtime Runtime, schema *schema.Schema) *Executor {
	return &Executor{runtime: runtime, schema: schema}
}

// ExecuteRequest runs the named operation of document (the only one when
// operationName is empty) with initialValue as the root source.
func (e *Executor) ExecuteRequest(
	ctx context.Context,
	document *ast.QueryDocument,
	operationName string,
	variableValues map[string]any,
	initialValue any,
) *ExecutionResult {
	operation := getOperation(document, operationName)
	if operation == nil {
		return &ExecutionResult{Errors: []GraphQLError{{Message: "operation not found"}}}
	}

	coerced, err := coerceVariableValues(operation, variableValues)
	if err != nil {
		return &ExecutionResult{Errors: []GraphQLError{{Message: err.Error()}}}
	}

	rootType := e.schema.RootType(operation.Operation)
	if rootType == nil {
		return &ExecutionResult{Errors: []GraphQLError{{Message: fmt.Sprintf("root type not found for %s operation", operation.Operation)}}}
	}

	state := &executionState{
		ctx:            ctx,
		runtime:        e.runtime,
		schema:         e.schema,
		document:       document,
		variableValues: coerced,
		errors:         []GraphQLError{},
	}
	data := executeSelectionSet(state, rootType, operation.SelectionSet, initialValue, Path{})
	return &ExecutionResult{Data: data, Errors: state.errors}
}

// executeSelectionSet completes the fields of one object value. It returns
// nil when a Non-Null field below a non-root object came back null.
func executeSelectionSet(state *executionState, objectType *ast.Definition, selectionSet ast.SelectionSet, objectValue any, path Path) map[string]any {
	resultMap := make(map[string]any)

	for _, collected := range collectFields(state, objectType, selectionSet).orderedFields() {
		responseName := collected.ResponseName
		fields := collected.Fields
		fieldPath := appendPath(path, responseName)

		if fields[0].Name == "__typename" {
			resultMap[responseName] = objectType.Name
			continue
		}

		fieldDef := objectType.Fields.ForName(fields[0].Name)
		if fieldDef == nil {
			state.addError(fmt.Sprintf("Cannot query field '%s' on type '%s'", fields[0].Name, objectType.Name), fieldPath)
			continue
		}

		fieldResult := executeField(state, objectType, fieldDef, objectValue, fields, fieldPath)
		if isNullish(fieldResult) {
			if fieldDef.Type.NonNull && len(path) > 0 {
				return nil
			}
			resultMap[responseName] = nil
			continue
		}
		resultMap[responseName] = fieldResult
	}

	return resultMap
}

func executeField(state *executionState, objectType *ast.Definition, fieldDef *ast.FieldDefinition, objectValue any, fields []*ast.Field, path Path) any {
	args, err := coerceArgumentValues(fieldDef, fields[0].Arguments, state.variableValues)
	if err != nil {
		state.addError(err.Error(), path)
		return completeValue(state, fieldDef.Type, fields, nil, path)
	}
	value, err := state.runtime.Resolve(state.ctx, objectType.Name, fieldDef.Name, objectValue, args)
	if err != nil {
		state.addError(err.Error(), path)
		value = nil
	}
	return completeValue(state, fieldDef.Type, fields, value, path)
}

func completeValue(state *executionState, fieldType *ast.Type, fields []*ast.Field, result any, path Path) any {
	if fieldType.NonNull {
		if isNullish(result) {
			if !state.hasErrorAtPath(path) {
				state.addError(fmt.Sprintf("Cannot return null for non-nullable field %s", pathToString(path)), path)
			}
			return nil
		}
		inner := *fieldType
		inner.NonNull = false
		return completeValue(state, &inner, fields, result, path)
	}

	if isNullish(result) {
		return nil
	}

	if fieldType.Elem != nil {
		return completeListValue(state, fieldType, fields, result, path)
	}

	typeDef := state.schema.Type(fieldType.NamedType)
	if typeDef == nil {
		state.addError(fmt.Sprintf("Unknown type: %s", fieldType.NamedType), path)
		return nil
	}

	switch typeDef.Kind {
	case ast.Scalar, ast.Enum:
		serialized, err := state.runtime.SerializeLeafValue(state.ctx, typeDef.Name, result)
		if err != nil {
			state.addError(err.Error(), path)
			return nil
		}
		return serialized
	case ast.Object:
		return completeObjectValue(state, typeDef, fields, result, path)
	case ast.Interface, ast.Union:
		return completeAbstractValue(state, typeDef, fields, result, path)
	default:
		state.addError(fmt.Sprintf("Cannot complete value of unexpected type: %s", typeDef.Kind), path)
		return nil
	}
}

func completeListValue(state *executionState, listType *ast.Type, fields []*ast.Field, result any, path Path) any {
	var items []any
	if direct, ok := result.([]any); ok {
		items = direct
	} else {
		rv := reflect.ValueOf(result)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			state.addError(fmt.Sprintf("Expected list value, got %T", result), path)
			return nil
		}
		items = make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = rv.Index(i).Interface()
		}
	}

	inner := listType.Elem
	completed := make([]any, len(items))
	for i, item := range items {
		v := completeValue(state, inner, fields, item, appendPath(path, i))
		if inner.NonNull && isNullish(v) {
			return nil
		}
		completed[i] = v
	}
	return completed
}

func completeObjectValue(state *executionState, objectType *ast.Definition, fields []*ast.Field, result any, path Path) any {
	m := executeSelectionSet(state, objectType, mergeSelectionSets(fields), result, path)
	if m == nil {
		return nil
	}
	return m
}

func completeAbstractValue(state *executionState, abstractType *ast.Definition, fields []*ast.Field, result any, path Path) any {
	typeName, err := state.runtime.ResolveType(state.ctx, abstractType.Name, result)
	if err != nil {
		state.addError(err.Error(), path)
		return nil
	}
	objectType := state.schema.Type(typeName)
	if objectType == nil || objectType.Kind != ast.Object || !state.schema.Applies(objectType, abstractType.Name) {
		state.addError(fmt.Sprintf("Abstract type %s must resolve to an Object type at runtime. Got: %s", abstractType.Name, typeName), path)
		return nil
	}
	return completeObjectValue(state, objectType, fields, result, path)
}

func getOperation(document *ast.QueryDocument, operationName string) *ast.OperationDefinition {
	if operationName == "" {
		if len(document.Operations) == 1 {
			return document.Operations[0]
		}
		return nil
	}
	return document.Operations.ForName(operationName)
}

func (state *executionState) addError(message string, path Path) {
	state.errors = append(state.errors, GraphQLError{Message: message, Path: path})
}

func (state *executionState) hasErrorAtPath(path Path) bool {
	for _, err := range state.errors {
		if reflect.DeepEqual(err.Path, path) {
			return true
		}
	}
	return false
}

func pathToString(path Path) string {
	var b strings.Builder
	for i, elem := range path {
		switch v := elem.(type) {
		case string:
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(v)
		case int:
			fmt.Fprintf(&b, "[%d]", v)
		}
	}
	return b.String()
}

func appendPath(path Path, elem PathElement) Path {
	newPath := make(Path, len(path)+1)
	copy(newPath, path)
	newPath[len(path)] = elem
	return newPath
}

func mergeSelectionSets(fields []*ast.Field) ast.SelectionSet {
	var merged ast.SelectionSet
	for _, f := range fields {
		merged = append(merged, f.SelectionSet...)
	}
	return merged
}

// isNullish reports nil interfaces and typed nils.
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
