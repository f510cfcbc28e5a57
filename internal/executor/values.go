package executor

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/vektah/gqlparser/v2/ast"
)

// coerceVariableValues coerces provided variables against the operation's
// variable definitions, filling in defaults.
func coerceVariableValues(operation *ast.OperationDefinition, variableValues map[string]any) (map[string]any, error) {
	coerced := make(map[string]any)
	for _, varDef := range operation.VariableDefinitions {
		name := varDef.Variable
		t := varDef.Type
		val, ok := variableValues[name]
		if !ok {
			if varDef.DefaultValue != nil {
				val = astValueToGo(varDef.DefaultValue)
			} else if t.NonNull {
				return nil, fmt.Errorf("variable $%s of required type %s was not provided", name, t.String())
			} else {
				continue
			}
		}
		if val == nil && t.NonNull {
			return nil, fmt.Errorf("variable $%s of type %s cannot be null", name, t.String())
		}
		cv, err := coerceValue(val, t)
		if err != nil {
			return nil, fmt.Errorf("variable $%s of type %s cannot be coerced: %v", name, t.String(), err)
		}
		coerced[name] = cv
	}
	return coerced, nil
}

// coerceArgumentValues returns the field's arguments with defaults applied.
func coerceArgumentValues(fieldDef *ast.FieldDefinition, arguments ast.ArgumentList, variableValues map[string]any) (map[string]any, error) {
	coerced := make(map[string]any, len(fieldDef.Arguments))
	for _, argDef := range fieldDef.Arguments {
		var val any
		provided := false
		if arg := arguments.ForName(argDef.Name); arg != nil {
			if arg.Value.Kind == ast.Variable {
				val, provided = variableValues[arg.Value.Raw]
			} else {
				val, provided = astValueToGo(arg.Value), true
			}
		}
		if !provided {
			if argDef.DefaultValue != nil {
				coerced[argDef.Name] = astValueToGo(argDef.DefaultValue)
			} else if argDef.Type.NonNull {
				return nil, fmt.Errorf("argument '%s' of required type %s was not provided", argDef.Name, argDef.Type.String())
			}
			continue
		}
		cv, err := coerceValue(val, argDef.Type)
		if err != nil {
			return nil, fmt.Errorf("argument '%s' cannot be coerced: %v", argDef.Name, err)
		}
		coerced[argDef.Name] = cv
	}
	return coerced, nil
}

// valueFromAST converts an AST value, substituting variables.
func valueFromAST(value *ast.Value, variableValues map[string]any) any {
	if value == nil {
		return nil
	}
	if value.Kind == ast.Variable {
		return variableValues[value.Raw]
	}
	return astValueToGo(value)
}

func astValueToGo(value *ast.Value) any {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case ast.IntValue:
		iv, _ := strconv.Atoi(value.Raw)
		return iv
	case ast.FloatValue:
		fv, _ := strconv.ParseFloat(value.Raw, 64)
		return fv
	case ast.StringValue, ast.BlockValue, ast.EnumValue:
		return value.Raw
	case ast.BooleanValue:
		return value.Raw == "true"
	case ast.ListValue:
		out := make([]any, len(value.Children))
		for i, c := range value.Children {
			out[i] = astValueToGo(c.Value)
		}
		return out
	case ast.ObjectValue:
		m := make(map[string]any, len(value.Children))
		for _, f := range value.Children {
			m[f.Name] = astValueToGo(f.Value)
		}
		return m
	default:
		return nil
	}
}

// coerceValue coerces an input value to targetType. A single value given for
// a list type becomes a list of one.
func coerceValue(value any, targetType *ast.Type) (any, error) {
	if targetType.NonNull {
		if value == nil {
			return nil, fmt.Errorf("cannot provide null for non-null type")
		}
		inner := *targetType
		inner.NonNull = false
		return coerceValue(value, &inner)
	}
	if value == nil {
		return nil, nil
	}

	if targetType.Elem != nil {
		items, ok := value.([]any)
		if !ok {
			items = []any{value}
		}
		out := make([]any, len(items))
		for i, item := range items {
			cv, err := coerceValue(item, targetType.Elem)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	}

	switch targetType.NamedType {
	case "Int":
		return coerceToInt(value)
	case "Float":
		return coerceToFloat(value)
	case "String":
		if v, ok := value.(string); ok {
			return v, nil
		}
		return nil, fmt.Errorf("cannot coerce %v (%T) to string", value, value)
	case "Boolean":
		if v, ok := value.(bool); ok {
			return v, nil
		}
		return nil, fmt.Errorf("cannot coerce %v (%T) to boolean", value, value)
	case "ID":
		return coerceToID(value)
	default:
		return value, nil
	}
}

func coerceToInt(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v == math.Trunc(v) {
			return int(v), nil
		}
	case json.Number:
		if iv, err := strconv.Atoi(v.String()); err == nil {
			return iv, nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to int", value, value)
}

func coerceToFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to float", value, value)
}

func coerceToID(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10), nil
		}
	case json.Number:
		return v.String(), nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to ID", value, value)
}
