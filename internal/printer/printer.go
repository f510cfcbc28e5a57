// Package printer serializes query trees into GraphQL wire text.
//
// Print walks a Root, Mutation or Fragment and produces the operation text
// followed by one top-level definition per distinct nested fragment. Typed
// arguments are always hoisted into operation variables; their values are
// returned alongside the text. Every call allocates its own printerState, so
// Print is safe to call from multiple goroutines on shared, immutable trees.
package printer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	query "github.com/hanpama/genrelay/internal/query"
)

// Printed is the wire form of a query tree.
type Printed struct {
	Text      string
	Variables map[string]any
}

type variable struct {
	typ   string
	value any
}

// printerState is threaded through the recursive walk. Children must be
// printed before the variable definitions are rendered because printing
// children is what fills variableIDs.
type printerState struct {
	fragmentCount      int
	fragmentNameByHash map[string]string
	fragmentNameByText map[string]string
	fragmentTexts      []string
	variableCount      int
	variableIDs        []string
	variableMap        map[string]variable
}

func newPrinterState() *printerState {
	return &printerState{
		fragmentNameByHash: make(map[string]string),
		fragmentNameByText: make(map[string]string),
		variableMap:        make(map[string]variable),
	}
}

// Print returns the text and variables for node.
func Print(node query.Node) (*Printed, error) {
	state := newPrinterState()
	var (
		text string
		err  error
	)
	switch n := node.(type) {
	case *query.Root:
		text, err = printRoot(n, state)
	case *query.Mutation:
		text, err = printMutation(n, state)
	case *query.Fragment:
		text, err = printFragment(n, state)
	default:
		err = fmt.Errorf("%w: %T", ErrUnsupported, node)
	}
	if err != nil {
		return nil, err
	}

	parts := make([]string, 0, len(state.fragmentTexts)+1)
	parts = append(parts, text)
	parts = append(parts, state.fragmentTexts...)
	variables := make(map[string]any, len(state.variableMap))
	for id, v := range state.variableMap {
		variables[id] = v.value
	}
	return &Printed{Text: strings.Join(parts, " "), Variables: variables}, nil
}

func printRoot(node *query.Root, state *printerState) (string, error) {
	if node.BatchCall != nil {
		return "", fmt.Errorf("%w: deferred queries are not supported", ErrUnsupported)
	}
	fieldName := node.FieldName
	if arg := node.IdentifyingArg; arg != nil && arg.Value != nil {
		if arg.Name == "" {
			return "", fmt.Errorf("%w: expected an argument name for root field %q", ErrInvalidNode, fieldName)
		}
		argText, err := printArgument(arg.Name, arg.Value, arg.Type, state)
		if err != nil {
			return "", err
		}
		if argText != "" {
			fieldName += "(" + argText + ")"
		}
	}
	children, err := printChildren(node, state)
	if err != nil {
		return "", err
	}
	directives, err := printDirectives(node)
	if err != nil {
		return "", err
	}
	queryString := node.Name + printVariableDefinitions(state)
	return "query " + queryString + "{" + fieldName + directives + children + "}", nil
}

func printMutation(node *query.Mutation, state *printerState) (string, error) {
	inputString, err := printArgument(node.CallVariableName, node.Call.Value, node.InputType, state)
	if err != nil {
		return "", err
	}
	if inputString == "" {
		return "", fmt.Errorf("%w: expected mutation %q to have a value for %q", ErrInvalidNode, node.Name, node.CallVariableName)
	}
	children, err := printChildren(node, state)
	if err != nil {
		return "", err
	}
	mutationString := node.Name + printVariableDefinitions(state)
	fieldName := node.Call.Name + "(" + inputString + ")"
	return "mutation " + mutationString + "{" + fieldName + children + "}", nil
}

func printFragment(node *query.Fragment, state *printerState) (string, error) {
	directives, err := printDirectives(node)
	if err != nil {
		return "", err
	}
	children, err := printChildren(node, state)
	if err != nil {
		return "", err
	}
	return "fragment " + node.DebugName() + " on " + node.Type + directives + children, nil
}

func printVariableDefinitions(state *printerState) string {
	if len(state.variableIDs) == 0 {
		return ""
	}
	defs := make([]string, len(state.variableIDs))
	for i, id := range state.variableIDs {
		defs[i] = "$" + id + ":" + state.variableMap[id].typ
	}
	return "(" + strings.Join(defs, ",") + ")"
}

func printChildren(node query.Node, state *printerState) (string, error) {
	var childrenText []string
	// spreads already emitted in this selection set
	var spreads map[string]struct{}
	for _, child := range node.GetChildren() {
		switch c := child.(type) {
		case *query.Field:
			text, err := printField(c, state)
			if err != nil {
				return "", err
			}
			childrenText = append(childrenText, text)
		case *query.Fragment:
			if len(c.Children) == 0 {
				continue
			}
			name, err := fragmentName(c, state)
			if err != nil {
				return "", err
			}
			if _, ok := spreads[name]; ok {
				continue
			}
			if spreads == nil {
				spreads = make(map[string]struct{})
			}
			spreads[name] = struct{}{}
			childrenText = append(childrenText, "..."+name)
		default:
			return "", fmt.Errorf("%w: expected a field or fragment, got %T", ErrInvalidNode, child)
		}
	}
	if len(childrenText) == 0 {
		return "", nil
	}
	return "{" + strings.Join(childrenText, ",") + "}", nil
}

func printField(field *query.Field, state *printerState) (string, error) {
	text := field.SchemaName
	if calls := field.CallsWithValues(); len(calls) > 0 {
		text = field.SerializationKey() + ":" + text
		var args []string
		for _, call := range calls {
			arg, err := printArgument(call.Name, call.Value, field.CallType(call.Name), state)
			if err != nil {
				return "", err
			}
			if arg != "" {
				args = append(args, arg)
			}
		}
		if len(args) > 0 {
			text += "(" + strings.Join(args, ",") + ")"
		}
	}
	directives, err := printDirectives(field)
	if err != nil {
		return "", err
	}
	text += directives
	if len(field.Children) > 0 {
		children, err := printChildren(field, state)
		if err != nil {
			return "", err
		}
		text += children
	}
	return text, nil
}

// fragmentName returns the generated name for a nested fragment, emitting its
// top-level definition the first time it is seen. Lookups go by composite hash
// first and by rendered text second.
func fragmentName(fragment *query.Fragment, state *printerState) (string, error) {
	hash := ""
	if !fragment.IsCloned() {
		hash = fragment.CompositeHash()
	}
	if hash != "" {
		if name, ok := state.fragmentNameByHash[hash]; ok {
			return name, nil
		}
	}

	directives, err := printDirectives(fragment)
	if err != nil {
		return "", err
	}
	children, err := printChildren(fragment, state)
	if err != nil {
		return "", err
	}
	text := fragment.Type + directives + children
	if name, ok := state.fragmentNameByText[text]; ok {
		return name, nil
	}
	name := "F" + base62(state.fragmentCount)
	state.fragmentCount++
	if hash != "" {
		state.fragmentNameByHash[hash] = name
	}
	state.fragmentNameByText[text] = name
	state.fragmentTexts = append(state.fragmentTexts, "fragment "+name+" on "+text)
	return name, nil
}

func printDirectives(node query.Node) (string, error) {
	directives := node.GetDirectives()
	if len(directives) == 0 {
		return "", nil
	}
	out := make([]string, 0, len(directives))
	for _, d := range directives {
		text := "@" + d.Name
		if len(d.Arguments) > 0 {
			args := make([]string, len(d.Arguments))
			for i, a := range d.Arguments {
				arg, err := printDirectiveArgument(a)
				if err != nil {
					return "", err
				}
				args[i] = arg
			}
			text += "(" + strings.Join(args, ",") + ")"
		}
		out = append(out, text)
	}
	return " " + strings.Join(out, " "), nil
}

func printDirectiveArgument(arg query.DirectiveArgument) (string, error) {
	if !isScalar(arg.Value) {
		return "", fmt.Errorf("%w: directives only support scalar values (boolean, number, or string), got `%s: %v`", ErrInvalidNode, arg.Name, arg.Value)
	}
	literal, err := jsonLiteral(arg.Value)
	if err != nil {
		return "", fmt.Errorf("%w: directive argument %q: %v", ErrInvalidNode, arg.Name, err)
	}
	return arg.Name + ":" + literal, nil
}

func isScalar(v any) bool {
	switch v.(type) {
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return true
	}
	return false
}

func printArgument(name string, value any, typ string, state *printerState) (string, error) {
	if value == nil {
		return "", nil
	}
	if typ != "" {
		return name + ":$" + createVariable(name, value, typ, state), nil
	}
	literal, err := jsonLiteral(value)
	if err != nil {
		return "", fmt.Errorf("%w: argument %q: %v", ErrInvalidNode, name, err)
	}
	return name + ":" + literal, nil
}

func createVariable(name string, value any, typ string, state *printerState) string {
	id := name + "_" + base62(state.variableCount)
	state.variableCount++
	state.variableIDs = append(state.variableIDs, id)
	state.variableMap[id] = variable{typ: typ, value: value}
	return id
}

func jsonLiteral(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
