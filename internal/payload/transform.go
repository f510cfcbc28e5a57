// Package payload reshapes client-shaped data, keyed by application names,
// into the server shape a network response for the same query would have,
// keyed by serialization keys. It lets mock data flow through the same
// normalization path as real responses.
package payload

import (
	"errors"
	"fmt"

	query "github.com/hanpama/genrelay/internal/query"
)

// ErrShapeConflict reports client data that cannot be mapped onto the query
// tree, or two fields writing incompatible values to one serialization key.
var ErrShapeConflict = errors.New("payload: shape conflict")

// TransformRoot transforms a map of root payloads. Array values are
// transformed per element, to accept plural root calls.
func TransformRoot(root query.Node, clientData map[string]any) (map[string]any, error) {
	if clientData == nil {
		return nil, nil
	}
	out := make(map[string]any, len(clientData))
	for key, item := range clientData {
		if items, ok := item.([]any); ok {
			transformed := make([]any, len(items))
			for i, inner := range items {
				v, err := transformItem(root, inner)
				if err != nil {
					return nil, err
				}
				transformed[i] = v
			}
			out[key] = transformed
			continue
		}
		v, err := transformItem(root, item)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

func transformItem(root query.Node, item any) (any, error) {
	if item == nil {
		return nil, nil
	}
	client, ok := item.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected an object payload, got %T", ErrShapeConflict, item)
	}
	return Transform(root, client)
}

// Transform walks root and clientData in lockstep and returns the
// server-shaped copy. A nil clientData passes through as nil.
func Transform(root query.Node, clientData map[string]any) (map[string]any, error) {
	if clientData == nil {
		return nil, nil
	}
	server := make(map[string]any)
	t := &transformer{}
	if err := t.traverse(root, transformState{client: clientData, server: server}); err != nil {
		return nil, err
	}
	return server, nil
}

// transformState holds the parent values on both sides of the walk.
type transformState struct {
	client map[string]any
	server map[string]any
}

type transformer struct{}

// traverse visits the children of node. Fragments are transparent: their
// fields read and write the same parent objects.
func (t *transformer) traverse(node query.Node, state transformState) error {
	for _, child := range node.GetChildren() {
		switch c := child.(type) {
		case *query.Field:
			if err := t.visitField(c, state); err != nil {
				return err
			}
		case *query.Fragment:
			if err := t.traverse(c, state); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *transformer) visitField(field *query.Field, state transformState) error {
	applicationName := field.ApplicationName()
	serializationKey := field.SerializationKey()
	clientData, present := state.client[applicationName]
	serverData := state.server[serializationKey]

	if field.IsScalar() || clientData == nil {
		// absent keys stay absent; nil values are copied
		if present {
			state.server[serializationKey] = clientData
		}
		return nil
	}

	switch client := clientData.(type) {
	case []any:
		serverItems := make([]any, 0, len(client))
		if serverData != nil {
			existing, ok := serverData.([]any)
			if !ok {
				return fmt.Errorf("%w: got conflicting values for field %q: expected values to be arrays", ErrShapeConflict, applicationName)
			}
			serverItems = existing
		}
		for len(serverItems) < len(client) {
			serverItems = append(serverItems, nil)
		}
		for i, clientItem := range client {
			if clientItem == nil {
				serverItems[i] = nil
				continue
			}
			clientObj, ok := clientItem.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: expected an object value at index %d of field %q", ErrShapeConflict, i, applicationName)
			}
			serverItem, _ := serverItems[i].(map[string]any)
			if serverItem == nil {
				if serverItems[i] != nil {
					return fmt.Errorf("%w: got conflicting values for field %q: expected values to be objects", ErrShapeConflict, applicationName)
				}
				serverItem = make(map[string]any)
				serverItems[i] = serverItem
			}
			if err := t.traverse(field, transformState{client: clientObj, server: serverItem}); err != nil {
				return err
			}
		}
		state.server[serializationKey] = serverItems
		return nil
	case map[string]any:
		serverObj, ok := serverData.(map[string]any)
		if serverData != nil && !ok {
			return fmt.Errorf("%w: got conflicting values for field %q: expected values to be objects", ErrShapeConflict, applicationName)
		}
		if serverObj == nil {
			serverObj = make(map[string]any)
			state.server[serializationKey] = serverObj
		}
		return t.traverse(field, transformState{client: client, server: serverObj})
	default:
		return fmt.Errorf("%w: expected an object value for field %q, got %T", ErrShapeConflict, applicationName, clientData)
	}
}
