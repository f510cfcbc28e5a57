package network

import (
	"context"
	"fmt"
	"sync"

	payload "github.com/hanpama/genrelay/internal/payload"
	query "github.com/hanpama/genrelay/internal/query"
)

// MockLayer answers queries from client-shaped mock data, reshaped to the
// server shape the query would produce. Objects carrying an "id" also answer
// node(id:) refetches. List fields called with an integer first argument are
// truncated to that many items.
type MockLayer struct {
	mu    sync.RWMutex
	roots map[string]map[string]any
	nodes map[string]map[string]any
}

func NewMockLayer() *MockLayer {
	return &MockLayer{roots: map[string]map[string]any{}, nodes: map[string]map[string]any{}}
}

// Add registers data as the result of fieldName(identifyingValue). A nil
// identifyingValue stands for a call without arguments.
func (m *MockLayer) Add(fieldName string, identifyingValue any, data map[string]any) *MockLayer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roots[mockKey(fieldName, identifyingValue)] = data
	m.indexNodes(data)
	return m
}

func (m *MockLayer) indexNodes(v any) {
	switch val := v.(type) {
	case map[string]any:
		if id, ok := val["id"].(string); ok && id != "" {
			m.nodes[id] = val
		}
		for _, child := range val {
			m.indexNodes(child)
		}
	case []any:
		for _, item := range val {
			m.indexNodes(item)
		}
	}
}

func mockKey(fieldName string, identifyingValue any) string {
	if identifyingValue == nil {
		return fieldName
	}
	return fmt.Sprintf("%s(%v)", fieldName, identifyingValue)
}

func (m *MockLayer) lookup(fieldName string, value any) (map[string]any, bool) {
	if data, ok := m.roots[mockKey(fieldName, value)]; ok {
		return data, true
	}
	if id, ok := value.(string); ok && fieldName == "node" {
		data, ok := m.nodes[id]
		return data, ok
	}
	return nil, false
}

func (m *MockLayer) Send(ctx context.Context, root *query.Root) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	var client any
	if root.IsPlural() {
		values := root.IdentifyingValues()
		items := make([]any, len(values))
		for i, v := range values {
			data, ok := m.lookup(root.FieldName, v)
			if !ok {
				m.mu.RUnlock()
				return nil, fmt.Errorf("%w: %s", ErrNoMockData, mockKey(root.FieldName, v))
			}
			if data != nil {
				items[i] = data
			}
		}
		client = items
	} else {
		var value any
		if values := root.IdentifyingValues(); len(values) > 0 {
			value = values[0]
		}
		data, ok := m.lookup(root.FieldName, value)
		if !ok {
			m.mu.RUnlock()
			return nil, fmt.Errorf("%w: %s", ErrNoMockData, mockKey(root.FieldName, value))
		}
		if data != nil {
			client = data
		}
	}
	m.mu.RUnlock()

	out, err := payload.TransformRoot(root, map[string]any{root.FieldName: client})
	if err != nil {
		return nil, err
	}
	return applyFirst(root, out[root.FieldName]), nil
}

// applyFirst returns server-shaped data with first-limited lists cut short.
// The mock data itself is never modified.
func applyFirst(node query.Node, data any) any {
	switch v := data.(type) {
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = applyFirst(node, item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = item
		}
		limitFields(node, out)
		return out
	}
	return data
}

func limitFields(node query.Node, obj map[string]any) {
	for _, child := range node.GetChildren() {
		switch c := child.(type) {
		case *query.Fragment:
			limitFields(c, obj)
		case *query.Field:
			if c.IsScalar() {
				continue
			}
			key := c.SerializationKey()
			value := applyFirst(c, obj[key])
			if items, ok := value.([]any); ok {
				if n, ok := firstArg(c); ok && n < len(items) {
					value = items[:n]
				}
			}
			if _, present := obj[key]; present {
				obj[key] = value
			}
		}
	}
}

func firstArg(f *query.Field) (int, bool) {
	for _, call := range f.Calls {
		if call.Name == "first" {
			n, ok := call.Value.(int)
			return n, ok && n >= 0
		}
	}
	return 0, false
}
