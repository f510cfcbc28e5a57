package executor

import (
	"context"
	"fmt"
	"sync"
)

// MockResolver resolves a single field value in tests.
type MockResolver func(ctx context.Context, source any, args map[string]any) (any, error)

// NewMockValueResolver returns a MockResolver that always returns val.
func NewMockValueResolver(val any) MockResolver {
	return func(ctx context.Context, source any, args map[string]any) (any, error) {
		return val, nil
	}
}

// NewMockErrorResolver returns a MockResolver that always fails with err.
func NewMockErrorResolver(err error) MockResolver {
	return func(ctx context.Context, source any, args map[string]any) (any, error) {
		return nil, err
	}
}

// Call records one Resolve invocation.
type Call struct {
	ObjectType string
	Field      string
	Source     any
	Args       map[string]any
}

// MockRuntime implements Runtime over a resolver registry keyed by
// "ObjectType.Field". Fields without a resolver read the same-named key of a
// map source. Abstract values resolve through their "__typename" key.
type MockRuntime struct {
	mu        sync.Mutex
	resolvers map[string]MockResolver
	calls     []Call
}

func NewMockRuntime(resolvers map[string]MockResolver) *MockRuntime {
	m := &MockRuntime{resolvers: make(map[string]MockResolver, len(resolvers))}
	for k, v := range resolvers {
		m.resolvers[k] = v
	}
	return m
}

// SetResolver registers or replaces the resolver of objectType.field.
func (m *MockRuntime) SetResolver(objectType, field string, resolver MockResolver) *MockRuntime {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolvers[objectType+"."+field] = resolver
	return m
}

func (m *MockRuntime) Resolve(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	m.mu.Lock()
	r := m.resolvers[objectType+"."+field]
	m.calls = append(m.calls, Call{ObjectType: objectType, Field: field, Source: source, Args: args})
	m.mu.Unlock()

	if r != nil {
		return r(ctx, source, args)
	}
	if obj, ok := source.(map[string]any); ok {
		return obj[field], nil
	}
	return nil, nil
}

func (m *MockRuntime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	if obj, ok := value.(map[string]any); ok {
		if typename, ok := obj["__typename"].(string); ok {
			return typename, nil
		}
	}
	return "", fmt.Errorf("cannot resolve concrete type of %s", abstractType)
}

func (m *MockRuntime) SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error) {
	return value, nil
}

// GetCalls returns a copy of the recorded calls.
func (m *MockRuntime) GetCalls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

var _ Runtime = (*MockRuntime)(nil)
