package container

import (
	"fmt"

	query "github.com/hanpama/genrelay/internal/query"
)

// FragmentBuilder returns the fragment tree for the given variables.
type FragmentBuilder func(variables Variables) *query.Fragment

// Spec declares a container's fragments and variables.
type Spec struct {
	Fragments        map[string]FragmentBuilder
	InitialVariables Variables
	// PrepareVariables, when set, rewrites variables before fragments are built.
	PrepareVariables func(variables Variables, route MetaRoute) Variables
}

func (s *Spec) fragmentNames() []string { return sortedKeys(s.Fragments) }

// buildFragment builds the named fragment for variables under route.
func (s *Spec) buildFragment(containerName, fragmentName string, variables Variables, route *Route) (*query.Fragment, error) {
	builder, ok := s.Fragments[fragmentName]
	if !ok || builder == nil {
		return nil, fmt.Errorf("%w: %s has no fragment named %q", ErrInvariant, containerName, fragmentName)
	}
	if s.PrepareVariables != nil {
		meta := MetaRoute{}
		if route != nil {
			meta.Name = route.Name
		}
		variables = s.PrepareVariables(variables, meta)
	}
	fragment := builder(variables)
	if fragment == nil {
		return nil, fmt.Errorf("%w: %s.%s is not a valid fragment", ErrInvariant, containerName, fragmentName)
	}
	return fragment, nil
}

// Class is a container definition created from a Spec. Instances are made
// with New.
type Class struct {
	name          string
	spec          Spec
	fragmentNames []string
}

// Create validates spec and returns the container class.
func Create(name string, spec Spec) (*Class, error) {
	if len(spec.Fragments) == 0 {
		return nil, fmt.Errorf("%w: %s must declare at least one fragment", ErrInvariant, name)
	}
	for fragmentName, builder := range spec.Fragments {
		if builder == nil {
			return nil, fmt.Errorf("%w: %s.%s has no fragment builder", ErrInvariant, name, fragmentName)
		}
	}
	return &Class{name: name, spec: spec, fragmentNames: spec.fragmentNames()}, nil
}

func (c *Class) Name() string { return c.name }

// FragmentNames returns the declared fragment names in sorted order.
func (c *Class) FragmentNames() []string {
	return append([]string(nil), c.fragmentNames...)
}

func (c *Class) HasFragment(name string) bool {
	_, ok := c.spec.Fragments[name]
	return ok
}

func (c *Class) HasVariable(name string) bool {
	_, ok := c.spec.InitialVariables[name]
	return ok
}

// GetFragment builds the named fragment with the initial variables, for
// composing into a parent's or a route's query.
func (c *Class) GetFragment(name string) (*query.Fragment, error) {
	return c.spec.buildFragment(c.name, name, c.spec.InitialVariables, nil)
}
