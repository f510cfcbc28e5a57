package container

import (
	"fmt"

	query "github.com/hanpama/genrelay/internal/query"
)

// QueryBuilder builds one root query of a route for the given container.
type QueryBuilder func(class *Class, params map[string]any) (*query.Root, error)

// Route is a query config: the named root queries and their parameters.
type Route struct {
	Name        string
	Params      map[string]any
	Queries     map[string]QueryBuilder
	URI         string
	UseMockData bool
}

// MetaRoute is the view of a route handed to variable preparation hooks.
type MetaRoute struct {
	Name string
}

// GetQueries builds the query set for rendering class under route. A builder
// that returns a nil query leaves a nil entry.
func GetQueries(class *Class, route *Route) (QuerySet, error) {
	if class == nil || route == nil {
		return nil, fmt.Errorf("%w: GetQueries requires a container and a route", ErrInvariant)
	}
	names := sortedKeys(route.Queries)
	qs := make(QuerySet, len(names))
	for _, name := range names {
		if !class.HasFragment(name) {
			return nil, fmt.Errorf("%w: route %s has query %q but %s has no fragment of that name", ErrInvariant, route.Name, name, class.Name())
		}
		root, err := route.Queries[name](class, route.Params)
		if err != nil {
			return nil, fmt.Errorf("route %s query %q: %w", route.Name, name, err)
		}
		qs[name] = root
	}
	return qs, nil
}
