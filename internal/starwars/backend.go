package starwars

import (
	"context"
	_ "embed"
	"fmt"
	"sync"

	executor "github.com/hanpama/genrelay/internal/executor"
	schema "github.com/hanpama/genrelay/internal/schema"
	server "github.com/hanpama/genrelay/internal/server"
)

//go:embed schema.graphql
var sdl string

type shipRecord struct {
	ID   string
	Name string
}

type factionRecord struct {
	Key   string
	ID    string
	Name  string
	Ships []*shipRecord
}

// factionData is the sample data served by the backend and the mock layer.
var factionData = []*factionRecord{
	{
		Key:  "empire",
		ID:   "idA",
		Name: "Galactic Empire",
		Ships: []*shipRecord{
			{ID: "s1", Name: "TIE Fighter"},
			{ID: "s2", Name: "TIE Interceptor"},
			{ID: "s3", Name: "Executor"},
		},
	},
	{
		Key:  "rebels",
		ID:   "idB",
		Name: "Alliance to Restore the Republic",
		Ships: []*shipRecord{
			{ID: "s4", Name: "X-Wing"},
			{ID: "s5", Name: "Y-Wing"},
			{ID: "s6", Name: "Millennium Falcon"},
		},
	},
}

var loadSchema = sync.OnceValues(func() (*schema.Schema, error) {
	return schema.BuildFromSDL("starwars.graphql", sdl)
})

// Schema returns the Star Wars schema.
func Schema() (*schema.Schema, error) { return loadSchema() }

// NewHandler returns a GraphQL handler serving the sample data.
func NewHandler(opts ...server.Option) (*server.Handler, error) {
	sch, err := Schema()
	if err != nil {
		return nil, err
	}
	return server.New(Runtime{}, sch, opts...), nil
}

// Runtime resolves the Star Wars schema over the sample data.
type Runtime struct{}

var _ executor.Runtime = Runtime{}

func (Runtime) Resolve(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	switch src := source.(type) {
	case *factionRecord:
		switch field {
		case "id":
			return src.ID, nil
		case "name":
			return src.Name, nil
		case "ships":
			return firstShips(src.Ships, args["first"])
		}
	case *shipRecord:
		switch field {
		case "id":
			return src.ID, nil
		case "name":
			return src.Name, nil
		}
	case nil:
		switch field {
		case "factions":
			return factionsByName(args["names"]), nil
		case "node":
			return nodeByID(args["id"].(string)), nil
		}
	}
	return nil, fmt.Errorf("starwars: no resolver for %s.%s", objectType, field)
}

func (Runtime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	switch value.(type) {
	case *factionRecord:
		return "Faction", nil
	case *shipRecord:
		return "Ship", nil
	}
	return "", fmt.Errorf("starwars: cannot resolve %s for %T", abstractType, value)
}

func (Runtime) SerializeLeafValue(ctx context.Context, typeName string, value any) (any, error) {
	return value, nil
}

// factionsByName answers each name with its faction or null, and every
// faction when names is null.
func factionsByName(names any) []any {
	list, ok := names.([]any)
	if !ok {
		out := make([]any, len(factionData))
		for i, f := range factionData {
			out[i] = f
		}
		return out
	}
	out := make([]any, len(list))
	for i, name := range list {
		for _, f := range factionData {
			if f.Key == name {
				out[i] = f
			}
		}
	}
	return out
}

func firstShips(ships []*shipRecord, first any) ([]*shipRecord, error) {
	if first == nil {
		return ships, nil
	}
	n, ok := first.(int)
	if !ok || n < 0 {
		return nil, fmt.Errorf("starwars: first must be a non-negative Int, got %v", first)
	}
	if n < len(ships) {
		ships = ships[:n]
	}
	return ships, nil
}

func nodeByID(id string) any {
	for _, f := range factionData {
		if f.ID == id {
			return f
		}
		for _, s := range f.Ships {
			if s.ID == id {
				return s
			}
		}
	}
	return nil
}
