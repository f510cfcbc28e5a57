package network

import (
	"sync"

	query "github.com/hanpama/genrelay/internal/query"
)

func factionsFragment() *query.Fragment {
	return &query.Fragment{
		Name:   "StarWarsApp_factions",
		Type:   "Faction",
		Plural: true,
		Children: []query.Node{
			&query.Field{SchemaName: "id"},
			&query.Field{SchemaName: "name"},
		},
	}
}

func factionsRoot(names ...string) *query.Root {
	return &query.Root{
		Name:           "FactionsQuery",
		FieldName:      "factions",
		IdentifyingArg: &query.Call{Name: "names", Value: names, Type: "[String]"},
		Children:       []query.Node{factionsFragment()},
	}
}

func shipsRoot() *query.Root {
	return &query.Root{
		Name:           "FactionQuery",
		FieldName:      "faction",
		IdentifyingArg: &query.Call{Name: "id", Value: "idA", Type: "ID!"},
		Children: []query.Node{
			&query.Field{SchemaName: "id"},
			&query.Fragment{Name: "Ships", Type: "Faction", Children: []query.Node{
				&query.Field{
					SchemaName: "ships",
					Alias:      "_ships",
					Calls:      []query.Call{{Name: "first", Value: 1, Type: "Int"}},
					Children:   []query.Node{&query.Field{SchemaName: "id"}, &query.Field{SchemaName: "name"}},
				},
			}},
		},
	}
}

// fakeCache records ingests and answers HasQuery from a fixed set of query
// names.
type fakeCache struct {
	mu       sync.Mutex
	cached   map[string]bool
	ingested []string
	err      error
}

func (c *fakeCache) HasQuery(root *query.Root) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cached[root.Name]
}

func (c *fakeCache) Ingest(root *query.Root, _ any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.ingested = append(c.ingested, root.Name)
	return nil
}

func (c *fakeCache) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.ingested...)
}
