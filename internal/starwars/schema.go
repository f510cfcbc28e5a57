// Package starwars is a two-level container tree over the Star Wars example
// schema: an app listing factions with their first ships, and one ship view
// per ship. It drives the demo command and exercises the container, store
// and network packages together.
package starwars

import (
	"fmt"

	container "github.com/hanpama/genrelay/internal/container"
	network "github.com/hanpama/genrelay/internal/network"
	query "github.com/hanpama/genrelay/internal/query"
)

// DefaultFirst is how many ships per faction the app asks for initially.
const DefaultFirst = 2

// Classes holds the container classes of the tree.
type Classes struct {
	App  *container.Class
	Ship *container.Class
}

func shipFragment(container.Variables) *query.Fragment {
	return &query.Fragment{
		Name:     "StarWarsShip_ship",
		Type:     "Ship",
		Children: []query.Node{&query.Field{SchemaName: "id"}, &query.Field{SchemaName: "name"}},
	}
}

// factionsFragment composes the ship fragment into each faction's ships.
func factionsFragment(ship *container.Class) container.FragmentBuilder {
	return func(vars container.Variables) *query.Fragment {
		nested, err := ship.GetFragment("ship")
		if err != nil {
			return nil
		}
		return &query.Fragment{
			Name:   "StarWarsApp_factions",
			Type:   "Faction",
			Plural: true,
			Children: []query.Node{
				&query.Field{SchemaName: "id"},
				&query.Field{SchemaName: "name"},
				&query.Field{
					SchemaName: "ships",
					Calls:      []query.Call{{Name: "first", Value: vars["first"], Type: "Int"}},
					Children:   []query.Node{&query.Field{SchemaName: "id"}, nested},
				},
			},
		}
	}
}

func NewClasses() (*Classes, error) {
	ship, err := container.Create("StarWarsShip", container.Spec{
		Fragments: map[string]container.FragmentBuilder{"ship": shipFragment},
	})
	if err != nil {
		return nil, err
	}
	app, err := container.Create("StarWarsApp", container.Spec{
		Fragments:        map[string]container.FragmentBuilder{"factions": factionsFragment(ship)},
		InitialVariables: container.Variables{"first": DefaultFirst},
	})
	if err != nil {
		return nil, err
	}
	return &Classes{App: app, Ship: ship}, nil
}

// FactionsRoute queries factions(names:) for the given faction names.
func FactionsRoute(names ...string) *container.Route {
	return &container.Route{
		Name:   "FactionsRoute",
		Params: map[string]any{"names": names},
		Queries: map[string]container.QueryBuilder{
			"factions": func(class *container.Class, params map[string]any) (*query.Root, error) {
				fragment, err := class.GetFragment("factions")
				if err != nil {
					return nil, err
				}
				names, ok := params["names"].([]string)
				if !ok {
					return nil, fmt.Errorf("factions route expects []string names, got %T", params["names"])
				}
				return &query.Root{
					Name:           "FactionsQuery",
					FieldName:      "factions",
					IdentifyingArg: &query.Call{Name: "names", Value: names, Type: "[String]"},
					Children:       []query.Node{fragment},
				}, nil
			},
		},
	}
}

// FactionNames are the identifying values the mock data answers.
var FactionNames = []string{"empire", "rebels"}

// RegisterMocks adds the sample factions and their ships to m.
func RegisterMocks(m *network.MockLayer) *network.MockLayer {
	for _, f := range factionData {
		ships := make([]any, len(f.Ships))
		for i, s := range f.Ships {
			ships[i] = map[string]any{"id": s.ID, "name": s.Name}
		}
		m.Add("factions", f.Key, map[string]any{"id": f.ID, "name": f.Name, "ships": ships})
	}
	return m
}
