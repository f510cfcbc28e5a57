package container

import (
	"bytes"
	"log/slog"
	"testing"

	query "github.com/hanpama/genrelay/internal/query"
	record "github.com/hanpama/genrelay/internal/record"
	"github.com/stretchr/testify/require"
)

func factionsFragment(Variables) *query.Fragment {
	return &query.Fragment{
		Name:     "StarWarsApp_factions",
		Type:     "Faction",
		Plural:   true,
		Children: []query.Node{&query.Field{SchemaName: "id"}, &query.Field{SchemaName: "name"}},
	}
}

func factionShipsFragment(vars Variables) *query.Fragment {
	return &query.Fragment{
		Name: "FactionShips_faction",
		Type: "Faction",
		Children: []query.Node{
			&query.Field{SchemaName: "name"},
			&query.Field{
				SchemaName: "ships",
				Calls:      []query.Call{{Name: "first", Value: vars["first"], Type: "Int"}},
				Children:   []query.Node{&query.Field{SchemaName: "id"}, &query.Field{SchemaName: "name"}},
			},
		},
	}
}

// shipsFirst returns the first argument the fragment's ships field was built with.
func shipsFirst(f *query.Fragment) any {
	return f.Children[1].(*query.Field).Calls[0].Value
}

func starWarsApp(t *testing.T) *Class {
	t.Helper()
	c, err := Create("StarWarsApp", Spec{Fragments: map[string]FragmentBuilder{"factions": factionsFragment}})
	require.NoError(t, err)
	return c
}

func factionShips(t *testing.T) *Class {
	t.Helper()
	c, err := Create("FactionShips", Spec{
		Fragments:        map[string]FragmentBuilder{"faction": factionShipsFragment},
		InitialVariables: Variables{"first": 2},
	})
	require.NoError(t, err)
	return c
}

type fixture struct {
	env       Environment
	store     *MockStore
	fetcher   *MockFetcher
	resolvers *MockResolvers
}

func newFixture() *fixture {
	f := &fixture{store: NewMockStore(), fetcher: NewMockFetcher(), resolvers: &MockResolvers{}}
	f.store.
		RegisterRecord(&record.Record{ID: "idA", Fields: map[string]any{"name": "Empire"}}).
		RegisterRecord(&record.Record{ID: "idB", Fields: map[string]any{"name": "Rebels"}})
	f.env = Environment{Store: f.store, Fetcher: f.fetcher, NewResolver: f.resolvers.Factory()}
	return f
}

type listenerLog struct{ states []State }

func (l *listenerLog) listen(s State) { l.states = append(l.states, s) }

func (l *listenerLog) last(t *testing.T) State {
	t.Helper()
	require.NotEmpty(t, l.states, "listener was never called")
	return l.states[len(l.states)-1]
}

// tagged returns a record carrying the pointer a parent query would attach
// for fragment.
func tagged(t *testing.T, id string, fragment *query.Fragment) *record.Record {
	t.Helper()
	var p *record.FragmentPointer
	var err error
	if fragment.Plural {
		p, err = record.NewPluralFragmentPointer([]string{id}, fragment)
	} else {
		p, err = record.NewFragmentPointer(id, fragment)
	}
	require.NoError(t, err)
	r := &record.Record{ID: id}
	r.Tag(p)
	return r
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func names(t *testing.T, v any) []string {
	t.Helper()
	items, ok := v.([]any)
	require.True(t, ok, "expected a list, got %T", v)
	out := make([]string, len(items))
	for i, item := range items {
		out[i], _ = item.(*record.Record).Get("name").(string)
	}
	return out
}
