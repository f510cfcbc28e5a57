package container

import (
	"errors"
	"testing"

	query "github.com/hanpama/genrelay/internal/query"
	record "github.com/hanpama/genrelay/internal/record"
	"github.com/stretchr/testify/require"
)

func factionsRoute() *Route {
	return &Route{
		Name:   "FactionsRoute",
		Params: map[string]any{"factionNames": []string{"empire", "rebels"}},
		Queries: map[string]QueryBuilder{
			"factions": func(class *Class, params map[string]any) (*query.Root, error) {
				fragment, err := class.GetFragment("factions")
				if err != nil {
					return nil, err
				}
				return &query.Root{
					Name:           "FactionsQuery",
					FieldName:      "factions",
					IdentifyingArg: &query.Call{Name: "names", Value: params["factionNames"], Type: "[String]"},
					Children:       []query.Node{fragment},
				}, nil
			},
		},
	}
}

func TestGetQueries(t *testing.T) {
	qs, err := GetQueries(starWarsApp(t), factionsRoute())
	require.NoError(t, err)
	require.Equal(t, []string{"factions"}, sortedKeys(qs))
	require.Equal(t, "FactionsQuery", qs["factions"].Name)

	route := factionsRoute()
	route.Queries["ships"] = route.Queries["factions"]
	_, err = GetQueries(starWarsApp(t), route)
	require.ErrorIs(t, err, ErrInvariant)

	_, err = GetQueries(starWarsApp(t), nil)
	require.ErrorIs(t, err, ErrInvariant)

	boom := errors.New("boom")
	route = factionsRoute()
	route.Queries["factions"] = func(*Class, map[string]any) (*query.Root, error) { return nil, boom }
	_, err = GetQueries(starWarsApp(t), route)
	require.ErrorIs(t, err, boom)
}

// TestRootContainer_FactionsEndToEnd renders StarWarsApp under a route
// asking for two factions and feeds the root data to the container.
func TestRootContainer_FactionsEndToEnd(t *testing.T) {
	fx := newFixture()
	fx.store.
		RegisterRoot("factions", "empire", "idA").
		RegisterRoot("factions", "rebels", "idB")
	class := starWarsApp(t)

	var rootLog listenerLog
	root, err := NewRootContainer(fx.env, rootLog.listen)
	require.NoError(t, err)
	route := factionsRoute()
	require.NoError(t, root.Update(class, route, false))
	require.True(t, root.Pending())
	require.Empty(t, rootLog.states)

	req := fx.fetcher.Last()
	require.False(t, req.Force)
	req.Respond(ReadyState{Ready: true, Done: true})
	require.False(t, root.Pending())

	state := rootLog.last(t)
	require.Same(t, route, state.Data["route"])
	require.Equal(t, []string{"empire", "rebels"}, state.Data["factionNames"])
	factions, ok := state.Data["factions"].([]any)
	require.True(t, ok)
	require.Len(t, factions, 2)
	require.Equal(t, "idA", factions[0].(*record.Record).ID)

	var log listenerLog
	c, err := class.New(fx.env, log.listen, nil)
	require.NoError(t, err)
	require.NoError(t, c.Update(route, state.Data))
	require.Equal(t, []string{"idA", "idB"}, c.FragmentPointers()["factions"].DataIDs())
	require.Equal(t, []string{"Empire", "Rebels"}, names(t, log.last(t).Data["factions"]))
}

func TestRootContainer_NewRequestSupersedesOld(t *testing.T) {
	fx := newFixture()
	var log listenerLog
	root, err := NewRootContainer(fx.env, log.listen)
	require.NoError(t, err)
	class := starWarsApp(t)

	require.NoError(t, root.Update(class, factionsRoute(), false))
	first := fx.fetcher.Last()
	require.NoError(t, root.Update(class, factionsRoute(), true))
	second := fx.fetcher.Last()
	require.True(t, first.Aborted())
	require.True(t, second.Force)

	first.Respond(ReadyState{Ready: true, Done: true})
	require.Empty(t, log.states)
	second.Respond(ReadyState{Ready: true, Done: true})
	require.Len(t, log.states, 1)
}

func TestRootContainer_CleanupIgnoresLateCallbacks(t *testing.T) {
	fx := newFixture()
	var log listenerLog
	root, err := NewRootContainer(fx.env, log.listen)
	require.NoError(t, err)
	require.NoError(t, root.Update(starWarsApp(t), factionsRoute(), false))
	req := fx.fetcher.Last()

	root.Cleanup()
	require.True(t, req.Aborted())
	req.Respond(ReadyState{Ready: true, Done: true})
	require.Empty(t, log.states)
}

func TestRootContainer_ErrorDeliversNothing(t *testing.T) {
	fx := newFixture()
	var log listenerLog
	root, err := NewRootContainer(fx.env, log.listen)
	require.NoError(t, err)
	require.NoError(t, root.Update(starWarsApp(t), factionsRoute(), false))

	fx.fetcher.Last().Respond(ReadyState{Error: errors.New("offline")})
	require.Empty(t, log.states)
	require.False(t, root.Pending())
}

func TestRootContainer_UseMockData(t *testing.T) {
	fx := newFixture()
	mock := NewMockFetcher()
	fx.env.MockFetcher = mock
	root, err := NewRootContainer(fx.env, func(State) {})
	require.NoError(t, err)

	route := factionsRoute()
	route.UseMockData = true
	require.NoError(t, root.Update(starWarsApp(t), route, false))
	require.Len(t, mock.Requests(), 1)
	require.Empty(t, fx.fetcher.Requests())
}

func TestNewRootContainer_Validation(t *testing.T) {
	_, err := NewRootContainer(Environment{}, func(State) {})
	require.ErrorIs(t, err, ErrInvariant)
	_, err = NewRootContainer(newFixture().env, nil)
	require.ErrorIs(t, err, ErrInvariant)
}
