package container

import (
	"errors"
	"testing"

	record "github.com/hanpama/genrelay/internal/record"
	"github.com/stretchr/testify/require"
)

func TestCreate_Validation(t *testing.T) {
	_, err := Create("Empty", Spec{})
	require.ErrorIs(t, err, ErrInvariant)
	_, err = Create("NilBuilder", Spec{Fragments: map[string]FragmentBuilder{"x": nil}})
	require.ErrorIs(t, err, ErrInvariant)

	class := factionShips(t)
	require.Equal(t, []string{"faction"}, class.FragmentNames())
	require.True(t, class.HasFragment("faction"))
	require.False(t, class.HasFragment("factions"))
	require.True(t, class.HasVariable("first"))
	require.False(t, class.HasVariable("after"))

	f, err := class.GetFragment("faction")
	require.NoError(t, err)
	require.Equal(t, 2, shipsFirst(f))
	_, err = class.GetFragment("nope")
	require.ErrorIs(t, err, ErrInvariant)
}

func TestNew_Validation(t *testing.T) {
	fx := newFixture()
	class := starWarsApp(t)
	_, err := class.New(fx.env, nil, nil)
	require.ErrorIs(t, err, ErrInvariant)
	_, err = class.New(Environment{Store: fx.store}, func(State) {}, nil)
	require.ErrorIs(t, err, ErrInvariant)
}

func TestNew_MergesInitialVariables(t *testing.T) {
	fx := newFixture()
	c, err := factionShips(t).New(fx.env, func(State) {}, Variables{"after": "c1"})
	require.NoError(t, err)
	require.Equal(t, Variables{"first": 2, "after": "c1"}, c.Variables())
}

func TestContainer_UpdatePluralFragment(t *testing.T) {
	fx := newFixture()
	var log listenerLog
	c, err := starWarsApp(t).New(fx.env, log.listen, nil)
	require.NoError(t, err)

	fragment := factionsFragment(nil)
	route := &Route{Name: "FactionsRoute"}
	err = c.Update(route, map[string]any{"factions": []any{tagged(t, "idA", fragment), tagged(t, "idB", fragment)}})
	require.NoError(t, err)

	require.Len(t, log.states, 1)
	state := log.last(t)
	require.True(t, state.Done)
	require.True(t, state.Ready)
	require.Equal(t, []string{"Empire", "Rebels"}, names(t, state.Data["factions"]))
	require.Equal(t, []string{"idA", "idB"}, c.FragmentPointers()["factions"].DataIDs())
	require.Same(t, route, c.Route())
	require.Len(t, fx.resolvers.Created(), 1)
}

func TestContainer_UpdateValidation(t *testing.T) {
	fx := newFixture()
	c, err := starWarsApp(t).New(fx.env, func(State) {}, nil)
	require.NoError(t, err)
	require.ErrorIs(t, c.Update(nil, map[string]any{}), ErrInvariant)
	require.ErrorIs(t, c.Update(&Route{}, nil), ErrInvariant)
	require.ErrorIs(t, c.UpdateFragmentInput(map[string]any{}), ErrInvariant)
	require.ErrorIs(t, c.UpdateRoute(&Route{}), ErrInvariant)
	require.ErrorIs(t, c.SetVariables(Variables{"first": 1}), ErrInvariant)
}

func TestContainer_PluralEmptyPassesThrough(t *testing.T) {
	fx := newFixture()
	var log listenerLog
	c, err := starWarsApp(t).New(fx.env, log.listen, nil)
	require.NoError(t, err)

	require.NoError(t, c.Update(&Route{}, map[string]any{"factions": []any{}}))
	require.Nil(t, c.FragmentPointers()["factions"])
	require.Empty(t, fx.resolvers.Created())
	require.Equal(t, []any{}, log.last(t).Data["factions"])
}

func TestContainer_PluralEmptyAcrossRefetch(t *testing.T) {
	fx := newFixture()
	var log listenerLog
	c, err := starWarsApp(t).New(fx.env, log.listen, nil)
	require.NoError(t, err)
	require.NoError(t, c.Update(&Route{}, map[string]any{"factions": []any{}}))

	require.NoError(t, c.ForceFetch(nil))
	req := fx.fetcher.Last()
	require.NotNil(t, req)
	require.Empty(t, req.QuerySet)
	req.Respond(ReadyState{Ready: true, Done: true})

	require.Nil(t, c.FragmentPointers()["factions"])
	require.Empty(t, fx.resolvers.Created())
	require.Equal(t, []any{}, log.last(t).Data["factions"])
}

func TestContainer_MockDataPassesThrough(t *testing.T) {
	fx := newFixture()
	var log listenerLog
	c, err := factionShips(t).New(fx.env, log.listen, nil)
	require.NoError(t, err)

	mock := map[string]any{"name": "Rebels", "ships": []any{}}
	require.NoError(t, c.Update(&Route{UseMockData: true}, map[string]any{"faction": mock}))
	require.Equal(t, map[string]any{"faction": mock}, log.last(t).Data)
}

func TestContainer_ResolverReleasedWhenInputGoesAway(t *testing.T) {
	fx := newFixture()
	var log listenerLog
	c, err := factionShips(t).New(fx.env, log.listen, nil)
	require.NoError(t, err)

	require.NoError(t, c.Update(&Route{}, map[string]any{"faction": tagged(t, "idA", factionShipsFragment(nil))}))
	require.Same(t, fx.store.Record("idA"), log.last(t).Data["faction"])
	resolver := fx.resolvers.Created()[0]

	require.NoError(t, c.UpdateFragmentInput(map[string]any{"faction": nil}))
	require.Equal(t, 1, resolver.Resets)
	require.Nil(t, log.last(t).Data["faction"])
	require.Nil(t, c.FragmentPointers()["faction"])
}

func TestContainer_ResolverUpdateRedelivers(t *testing.T) {
	fx := newFixture()
	var log listenerLog
	c, err := factionShips(t).New(fx.env, log.listen, nil)
	require.NoError(t, err)
	require.NoError(t, c.Update(&Route{}, map[string]any{"faction": tagged(t, "idA", factionShipsFragment(nil))}))

	fx.store.RegisterRecord(&record.Record{ID: "idA", Fields: map[string]any{"name": "Galactic Empire"}})
	fx.resolvers.Created()[0].NotifyUpdate()

	require.Len(t, log.states, 2)
	state := log.last(t)
	require.True(t, state.Done)
	require.Equal(t, "Galactic Empire", state.Data["faction"].(*record.Record).Get("name"))
	require.True(t, c.Stale())
}

func TestContainer_SetVariablesAbortsSupersededFetch(t *testing.T) {
	fx := newFixture()
	var log listenerLog
	c, err := factionShips(t).New(fx.env, log.listen, nil)
	require.NoError(t, err)
	require.NoError(t, c.Update(&Route{Name: "FactionRoute"}, map[string]any{"faction": tagged(t, "idA", factionShipsFragment(nil))}))
	delivered := len(log.states)

	require.NoError(t, c.SetVariables(Variables{"first": 3}))
	first := fx.fetcher.Last()
	require.False(t, first.Force)
	require.Contains(t, first.QuerySet, "faction")
	pending, ok := c.PendingVariables()
	require.True(t, ok)
	require.Equal(t, 3, pending["first"])

	require.NoError(t, c.SetVariables(Variables{"first": 5}))
	second := fx.fetcher.Last()
	require.NotSame(t, first, second)
	require.True(t, first.Aborted())
	pending, _ = c.PendingVariables()
	require.Equal(t, 5, pending["first"])

	first.Respond(ReadyState{Ready: true, Done: true})
	require.Len(t, log.states, delivered, "superseded fetch must not reach the listener")
	require.Equal(t, 2, c.Variables()["first"])

	second.Respond(ReadyState{Ready: true, Done: true})
	require.Len(t, log.states, delivered+1)
	require.True(t, log.last(t).Done)
	require.Equal(t, 5, shipsFirst(c.FragmentPointers()["faction"].Fragment()))
	require.Equal(t, 5, c.Variables()["first"])
	_, ok = c.PendingVariables()
	require.False(t, ok)

	resolved := fx.resolvers.Created()[0].Resolved
	require.Equal(t, 5, shipsFirst(resolved[len(resolved)-1].Fragment()))
}

func TestContainer_SetVariablesMergesOverPending(t *testing.T) {
	fx := newFixture()
	c, err := factionShips(t).New(fx.env, func(State) {}, nil)
	require.NoError(t, err)
	require.NoError(t, c.Update(&Route{}, map[string]any{"faction": tagged(t, "idA", factionShipsFragment(nil))}))

	require.NoError(t, c.SetVariables(Variables{"first": 3}))
	require.NoError(t, c.SetVariables(Variables{"after": "c1"}))
	pending, _ := c.PendingVariables()
	require.Equal(t, Variables{"first": 3, "after": "c1"}, pending)
}

func TestContainer_SetVariablesUnchangedIsNoop(t *testing.T) {
	fx := newFixture()
	var log listenerLog
	c, err := factionShips(t).New(fx.env, log.listen, nil)
	require.NoError(t, err)
	require.NoError(t, c.Update(&Route{}, map[string]any{"faction": tagged(t, "idA", factionShipsFragment(nil))}))
	delivered := len(log.states)

	require.NoError(t, c.SetVariables(Variables{"first": 2}))
	req := fx.fetcher.Last()
	require.Empty(t, req.QuerySet)

	req.Respond(ReadyState{Ready: true, Done: true})
	require.Len(t, log.states, delivered)
	_, ok := c.PendingVariables()
	require.False(t, ok)
}

func TestContainer_ForceFetch(t *testing.T) {
	fx := newFixture()
	var log listenerLog
	c, err := factionShips(t).New(fx.env, log.listen, nil)
	require.NoError(t, err)
	require.NoError(t, c.Update(&Route{}, map[string]any{"faction": tagged(t, "idA", factionShipsFragment(nil))}))

	require.NoError(t, c.ForceFetch(nil))
	req := fx.fetcher.Last()
	require.True(t, req.Force)
	require.Contains(t, req.QuerySet, "faction")

	req.Respond(ReadyState{Ready: true, Stale: true})
	require.True(t, log.last(t).Stale)
	_, ok := c.PendingVariables()
	require.True(t, ok, "a stale ready state does not complete the fetch")

	req.Respond(ReadyState{Ready: true, Done: true})
	require.True(t, log.last(t).Done)
	_, ok = c.PendingVariables()
	require.False(t, ok)
}

func TestContainer_FetchErrorClearsPending(t *testing.T) {
	fx := newFixture()
	var log listenerLog
	c, err := factionShips(t).New(fx.env, log.listen, nil)
	require.NoError(t, err)
	require.NoError(t, c.Update(&Route{}, map[string]any{"faction": tagged(t, "idA", factionShipsFragment(nil))}))
	delivered := len(log.states)

	require.NoError(t, c.SetVariables(Variables{"first": 3}))
	fx.fetcher.Last().Respond(ReadyState{Error: errors.New("boom")})
	_, ok := c.PendingVariables()
	require.False(t, ok)
	require.Len(t, log.states, delivered)
	require.Equal(t, 2, c.Variables()["first"])
}

// syncFetcher answers every fetch before returning.
type syncFetcher struct{}

type noopAbort struct{}

func (noopAbort) Abort() {}

func (syncFetcher) PrimeCache(_ QuerySet, cb func(ReadyState)) Abortable {
	cb(ReadyState{Ready: true, Done: true})
	return noopAbort{}
}

func (f syncFetcher) ForceFetch(qs QuerySet, cb func(ReadyState)) Abortable {
	return f.PrimeCache(qs, cb)
}

func TestContainer_SynchronousFetcher(t *testing.T) {
	fx := newFixture()
	fx.env.Fetcher = syncFetcher{}
	var log listenerLog
	c, err := factionShips(t).New(fx.env, log.listen, nil)
	require.NoError(t, err)
	require.NoError(t, c.Update(&Route{}, map[string]any{"faction": tagged(t, "idA", factionShipsFragment(nil))}))

	require.NoError(t, c.SetVariables(Variables{"first": 7}))
	require.Len(t, log.states, 2)
	require.Equal(t, 7, c.Variables()["first"])
	_, ok := c.PendingVariables()
	require.False(t, ok)
}

func TestContainer_Cleanup(t *testing.T) {
	fx := newFixture()
	var log listenerLog
	c, err := factionShips(t).New(fx.env, log.listen, nil)
	require.NoError(t, err)
	require.NoError(t, c.Update(&Route{}, map[string]any{"faction": tagged(t, "idA", factionShipsFragment(nil))}))
	require.NoError(t, c.SetVariables(Variables{"first": 3}))
	req := fx.fetcher.Last()
	delivered := len(log.states)

	c.Cleanup()
	require.True(t, req.Aborted())
	require.Equal(t, 1, fx.resolvers.Created()[0].Resets)
	require.Empty(t, c.FragmentPointers())
	_, ok := c.PendingVariables()
	require.False(t, ok)

	req.Respond(ReadyState{Ready: true, Done: true})
	require.Len(t, log.states, delivered)
}

func TestContainer_OptimisticUpdatesAndTransactions(t *testing.T) {
	fx := newFixture()
	fx.store.
		RegisterOptimisticUpdate("idA").
		RegisterTransaction("idA", MockTransaction{ID: "m1"}).
		RegisterTransaction("idA", MockTransaction{ID: "m2"})
	c, err := starWarsApp(t).New(fx.env, func(State) {}, nil)
	require.NoError(t, err)

	ok, err := c.HasOptimisticUpdate(fx.store.Record("idA"))
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = c.HasOptimisticUpdate(fx.store.Record("idB"))
	require.NoError(t, err)
	require.False(t, ok)
	_, err = c.HasOptimisticUpdate("idA")
	require.ErrorIs(t, err, ErrInvariant)

	txs, err := c.GetPendingTransactions(fx.store.Record("idA"))
	require.NoError(t, err)
	require.Equal(t, []Transaction{MockTransaction{ID: "m1"}, MockTransaction{ID: "m2"}}, txs)
	txs, err = c.GetPendingTransactions(fx.store.Record("idB"))
	require.NoError(t, err)
	require.Nil(t, txs)
	_, err = c.GetPendingTransactions(nil)
	require.ErrorIs(t, err, ErrInvariant)
}
