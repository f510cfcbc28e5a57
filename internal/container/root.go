package container

import (
	"context"
	"fmt"

	eventbus "github.com/hanpama/genrelay/internal/eventbus"
	events "github.com/hanpama/genrelay/internal/events"
	record "github.com/hanpama/genrelay/internal/record"
	reqid "github.com/hanpama/genrelay/internal/reqid"
)

// RootContainer fetches a route's queries for a container class and
// delivers, once data is ready, the input that container should be updated
// with. Like Container it is owned by a single goroutine.
type RootContainer struct {
	env      Environment
	listener Listener
	ctx      context.Context

	active  bool
	class   *Class
	route   *Route
	pending *rootRequest
}

type rootRequest struct {
	request Abortable
	ctx     context.Context
}

func NewRootContainer(env Environment, listener Listener, opts ...Option) (*RootContainer, error) {
	if listener == nil {
		return nil, fmt.Errorf("%w: root container requires a listener function", ErrInvariant)
	}
	if env.Store == nil || env.Fetcher == nil {
		return nil, fmt.Errorf("%w: root container environment requires a store and a fetcher", ErrInvariant)
	}
	o := buildOptions(opts)
	return &RootContainer{env: env, listener: listener, ctx: o.Context}, nil
}

// Update fetches the queries of route for class, superseding any request
// still in flight. When ready, the listener receives {"route": route} plus
// the route params plus one root value per query.
func (r *RootContainer) Update(class *Class, route *Route, forceFetch bool) error {
	querySet, err := GetQueries(class, route)
	if err != nil {
		return err
	}
	r.active = true
	r.class = class
	r.route = route
	r.abortPending()

	ctx, _ := reqid.NewContext(r.ctx)
	current := &rootRequest{ctx: ctx}
	r.pending = current
	eventbus.Publish(ctx, events.FetchStart{
		Container: class.Name(),
		Force:     forceFetch,
		Queries:   sortedKeys(querySet),
		Variables: route.Params,
	})

	onReadyStateChange := func(rs ReadyState) {
		if !r.active || r.pending != current {
			eventbus.Publish(ctx, events.FetchDiscarded{
				Container: class.Name(),
				Aborted:   rs.Aborted,
				Done:      rs.Done,
				Ready:     rs.Ready,
			})
			return
		}
		eventbus.Publish(ctx, events.FetchReadyState{
			Container: class.Name(),
			Aborted:   rs.Aborted,
			Done:      rs.Done,
			Ready:     rs.Ready,
			Stale:     rs.Stale,
			Err:       rs.Error,
		})
		if rs.complete() {
			r.pending = nil
		}
		if rs.Ready {
			r.listener(State{Data: r.rootData(route, querySet), ReadyState: rs})
		}
	}

	fetcher := r.env.fetcherFor(route)
	var request Abortable
	if forceFetch {
		request = fetcher.ForceFetch(querySet, onReadyStateChange)
	} else {
		request = fetcher.PrimeCache(querySet, onReadyStateChange)
	}
	current.request = request
	return nil
}

func (r *RootContainer) rootData(route *Route, querySet QuerySet) map[string]any {
	data := make(map[string]any, len(route.Params)+len(querySet)+1)
	data["route"] = route
	for k, v := range route.Params {
		data[k] = v
	}
	for name, root := range querySet {
		if root == nil {
			data[name] = nil
			continue
		}
		data[name] = record.NewRootValue(r.env.Store, root)
	}
	return data
}

func (r *RootContainer) abortPending() {
	if r.pending == nil {
		return
	}
	if r.pending.request != nil {
		r.pending.request.Abort()
	}
	r.pending = nil
}

// Cleanup aborts the request in flight. Callbacks arriving afterwards are
// ignored.
func (r *RootContainer) Cleanup() {
	r.abortPending()
	r.active = false
}

// Pending reports whether a request is in flight.
func (r *RootContainer) Pending() bool { return r.pending != nil }
