// Package container binds declared fragment dependencies to records held by
// a normalized store. A Container derives fragment pointers from its parent's
// input, resolves them through the store, and refetches when its variables
// change; a RootContainer fetches a route's queries and feeds the result to
// the container it renders.
package container

import (
	"context"
	"fmt"
	"log/slog"

	eventbus "github.com/hanpama/genrelay/internal/eventbus"
	events "github.com/hanpama/genrelay/internal/events"
	record "github.com/hanpama/genrelay/internal/record"
	reqid "github.com/hanpama/genrelay/internal/reqid"
)

// Container is one mounted instance of a Class. It is not safe for
// concurrent use: its methods, and the fetch and resolver callbacks it
// registers, must all run on the goroutine that owns it.
type Container struct {
	class    *Class
	env      Environment
	listener Listener
	logger   *slog.Logger
	ctx      context.Context

	route             *Route
	variables         Variables
	fragmentInput     map[string]any
	fragmentPointers  map[string]*record.FragmentPointer
	queryResolvers    map[string]Resolver
	queryData         map[string]any
	hasStaleQueryData bool
	pending           *pendingFetch
}

// pendingFetch is the container's in-flight variables change. At most one
// exists at a time.
type pendingFetch struct {
	variables Variables
	request   Abortable
	ctx       context.Context
}

// New creates a container instance. variables are merged over the class's
// initial variables.
func (c *Class) New(env Environment, listener Listener, variables Variables, opts ...Option) (*Container, error) {
	if listener == nil {
		return nil, fmt.Errorf("%w: %s requires a listener function", ErrInvariant, c.name)
	}
	if env.Store == nil || env.Fetcher == nil || env.NewResolver == nil {
		return nil, fmt.Errorf("%w: %s environment is missing a collaborator", ErrInvariant, c.name)
	}
	o := buildOptions(opts)
	return &Container{
		class:            c,
		env:              env,
		listener:         listener,
		logger:           o.Logger,
		ctx:              o.Context,
		variables:        MergeVariables(c.spec.InitialVariables, variables),
		fragmentPointers: make(map[string]*record.FragmentPointer),
		queryResolvers:   make(map[string]Resolver),
	}, nil
}

// Update records route and fragmentInput, rebuilds fragment pointers from
// the input and delivers the resolved data with a done state.
func (c *Container) Update(route *Route, fragmentInput map[string]any) error {
	if route == nil {
		return fmt.Errorf("%w: %s requires a route for an update", ErrInvariant, c.class.name)
	}
	if fragmentInput == nil {
		return fmt.Errorf("%w: %s requires fragment input for an update", ErrInvariant, c.class.name)
	}
	pointers, err := BuildPointersFromInput(c.class.name, fragmentInput, route, c.variables, &c.class.spec, c.logger)
	if err != nil {
		return err
	}
	c.route = route
	c.fragmentInput = fragmentInput
	c.fragmentPointers = pointers
	c.updateQueryResolvers()
	c.deliver(c.getQueryData(fragmentInput), doneState)
	return nil
}

// UpdateFragmentInput is Update with the current route.
func (c *Container) UpdateFragmentInput(fragmentInput map[string]any) error {
	if c.route == nil {
		return fmt.Errorf("%w: %s has no route yet", ErrInvariant, c.class.name)
	}
	return c.Update(c.route, fragmentInput)
}

// UpdateRoute is Update with the current fragment input.
func (c *Container) UpdateRoute(route *Route) error {
	if c.fragmentInput == nil {
		return fmt.Errorf("%w: %s has no fragment input yet", ErrInvariant, c.class.name)
	}
	return c.Update(route, c.fragmentInput)
}

// SetVariables fetches whatever the merged variables need that the store is
// missing, then delivers data for them.
func (c *Container) SetVariables(partial Variables) error {
	return c.runVariables(partial, false)
}

// ForceFetch refetches everything the merged variables need.
func (c *Container) ForceFetch(partial Variables) error {
	return c.runVariables(partial, true)
}

func (c *Container) runVariables(partial Variables, forceFetch bool) error {
	if c.fragmentInput == nil {
		return fmt.Errorf("%w: %s must be updated before its variables can change", ErrInvariant, c.class.name)
	}
	last := c.variables
	prev := last
	if c.pending != nil {
		prev = c.pending.variables
	}
	next := MergeVariables(prev, partial)
	c.abortPending()

	querySet := QuerySet{}
	var pointers map[string]*record.FragmentPointer
	if forceFetch || !ShallowEqual(next, last) {
		qs, ps, err := BuildQuerySetFromStore(c.class.name, c.env.Store, next, c.route, &c.class.spec, c.queryData)
		if err != nil {
			return err
		}
		querySet, pointers = qs, ps
	}

	ctx, _ := reqid.NewContext(c.ctx)
	current := &pendingFetch{variables: next, ctx: ctx}
	c.pending = current
	eventbus.Publish(ctx, events.FetchStart{
		Container: c.class.name,
		Force:     forceFetch,
		Queries:   sortedKeys(querySet),
		Variables: next,
	})

	onReadyStateChange := func(rs ReadyState) { c.handleReadyState(current, pointers, rs) }
	fetcher := c.env.fetcherFor(c.route)
	var request Abortable
	if forceFetch {
		request = fetcher.ForceFetch(querySet, onReadyStateChange)
	} else {
		request = fetcher.PrimeCache(querySet, onReadyStateChange)
	}
	current.request = request
	return nil
}

func (c *Container) handleReadyState(current *pendingFetch, pointers map[string]*record.FragmentPointer, rs ReadyState) {
	if c.pending != current {
		eventbus.Publish(current.ctx, events.FetchDiscarded{
			Container: c.class.name,
			Aborted:   rs.Aborted,
			Done:      rs.Done,
			Ready:     rs.Ready,
		})
		return
	}
	eventbus.Publish(current.ctx, events.FetchReadyState{
		Container: c.class.name,
		Aborted:   rs.Aborted,
		Done:      rs.Done,
		Ready:     rs.Ready,
		Stale:     rs.Stale,
		Err:       rs.Error,
	})
	if rs.complete() {
		c.pending = nil
	}
	if rs.Ready && pointers != nil {
		c.variables = current.variables
		c.fragmentPointers = pointers
		c.updateQueryResolvers()
		c.deliver(c.getQueryData(c.fragmentInput), rs)
	}
}

// abortPending aborts and forgets the pending fetch. Its later callbacks
// are discarded.
func (c *Container) abortPending() {
	if c.pending == nil {
		return
	}
	if c.pending.request != nil {
		c.pending.request.Abort()
	}
	c.pending = nil
}

// updateQueryResolvers drops resolvers of fragments without a pointer and
// creates resolvers for new pointers.
func (c *Container) updateQueryResolvers() {
	for _, name := range c.class.fragmentNames {
		pointer := c.fragmentPointers[name]
		resolver := c.queryResolvers[name]
		if pointer == nil {
			if resolver != nil {
				resolver.Reset()
				delete(c.queryResolvers, name)
			}
			continue
		}
		if resolver == nil {
			c.queryResolvers[name] = c.env.NewResolver(c.env.Store, pointer, c.handleFragmentDataUpdate)
		}
	}
}

// getQueryData resolves every fragment with a pointer. Fragments without
// one pass their input value through unchanged, which lets plain data such
// as mock data bypass the store.
func (c *Container) getQueryData(input map[string]any) map[string]any {
	data := make(map[string]any, len(c.class.fragmentNames))
	for _, name := range c.class.fragmentNames {
		value, present := input[name]
		pointer := c.fragmentPointers[name]
		resolver := c.queryResolvers[name]

		var resolved any
		if value == nil || pointer == nil || resolver == nil {
			if resolver != nil {
				resolver.Reset()
			}
			resolved = value
		} else {
			resolved = resolver.Resolve(pointer)
		}
		if !present && resolved == nil {
			continue
		}
		data[name] = resolved

		if old, ok := c.queryData[name]; ok && !sameValue(old, resolved) {
			c.hasStaleQueryData = true
		}
	}
	return data
}

func (c *Container) handleFragmentDataUpdate() {
	if c.fragmentInput == nil {
		return
	}
	c.deliver(c.getQueryData(c.fragmentInput), doneState)
}

func (c *Container) deliver(data map[string]any, rs ReadyState) {
	c.queryData = data
	c.listener(State{Data: data, ReadyState: rs})
}

// Cleanup releases resolvers and aborts the pending fetch. The container
// delivers nothing afterwards unless it is updated again.
func (c *Container) Cleanup() {
	for _, name := range c.class.fragmentNames {
		if resolver := c.queryResolvers[name]; resolver != nil {
			resolver.Reset()
		}
	}
	c.queryResolvers = make(map[string]Resolver)
	c.fragmentPointers = make(map[string]*record.FragmentPointer)
	c.abortPending()
}

// HasOptimisticUpdate reports whether the store holds an optimistic update
// for the record.
func (c *Container) HasOptimisticUpdate(rec any) (bool, error) {
	id, ok := record.GetDataID(rec)
	if !ok {
		return false, fmt.Errorf("%w: %s.HasOptimisticUpdate expects a record, got %T", ErrInvariant, c.class.name, rec)
	}
	return c.env.Store.HasOptimisticUpdate(id), nil
}

// GetPendingTransactions returns the pending mutations affecting the
// record, or nil when there are none.
func (c *Container) GetPendingTransactions(rec any) ([]Transaction, error) {
	id, ok := record.GetDataID(rec)
	if !ok {
		return nil, fmt.Errorf("%w: %s.GetPendingTransactions expects a record, got %T", ErrInvariant, c.class.name, rec)
	}
	mutationIDs := c.env.Store.GetClientMutationIDs(id)
	if mutationIDs == nil {
		return nil, nil
	}
	transactions := make([]Transaction, 0, len(mutationIDs))
	for _, mutationID := range mutationIDs {
		transactions = append(transactions, c.env.Store.GetTransaction(mutationID))
	}
	return transactions, nil
}

func (c *Container) Class() *Class        { return c.class }
func (c *Container) Route() *Route        { return c.route }
func (c *Container) Variables() Variables { return c.variables }

// PendingVariables returns the variables of the in-flight fetch, if any.
func (c *Container) PendingVariables() (Variables, bool) {
	if c.pending == nil {
		return nil, false
	}
	return c.pending.variables, true
}

// FragmentPointers returns a copy of the current pointers.
func (c *Container) FragmentPointers() map[string]*record.FragmentPointer {
	out := make(map[string]*record.FragmentPointer, len(c.fragmentPointers))
	for k, v := range c.fragmentPointers {
		out[k] = v
	}
	return out
}

// QueryData returns the data last delivered to the listener.
func (c *Container) QueryData() map[string]any { return c.queryData }

// Stale reports whether delivered data ever changed under a fragment. It is
// advisory and never reset.
func (c *Container) Stale() bool { return c.hasStaleQueryData }
