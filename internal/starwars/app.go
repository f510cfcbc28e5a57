package starwars

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	container "github.com/hanpama/genrelay/internal/container"
	memstore "github.com/hanpama/genrelay/internal/memstore"
	record "github.com/hanpama/genrelay/internal/record"
	scheduler "github.com/hanpama/genrelay/internal/scheduler"
)

// App wires the container tree: a root container fetching a route, the app
// container it feeds, and one ship container per ship record the app
// receives. All of them run on the goroutine that calls Load and SetFirst.
type App struct {
	classes *Classes
	env     container.Environment
	queue   *scheduler.Queue
	logger  *slog.Logger

	root      *container.RootContainer
	app       *container.Container
	route     *container.Route
	ships     map[string]*container.Container
	shipData  map[string]*record.Record
	factions  []any
	rootState container.ReadyState
	appState  container.ReadyState
	err       error
}

func NewApp(store *memstore.Store, fetcher container.Fetcher, queue *scheduler.Queue, logger *slog.Logger) (*App, error) {
	classes, err := NewClasses()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		classes:  classes,
		queue:    queue,
		logger:   logger,
		ships:    map[string]*container.Container{},
		shipData: map[string]*record.Record{},
	}
	a.env = container.Environment{
		Store:       store,
		Fetcher:     &errorTap{Fetcher: fetcher, onError: func(err error) { a.err = err }},
		NewResolver: memstore.NewResolver,
	}
	a.root, err = container.NewRootContainer(a.env, a.handleRoot, container.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Load fetches route and runs callbacks until the tree has rendered from
// complete data.
func (a *App) Load(ctx context.Context, route *container.Route, forceFetch bool) error {
	a.rootState = container.ReadyState{}
	a.err = nil
	if err := a.root.Update(a.classes.App, route, forceFetch); err != nil {
		return err
	}
	return a.wait(ctx, func() bool { return a.rootState.Done })
}

// SetFirst changes how many ships per faction the app shows, fetching what
// the store is missing.
func (a *App) SetFirst(ctx context.Context, first int) error {
	if a.app == nil {
		return fmt.Errorf("%w: app has not loaded", container.ErrInvariant)
	}
	a.appState = container.ReadyState{}
	a.err = nil
	if err := a.app.SetVariables(container.Variables{"first": first}); err != nil {
		return err
	}
	// Unchanged variables deliver nothing; the settled fetch is enough.
	return a.wait(ctx, func() bool {
		_, pending := a.app.PendingVariables()
		return a.appState.Done || !pending
	})
}

func (a *App) wait(ctx context.Context, done func() bool) error {
	err := a.queue.RunUntil(ctx, func() bool { return a.err != nil || done() })
	if a.err != nil {
		return a.err
	}
	return err
}

func (a *App) handleRoot(s container.State) {
	a.rootState = s.ReadyState
	if s.Data == nil {
		return
	}
	route, _ := s.Data["route"].(*container.Route)
	if a.app == nil {
		app, err := a.classes.App.New(a.env, a.handleApp, nil, container.WithLogger(a.logger))
		if err != nil {
			a.err = err
			return
		}
		a.app = app
	}
	a.route = route
	if err := a.app.Update(route, s.Data); err != nil {
		a.err = err
	}
}

func (a *App) handleApp(s container.State) {
	a.appState = s.ReadyState
	if s.Error != nil {
		a.err = s.Error
		return
	}
	if s.Data == nil {
		return
	}
	a.factions, _ = s.Data["factions"].([]any)

	seen := map[string]bool{}
	for _, f := range a.factions {
		for _, ship := range shipsOf(f) {
			id, ok := record.GetDataID(ship)
			if !ok {
				continue
			}
			seen[id] = true
			if err := a.updateShip(id, ship); err != nil {
				a.err = err
				return
			}
		}
	}
	for id, c := range a.ships {
		if !seen[id] {
			c.Cleanup()
			delete(a.ships, id)
			delete(a.shipData, id)
		}
	}
}

func (a *App) updateShip(id string, ship any) error {
	c := a.ships[id]
	if c == nil {
		var err error
		c, err = a.classes.Ship.New(a.env, func(s container.State) {
			if rec, ok := s.Data["ship"].(*record.Record); ok {
				a.shipData[id] = rec
			}
		}, nil, container.WithLogger(a.logger))
		if err != nil {
			return err
		}
		a.ships[id] = c
	}
	return c.Update(a.route, map[string]any{"ship": ship})
}

// errorTap reports failed fetches. Root containers deliver nothing for
// them, so Load would otherwise wait for its deadline. Errors of aborted
// requests are dropped.
type errorTap struct {
	container.Fetcher
	onError func(error)
}

type tappedRequest struct {
	container.Abortable
	aborted bool
}

func (r *tappedRequest) Abort() {
	r.aborted = true
	r.Abortable.Abort()
}

func (t *errorTap) tap(issue func(func(container.ReadyState)) container.Abortable, cb func(container.ReadyState)) container.Abortable {
	req := &tappedRequest{}
	req.Abortable = issue(func(rs container.ReadyState) {
		if rs.Error != nil && !req.aborted {
			t.onError(rs.Error)
		}
		cb(rs)
	})
	return req
}

func (t *errorTap) PrimeCache(qs container.QuerySet, cb func(container.ReadyState)) container.Abortable {
	return t.tap(func(wrapped func(container.ReadyState)) container.Abortable { return t.Fetcher.PrimeCache(qs, wrapped) }, cb)
}

func (t *errorTap) ForceFetch(qs container.QuerySet, cb func(container.ReadyState)) container.Abortable {
	return t.tap(func(wrapped func(container.ReadyState)) container.Abortable { return t.Fetcher.ForceFetch(qs, wrapped) }, cb)
}

func shipsOf(faction any) []any {
	rec, ok := faction.(*record.Record)
	if !ok {
		return nil
	}
	ships, _ := rec.Get("ships").([]any)
	return ships
}

// Factions returns the faction names and, per faction, the names of the
// ships currently shown, as resolved by the ship containers.
func (a *App) Factions() []Faction {
	out := make([]Faction, 0, len(a.factions))
	for _, f := range a.factions {
		rec, ok := f.(*record.Record)
		if !ok {
			continue
		}
		name, _ := rec.Get("name").(string)
		faction := Faction{ID: rec.ID, Name: name}
		for _, ship := range shipsOf(f) {
			id, _ := record.GetDataID(ship)
			if data := a.shipData[id]; data != nil {
				shipName, _ := data.Get("name").(string)
				faction.Ships = append(faction.Ships, shipName)
			}
		}
		out = append(out, faction)
	}
	return out
}

// Faction is one rendered faction.
type Faction struct {
	ID    string
	Name  string
	Ships []string
}

// Render writes the factions and their ships as an indented list.
func (a *App) Render(w io.Writer) error {
	for _, f := range a.Factions() {
		if _, err := fmt.Fprintln(w, f.Name); err != nil {
			return err
		}
		for _, ship := range f.Ships {
			if _, err := fmt.Fprintf(w, "  - %s\n", ship); err != nil {
				return err
			}
		}
	}
	return nil
}

// Stale reports whether the app last rendered data that was replaced.
func (a *App) Stale() bool { return a.app != nil && a.app.Stale() }

// Cleanup stops every container of the tree.
func (a *App) Cleanup() {
	a.root.Cleanup()
	if a.app != nil {
		a.app.Cleanup()
	}
	for id, c := range a.ships {
		c.Cleanup()
		delete(a.ships, id)
	}
}
