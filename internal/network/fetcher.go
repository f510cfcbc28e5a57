package network

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	container "github.com/hanpama/genrelay/internal/container"
	query "github.com/hanpama/genrelay/internal/query"
	scheduler "github.com/hanpama/genrelay/internal/scheduler"
)

// Cache is the record store a Fetcher primes.
type Cache interface {
	// HasQuery reports whether everything root asks for is cached.
	HasQuery(root *query.Root) bool
	// Ingest stores the server-shaped value of root's field.
	Ingest(root *query.Root, data any) error
}

// Fetcher implements container.Fetcher. Queries of one fetch are sent
// concurrently; readiness callbacks and cache writes run on the scheduler
// queue, never on network goroutines.
type Fetcher struct {
	layer Layer
	cache Cache
	queue *scheduler.Queue
	opts  *Options
}

func NewFetcher(layer Layer, cache Cache, queue *scheduler.Queue, opts ...Option) *Fetcher {
	return &Fetcher{layer: layer, cache: cache, queue: queue, opts: buildOptions(opts)}
}

// PrimeCache sends only the queries the cache cannot answer.
func (f *Fetcher) PrimeCache(qs container.QuerySet, onReadyStateChange func(container.ReadyState)) container.Abortable {
	return f.fetch(qs, onReadyStateChange, false)
}

// ForceFetch sends every query. When the cache already answers all of them
// the first callback reports ready and stale.
func (f *Fetcher) ForceFetch(qs container.QuerySet, onReadyStateChange func(container.ReadyState)) container.Abortable {
	return f.fetch(qs, onReadyStateChange, true)
}

type request struct {
	fetcher  *Fetcher
	callback func(container.ReadyState)
	cancel   context.CancelFunc
	// settled is set by the first completing callback or abort.
	settled atomic.Bool
}

// Abort cancels the request's network calls. The issuer is told through an
// aborted callback; no other callback follows. Aborting a completed request
// does nothing.
func (r *request) Abort() {
	if r.settled.Swap(true) {
		return
	}
	r.cancel()
	r.fetcher.enqueue(func() { r.callback(container.ReadyState{Aborted: true}) })
}

func (f *Fetcher) fetch(qs container.QuerySet, cb func(container.ReadyState), force bool) container.Abortable {
	ctx, cancel := context.WithCancel(f.opts.Context)
	req := &request{fetcher: f, callback: cb, cancel: cancel}

	names := make([]string, 0, len(qs))
	for name, root := range qs {
		if root != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var send []string
	allCached := true
	for _, name := range names {
		cached := f.cache.HasQuery(qs[name])
		if !cached {
			allCached = false
		}
		if force || !cached {
			send = append(send, name)
		}
	}

	if force && allCached && len(names) > 0 {
		f.deliverStale(req)
	}
	if len(send) == 0 {
		cancel()
		f.enqueue(func() {
			if !req.settled.Swap(true) {
				req.callback(container.ReadyState{Ready: true, Done: true})
			}
		})
		return req
	}
	go f.run(ctx, req, qs, send)
	return req
}

func (f *Fetcher) run(ctx context.Context, req *request, qs container.QuerySet, names []string) {
	defer req.cancel()
	results := make([]any, len(names))
	errs := make([]error, len(names))
	var wg sync.WaitGroup
	wg.Add(len(names))
	for i, name := range names {
		go func() {
			defer wg.Done()
			results[i], errs[i] = f.layer.Send(ctx, qs[name])
		}()
	}
	wg.Wait()

	f.enqueue(func() {
		if req.settled.Swap(true) {
			return
		}
		for i, name := range names {
			if errs[i] != nil {
				f.opts.Logger.Warn("network: query failed", "query", name, "error", errs[i])
				req.callback(container.ReadyState{Error: errs[i]})
				return
			}
		}
		for i, name := range names {
			if err := f.cache.Ingest(qs[name], results[i]); err != nil {
				f.opts.Logger.Warn("network: response does not fit query", "query", name, "error", err)
				req.callback(container.ReadyState{Error: err})
				return
			}
		}
		req.callback(container.ReadyState{Ready: true, Done: true})
	})
}

func (f *Fetcher) deliverStale(req *request) {
	f.enqueue(func() {
		if req.settled.Load() {
			return
		}
		req.callback(container.ReadyState{Ready: true, Stale: true})
	})
}

func (f *Fetcher) enqueue(task func()) {
	if err := f.queue.Enqueue(task); err != nil {
		f.opts.Logger.Debug("network: dropped callback", "error", err)
	}
}

var _ container.Fetcher = (*Fetcher)(nil)
