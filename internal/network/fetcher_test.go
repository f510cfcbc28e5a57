package network

import (
	"context"
	"errors"
	"testing"
	"time"

	container "github.com/hanpama/genrelay/internal/container"
	query "github.com/hanpama/genrelay/internal/query"
	scheduler "github.com/hanpama/genrelay/internal/scheduler"
	"github.com/stretchr/testify/require"
)

// blockingLayer holds every Send until released or canceled.
type blockingLayer struct {
	release chan struct{}
	started chan struct{}
}

func newBlockingLayer() *blockingLayer {
	return &blockingLayer{release: make(chan struct{}), started: make(chan struct{}, 8)}
}

func (l *blockingLayer) Send(ctx context.Context, root *query.Root) (any, error) {
	l.started <- struct{}{}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.release:
		return map[string]any{"id": root.Name}, nil
	}
}

type failingLayer struct{ err error }

func (l failingLayer) Send(context.Context, *query.Root) (any, error) { return nil, l.err }

type states struct{ got []container.ReadyState }

func (s *states) record(rs container.ReadyState) { s.got = append(s.got, rs) }

func (s *states) complete() bool {
	if len(s.got) == 0 {
		return false
	}
	last := s.got[len(s.got)-1]
	return last.Aborted || last.Done || last.Error != nil
}

func waitComplete(t *testing.T, q *scheduler.Queue, s *states) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.RunUntil(ctx, s.complete))
}

func querySet() container.QuerySet {
	return container.QuerySet{
		"factions": factionsRoot("empire", "rebels"),
		"faction":  shipsRoot(),
	}
}

func TestFetcher_PrimeCache(t *testing.T) {
	q := scheduler.New()
	cache := &fakeCache{}
	f := NewFetcher(starWarsMock(), cache, q)

	var s states
	f.PrimeCache(querySet(), s.record)
	require.Empty(t, s.got, "callbacks run only on the queue")

	waitComplete(t, q, &s)
	require.Equal(t, []container.ReadyState{{Ready: true, Done: true}}, s.got)
	require.Equal(t, []string{"FactionQuery", "FactionsQuery"}, cache.names())
}

func TestFetcher_PrimeCacheSkipsCached(t *testing.T) {
	q := scheduler.New()
	cache := &fakeCache{cached: map[string]bool{"FactionsQuery": true, "FactionQuery": true}}
	f := NewFetcher(failingLayer{err: errors.New("unreachable")}, cache, q)

	var s states
	f.PrimeCache(querySet(), s.record)
	waitComplete(t, q, &s)
	require.Equal(t, []container.ReadyState{{Ready: true, Done: true}}, s.got)
	require.Empty(t, cache.names())
}

func TestFetcher_ForceFetchReportsStaleFirst(t *testing.T) {
	q := scheduler.New()
	cache := &fakeCache{cached: map[string]bool{"FactionsQuery": true, "FactionQuery": true}}
	f := NewFetcher(starWarsMock(), cache, q)

	var s states
	f.ForceFetch(querySet(), s.record)
	waitComplete(t, q, &s)
	require.Equal(t, []container.ReadyState{
		{Ready: true, Stale: true},
		{Ready: true, Done: true},
	}, s.got)
	require.Len(t, cache.names(), 2)
}

func TestFetcher_ForceFetchPartiallyCached(t *testing.T) {
	q := scheduler.New()
	cache := &fakeCache{cached: map[string]bool{"FactionsQuery": true}}
	f := NewFetcher(starWarsMock(), cache, q)

	var s states
	f.ForceFetch(querySet(), s.record)
	waitComplete(t, q, &s)
	require.Equal(t, []container.ReadyState{{Ready: true, Done: true}}, s.got)
}

func TestFetcher_Error(t *testing.T) {
	q := scheduler.New()
	boom := errors.New("boom")
	f := NewFetcher(failingLayer{err: boom}, &fakeCache{}, q)

	var s states
	f.PrimeCache(querySet(), s.record)
	waitComplete(t, q, &s)
	require.Len(t, s.got, 1)
	require.ErrorIs(t, s.got[0].Error, boom)
}

func TestFetcher_IngestError(t *testing.T) {
	q := scheduler.New()
	bad := errors.New("bad payload")
	f := NewFetcher(starWarsMock(), &fakeCache{err: bad}, q)

	var s states
	f.PrimeCache(querySet(), s.record)
	waitComplete(t, q, &s)
	require.Len(t, s.got, 1)
	require.ErrorIs(t, s.got[0].Error, bad)
}

func TestFetcher_Abort(t *testing.T) {
	q := scheduler.New()
	layer := newBlockingLayer()
	cache := &fakeCache{}
	f := NewFetcher(layer, cache, q)

	var s states
	req := f.PrimeCache(container.QuerySet{"faction": shipsRoot()}, s.record)
	<-layer.started
	req.Abort()
	req.Abort()

	waitComplete(t, q, &s)
	require.Equal(t, []container.ReadyState{{Aborted: true}}, s.got)

	// the canceled send still reports back; nothing follows the abort
	time.Sleep(20 * time.Millisecond)
	q.Drain()
	require.Equal(t, []container.ReadyState{{Aborted: true}}, s.got)
	require.Empty(t, cache.names())
}

func TestFetcher_AbortAfterCompletion(t *testing.T) {
	q := scheduler.New()
	layer := newBlockingLayer()
	f := NewFetcher(layer, &fakeCache{}, q)

	var s states
	req := f.PrimeCache(container.QuerySet{"faction": shipsRoot()}, s.record)
	<-layer.started
	close(layer.release)
	waitComplete(t, q, &s)

	req.Abort()
	q.Drain()
	require.Equal(t, []container.ReadyState{{Ready: true, Done: true}}, s.got)
}

func TestFetcher_ClosedQueue(t *testing.T) {
	q := scheduler.New()
	q.Close()
	f := NewFetcher(starWarsMock(), &fakeCache{}, q)

	var s states
	f.PrimeCache(querySet(), s.record)
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, q.Drain())
	require.Empty(t, s.got)
}
