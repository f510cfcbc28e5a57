package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDrainRunsInOrderOnCaller(t *testing.T) {
	q := New()
	var got []int
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(func() { got = append(got, i) }))
	}
	require.Equal(t, 3, q.Len())
	require.Equal(t, 3, q.Drain())
	require.Equal(t, []int{0, 1, 2}, got)
	require.Equal(t, 0, q.Drain())
}

func TestDrainRunsNestedTasks(t *testing.T) {
	q := New()
	var got []string
	require.NoError(t, q.Enqueue(func() {
		got = append(got, "outer")
		_ = q.Enqueue(func() { got = append(got, "inner") })
	}))
	require.Equal(t, 2, q.Drain())
	require.Equal(t, []string{"outer", "inner"}, got)
}

func TestRunUntil(t *testing.T) {
	q := New()
	var wg sync.WaitGroup
	count := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Enqueue(func() { count++ })
		}()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.RunUntil(ctx, func() bool { return count == 10 }))
	wg.Wait()
	require.Equal(t, 10, count)
}

func TestRunStopsOnContext(t *testing.T) {
	q := New()
	ctx, cancel := context.WithCancel(context.Background())
	ran := false
	require.NoError(t, q.Enqueue(func() {
		ran = true
		cancel()
	}))
	require.ErrorIs(t, q.Run(ctx), context.Canceled)
	require.True(t, ran)
}

func TestClose(t *testing.T) {
	q := New()
	require.NoError(t, q.Enqueue(func() {}))
	q.Close()
	q.Close()
	require.ErrorIs(t, q.Enqueue(func() {}), ErrClosed)
	require.NoError(t, q.Run(context.Background()))
	require.Equal(t, 0, q.Len())
	require.ErrorIs(t, q.RunUntil(context.Background(), func() bool { return false }), ErrClosed)
}
