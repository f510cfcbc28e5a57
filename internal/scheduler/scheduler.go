// Package scheduler runs callbacks produced on other goroutines on the one
// goroutine that owns the containers. Network layers enqueue readiness
// callbacks; the owner drains them with Run or Drain.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("scheduler: queue closed")

// Queue is a FIFO of tasks. Enqueue is safe from any goroutine; Drain and
// Run must only be called by the owning goroutine.
type Queue struct {
	mu     sync.Mutex
	tasks  []func()
	wake   chan struct{}
	closed atomic.Bool
}

func New() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Enqueue appends task. It never runs task itself.
func (q *Queue) Enqueue(task func()) error {
	if q.closed.Load() {
		return ErrClosed
	}
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Drain runs queued tasks, including tasks they enqueue, until the queue is
// empty, and returns how many ran.
func (q *Queue) Drain() int {
	n := 0
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return n
		}
		task := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()
		task()
		n++
	}
}

// Run drains the queue whenever tasks arrive until ctx is done or the queue
// is closed.
func (q *Queue) Run(ctx context.Context) error {
	for {
		q.Drain()
		if q.closed.Load() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.wake:
		}
	}
}

// RunUntil drains the queue as tasks arrive until done reports true after a
// drain, or ctx is done.
func (q *Queue) RunUntil(ctx context.Context, done func() bool) error {
	for {
		q.Drain()
		if done() {
			return nil
		}
		if q.closed.Load() {
			return ErrClosed
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.wake:
		}
	}
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Close stops accepting tasks and wakes Run. Tasks already queued still run
// on the next drain.
func (q *Queue) Close() {
	if q.closed.Swap(true) {
		return
	}
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
