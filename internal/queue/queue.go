package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Enqueue after Close, and by Dequeue once a closed
// queue has been drained.
var ErrClosed = errors.New("queue closed")

// Queue is an unbounded FIFO hand-off between producers and any number of
// consumers. Enqueue never blocks; Dequeue blocks until an item is available.
// Each item is delivered to exactly one consumer.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	ready  chan struct{}
	done   chan struct{}
}

func New[T any]() *Queue[T] {
	return &Queue[T]{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Enqueue appends item to the tail of the queue.
func (q *Queue[T]) Enqueue(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, item)
	q.signal()
	return nil
}

// Dequeue removes and returns the head of the queue, waiting for one to
// arrive if the queue is empty. It returns early with the context's error
// when ctx is done.
func (q *Queue[T]) Dequeue(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = zero
			q.items = q.items[1:]
			if len(q.items) > 0 {
				// wake the next waiting consumer
				q.signal()
			}
			q.mu.Unlock()
			return item, nil
		}
		if q.closed {
			q.mu.Unlock()
			return zero, ErrClosed
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-q.done:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Len returns the number of items waiting to be dequeued.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting new items. Items already queued can still be dequeued.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

// signal must be called with q.mu held.
func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
