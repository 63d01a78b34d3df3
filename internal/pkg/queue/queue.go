// Package queue provides an unbounded FIFO hand-off between goroutines.
package queue

import "sync"

// Unbounded is a FIFO queue whose Push never blocks. Every pushed item is
// delivered exactly once on Out, in push order. Items are never coalesced.
type Unbounded[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	notify chan struct{}
	out    chan T
	done   chan struct{}
	abort  sync.Once
}

// New creates a queue and starts its delivery goroutine.
func New[T any]() *Unbounded[T] {
	q := &Unbounded[T]{
		notify: make(chan struct{}, 1),
		out:    make(chan T),
		done:   make(chan struct{}),
	}
	go q.pump()
	return q
}

// Push appends an item. Pushing to a closed queue is a no-op and returns false.
func (q *Unbounded[T]) Push(item T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Out returns the delivery channel. It is closed once the queue is closed
// and every pending item has been received.
func (q *Unbounded[T]) Out() <-chan T {
	return q.out
}

// Len returns the number of items not yet handed to a receiver.
func (q *Unbounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting items. Pending items are still delivered.
func (q *Unbounded[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Abort closes the queue and drops whatever has not been delivered yet.
func (q *Unbounded[T]) Abort() {
	q.Close()
	q.abort.Do(func() { close(q.done) })
}

func (q *Unbounded[T]) pump() {
	defer close(q.out)
	for {
		select {
		case <-q.done:
			return
		default:
		}

		q.mu.Lock()
		if len(q.items) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			select {
			case <-q.notify:
				continue
			case <-q.done:
				return
			}
		}
		item := q.items[0]
		var zero T
		q.items[0] = zero
		q.items = q.items[1:]
		q.mu.Unlock()

		select {
		case q.out <- item:
		case <-q.done:
			return
		}
	}
}
