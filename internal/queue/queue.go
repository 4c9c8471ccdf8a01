package queue

import (
	"sync"
)

// Bounded is a generic thread-safe FIFO holding at most Cap items.
// Pushing onto a full queue evicts the oldest items; it never blocks.
type Bounded[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	evicted  uint64
}

// NewBounded creates an empty queue. Capacities below 1 are raised to 1.
func NewBounded[T any](capacity int) *Bounded[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Bounded[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
	}
}

// Push appends items to the tail and returns how many items were evicted
// from the head to stay within capacity.
func (q *Bounded[T]) Push(items ...T) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)

	over := len(q.items) - q.capacity
	if over <= 0 {
		return 0
	}
	// copy down so the backing array does not grow with history
	n := copy(q.items, q.items[over:])
	clear(q.items[n:])
	q.items = q.items[:n]
	q.evicted += uint64(over)
	return over
}

// Requeue puts items back at the head, ahead of anything pushed since they
// were taken. Past capacity the oldest items are evicted, requeued ones first.
func (q *Bounded[T]) Requeue(items ...T) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	merged := make([]T, 0, max(len(items)+len(q.items), q.capacity))
	merged = append(merged, items...)
	merged = append(merged, q.items...)

	over := len(merged) - q.capacity
	if over > 0 {
		n := copy(merged, merged[over:])
		clear(merged[n:])
		merged = merged[:n]
		q.evicted += uint64(over)
	}
	q.items = merged
	return max(over, 0)
}

// Pop removes and returns the head. ok is false when the queue is empty.
func (q *Bounded[T]) Pop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return item, false
	}
	item = q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = make([]T, 0, q.capacity)
	}
	return item, true
}

// Empty returns true if the queue has no items.
func (q *Bounded[T]) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// Len returns the number of items in the queue.
func (q *Bounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Cap returns the maximum number of items held.
func (q *Bounded[T]) Cap() int {
	return q.capacity
}

// Evicted returns the total number of items dropped on overflow.
func (q *Bounded[T]) Evicted() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.evicted
}

// Clear removes all items from the queue.
func (q *Bounded[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	clear(q.items)
	q.items = q.items[:0]
}

// Drain returns all items in FIFO order and empties the queue.
func (q *Bounded[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := q.items
	q.items = make([]T, 0, q.capacity)
	return result
}
