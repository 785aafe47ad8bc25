// Package queue implements the bounded, priority-aware queues used on both
// the inbound and outbound sides of a session. It generalizes the
// mutex-plus-buffered-signal-channel idiom the teacher uses for its audio
// and text buffers (a non-blocking `chan struct{}` of capacity 1 wakes any
// waiter instead of a full condition variable) to a priority bucket queue.
package queue

import (
	"context"
	"sync"
)

// Class is a priority bucket. Lower numeric value is higher priority; index
// 0 in a Queue's configured order is dequeued first and is never starved.
type Class int

// item pairs a queued value with the bucket it was classified into, so a
// Pop can report which class it served without re-classifying on the way
// out (classification is sometimes stateful, e.g. "oldest vs latest").
type item[T any] struct {
	value T
	class Class
}

// Queue is a bounded, multi-class priority queue. Classification and
// eviction protection are supplied by the caller so the same engine backs
// both the inbound and outbound queues, which have different class sets and
// different eviction rules.
type Queue[T any] struct {
	mu sync.Mutex

	classify func(T) Class
	// protected reports whether a class may never be evicted to make room,
	// regardless of how full the queue is.
	protected func(Class) bool
	// evictFromHead reports whether eviction within a class removes the
	// oldest (head) item rather than the most recently enqueued (tail).
	evictFromHead func(Class) bool
	// minRetain is the number of items a class must keep even when chosen
	// for eviction, so the newest item of that class is never dropped. An
	// item being pushed into that class counts as one of the kept items.
	minRetain func(Class) int
	// order lists every class from highest to lowest priority; it also
	// defines the only classes Pop will ever see.
	order []Class

	capacity int
	buckets  map[Class][]T
	closed   bool

	updateSignal chan struct{}

	evictions int
}

// Config wires a Queue's class behavior.
type Config[T any] struct {
	Capacity      int
	Order         []Class // highest priority first
	Classify      func(T) Class
	Protected     func(Class) bool
	EvictFromHead func(Class) bool // default: false (evict from tail)
	MinRetain     func(Class) int  // default: 0
}

func New[T any](cfg Config[T]) *Queue[T] {
	buckets := make(map[Class][]T, len(cfg.Order))
	for _, c := range cfg.Order {
		buckets[c] = nil
	}
	if cfg.EvictFromHead == nil {
		cfg.EvictFromHead = func(Class) bool { return false }
	}
	if cfg.MinRetain == nil {
		cfg.MinRetain = func(Class) int { return 0 }
	}
	return &Queue[T]{
		classify:      cfg.Classify,
		protected:     cfg.Protected,
		evictFromHead: cfg.EvictFromHead,
		minRetain:     cfg.MinRetain,
		order:         cfg.Order,
		capacity:      cfg.Capacity,
		buckets:       buckets,
		updateSignal:  make(chan struct{}, 1),
	}
}

// Push enqueues an item, evicting a lower-priority entry if the queue is at
// capacity. It reports whether something was evicted to make room, and
// which class the eviction came from.
func (q *Queue[T]) Push(v T) (evicted bool, evictedClass Class) {
	q.mu.Lock()
	class := q.classify(v)

	if q.total() >= q.capacity {
		evicted, evictedClass = q.evictOneLocked(class)
	}
	q.buckets[class] = append(q.buckets[class], v)
	q.mu.Unlock()

	q.signalUpdate()
	return evicted, evictedClass
}

// Pop removes and returns the highest-priority item, blocking until one is
// available, the context is done, or the queue is closed.
func (q *Queue[T]) Pop(ctx context.Context) (T, bool) {
	for {
		q.mu.Lock()
		if v, class, ok := q.popHighestLocked(); ok {
			_ = class
			q.mu.Unlock()
			return v, true
		}
		closed := q.closed
		q.mu.Unlock()

		var zero T
		if closed {
			return zero, false
		}

		select {
		case <-ctx.Done():
			return zero, false
		case <-q.updateSignal:
		}
	}
}

// TryPop removes and returns the highest-priority item without blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	v, _, ok := q.popHighestLocked()
	return v, ok
}

func (q *Queue[T]) popHighestLocked() (T, Class, bool) {
	for _, class := range q.order {
		bucket := q.buckets[class]
		if len(bucket) > 0 {
			v := bucket[0]
			q.buckets[class] = bucket[1:]
			return v, class, true
		}
	}
	var zero T
	return zero, 0, false
}

// evictOneLocked drops one item from the lowest-priority nonempty,
// unprotected class that still has more than its configured minimum, to
// make room for a new Push. Direction (oldest vs. most recent) and the
// retained minimum are both configured per class. An incoming item of the
// same class counts toward that minimum, since it becomes the newest.
func (q *Queue[T]) evictOneLocked(incoming Class) (bool, Class) {
	for i := len(q.order) - 1; i >= 0; i-- {
		class := q.order[i]
		if q.protected(class) {
			continue
		}
		bucket := q.buckets[class]
		retain := q.minRetain(class)
		if class == incoming && retain > 0 {
			retain--
		}
		if len(bucket) <= retain {
			continue
		}
		if q.evictFromHead(class) {
			q.buckets[class] = bucket[1:]
		} else {
			q.buckets[class] = bucket[:len(bucket)-1]
		}
		q.evictions++
		return true, class
	}
	return false, 0
}

func (q *Queue[T]) total() int {
	n := 0
	for _, c := range q.order {
		n += len(q.buckets[c])
	}
	return n
}

// Len returns the total number of queued items across all classes.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.total()
}

// Evictions returns the running count of items dropped to make room.
func (q *Queue[T]) Evictions() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.evictions
}

// Close marks the queue closed; any blocked Pop returns immediately.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signalUpdate()
}

func (q *Queue[T]) signalUpdate() {
	select {
	case q.updateSignal <- struct{}{}:
	default:
	}
}
