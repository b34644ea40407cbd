// Package dedup provides an in-memory FIFO that holds at most one entry per key.
//
// Enqueueing a value whose key is already queued replaces the stored value in
// place; the entry keeps its original position.  Dequeue is non-blocking;
// consumers wait on Notify or use the messaging.Queue adapter methods.
package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/viant/artifex/service/messaging"
)

// Op identifies a queue mutation reported to hooks
type Op string

const (
	OpEnqueued Op = "enqueued"
	OpReplaced Op = "replaced"
	OpDequeued Op = "dequeued"
)

// Hook observes queue mutations together with the resulting depth
type Hook func(op Op, depth int)

// Queue is a key-deduplicated FIFO
type Queue[T any] struct {
	mu           sync.Mutex
	items        map[string]*T
	order        []string
	keySelector  func(*T) string
	notify       chan struct{}
	pollInterval time.Duration
	hooks        []Hook
}

// Option configures a Queue
type Option func(o *options)

type options struct {
	pollInterval time.Duration
	hooks        []Hook
}

// WithPollInterval sets the fallback interval used by Consume between wake signals
func WithPollInterval(interval time.Duration) Option {
	return func(o *options) {
		o.pollInterval = interval
	}
}

// WithHooks registers mutation observers
func WithHooks(hooks ...Hook) Option {
	return func(o *options) {
		o.hooks = append(o.hooks, hooks...)
	}
}

// NewQueue creates a queue; keySelector extracts the dedup key from a value
func NewQueue[T any](keySelector func(*T) string, opts ...Option) *Queue[T] {
	o := &options{pollInterval: 250 * time.Millisecond}
	for _, opt := range opts {
		opt(o)
	}
	return &Queue[T]{
		items:        make(map[string]*T),
		keySelector:  keySelector,
		notify:       make(chan struct{}, 1),
		pollInterval: o.pollInterval,
		hooks:        o.hooks,
	}
}

// Enqueue appends t, or replaces the queued value with the same key keeping its position
func (q *Queue[T]) Enqueue(t *T) {
	q.Replace(t)
}

// Replace enqueues t and returns the value it displaced, if any.  The lookup
// and the swap happen under one lock, so every displaced value is returned to
// exactly one caller and a value already dequeued is never returned.
func (q *Queue[T]) Replace(t *T) (previous *T, replaced bool) {
	if t == nil {
		return nil, false
	}
	key := q.keySelector(t)
	q.mu.Lock()
	previous, replaced = q.items[key]
	q.items[key] = t
	if !replaced {
		q.order = append(q.order, key)
	}
	depth := len(q.order)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	if replaced {
		q.emit(OpReplaced, depth)
		return previous, true
	}
	q.emit(OpEnqueued, depth)
	return nil, false
}

// Dequeue removes and returns the front value, false when the queue is empty
func (q *Queue[T]) Dequeue() (*T, bool) {
	q.mu.Lock()
	if len(q.order) == 0 {
		q.mu.Unlock()
		return nil, false
	}
	key := q.order[0]
	q.order[0] = ""
	q.order = q.order[1:]
	t := q.items[key]
	delete(q.items, key)
	depth := len(q.order)
	q.mu.Unlock()
	q.emit(OpDequeued, depth)
	return t, true
}

// Size returns the number of distinct keys queued
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// Peek returns the queued value for key without removing it
func (q *Queue[T]) Peek(key string) (*T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.items[key]
	return t, ok
}

// Notify returns a channel signalled after enqueue; signals coalesce
func (q *Queue[T]) Notify() <-chan struct{} {
	return q.notify
}

// Publish enqueues t
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.Enqueue(t)
	return nil
}

// Consume waits until a value can be dequeued or ctx is done.  The returned
// message owns the value; Ack and Nack never requeue it.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()
	for {
		if t, ok := q.Dequeue(); ok {
			return &message[T]{payload: t}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		case <-ticker.C:
		}
	}
}

func (q *Queue[T]) emit(op Op, depth int) {
	for _, hook := range q.hooks {
		hook(op, depth)
	}
}

type message[T any] struct {
	payload *T
	mu      sync.Mutex
	done    bool
}

func (m *message[T]) T() *T {
	return m.payload
}

func (m *message[T]) Ack() error {
	return m.settle()
}

func (m *message[T]) Nack(error) error {
	return m.settle()
}

func (m *message[T]) settle() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return messaging.ErrAlreadyProcessed
	}
	m.done = true
	return nil
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
var _ messaging.Sizer = (*Queue[any])(nil)
