// Package events carries batch events from the worker goroutine to whichever
// front end is presenting them.
package events

import (
	"context"
	"sync"
	"time"
)

// Queue is an unbounded FIFO safe for one producer and one consumer running
// on different goroutines. Push never blocks.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{}
}

func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
}

// Drain removes and returns everything queued so far, oldest first.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	items := q.items
	q.items = nil
	return items
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Poll drains q every interval and hands each non-empty batch to apply. It
// returns when apply reports false or ctx is done.
func Poll[T any](ctx context.Context, q *Queue[T], interval time.Duration, apply func([]T) bool) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			items := q.Drain()
			if len(items) == 0 {
				continue
			}
			if !apply(items) {
				return nil
			}
		}
	}
}
