package pipeline

import (
	"context"
	"errors"
	"sync"
)

// errQueueClosed is returned by get once a closed queue is drained.
var errQueueClosed = errors.New("pipeline: queue closed")

// queue is an unbounded FIFO with a join barrier: join returns once every
// item ever put has been marked done.
type queue[T any] struct {
	mu         sync.Mutex
	cond       *sync.Cond
	items      []T
	unfinished int
	closed     bool
}

func newQueue[T any]() *queue[T] {
	q := &queue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *queue[T]) put(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.unfinished++
	q.mu.Unlock()
	q.cond.Broadcast()
}

// get blocks until an item is available, the queue is closed and drained,
// or ctx is done.
func (q *queue[T]) get(ctx context.Context) (T, error) {
	stop := context.AfterFunc(ctx, q.wake)
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	for len(q.items) == 0 && !q.closed && ctx.Err() == nil {
		q.cond.Wait()
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if len(q.items) == 0 {
		return zero, errQueueClosed
	}

	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return v, nil
}

// done marks one item as fully processed.
func (q *queue[T]) done() {
	q.mu.Lock()
	q.unfinished--
	if q.unfinished < 0 {
		q.mu.Unlock()
		panic("pipeline: done called more times than put")
	}
	q.mu.Unlock()
	q.cond.Broadcast()
}

// join blocks until every item put so far is done or ctx is done.
func (q *queue[T]) join(ctx context.Context) error {
	stop := context.AfterFunc(ctx, q.wake)
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for q.unfinished > 0 && ctx.Err() == nil {
		q.cond.Wait()
	}
	return ctx.Err()
}

// close lets get return errQueueClosed once the remaining items are taken.
func (q *queue[T]) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *queue[T]) wake() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cond.Broadcast()
}
