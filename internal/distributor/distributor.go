// Package distributor hands parameter vectors to a fixed set of evaluation
// workers and reports each resulting fitness back to the caller.
//
// A Distributor is driven by a single coordinator goroutine: items are
// queued with Submit and Cancel, then Run evaluates everything queued and
// invokes the Observer once per finished item, always on the coordinator
// goroutine. Results may arrive in any order.
package distributor

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrWorkerTimeout is reported when a worker does not answer within the
	// dispatch deadline.
	ErrWorkerTimeout = errors.New("worker timed out")

	// ErrWorkerFailed is reported when a worker connection breaks or returns
	// an error instead of a fitness.
	ErrWorkerFailed = errors.New("worker failed")
)

// WorkItem is one unit of evaluation work.
type WorkItem struct {
	// Key identifies the population member the item belongs to.
	Key int
	// Epoch tags the submission so late results for superseded items can
	// be recognised by the caller.
	Epoch uint64
	// Context records when the item was handed to a remote worker.
	Context time.Time
	Data    []float64
}

// Observer receives the fitness computed for a finished item.
type Observer func(item *WorkItem, fitness float64)

// Distributor is the interface implemented by Sequential and Pool.
type Distributor interface {
	// Submit appends an item to the back of the queue.
	Submit(item *WorkItem)
	// Cancel removes every queued item with the given key and returns how
	// many were removed. Items already handed to a worker are unaffected.
	Cancel(key int) int
	// Run evaluates all queued items and returns once the queue is empty
	// and no item is in flight, or when ctx is done.
	Run(ctx context.Context, obs Observer) error
	// Shutdown releases every worker. The Distributor must not be used
	// afterwards.
	Shutdown(ctx context.Context) error
	// Pending reports queued plus in-flight items.
	Pending() int
}

// Conn is a connection to one remote worker: it sends one vector and gets
// back one scalar.
type Conn interface {
	Evaluate(ctx context.Context, params []float64) (float64, error)
	Close() error
}

// queue is a FIFO of work items safe for concurrent use.
type queue struct {
	mu    sync.Mutex
	items []*WorkItem
}

func (q *queue) pushBack(item *WorkItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
}

func (q *queue) pushFront(item *WorkItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append([]*WorkItem{item}, q.items...)
}

func (q *queue) popFront() *WorkItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	item := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return item
}

func (q *queue) cancel(key int) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.items[:0]
	removed := 0
	for _, item := range q.items {
		if item.Key == key {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = kept
	return removed
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
