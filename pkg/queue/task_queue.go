package queue

import (
	"context"
	"errors"
	"sync"

	"depohub/pkg/domain"
)

// ErrNilItem is returned when a nil request is enqueued.
var ErrNilItem = errors.New("queue: nil item")

// TaskQueue is an unbounded FIFO of draft transcript requests. Any number of
// goroutines may enqueue; a single worker dequeues. Enqueue never blocks.
// Items live only in memory: a process restart drops whatever is queued.
type TaskQueue struct {
	mu     sync.Mutex
	items  []*domain.DraftTranscriptRequest
	signal chan struct{}
}

func NewTaskQueue() *TaskQueue {
	return &TaskQueue{signal: make(chan struct{}, 1)}
}

// Enqueue appends req to the queue and wakes the worker.
func (q *TaskQueue) Enqueue(req *domain.DraftTranscriptRequest) error {
	if req == nil {
		return ErrNilItem
	}
	q.mu.Lock()
	q.items = append(q.items, req)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

// Dequeue removes and returns the oldest request, blocking until one is
// available or ctx is canceled.
func (q *TaskQueue) Dequeue(ctx context.Context) (*domain.DraftTranscriptRequest, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			req := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return req, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.signal:
		}
	}
}

// Len reports how many requests are waiting.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
