package gateway

import (
	"sync"

	"github.com/disgoorg/snowflake/v2"
)

// serialQueue runs submitted work one at a time per key, in submission order.
// Different keys run concurrently. A key's goroutine exits once its queue drains.
type serialQueue struct {
	mu     sync.Mutex
	queues map[snowflake.ID][]func()
	wg     sync.WaitGroup
}

func newSerialQueue() *serialQueue {
	return &serialQueue{queues: make(map[snowflake.ID][]func())}
}

// Submit queues fn behind every earlier submission for key.
func (q *serialQueue) Submit(key snowflake.ID, fn func()) {
	q.mu.Lock()
	pending, running := q.queues[key]
	q.queues[key] = append(pending, fn)
	if !running {
		q.wg.Add(1)
	}
	q.mu.Unlock()

	if !running {
		go q.drain(key)
	}
}

func (q *serialQueue) drain(key snowflake.ID) {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		pending := q.queues[key]
		if len(pending) == 0 {
			delete(q.queues, key)
			q.mu.Unlock()
			return
		}
		fn := pending[0]
		pending[0] = nil
		q.queues[key] = pending[1:]
		q.mu.Unlock()

		fn()
	}
}

// Wait blocks until every queued function has run.
func (q *serialQueue) Wait() {
	q.wg.Wait()
}

// Len returns the number of keys with queued or running work.
func (q *serialQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues)
}
