package cache

import (
	"context"
	"log/slog"
	"sync"
)

// job is one unit of queue work: either a write, or a barrier used by flush
// to observe that everything before it has run. Barriers never touch the
// error diagnostics.
type job struct {
	fn      func(context.Context) error
	barrier chan struct{}
}

// queue serializes writes to one backing store. Jobs run in FIFO order on a
// single goroutine; a failed job is logged and recorded but never stops the
// queue, so a bad write degrades durability without breaking later writes.
type queue struct {
	name   string
	jobs   chan job
	wg     sync.WaitGroup
	logger *slog.Logger

	mu      sync.Mutex
	lastErr error
}

func newQueue(name string, logger *slog.Logger) *queue {
	q := &queue{
		name:   name,
		jobs:   make(chan job, 64),
		logger: logger,
	}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *queue) run() {
	defer q.wg.Done()
	for j := range q.jobs {
		if j.barrier != nil {
			close(j.barrier)
			continue
		}
		if err := j.fn(context.Background()); err != nil {
			q.logger.Error("background write failed", "queue", q.name, "error", err)
			q.setErr(err)
		} else {
			q.setErr(nil)
		}
	}
}

// enqueue appends a write. It blocks when the buffer is full rather than
// drop: every accepted write must eventually run or log its own failure.
func (q *queue) enqueue(fn func(context.Context) error) {
	q.jobs <- job{fn: fn}
}

// flush blocks until every previously enqueued write has run.
func (q *queue) flush() {
	done := make(chan struct{})
	q.jobs <- job{barrier: done}
	<-done
}

// close drains remaining jobs and stops the worker.
func (q *queue) close() {
	close(q.jobs)
	q.wg.Wait()
}

func (q *queue) setErr(err error) {
	q.mu.Lock()
	q.lastErr = err
	q.mu.Unlock()
}

func (q *queue) err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastErr
}
