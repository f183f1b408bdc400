// Package queue implements the bounded, thread-safe job queue shared by the
// producer/controller (as the single writer) and the upload worker pool (as
// the many readers).
package queue

import "github.com/avalon/sftpc/internal/model"

type item struct {
	job  *model.Job
	stop bool
}

// Queue is a bounded multi-producer/multi-consumer FIFO of Jobs, plus a STOP
// sentinel that can be enqueued once per worker that must exit. It is
// thread-safe by construction: a Go channel.
type Queue struct {
	ch chan item
}

// New creates a Queue with the given capacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan item, capacity)}
}

// Put enqueues a Job. Blocks if the queue is full.
func (q *Queue) Put(job *model.Job) {
	q.ch <- item{job: job}
}

// PutStop enqueues one STOP sentinel. Call it once per worker that should
// exit its loop.
func (q *Queue) PutStop() {
	q.ch <- item{stop: true}
}

// Get blocks until a Job or a STOP sentinel is available. ok is false (with
// job nil) when a STOP sentinel was received.
func (q *Queue) Get() (job *model.Job, ok bool) {
	it := <-q.ch
	if it.stop {
		return nil, false
	}
	return it.job, true
}

// Len reports the number of items currently buffered (jobs and pending STOPs).
func (q *Queue) Len() int {
	return len(q.ch)
}
