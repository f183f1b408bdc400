// Package aggregator implements the single consumer of the upload worker
// pool's progress channel: it locates the live Job by id, updates its
// transferred count and result, and tracks which workers are still
// transferring.
package aggregator

import (
	"sync"
	"time"

	"github.com/avalon/sftpc/internal/events"
	"github.com/avalon/sftpc/internal/model"
	"github.com/avalon/sftpc/internal/worker"
)

// Aggregator resolves progress messages against a registry of live Jobs. A
// message for a Job that has since been unregistered (its Package cleared
// from the staged set) is dropped silently, mirroring a weak-reference map.
type Aggregator struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job

	cmu       sync.Mutex
	consuming map[int]bool

	bus *events.EventBus
}

// New creates an Aggregator publishing job/package events to bus. bus may be
// nil if no subscriber cares.
func New(bus *events.EventBus) *Aggregator {
	return &Aggregator{
		jobs:      make(map[string]*model.Job),
		consuming: make(map[int]bool),
		bus:       bus,
	}
}

// Register makes a Job visible to future progress messages. Called when a
// Job is pushed onto the queue.
func (a *Aggregator) Register(job *model.Job) {
	a.mu.Lock()
	a.jobs[job.ID] = job
	a.mu.Unlock()
}

// Unregister drops a Job from the registry, e.g. when its Package is cleared
// from the staged set. Any progress message arriving afterward for this id
// is dropped.
func (a *Aggregator) Unregister(jobID string) {
	a.mu.Lock()
	delete(a.jobs, jobID)
	a.mu.Unlock()
}

func (a *Aggregator) lookup(jobID string) (*model.Job, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	job, ok := a.jobs[jobID]
	return job, ok
}

// AnyConsuming reports whether any worker is still actively transferring,
// driving the controller's is_uploading() query.
func (a *Aggregator) AnyConsuming() bool {
	a.cmu.Lock()
	defer a.cmu.Unlock()
	for _, consuming := range a.consuming {
		if consuming {
			return true
		}
	}
	return false
}

func (a *Aggregator) setConsuming(workerID int, consuming bool) {
	a.cmu.Lock()
	a.consuming[workerID] = consuming
	a.cmu.Unlock()
}

// Run consumes progressCh until it is closed (the worker pool has drained),
// applying each message to its Job and republishing a JobEvent. It does not
// block on the event bus: publishing is itself non-blocking.
func (a *Aggregator) Run(progressCh <-chan worker.ProgressMsg) {
	for msg := range progressCh {
		job, ok := a.lookup(msg.JobID)
		if !ok {
			continue
		}

		job.SetTransferred(msg.Transferred)
		job.SetResult(msg.Result, msg.Err)

		a.setConsuming(msg.WorkerID, msg.Result == model.ResultPending)

		if a.bus != nil {
			a.bus.Publish(&events.JobEvent{
				BaseEvent:   events.BaseEvent{EventType: jobEventType(msg.Result), Time: time.Now()},
				JobID:       msg.JobID,
				Transferred: job.Transferred(),
				Total:       job.FileSize,
				Err:         msg.Err,
			})
		}
	}
}

func jobEventType(result model.ResultCode) events.EventType {
	switch result {
	case model.ResultSuccess:
		return events.EventJobCompleted
	case model.ResultError:
		return events.EventJobFailed
	default:
		return events.EventJobProgress
	}
}
