// Package controller implements the Model/Controller component: it holds
// the staged set of packages, routes user intent (stage, dispatch, stop,
// clear, requeue) to the producer/queue/worker-pool/aggregator, and exposes
// the filtered staging/upload views external UIs poll.
package controller

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avalon/sftpc/internal/aggregator"
	"github.com/avalon/sftpc/internal/events"
	"github.com/avalon/sftpc/internal/manifest"
	"github.com/avalon/sftpc/internal/model"
	"github.com/avalon/sftpc/internal/queue"
)

// Controller is the Model of the staging-and-upload pipeline. One Controller
// owns one staged set and drives exactly one Producer, Queue, and
// Aggregator pairing.
type Controller struct {
	mu       sync.Mutex
	packages []*model.Package

	producer *manifest.Producer
	queue    *queue.Queue
	agg      *aggregator.Aggregator
	bus      *events.EventBus
	poolSize int
	idGen    func() string

	batchSeq int
}

// New builds a Controller. poolSize is the number of STOP sentinels Stop
// must enqueue to retire every worker. idGen defaults to uuid.NewString
// when nil.
func New(q *queue.Queue, agg *aggregator.Aggregator, bus *events.EventBus, poolSize int, idGen func() string) *Controller {
	if idGen == nil {
		idGen = uuid.NewString
	}
	return &Controller{
		producer: manifest.NewProducer(),
		queue:    q,
		agg:      agg,
		bus:      bus,
		poolSize: poolSize,
		idGen:    idGen,
	}
}

func (c *Controller) publish(t events.EventType) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(&events.BaseEvent{EventType: t, Time: time.Now()})
}

func (c *Controller) publishPackage(t events.EventType, pkg *model.Package) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(&events.PackageEvent{
		BaseEvent:   events.BaseEvent{EventType: t, Time: time.Now()},
		PackageHash: pkg.Hash,
		Status:      pkg.Status().String(),
	})
}

// Stage runs the Producer against manifestPath and blocks until it has
// finished streaming Packages (or hit a fatal per-manifest error). Accepted
// packages are inserted into the staged set under the dedup rule in §3;
// rejected duplicates are silently dropped, matching the Model's ownership
// of the staged set (the Producer never touches it directly).
func (c *Controller) Stage(manifestPath string) error {
	c.publish(events.EventPackageStaging)

	done := make(chan error, 1)
	c.producer.Start(manifestPath, c.idGen, func(pkg *model.Package) {
		c.mu.Lock()
		c.insertLocked(pkg)
		c.mu.Unlock()
	}, func(err error) {
		done <- err
	})

	err := <-done
	c.publish(events.EventPackageStaged)
	return err
}

// insertLocked applies the dedup rule: a new Package is rejected if its hash
// matches an existing one whose status is still < ERRORED. Caller holds mu.
func (c *Controller) insertLocked(pkg *model.Package) bool {
	for _, existing := range c.packages {
		if existing.Hash == pkg.Hash && existing.Status() < model.StatusErrored {
			return false
		}
	}
	c.packages = append(c.packages, pkg)
	return true
}

// StagingView returns every Package still in STAGING, in staged order.
func (c *Controller) StagingView() []*model.Package {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*model.Package
	for _, pkg := range c.packages {
		if pkg.Status() == model.StatusStaging {
			out = append(out, pkg)
		}
	}
	return out
}

// UploadView returns every Package no longer in STAGING, in staged order.
func (c *Controller) UploadView() []*model.Package {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*model.Package
	for _, pkg := range c.packages {
		if pkg.Status() != model.StatusStaging {
			out = append(out, pkg)
		}
	}
	return out
}

// All returns every staged package regardless of status.
func (c *Controller) All() []*model.Package {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*model.Package, len(c.packages))
	copy(out, c.packages)
	return out
}

// Find returns the staged package with the given content hash.
func (c *Controller) Find(hash string) (*model.Package, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, pkg := range c.packages {
		if pkg.Hash == hash {
			return pkg, true
		}
	}
	return nil, false
}

// Dispatch moves pkg from STAGING to PENDING and enqueues every one of its
// Jobs, registering each with the Aggregator first so no progress message
// can race ahead of the registration.
func (c *Controller) Dispatch(pkg *model.Package) {
	c.dispatchWithBatch(pkg, c.nextBatchID())
}

func (c *Controller) dispatchWithBatch(pkg *model.Package, batchID string) {
	pkg.BatchID = batchID
	pkg.Dispatch()
	c.publishPackage(events.EventPackageStaged, pkg)
	for _, job := range pkg.Jobs {
		c.agg.Register(job)
		c.queue.Put(job)
	}
}

func (c *Controller) nextBatchID() string {
	c.mu.Lock()
	c.batchSeq++
	n := c.batchSeq
	c.mu.Unlock()
	return fmt.Sprintf("batch-%d", n)
}

// DispatchAll dispatches every currently STAGING package as one batch.
func (c *Controller) DispatchAll() {
	batchID := c.nextBatchID()
	for _, pkg := range c.StagingView() {
		c.dispatchWithBatch(pkg, batchID)
	}
}

// DispatchSelected dispatches exactly the given subset as one batch.
func (c *Controller) DispatchSelected(subset []*model.Package) {
	batchID := c.nextBatchID()
	for _, pkg := range subset {
		c.dispatchWithBatch(pkg, batchID)
	}
}

// IsStaging reports whether the Producer currently has a run in flight.
func (c *Controller) IsStaging() bool {
	return c.producer.Producing()
}

// IsUploading reports whether any worker is still actively transferring.
func (c *Controller) IsUploading() bool {
	return c.agg.AnyConsuming()
}

// Stop cooperatively halts the pipeline: the Producer is asked to stop
// emitting further packages, then one STOP sentinel is pushed per worker so
// the pool drains. It busy-waits on IsStaging()/IsUploading() quiescence,
// polling every 10ms, emitting `canceling` immediately and `canceled` once
// both are false.
func (c *Controller) Stop() {
	c.publish(events.EventPackageCanceling)
	c.producer.Stop()
	for i := 0; i < c.poolSize; i++ {
		c.queue.PutStop()
	}

	for c.IsStaging() || c.IsUploading() {
		time.Sleep(10 * time.Millisecond)
	}
	c.publish(events.EventPackageCanceled)
}

// ClearStage drops STAGING packages from the staged set. If every package is
// STAGING, the whole set is cleared; otherwise only the STAGING ones are
// dropped, per the precedence decision in DESIGN.md. Idempotent: a second
// call with nothing left in STAGING is a no-op.
func (c *Controller) ClearStage() {
	c.mu.Lock()
	defer c.mu.Unlock()

	allStaging := true
	for _, pkg := range c.packages {
		if pkg.Status() != model.StatusStaging {
			allStaging = false
			break
		}
	}

	if allStaging {
		c.packages = nil
		return
	}

	kept := c.packages[:0]
	for _, pkg := range c.packages {
		if pkg.Status() != model.StatusStaging {
			kept = append(kept, pkg)
		}
	}
	c.packages = kept
}

// RequeueFailed resets every Job in pkg whose result is neither PENDING nor
// SUCCESS and re-enqueues it. A Package with no failed Jobs is a no-op.
func (c *Controller) RequeueFailed(pkg *model.Package) {
	for _, job := range pkg.FailedJobs() {
		job.Reset()
		c.agg.Register(job)
		c.queue.Put(job)
	}
}

// RequeueAll resets and re-enqueues every Job in pkg regardless of its prior
// result.
func (c *Controller) RequeueAll(pkg *model.Package) {
	for _, job := range pkg.Jobs {
		job.Reset()
		c.agg.Register(job)
		c.queue.Put(job)
	}
}
