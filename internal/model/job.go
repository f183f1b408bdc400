// Package model holds the Job/Package/Manifest data types shared by the
// producer, worker pool, aggregator, and controller.
package model

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ResultCode is a Job's terminal or pending transfer outcome.
type ResultCode int

const (
	ResultPending ResultCode = iota
	ResultSuccess
	ResultError
)

func (r ResultCode) String() string {
	switch r {
	case ResultPending:
		return "PENDING"
	case ResultSuccess:
		return "SUCCESS"
	case ResultError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FilePair is a single (local, remote) path pair from a manifest entry.
type FilePair struct {
	Src string
	Dst string
}

// Job is a single file transfer: one local path to one remote path on one
// site. It is owned by exactly one Package and kept alive by it for as long
// as the queue or an in-flight worker references it.
type Job struct {
	ID       string
	SiteID   string
	Src      string
	Dst      string
	FileSize int64

	transferred atomic.Int64

	mu     sync.Mutex
	result ResultCode
	err    error
}

// NewJob constructs a Job in the PENDING state.
func NewJob(id, siteID, src, dst string, fileSize int64) *Job {
	return &Job{ID: id, SiteID: siteID, Src: src, Dst: dst, FileSize: fileSize}
}

// Transferred returns the current byte count, safe for concurrent reads
// while the aggregator is writing it.
func (j *Job) Transferred() int64 {
	return j.transferred.Load()
}

// SetTransferred records a new transferred-byte count. Callers (the
// aggregator) are expected to pass monotonically non-decreasing values,
// except immediately after Reset.
func (j *Job) SetTransferred(n int64) {
	j.transferred.Store(n)
}

// Result returns the Job's result code and, if ERROR, the underlying cause.
func (j *Job) Result() (ResultCode, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result, j.err
}

// SetResult transitions the Job to a new result. An ERROR result forces
// transferred to FileSize so the owning Package's percentage reads 100%
// with an error marker rather than stalling mid-bar.
func (j *Job) SetResult(result ResultCode, err error) {
	j.mu.Lock()
	j.result = result
	j.err = err
	j.mu.Unlock()
	if result == ResultError {
		j.transferred.Store(j.FileSize)
	}
}

// IsTerminal reports whether the Job has reached SUCCESS or ERROR.
func (j *Job) IsTerminal() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result != ResultPending
}

// Reset returns the Job to PENDING with zero transferred bytes, for
// requeue_failed / requeue_all.
func (j *Job) Reset() {
	j.mu.Lock()
	j.result = ResultPending
	j.err = nil
	j.mu.Unlock()
	j.transferred.Store(0)
}

// Clone returns a point-in-time snapshot safe to hand to a UI poller.
func (j *Job) Clone() JobSnapshot {
	result, err := j.Result()
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	return JobSnapshot{
		ID:          j.ID,
		SiteID:      j.SiteID,
		Src:         j.Src,
		Dst:         j.Dst,
		FileSize:    j.FileSize,
		Transferred: j.Transferred(),
		Result:      result,
		ErrMessage:  errMsg,
	}
}

// JobSnapshot is an immutable, race-free view of a Job for display purposes.
type JobSnapshot struct {
	ID          string
	SiteID      string
	Src         string
	Dst         string
	FileSize    int64
	Transferred int64
	Result      ResultCode
	ErrMessage  string
}

func (s JobSnapshot) String() string {
	if s.Result == ResultError {
		return fmt.Sprintf("%s -> %s: %s (%s)", s.Src, s.Dst, s.Result, s.ErrMessage)
	}
	return fmt.Sprintf("%s -> %s: %s", s.Src, s.Dst, s.Result)
}
