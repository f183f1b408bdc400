// Package worker implements the fixed-size upload worker pool: each worker
// pulls one Job at a time from the shared queue, opens a fresh SFTP
// connection for it, uploads the file, and publishes progress.
package worker

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/avalon/sftpc/internal/logging"
	"github.com/avalon/sftpc/internal/model"
	"github.com/avalon/sftpc/internal/queue"
	"github.com/avalon/sftpc/internal/site"
	"github.com/avalon/sftpc/internal/transport"
)

// ProgressMsg is one tuple off the progress channel: (job_id, transferred,
// result, worker_id).
type ProgressMsg struct {
	JobID       string
	Transferred int64
	Result      model.ResultCode
	Err         error
	WorkerID    int
}

// Conn is the subset of *transport.Conn a worker needs; an interface so
// tests can substitute a fake without a real network dependency.
type Conn interface {
	Put(src, dst string, preserveMtime bool, onProgress transport.ProgressFunc) error
	Close() error
}

// Dialer opens an SFTP connection for a site.
type Dialer func(params site.Params, onInsecure func()) (Conn, error)

func dialReal(params site.Params, onInsecure func()) (Conn, error) {
	return transport.Open(params, onInsecure)
}

// Pool is a fixed number of independent upload workers sharing one Queue and
// publishing to one progress channel.
type Pool struct {
	size       int
	queue      *queue.Queue
	sites      *site.Directory
	logger     *logging.Logger
	dial       Dialer
	progressCh chan ProgressMsg
}

// New builds a Pool of size workers reading from q and resolving sites via
// sites. logger may be nil.
func New(size int, q *queue.Queue, sites *site.Directory, logger *logging.Logger) *Pool {
	return &Pool{
		size:       size,
		queue:      q,
		sites:      sites,
		logger:     logger,
		dial:       dialReal,
		progressCh: make(chan ProgressMsg, size*2),
	}
}

// SetDialer overrides how SFTP connections are opened, for tests.
func (p *Pool) SetDialer(d Dialer) {
	p.dial = d
}

// Progress returns the channel the aggregator should consume.
func (p *Pool) Progress() <-chan ProgressMsg {
	return p.progressCh
}

// Run blocks until every worker has observed a STOP sentinel and exited,
// then closes the progress channel. Launch it in its own goroutine.
func (p *Pool) Run() error {
	var g errgroup.Group
	for i := 0; i < p.size; i++ {
		workerID := i
		g.Go(func() error {
			p.workerLoop(workerID)
			return nil
		})
	}
	err := g.Wait()
	close(p.progressCh)
	return err
}

func (p *Pool) workerLoop(workerID int) {
	for {
		job, ok := p.queue.Get()
		if !ok {
			return // STOP sentinel
		}
		p.handleJob(workerID, job)
	}
}

func (p *Pool) handleJob(workerID int, job *model.Job) {
	params, err := p.sites.Lookup(job.SiteID)
	if err != nil {
		p.publish(job.ID, job.FileSize, model.ResultError, err, workerID)
		return
	}

	onInsecure := func() {
		if p.logger != nil {
			p.logger.Warn().Str("site", job.SiteID).Msg("connecting without host-key pinning")
		}
	}

	conn, err := p.dial(params, onInsecure)
	if err != nil {
		p.publish(job.ID, job.FileSize, model.ResultError, fmt.Errorf("open_sftp: %w", err), workerID)
		return
	}
	defer conn.Close()

	err = conn.Put(job.Src, job.Dst, true, func(sent, total int64) {
		result := model.ResultPending
		if sent >= total {
			result = model.ResultSuccess
		}
		p.publish(job.ID, sent, result, nil, workerID)
	})
	if err != nil {
		p.publish(job.ID, job.FileSize, model.ResultError, err, workerID)
	}
}

func (p *Pool) publish(jobID string, transferred int64, result model.ResultCode, err error, workerID int) {
	p.progressCh <- ProgressMsg{
		JobID:       jobID,
		Transferred: transferred,
		Result:      result,
		Err:         err,
		WorkerID:    workerID,
	}
}
