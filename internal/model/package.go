package model

import (
	"crypto/sha512"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
)

// Status is a Package's derived upload state.
type Status int

const (
	StatusStaging Status = iota
	StatusPending
	StatusUploading
	StatusErrored
	StatusCompleted
	StatusEndWithError
)

func (s Status) String() string {
	switch s {
	case StatusStaging:
		return "STAGING"
	case StatusPending:
		return "PENDING"
	case StatusUploading:
		return "UPLOADING"
	case StatusErrored:
		return "ERRORED"
	case StatusCompleted:
		return "COMPLETED"
	case StatusEndWithError:
		return "END_WITH_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether a status no longer changes on its own.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusEndWithError
}

// ErrEmptyPackage is returned when a package's files sum to zero bytes.
var ErrEmptyPackage = errors.New("package has zero total size")

// Package is a dispatch unit grouping files that share project/type/
// description/site, identified by a stable content hash.
type Package struct {
	Project     string
	Type        string
	Description string
	Site        string
	Hash        string
	TotalSize   int64
	Jobs        []*Job

	// BatchID groups packages dispatched together from one controller call
	// (dispatch_all / dispatch_selected) so a UI can show per-manifest-run
	// aggregate progress in addition to per-package detail. It is additive
	// sugar over the core data model: nothing in the status state machine
	// reads it.
	BatchID string

	dispatched atomic.Bool
}

// NewPackage normalises files (dedup + sort), computes the content hash and
// total size, and builds one Job per file. It returns ErrEmptyPackage if the
// resulting total size is zero.
func NewPackage(project, typ, description, site string, files []FilePair, idGen func() string) (*Package, error) {
	normalized := normalizeFiles(files)

	h := sha512.New()
	var total int64
	jobs := make([]*Job, 0, len(normalized))
	for _, f := range normalized {
		size, err := statSize(f.Src)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", f.Src, err)
		}
		total += size
		h.Write([]byte(f.Src))
		h.Write([]byte(f.Dst))
		jobs = append(jobs, NewJob(idGen(), site, f.Src, f.Dst, size))
	}

	if total == 0 {
		return nil, ErrEmptyPackage
	}

	hash := site + fmt.Sprintf("%x", h.Sum(nil))

	return &Package{
		Project:     project,
		Type:        typ,
		Description: description,
		Site:        site,
		Hash:        hash,
		TotalSize:   total,
		Jobs:        jobs,
	}, nil
}

// normalizeFiles deduplicates (src,dst) pairs and sorts them lexicographically
// by src then dst, so hashing is stable regardless of manifest file order.
func normalizeFiles(files []FilePair) []FilePair {
	seen := make(map[FilePair]struct{}, len(files))
	out := make([]FilePair, 0, len(files))
	for _, f := range files {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Src != out[j].Src {
			return out[i].Src < out[j].Src
		}
		return out[i].Dst < out[j].Dst
	})
	return out
}

// Dispatch flips the package from STAGING to PENDING. Must be called before
// its Jobs are pushed onto the queue.
func (p *Package) Dispatch() {
	p.dispatched.Store(true)
}

// Dispatched reports whether Dispatch has been called.
func (p *Package) Dispatched() bool {
	return p.dispatched.Load()
}

// Status derives the package's current status purely from its Jobs'
// transferred counts and results, per the state machine:
//
//	T == 0                          -> STAGING or PENDING
//	0 < T < byte, not errored        -> UPLOADING
//	0 < T < byte, errored            -> ERRORED
//	T == byte, not errored           -> COMPLETED
//	T == byte, errored               -> END_WITH_ERROR
func (p *Package) Status() Status {
	var transferred int64
	errored := false
	for _, j := range p.Jobs {
		transferred += j.Transferred()
		if result, _ := j.Result(); result != ResultPending && result != ResultSuccess {
			errored = true
		}
	}

	switch {
	case transferred == 0:
		if p.Dispatched() {
			return StatusPending
		}
		return StatusStaging
	case transferred < p.TotalSize:
		if errored {
			return StatusErrored
		}
		return StatusUploading
	default:
		if errored {
			return StatusEndWithError
		}
		return StatusCompleted
	}
}

// Percentage returns the package's upload progress rounded to two decimals.
func (p *Package) Percentage() float64 {
	if p.TotalSize == 0 {
		return 0
	}
	var transferred int64
	for _, j := range p.Jobs {
		transferred += j.Transferred()
	}
	pct := float64(transferred) / float64(p.TotalSize) * 100
	return float64(int(pct*100+0.5)) / 100
}

// Counts returns (total jobs, jobs with a terminal SUCCESS result).
func (p *Package) Counts() (total, uploaded int) {
	total = len(p.Jobs)
	for _, j := range p.Jobs {
		if result, _ := j.Result(); result == ResultSuccess {
			uploaded++
		}
	}
	return total, uploaded
}

// FailedJobs returns every Job currently in a non-PENDING, non-SUCCESS result.
func (p *Package) FailedJobs() []*Job {
	var out []*Job
	for _, j := range p.Jobs {
		if result, _ := j.Result(); result != ResultPending && result != ResultSuccess {
			out = append(out, j)
		}
	}
	return out
}

// Equal reports whether two packages represent the same content, per the
// content-hash equality rule in the data model.
func (p *Package) Equal(other *Package) bool {
	return p.Hash == other.Hash
}
