// Package progressui renders live per-package upload progress to a
// terminal, polling the controller's staged set on a fixed UI tick rather
// than reacting to per-byte events directly.
package progressui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/avalon/sftpc/internal/constants"
	"github.com/avalon/sftpc/internal/model"
)

// PackageSource supplies the set of packages to render on each tick. The
// controller's UploadView satisfies this.
type PackageSource func() []*model.Package

// UploadUI renders one bar per package that has left STAGING, refreshing
// every constants.UITickInterval until every package reaches a terminal
// status or the stop channel passed to Run is closed.
type UploadUI struct {
	progress   *mpb.Progress
	bars       map[string]*mpb.Bar
	reported   map[string]bool
	mu         sync.Mutex
	isTerminal bool
}

// New creates an UploadUI writing to stderr. When stderr is not a terminal,
// bars are suppressed and Run falls back to plain-text lines: one when a
// package first appears and one when it reaches a terminal status.
func New(isTerminal bool) *UploadUI {
	var p *mpb.Progress
	if isTerminal {
		p = mpb.New(
			mpb.WithOutput(os.Stderr),
			mpb.WithRefreshRate(180*time.Millisecond),
			mpb.WithWidth(80),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}
	return &UploadUI{progress: p, bars: make(map[string]*mpb.Bar), reported: make(map[string]bool), isTerminal: isTerminal}
}

// Run polls source every UITickInterval, creating a bar for each package as
// it first appears and updating existing bars to the package's current
// transferred byte count, until every known package is terminal. It returns
// once that happens or stop is closed.
func (u *UploadUI) Run(source PackageSource, stop <-chan struct{}) {
	ticker := time.NewTicker(constants.UITickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			u.mu.Lock()
			for _, bar := range u.bars {
				if bar != nil {
					bar.Abort(false)
				}
			}
			u.mu.Unlock()
			u.progress.Wait()
			return
		case <-ticker.C:
			pkgs := source()
			u.tick(pkgs)
			if allTerminal(pkgs) {
				u.progress.Wait()
				return
			}
		}
	}
}

// allTerminal reports whether every package has reached a terminal status.
// An empty set is vacuously terminal: there is nothing left to watch, which
// matters for an empty manifest (zero packages dispatched).
func allTerminal(pkgs []*model.Package) bool {
	for _, pkg := range pkgs {
		if !pkg.Status().Terminal() {
			return false
		}
	}
	return true
}

func (u *UploadUI) tick(pkgs []*model.Package) {
	u.mu.Lock()
	defer u.mu.Unlock()

	for _, pkg := range pkgs {
		bar, ok := u.bars[pkg.Hash]
		if !ok {
			bar = u.newBar(pkg)
			u.bars[pkg.Hash] = bar
		}
		u.updateBar(bar, pkg)
	}
}

func (u *UploadUI) newBar(pkg *model.Package) *mpb.Bar {
	if !u.isTerminal {
		fmt.Fprintf(os.Stderr, "staging %s/%s -> %s (%d bytes)\n", pkg.Project, pkg.Type, pkg.Site, pkg.TotalSize)
		return nil
	}

	label := fmt.Sprintf("%s/%s -> %s", pkg.Project, pkg.Type, pkg.Site)
	return u.progress.New(pkg.TotalSize,
		mpb.BarStyle().Lbound("[").Filler("=").Tip(">").Padding("-").Rbound("]"),
		mpb.PrependDecorators(decor.Name(label, decor.WCSyncSpaceR)),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
			decor.Percentage(decor.WCSyncSpace),
		),
	)
}

func (u *UploadUI) updateBar(bar *mpb.Bar, pkg *model.Package) {
	if bar == nil {
		if pkg.Status().Terminal() && !u.reported[pkg.Hash] {
			u.reported[pkg.Hash] = true
			fmt.Fprintf(os.Stderr, "%s/%s -> %s: %s\n", pkg.Project, pkg.Type, pkg.Site, pkg.Status())
		}
		return
	}
	var transferred int64
	for _, job := range pkg.Jobs {
		transferred += job.Transferred()
	}
	bar.SetCurrent(transferred)
	if pkg.Status().Terminal() {
		bar.SetCurrent(pkg.TotalSize)
	}
}
