// Package manifest parses manifest documents into model.Package values and
// streams them to a callback in manifest order, cooperatively stoppable
// between packages.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/avalon/sftpc/internal/model"
	"github.com/avalon/sftpc/internal/validation"
)

// ErrManifestSchema is returned when a manifest document fails to parse or a
// descriptor is missing required fields.
var ErrManifestSchema = errors.New("manifest schema error")

// Producer streams Packages from a manifest file to a callback, one
// background run at a time.
type Producer struct {
	mu        sync.Mutex
	stopCh    chan struct{}
	producing atomic.Bool
}

// NewProducer returns an idle Producer.
func NewProducer() *Producer {
	return &Producer{}
}

// Producing reports whether a run is currently in flight.
func (p *Producer) Producing() bool {
	return p.producing.Load()
}

// Stop cooperatively requests early termination of the current run. The
// producer checks this flag between packages and exits without emitting
// further ones; it does not interrupt in-progress work on a single package.
func (p *Producer) Stop() {
	p.mu.Lock()
	ch := p.stopCh
	p.mu.Unlock()
	if ch != nil {
		select {
		case <-ch:
		default:
			close(ch)
		}
	}
}

// Start spawns a background goroutine that parses manifestPath, streaming one
// model.Package per descriptor to onPackage in manifest order, then invokes
// onComplete exactly once with nil (normal/stopped completion) or the fatal
// error that ended the run early.
func (p *Producer) Start(manifestPath string, idGen func() string, onPackage func(*model.Package), onComplete func(error)) {
	p.mu.Lock()
	stopCh := make(chan struct{})
	p.stopCh = stopCh
	p.mu.Unlock()

	p.producing.Store(true)

	go func() {
		err := p.run(manifestPath, idGen, stopCh, onPackage)
		p.producing.Store(false)
		onComplete(err)
	}()
}

func (p *Producer) run(manifestPath string, idGen func() string, stopCh chan struct{}, onPackage func(*model.Package)) error {
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("%w: read manifest: %v", ErrManifestSchema, err)
	}

	var descriptors []model.PackageDescriptor
	if err := json.Unmarshal(raw, &descriptors); err != nil {
		return fmt.Errorf("%w: parse manifest: %v", ErrManifestSchema, err)
	}

	for _, d := range descriptors {
		if err := validateDescriptor(d); err != nil {
			return err
		}

		pkg, err := model.NewPackage(d.Project, d.Type, d.Description, d.Site, d.FilePairs(), idGen)
		if err != nil {
			return fmt.Errorf("package %q/%q: %w", d.Project, d.Type, err)
		}

		onPackage(pkg)

		select {
		case <-stopCh:
			return nil
		default:
		}
	}

	return nil
}

func validateDescriptor(d model.PackageDescriptor) error {
	var missing []string
	if strings.TrimSpace(d.Project) == "" {
		missing = append(missing, "project")
	}
	if strings.TrimSpace(d.Type) == "" {
		missing = append(missing, "type")
	}
	if strings.TrimSpace(d.Site) == "" {
		missing = append(missing, "site")
	}
	if len(d.Files) == 0 {
		missing = append(missing, "files")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing field(s) %s", ErrManifestSchema, strings.Join(missing, ","))
	}

	for _, pair := range d.Files {
		if err := validation.ValidateFilePath(pair[0]); err != nil {
			return fmt.Errorf("%w: source path: %v", ErrManifestSchema, err)
		}
		if err := validation.ValidateFilePath(pair[1]); err != nil {
			return fmt.Errorf("%w: destination path: %v", ErrManifestSchema, err)
		}
	}

	return nil
}
