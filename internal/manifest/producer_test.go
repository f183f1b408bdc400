package manifest

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/avalon/sftpc/internal/model"
)

func writeManifest(t *testing.T, dir string, descriptors []map[string]interface{}) string {
	t.Helper()
	path := filepath.Join(dir, "manifest.json")
	raw, err := json.Marshal(descriptors)
	if err != nil {
		t.Fatalf("marshal manifest: %v", err)
	}
	if err := os.WriteFile(path, raw, 0600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func writeFixtureFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func seqIDGen() func() string {
	var n int
	var mu sync.Mutex
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return "job-" + string(rune('0'+n))
	}
}

func TestProducerEmitsPackagesInOrder(t *testing.T) {
	dir := t.TempDir()
	a := writeFixtureFile(t, dir, "a.bin", 100)
	b := writeFixtureFile(t, dir, "b.bin", 200)

	manifestPath := writeManifest(t, dir, []map[string]interface{}{
		{"project": "P1", "type": "T", "description": "d", "site": "s1", "files": [][]string{{a, "/r/a.bin"}}},
		{"project": "P2", "type": "T", "description": "d", "site": "s1", "files": [][]string{{b, "/r/b.bin"}}},
	})

	var mu sync.Mutex
	var seen []string
	done := make(chan error, 1)

	p := NewProducer()
	p.Start(manifestPath, seqIDGen(), func(pkg *model.Package) {
		mu.Lock()
		seen = append(seen, pkg.Project)
		mu.Unlock()
	}, func(err error) {
		done <- err
	})

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("producer did not complete")
	}

	if len(seen) != 2 || seen[0] != "P1" || seen[1] != "P2" {
		t.Errorf("expected [P1 P2] in order, got %v", seen)
	}
	if p.Producing() {
		t.Error("expected producing to be false after completion")
	}
}

func TestProducerEmptyManifest(t *testing.T) {
	dir := t.TempDir()
	manifestPath := writeManifest(t, dir, []map[string]interface{}{})

	count := 0
	done := make(chan error, 1)
	p := NewProducer()
	p.Start(manifestPath, seqIDGen(), func(pkg *model.Package) {
		count++
	}, func(err error) { done <- err })

	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected zero packages, got %d", count)
	}
}

func TestProducerZeroByteFileIsEmptyPackage(t *testing.T) {
	dir := t.TempDir()
	empty := writeFixtureFile(t, dir, "empty.bin", 0)
	manifestPath := writeManifest(t, dir, []map[string]interface{}{
		{"project": "P1", "type": "T", "description": "d", "site": "s1", "files": [][]string{{empty, "/r/empty.bin"}}},
	})

	done := make(chan error, 1)
	p := NewProducer()
	p.Start(manifestPath, seqIDGen(), func(pkg *model.Package) {}, func(err error) { done <- err })

	err := <-done
	if !errors.Is(err, model.ErrEmptyPackage) {
		t.Errorf("expected ErrEmptyPackage, got %v", err)
	}
}

func TestProducerMissingFieldIsSchemaError(t *testing.T) {
	dir := t.TempDir()
	manifestPath := writeManifest(t, dir, []map[string]interface{}{
		{"type": "T", "description": "d", "site": "s1", "files": [][]string{{"a", "b"}}},
	})

	done := make(chan error, 1)
	p := NewProducer()
	p.Start(manifestPath, seqIDGen(), func(pkg *model.Package) {}, func(err error) { done <- err })

	err := <-done
	if !errors.Is(err, ErrManifestSchema) {
		t.Errorf("expected ErrManifestSchema, got %v", err)
	}
}
