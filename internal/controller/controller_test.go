package controller

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/avalon/sftpc/internal/aggregator"
	"github.com/avalon/sftpc/internal/events"
	"github.com/avalon/sftpc/internal/model"
	"github.com/avalon/sftpc/internal/queue"
)

func writeManifest(t *testing.T, descriptors []map[string]any) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	raw, err := json.Marshal(descriptors)
	if err != nil {
		t.Fatalf("marshal manifest: %v", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func writeFixture(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func newTestController(poolSize int) (*Controller, *queue.Queue) {
	q := queue.New(poolSize * 4)
	agg := aggregator.New(events.NewEventBus(16))
	ctl := New(q, agg, events.NewEventBus(16), poolSize, nil)
	return ctl, q
}

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return string(rune('a' + n))
	}
}

func manifestDescriptor(site string, files ...[2]string) map[string]any {
	raw := make([][2]string, len(files))
	copy(raw, files)
	return map[string]any{
		"project":     "P",
		"type":        "T",
		"description": "d",
		"site":        site,
		"files":       raw,
	}
}

func TestStageInsertsAndDedups(t *testing.T) {
	ctl, _ := newTestController(10)
	f := writeFixture(t, "a.bin", 1024)
	path := writeManifest(t, []map[string]any{manifestDescriptor("s1", [2]string{f, "/r/a.bin"})})

	if err := ctl.Stage(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(ctl.All()); got != 1 {
		t.Fatalf("expected 1 staged package, got %d", got)
	}

	// Staging the identical manifest again must be rejected by dedup.
	if err := ctl.Stage(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(ctl.All()); got != 1 {
		t.Fatalf("expected dedup to keep staged set at 1, got %d", got)
	}
}

func TestDedupAllowsRestageAfterTerminalError(t *testing.T) {
	ctl, _ := newTestController(10)
	f := writeFixture(t, "a.bin", 10)
	path := writeManifest(t, []map[string]any{manifestDescriptor("s1", [2]string{f, "/r/a.bin"})})

	if err := ctl.Stage(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pkg := ctl.All()[0]
	ctl.Dispatch(pkg)
	job := pkg.Jobs[0]
	job.SetTransferred(10)
	job.SetResult(model.ResultError, os.ErrClosed)

	if got := pkg.Status(); got != model.StatusEndWithError {
		t.Fatalf("expected END_WITH_ERROR, got %v", got)
	}

	if err := ctl.Stage(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(ctl.All()); got != 2 {
		t.Fatalf("expected restage after terminal error to add a second package, got %d", got)
	}
}

func TestClearStageDropsOnlyStagingWhenMixed(t *testing.T) {
	ctl, _ := newTestController(10)
	f1 := writeFixture(t, "a.bin", 10)
	f2 := writeFixture(t, "b.bin", 10)
	path1 := writeManifest(t, []map[string]any{manifestDescriptor("s1", [2]string{f1, "/r/a.bin"})})
	path2 := writeManifest(t, []map[string]any{manifestDescriptor("s1", [2]string{f2, "/r/b.bin"})})

	if err := ctl.Stage(path1); err != nil {
		t.Fatal(err)
	}
	if err := ctl.Stage(path2); err != nil {
		t.Fatal(err)
	}

	dispatched := ctl.All()[0]
	ctl.Dispatch(dispatched)

	ctl.ClearStage()
	remaining := ctl.All()
	if len(remaining) != 1 {
		t.Fatalf("expected only the dispatched package to remain, got %d", len(remaining))
	}
	if remaining[0].Status() == model.StatusStaging {
		t.Fatal("the surviving package must not be STAGING")
	}

	// Idempotent: clearing again with nothing left in STAGING is a no-op.
	ctl.ClearStage()
	if len(ctl.All()) != 1 {
		t.Fatalf("expected ClearStage to be idempotent, got %d packages", len(ctl.All()))
	}
}

func TestClearStageDropsAllWhenAllStaging(t *testing.T) {
	ctl, _ := newTestController(10)
	f := writeFixture(t, "a.bin", 10)
	path := writeManifest(t, []map[string]any{manifestDescriptor("s1", [2]string{f, "/r/a.bin"})})
	if err := ctl.Stage(path); err != nil {
		t.Fatal(err)
	}
	ctl.ClearStage()
	if got := len(ctl.All()); got != 0 {
		t.Fatalf("expected staged set fully cleared, got %d", got)
	}
}

func TestRequeueFailedOnlyResetsFailedJobs(t *testing.T) {
	ctl, _ := newTestController(10)
	f1 := writeFixture(t, "a.bin", 10)
	f2 := writeFixture(t, "b.bin", 10)
	path := writeManifest(t, []map[string]any{manifestDescriptor("s1", [2]string{f1, "/r/a.bin"}, [2]string{f2, "/r/b.bin"})})
	if err := ctl.Stage(path); err != nil {
		t.Fatal(err)
	}
	pkg := ctl.All()[0]
	ctl.Dispatch(pkg)

	pkg.Jobs[0].SetTransferred(10)
	pkg.Jobs[0].SetResult(model.ResultSuccess, nil)
	pkg.Jobs[1].SetTransferred(10)
	pkg.Jobs[1].SetResult(model.ResultError, os.ErrClosed)

	ctl.RequeueFailed(pkg)

	if pkg.Jobs[1].Transferred() != 0 {
		t.Errorf("expected failed job reset to 0 transferred, got %d", pkg.Jobs[1].Transferred())
	}
	result, _ := pkg.Jobs[1].Result()
	if result != model.ResultPending {
		t.Errorf("expected failed job reset to PENDING, got %v", result)
	}
	if pkg.Jobs[0].Transferred() != 10 {
		t.Errorf("expected untouched successful job to remain at 10, got %d", pkg.Jobs[0].Transferred())
	}

	// No-op when there is nothing to requeue.
	ctl.RequeueFailed(pkg)
	if pkg.Jobs[0].Transferred() != 10 {
		t.Error("expected requeue of a package with zero failed jobs to be a no-op")
	}
}

func TestRequeueAllResetsEveryJob(t *testing.T) {
	ctl, _ := newTestController(10)
	f := writeFixture(t, "a.bin", 10)
	path := writeManifest(t, []map[string]any{manifestDescriptor("s1", [2]string{f, "/r/a.bin"})})
	if err := ctl.Stage(path); err != nil {
		t.Fatal(err)
	}
	pkg := ctl.All()[0]
	ctl.Dispatch(pkg)
	pkg.Jobs[0].SetTransferred(10)
	pkg.Jobs[0].SetResult(model.ResultSuccess, nil)

	ctl.RequeueAll(pkg)

	if pkg.Jobs[0].Transferred() != 0 {
		t.Errorf("expected requeue_all to reset even successful jobs, got %d", pkg.Jobs[0].Transferred())
	}
}

func TestDispatchAllSharesOneBatchID(t *testing.T) {
	ctl, _ := newTestController(10)
	f1 := writeFixture(t, "a.bin", 10)
	f2 := writeFixture(t, "b.bin", 10)
	path1 := writeManifest(t, []map[string]any{manifestDescriptor("s1", [2]string{f1, "/r/a.bin"})})
	path2 := writeManifest(t, []map[string]any{manifestDescriptor("s1", [2]string{f2, "/r/b.bin"})})
	if err := ctl.Stage(path1); err != nil {
		t.Fatal(err)
	}
	if err := ctl.Stage(path2); err != nil {
		t.Fatal(err)
	}

	ctl.DispatchAll()
	all := ctl.All()
	if all[0].BatchID == "" || all[0].BatchID != all[1].BatchID {
		t.Errorf("expected both packages dispatched together to share a BatchID, got %q vs %q", all[0].BatchID, all[1].BatchID)
	}
}

func TestStopQuiescesAndDrainsQueue(t *testing.T) {
	ctl, q := newTestController(2)
	f := writeFixture(t, "a.bin", 10)
	path := writeManifest(t, []map[string]any{manifestDescriptor("s1", [2]string{f, "/r/a.bin"})})
	if err := ctl.Stage(path); err != nil {
		t.Fatal(err)
	}
	pkg := ctl.All()[0]
	ctl.Dispatch(pkg)

	// Drain the one real job plus the two STOP sentinels Stop() will push.
	go func() {
		for i := 0; i < 3; i++ {
			if _, ok := q.Get(); !ok {
				continue
			}
		}
	}()

	ctl.Stop()

	if ctl.IsStaging() || ctl.IsUploading() {
		t.Error("expected quiescence after Stop returns")
	}
}
