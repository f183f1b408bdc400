package queue

import (
	"testing"
	"time"

	"github.com/avalon/sftpc/internal/model"
)

func TestFIFOOrder(t *testing.T) {
	q := New(4)
	j1 := model.NewJob("1", "s", "a", "b", 1)
	j2 := model.NewJob("2", "s", "a", "b", 1)
	q.Put(j1)
	q.Put(j2)

	got1, ok := q.Get()
	if !ok || got1.ID != "1" {
		t.Fatalf("expected job 1 first, got %v ok=%v", got1, ok)
	}
	got2, ok := q.Get()
	if !ok || got2.ID != "2" {
		t.Fatalf("expected job 2 second, got %v ok=%v", got2, ok)
	}
}

func TestStopSentinelDeliveredOnce(t *testing.T) {
	q := New(4)
	q.PutStop()

	job, ok := q.Get()
	if ok || job != nil {
		t.Fatalf("expected STOP sentinel (nil, false), got %v %v", job, ok)
	}
}

func TestNStopsDeliverNStops(t *testing.T) {
	const n = 5
	q := New(n)
	for i := 0; i < n; i++ {
		q.PutStop()
	}

	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func() {
			_, ok := q.Get()
			if ok {
				t.Errorf("expected stop, got a job")
			}
			done <- struct{}{}
		}()
	}

	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for worker to observe STOP")
		}
	}
}
