package transport

import "testing"

func TestProgressWriterReportsCumulativeBytes(t *testing.T) {
	var calls [][2]int64
	w := &progressWriter{total: 10, onProgress: func(sent, total int64) {
		calls = append(calls, [2]int64{sent, total})
	}}

	w.Write([]byte("abc"))
	w.Write([]byte("de"))

	if len(calls) != 2 {
		t.Fatalf("expected 2 progress calls, got %d", len(calls))
	}
	if calls[0][0] != 3 || calls[1][0] != 5 {
		t.Errorf("expected cumulative sent 3 then 5, got %v", calls)
	}
	if calls[0][1] != 10 || calls[1][1] != 10 {
		t.Errorf("expected total always 10, got %v", calls)
	}
}
