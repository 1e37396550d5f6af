package health

import (
	"sync"
	"testing"
	"time"
)

func TestBookRecordAndGet(t *testing.T) {
	b := NewBook()

	if m := b.Get("ch-1"); m.RequestCount != 0 {
		t.Errorf("unseen channel RequestCount = %d, want 0", m.RequestCount)
	}

	b.Record("ch-1", Outcome{OK: true, Latency: 50 * time.Millisecond, At: t0})
	b.Record("ch-1", Outcome{OK: false, At: t0.Add(time.Second)})

	m := b.Get("ch-1")
	if m.RequestCount != 2 || m.ErrorCount != 1 {
		t.Errorf("metrics = %d/%d, want 2/1", m.RequestCount, m.ErrorCount)
	}
}

func TestBookConcurrentRecord(t *testing.T) {
	b := NewBook()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Record("ch-1", Outcome{OK: true, Latency: time.Millisecond, At: t0})
			}
		}()
	}
	wg.Wait()

	if m := b.Get("ch-1"); m.RequestCount != 800 {
		t.Errorf("RequestCount = %d, want 800", m.RequestCount)
	}
}

func TestBookSnapshotAndForget(t *testing.T) {
	b := NewBook()
	b.Record("ch-1", Outcome{OK: true, At: t0})
	b.Record("ch-2", Outcome{OK: false, At: t0})

	snap := b.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot() has %d entries, want 2", len(snap))
	}
	if snap["ch-2"].ErrorCount != 1 {
		t.Errorf("ch-2 ErrorCount = %d, want 1", snap["ch-2"].ErrorCount)
	}

	b.Forget("ch-1")
	if m := b.Get("ch-1"); m.RequestCount != 0 {
		t.Errorf("forgotten channel RequestCount = %d, want 0", m.RequestCount)
	}
}

func TestBookHealthy(t *testing.T) {
	b := NewBook()
	now := t0.Add(time.Hour)

	if !b.Healthy("new", true, now) {
		t.Error("fresh channel should be healthy")
	}

	b.Record("bad", Outcome{OK: false, At: now.Add(-time.Minute)})
	if b.Healthy("bad", true, now) {
		t.Error("channel with recent error inside cooldown should be unhealthy")
	}
}
