package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
)

func TestReporterCounters(t *testing.T) {
	t.Parallel()

	r := NewReporter(2)
	for _, u := range []string{"a", "b", "c", "d", "e"} {
		r.Update(Queued(u))
	}
	r.Update(Started("a"))
	r.Update(Started("b"))
	r.Update(Started("c"))
	r.Update(Started("d"))
	r.Update(Completed("a", model.StateSuccess, time.Second))
	r.Update(Completed("b", model.StateFailed, time.Second))
	r.Update(Completed("c", model.StateTimeout, time.Second))
	r.Update(Completed("d", model.StateRedirected, time.Second))
	r.Update(Discovered("a", 7))

	s := r.Snapshot()
	if s.Total != 5 {
		t.Errorf("Total = %d, want 5", s.Total)
	}
	if s.Queued != 1 || s.Processing != 0 {
		t.Errorf("Queued/Processing = %d/%d, want 1/0", s.Queued, s.Processing)
	}
	if s.Completed != 3 || s.Failed != 1 {
		t.Errorf("Completed/Failed = %d/%d, want 3/1", s.Completed, s.Failed)
	}
	if s.TimedOut != 1 || s.Redirected != 1 {
		t.Errorf("TimedOut/Redirected = %d/%d, want 1/1", s.TimedOut, s.Redirected)
	}
	if s.Remaining != 1 {
		t.Errorf("Remaining = %d, want 1", s.Remaining)
	}
	if s.Discovered != 7 {
		t.Errorf("Discovered = %d, want 7", s.Discovered)
	}
	if s.Done() != 4 {
		t.Errorf("Done() = %d, want 4", s.Done())
	}
}

func TestReporterEstimate(t *testing.T) {
	t.Parallel()

	t.Run("fallback before first completion", func(t *testing.T) {
		t.Parallel()

		r := NewReporter(2, WithDefaultEstimate(3*time.Second))
		for range 4 {
			r.Update(Queued("x"))
		}
		if got := r.Snapshot().EstimatedTimeRemaining; got != 6*time.Second {
			t.Errorf("ETA = %v, want 6s", got)
		}
	})

	t.Run("moving average of last N", func(t *testing.T) {
		t.Parallel()

		r := NewReporter(1, WithWindow(2))
		for range 4 {
			r.Update(Queued("x"))
		}
		r.Update(Started("x"))
		r.Update(Completed("x", model.StateSuccess, 10*time.Second))
		r.Update(Started("x"))
		r.Update(Completed("x", model.StateSuccess, 2*time.Second))
		r.Update(Started("x"))
		r.Update(Completed("x", model.StateSuccess, 4*time.Second))

		// window holds 2s and 4s; one page remains
		if got := r.Snapshot().EstimatedTimeRemaining; got != 3*time.Second {
			t.Errorf("ETA = %v, want 3s", got)
		}
	})

	t.Run("zero when nothing remains", func(t *testing.T) {
		t.Parallel()

		r := NewReporter(1)
		if got := r.Snapshot().EstimatedTimeRemaining; got != 0 {
			t.Errorf("ETA = %v, want 0", got)
		}
	})
}

func TestReporterListener(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var got []EventKind
	var r *Reporter
	r = NewReporter(1, WithListener(func(ev Event) {
		// Reading from the listener must not deadlock.
		_ = r.Snapshot()
		mu.Lock()
		got = append(got, ev.Kind)
		mu.Unlock()
	}))

	r.Update(Queued("a"))
	r.Update(Started("a"))
	r.Update(Discovered("a", 0))
	r.Update(Discovered("a", 2))
	r.Update(Completed("a", model.StateFailed, time.Millisecond))

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != PagesDiscovered || got[1] != PageCompleted {
		t.Errorf("listener events = %v", got)
	}
}

func TestReporterConcurrent(t *testing.T) {
	t.Parallel()

	r := NewReporter(4)
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Update(Queued("u"))
			r.Update(Started("u"))
			_ = r.Snapshot()
			r.Update(Completed("u", model.StateSuccess, time.Duration(i)*time.Millisecond))
		}(i)
	}
	wg.Wait()

	s := r.Snapshot()
	if s.Total != 50 || s.Completed != 50 || s.Remaining != 0 {
		t.Errorf("snapshot = %+v", s)
	}
}
