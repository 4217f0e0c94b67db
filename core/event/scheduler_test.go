package event_test

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/trezcool/karibu/core/event"
	markerstore "github.com/trezcool/karibu/storage/markers"
)

const eventDate = "2024-11-22"

func newScheduler(t *testing.T, now, start time.Time, markers event.MarkerStore, status int) (*event.Scheduler, *int32) {
	t.Helper()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	s := event.NewScheduler(event.SchedulerDeps{
		EventDate:   eventDate,
		EventStart:  start,
		GraceWindow: 10 * time.Minute,
		BaseURL:     srv.URL,
		Markers:     markers,
		Client:      srv.Client(),
		NowFunc:     func() time.Time { return now },
	})
	return s, &calls
}

func TestScheduler_registersTimersForFuturePhases(t *testing.T) {
	now := time.Now()
	// all three targets (start-1h, start, start+3h) are ahead of now
	s, calls := newScheduler(t, now, now.Add(2*time.Hour), markerstore.NewDummyStore(), http.StatusOK)

	s.Start()
	defer s.Stop()

	if got := s.Pending(); got != len(event.AllPhases) {
		t.Errorf("Pending() = %d; want %d", got, len(event.AllPhases))
	}
	if n := atomic.LoadInt32(calls); n != 0 {
		t.Errorf("fired %d times before any target; want 0", n)
	}
}

func TestScheduler_firesImmediatelyWithinGrace(t *testing.T) {
	now := time.Now()
	markers := markerstore.NewDummyStore()
	// "end" target (start+3h) was 5 minutes ago: within grace;
	// "pre" and "start" are long past it
	s, calls := newScheduler(t, now, now.Add(-3*time.Hour).Add(-5*time.Minute), markers, http.StatusOK)

	s.Start()
	s.Stop() // waits for the immediate fire

	if n := atomic.LoadInt32(calls); n != 1 {
		t.Fatalf("fired %d times; want exactly 1", n)
	}
	sent, err := markers.Sent(eventDate, event.PhaseEnd)
	if err != nil {
		t.Fatalf("Sent() failed: %v", err)
	}
	if !sent {
		t.Error("phase not marked sent after a successful fire")
	}

	// a second Start() must not re-fire a marked phase
	s2, calls2 := newScheduler(t, now, now.Add(-3*time.Hour).Add(-5*time.Minute), markers, http.StatusOK)
	s2.Start()
	s2.Stop()
	if n := atomic.LoadInt32(calls2); n != 0 {
		t.Errorf("re-fired a marked phase %d times; want 0", n)
	}
}

func TestScheduler_skipsPhasesPastGrace(t *testing.T) {
	now := time.Now()
	// every target is more than the grace window in the past
	s, calls := newScheduler(t, now, now.Add(-24*time.Hour), markerstore.NewDummyStore(), http.StatusOK)

	s.Start()
	s.Stop()

	if n := atomic.LoadInt32(calls); n != 0 {
		t.Errorf("fired %d times past the grace window; want 0", n)
	}
	if got := s.Pending(); got != 0 {
		t.Errorf("Pending() = %d; want 0", got)
	}
}

func TestScheduler_failedFireStaysEligible(t *testing.T) {
	now := time.Now()
	markers := markerstore.NewDummyStore()
	s, calls := newScheduler(t, now, now.Add(-3*time.Hour).Add(-5*time.Minute), markers, http.StatusBadGateway)

	s.Start()
	s.Stop()

	if n := atomic.LoadInt32(calls); n != 1 {
		t.Fatalf("fired %d times; want 1", n)
	}
	sent, err := markers.Sent(eventDate, event.PhaseEnd)
	if err != nil {
		t.Fatalf("Sent() failed: %v", err)
	}
	if sent {
		t.Error("phase marked sent after a failed fire; must stay eligible")
	}
}

func TestScheduler_StopCancelsTimers(t *testing.T) {
	now := time.Now()
	s, calls := newScheduler(t, now, now.Add(time.Hour), markerstore.NewDummyStore(), http.StatusOK)

	s.Start()
	s.Stop()

	if got := s.Pending(); got != 0 {
		t.Errorf("Pending() = %d after Stop(); want 0", got)
	}
	if n := atomic.LoadInt32(calls); n != 0 {
		t.Errorf("fired %d times after Stop(); want 0", n)
	}
}
