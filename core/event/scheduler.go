package event

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/trezcool/karibu/core"
)

type (
	// MarkerStore persists "sent" flags per (event, phase). Once marked, a
	// phase is never re-fired for that event.
	MarkerStore interface {
		Sent(eventDate string, phase Phase) (bool, error)
		MarkSent(eventDate string, phase Phase) error
	}

	SchedulerDeps struct {
		EventDate   string
		EventStart  time.Time
		GraceWindow time.Duration
		// BaseURL is the API base the scheduler calls back into,
		// e.g. "https://example.org"; phases fire GET {BaseURL}/api/announce?phase=X.
		BaseURL string
		Markers MarkerStore
		Logger  core.Logger

		Client  *http.Client     // defaults to a 30s-timeout client
		NowFunc func() time.Time // defaults to time.Now
	}

	// Scheduler fires phase announcements at computed offsets from the event
	// start. Per (event, phase) it moves Unscheduled -> Scheduled -> Fired, or
	// straight to Skipped when the target is already past the grace window.
	// Delivery is best effort: a failed fire stays eligible for the next
	// Start() within the grace window, never for the elapsed timer.
	Scheduler struct {
		deps SchedulerDeps

		mu     sync.Mutex
		timers []*time.Timer
		wg     sync.WaitGroup
	}
)

func NewScheduler(deps SchedulerDeps) *Scheduler {
	if deps.Client == nil {
		deps.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if deps.NowFunc == nil {
		deps.NowFunc = time.Now
	}
	return &Scheduler{deps: deps}
}

// Start schedules every phase once. Phases whose target is still ahead get a
// timer; phases within the grace window past their target fire immediately
// unless already marked sent; anything older is skipped.
func (s *Scheduler) Start() {
	now := s.deps.NowFunc()

	for _, phase := range AllPhases {
		phase := phase
		target := s.deps.EventStart.Add(phase.Offset())

		switch {
		case now.Before(target):
			s.mu.Lock()
			s.timers = append(s.timers, time.AfterFunc(target.Sub(now), func() { s.fire(phase) }))
			s.mu.Unlock()
		case now.Sub(target) <= s.deps.GraceWindow:
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.fire(phase)
			}()
		default:
			s.logDebug(fmt.Sprintf("announce: phase %q skipped, target %s past grace window", phase, target))
		}
	}
}

// Stop cancels all pending timers and waits for immediate fires in flight.
// Results of already-issued calls are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
	s.mu.Unlock()
	s.wg.Wait()
}

// Pending reports the number of timers still registered.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Scheduler) fire(phase Phase) {
	sent, err := s.deps.Markers.Sent(s.deps.EventDate, phase)
	if err != nil {
		s.logError(fmt.Sprintf("announce: checking %q marker: %v", phase, err), err)
		return
	}
	if sent {
		return
	}

	q := make(url.Values)
	q.Set("phase", string(phase))
	res, err := s.deps.Client.Get(s.deps.BaseURL + "/api/announce?" + q.Encode())
	if err != nil {
		s.logError(fmt.Sprintf("announce: firing %q: %v", phase, err), err)
		return
	}
	defer func() { _ = res.Body.Close() }()

	// only a success response marks the phase sent; a failed fire stays
	// eligible for the next Start() within the grace window
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		s.logError(fmt.Sprintf("announce: firing %q: status %d", phase, res.StatusCode))
		return
	}
	if err = s.deps.Markers.MarkSent(s.deps.EventDate, phase); err != nil {
		s.logError(fmt.Sprintf("announce: marking %q sent: %v", phase, err), err)
	}
}

func (s *Scheduler) logDebug(msg string) {
	if s.deps.Logger != nil {
		s.deps.Logger.Debug(msg)
	}
}

func (s *Scheduler) logError(msg string, args ...interface{}) {
	if s.deps.Logger != nil {
		s.deps.Logger.Error(msg, args...)
	}
}
