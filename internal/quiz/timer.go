package quiz

import (
	"time"

	"github.com/victornm/kiosk/internal/domain"
)

type TimerState string

const (
	TimerNotStarted   TimerState = "not_started"
	TimerRunning      TimerState = "running"
	TimerExpired      TimerState = "expired"
	TimerResultsShown TimerState = "results_shown"
)

// Clock returns the current time. Tests replace it to move time forward.
type Clock func() time.Time

// Timer derives the quiz countdown from a single deadline checked on demand.
type Timer struct {
	now Clock
}

func NewTimer(now Clock) Timer {
	if now == nil {
		now = time.Now
	}
	return Timer{now: now}
}

func (t Timer) Now() time.Time {
	return t.now()
}

// Start begins a run of quizTime seconds.
func (t Timer) Start(s *domain.Session, quizTime int) {
	s.InProgress = true
	s.ResultsShown = false
	s.StartTime = t.now()
	s.Deadline = s.StartTime.Add(time.Duration(quizTime) * time.Second)
}

func (t Timer) State(s *domain.Session) TimerState {
	switch {
	case s.ResultsShown:
		return TimerResultsShown
	case !s.InProgress:
		return TimerNotStarted
	case !t.now().Before(s.Deadline):
		return TimerExpired
	default:
		return TimerRunning
	}
}

// Remaining is never negative.
func (t Timer) Remaining(s *domain.Session) time.Duration {
	if !s.InProgress || s.ResultsShown {
		return 0
	}

	d := s.Deadline.Sub(t.now())
	if d < 0 {
		return 0
	}
	return d
}
