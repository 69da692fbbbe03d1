package clock

import (
	"sync"
	"time"
)

// DefaultRefreshInterval approximates a 60Hz display refresh
const DefaultRefreshInterval = time.Second / 60

// Clock reports the host time used to anchor playback.
type Clock interface {
	Now() time.Time
}

// Scheduler requests a single frame callback on the next refresh.
// The returned cancel func prevents the callback from running if it has not fired yet.
type Scheduler interface {
	Schedule(fn func()) (cancel func())
}

// System is the wall clock paired with a fixed-interval refresh scheduler
type System struct {
	Interval time.Duration
}

func NewSystem(interval time.Duration) *System {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &System{Interval: interval}
}

func (s *System) Now() time.Time {
	return time.Now()
}

func (s *System) Schedule(fn func()) func() {
	t := time.AfterFunc(s.Interval, fn)
	return func() { t.Stop() }
}

// Serialize wraps every scheduled callback so it runs while holding l.
// Ticks from all controllers sharing l therefore never overlap.
func Serialize(s Scheduler, l sync.Locker) Scheduler {
	return &serialScheduler{inner: s, lock: l}
}

type serialScheduler struct {
	inner Scheduler
	lock  sync.Locker
}

func (s *serialScheduler) Schedule(fn func()) func() {
	return s.inner.Schedule(func() {
		s.lock.Lock()
		defer s.lock.Unlock()
		fn()
	})
}
