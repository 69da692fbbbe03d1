package clock

import (
	"sync"
	"time"
)

// Manual is a hand-driven clock and scheduler. Callbacks only run from Advance,
// which makes frame timing reproducible in tests and dry runs.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	pending []*manualTask
}

type manualTask struct {
	fn        func()
	cancelled bool
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Schedule(fn func()) func() {
	task := &manualTask{fn: fn}
	m.mu.Lock()
	m.pending = append(m.pending, task)
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		task.cancelled = true
		m.mu.Unlock()
	}
}

// Pending returns the number of callbacks waiting for the next frame
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.pending {
		if !t.cancelled {
			n++
		}
	}
	return n
}

// Advance moves time forward by d and fires one frame: every callback that was
// pending before the call. Callbacks scheduled while firing wait for the next Advance.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	batch := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, t := range batch {
		m.mu.Lock()
		skip := t.cancelled
		m.mu.Unlock()
		if !skip {
			t.fn()
		}
	}
}
