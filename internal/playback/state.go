package playback

import "time"

// State is the running flag plus the anchor timestamp taken when playback started.
// A zero Anchor means unset.
type State struct {
	Running bool
	Anchor  time.Time
}

// Start marks playback as running from now
func (s *State) Start(now time.Time) {
	s.Running = true
	s.Anchor = now
}

// Halt returns to idle and clears the anchor
func (s *State) Halt() {
	s.Running = false
	s.Anchor = time.Time{}
}

// Elapsed returns whole milliseconds since the anchor, never negative
func (s State) Elapsed(now time.Time) int {
	if s.Anchor.IsZero() {
		return 0
	}
	d := now.Sub(s.Anchor)
	if d < 0 {
		return 0
	}
	return int(d / time.Millisecond)
}
