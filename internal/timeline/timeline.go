package timeline

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPlanLoaded is returned by play and export requests that arrive before a plan.
	ErrNoPlanLoaded = errors.New("no plan loaded")
	ErrInvalidBeat  = errors.New("invalid beat")
)

// Beat is one timed segment of the reel
type Beat struct {
	Text       string `yaml:"text" json:"text"`
	DurationMs int    `yaml:"duration_ms" json:"durationMs"`
}

// Plan is the declarative description of a reel. It is treated as immutable
// once handed to the renderer; a new plan replaces it wholesale.
type Plan struct {
	Title    string   `yaml:"title" json:"title"`
	Hook     string   `yaml:"hook" json:"hook"`
	CTA      string   `yaml:"cta" json:"cta"`
	Hashtags []string `yaml:"hashtags" json:"hashtags"`
	Beats    []Beat   `yaml:"beats" json:"beats"`
	Captions []string `yaml:"captions" json:"captions"`
}

// Position describes where an elapsed time falls inside the plan
type Position struct {
	Beat    Beat
	Index   int
	StartMs int
	IntraMs int
}

// Progress returns the fraction of the current beat already played, clamped to [0, 1].
func (p Position) Progress() float64 {
	if p.Beat.DurationMs <= 0 {
		return 1
	}
	return Clamp01(float64(p.IntraMs) / float64(p.Beat.DurationMs))
}

// TotalDuration sums beat durations. It is recomputed on every call.
func (p *Plan) TotalDuration() int {
	if p == nil {
		return 0
	}
	total := 0
	for _, b := range p.Beats {
		total += b.DurationMs
	}
	return total
}

// BeatAt resolves the beat playing at elapsedMs. Past the end it returns the
// last beat frozen at its full duration. ok is false for a plan without beats.
func (p *Plan) BeatAt(elapsedMs int) (pos Position, ok bool) {
	if p == nil || len(p.Beats) == 0 {
		return Position{Index: -1}, false
	}
	if elapsedMs < 0 {
		elapsedMs = 0
	}

	start := 0
	for i, b := range p.Beats {
		end := start + b.DurationMs
		if elapsedMs >= start && elapsedMs < end {
			return Position{Beat: b, Index: i, StartMs: start, IntraMs: elapsedMs - start}, true
		}
		start = end
	}

	last := len(p.Beats) - 1
	lb := p.Beats[last]
	return Position{Beat: lb, Index: last, StartMs: start - lb.DurationMs, IntraMs: lb.DurationMs}, true
}

// Validate checks that every beat has a positive duration. A plan without
// beats is valid and renders as a degenerate zero-length reel.
func (p *Plan) Validate() error {
	if p == nil {
		return ErrNoPlanLoaded
	}
	for i, b := range p.Beats {
		if b.DurationMs <= 0 {
			return fmt.Errorf("%w: beat %d has duration %dms", ErrInvalidBeat, i+1, b.DurationMs)
		}
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate a loaded plan.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	c := *p
	c.Hashtags = append([]string(nil), p.Hashtags...)
	c.Beats = append([]Beat(nil), p.Beats...)
	c.Captions = append([]string(nil), p.Captions...)
	return &c
}

// TotalDuration is the package-level form of Plan.TotalDuration.
func TotalDuration(p *Plan) int {
	return p.TotalDuration()
}

// BeatAt is the package-level form of Plan.BeatAt.
func BeatAt(p *Plan, elapsedMs int) (Position, bool) {
	return p.BeatAt(elapsedMs)
}

// Clamp01 limits v to [0, 1]
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
