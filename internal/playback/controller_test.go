package playback

import (
	"errors"
	"testing"
	"time"

	"github.com/ivlev/reel2video/internal/clock"
	"github.com/ivlev/reel2video/internal/timeline"
)

type harness struct {
	clk    *clock.Manual
	frames []int
	total  int
	loaded bool
	ctrl   *Controller
}

func newHarness(total int, loaded bool) *harness {
	h := &harness{clk: clock.NewManual(time.Unix(1000, 0)), total: total, loaded: loaded}
	h.ctrl = New(h.clk, h.clk,
		func() (int, bool) { return h.total, h.loaded },
		func(elapsed int) { h.frames = append(h.frames, elapsed) },
	)
	return h
}

func (h *harness) lastFrame() int {
	return h.frames[len(h.frames)-1]
}

func TestPlayWithoutPlan(t *testing.T) {
	h := newHarness(0, false)
	if err := h.ctrl.Play(); !errors.Is(err, timeline.ErrNoPlanLoaded) {
		t.Errorf("expected ErrNoPlanLoaded, got %v", err)
	}
	if h.ctrl.Running() || h.clk.Pending() != 0 {
		t.Error("play without a plan changed state")
	}
}

func TestPlayRunsToEnd(t *testing.T) {
	h := newHarness(100, true)
	if err := h.ctrl.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if !h.ctrl.Running() || h.ctrl.State().Anchor.IsZero() {
		t.Fatal("expected running state with an anchor")
	}

	for i := 0; i < 5; i++ {
		h.clk.Advance(16 * time.Millisecond)
	}
	if h.lastFrame() != 80 {
		t.Errorf("expected frame at 80ms, got %d", h.lastFrame())
	}

	h.clk.Advance(40 * time.Millisecond)
	if h.lastFrame() != 100 {
		t.Errorf("expected final frame clamped to 100ms, got %d", h.lastFrame())
	}
	if h.ctrl.Running() || !h.ctrl.State().Anchor.IsZero() {
		t.Error("expected idle state with cleared anchor after the end")
	}
	if h.clk.Pending() != 0 {
		t.Errorf("expected no rescheduled tick after the end, got %d", h.clk.Pending())
	}
}

func TestDoublePlayKeepsOneSchedule(t *testing.T) {
	h := newHarness(1000, true)
	h.ctrl.Play()
	first := h.ctrl.Session()
	h.ctrl.Play()

	if h.clk.Pending() != 1 {
		t.Errorf("expected exactly one scheduled tick, got %d", h.clk.Pending())
	}
	if h.ctrl.Session() != first {
		t.Error("second Play replaced the running session")
	}

	h.clk.Advance(16 * time.Millisecond)
	if len(h.frames) != 1 {
		t.Errorf("expected one frame per refresh, got %d", len(h.frames))
	}
}

func TestStopResetsToFirstFrame(t *testing.T) {
	h := newHarness(1000, true)
	h.ctrl.Play()
	h.clk.Advance(300 * time.Millisecond)

	h.ctrl.Stop()
	if h.lastFrame() != 0 {
		t.Errorf("expected reset frame at 0, got %d", h.lastFrame())
	}
	if h.ctrl.Running() || h.clk.Pending() != 0 {
		t.Error("stop left the loop scheduled")
	}

	n := len(h.frames)
	h.clk.Advance(16 * time.Millisecond)
	if len(h.frames) != n {
		t.Error("a tick ran after stop")
	}
}

func TestStaleTickIgnored(t *testing.T) {
	h := newHarness(1000, true)

	// Capture the scheduled tick and run it after a stop/play cycle.
	var stale func()
	h.ctrl.scheduler = schedulerFunc(func(fn func()) func() {
		if stale == nil {
			stale = fn
		}
		return h.clk.Schedule(fn)
	})
	h.ctrl.Play()
	h.ctrl.Stop()
	h.ctrl.Play()

	before := len(h.frames)
	stale()
	if len(h.frames) != before {
		t.Error("tick from a stopped session painted a frame")
	}
}

func TestCloseCancelsPendingTick(t *testing.T) {
	h := newHarness(1000, true)
	h.ctrl.Play()
	h.ctrl.Close()

	n := len(h.frames)
	h.clk.Advance(16 * time.Millisecond)
	if len(h.frames) != n {
		t.Error("tick fired after Close")
	}
	if err := h.ctrl.Play(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestElapsed(t *testing.T) {
	var s State
	now := time.Unix(50, 0)
	if s.Elapsed(now) != 0 {
		t.Error("unset anchor should report zero")
	}
	s.Start(now)
	if got := s.Elapsed(now.Add(1500 * time.Millisecond)); got != 1500 {
		t.Errorf("expected 1500, got %d", got)
	}
	if got := s.Elapsed(now.Add(-time.Second)); got != 0 {
		t.Errorf("expected clamp to 0, got %d", got)
	}
}

type schedulerFunc func(fn func()) func()

func (f schedulerFunc) Schedule(fn func()) func() { return f(fn) }
