package playback

import (
	"errors"

	"github.com/google/uuid"
	"github.com/ivlev/reel2video/internal/clock"
	"github.com/ivlev/reel2video/internal/timeline"
)

var ErrClosed = errors.New("playback controller closed")

// FrameFunc paints the frame for elapsedMs onto the preview surface
type FrameFunc func(elapsedMs int)

// DurationFunc reports the total duration of the loaded plan; ok is false without a plan.
type DurationFunc func() (totalMs int, ok bool)

// Controller drives the preview loop. It is not safe for concurrent use: the
// owner serializes calls and scheduled ticks (see clock.Serialize).
type Controller struct {
	clock     clock.Clock
	scheduler clock.Scheduler
	duration  DurationFunc
	frame     FrameFunc

	state   State
	session uuid.UUID
	cancel  func()
	closed  bool
}

func New(clk clock.Clock, sched clock.Scheduler, duration DurationFunc, frame FrameFunc) *Controller {
	return &Controller{
		clock:     clk,
		scheduler: sched,
		duration:  duration,
		frame:     frame,
	}
}

// Play starts the loop. It is a no-op while already running.
func (c *Controller) Play() error {
	if c.closed {
		return ErrClosed
	}
	if _, ok := c.duration(); !ok {
		return timeline.ErrNoPlanLoaded
	}
	if c.state.Running {
		return nil
	}

	c.state.Start(c.clock.Now())
	c.session = uuid.New()
	c.cancel = c.scheduler.Schedule(c.tick(c.session))
	return nil
}

// Stop cancels the pending tick, goes idle and repaints the first frame.
// Plan and viewport changes reset through Stop as well.
func (c *Controller) Stop() {
	c.halt()
	if !c.closed {
		c.frame(0)
	}
}

// Close cancels any pending tick for good; no callback runs afterwards.
func (c *Controller) Close() {
	c.halt()
	c.closed = true
}

func (c *Controller) State() State {
	return c.state
}

func (c *Controller) Running() bool {
	return c.state.Running
}

// Session identifies the current run; uuid.Nil while idle.
func (c *Controller) Session() uuid.UUID {
	return c.session
}

func (c *Controller) halt() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.session = uuid.Nil
	c.state.Halt()
}

func (c *Controller) tick(session uuid.UUID) func() {
	return func() {
		// A tick that already fired while Stop was waiting belongs to a dead session.
		if c.closed || !c.state.Running || session != c.session {
			return
		}
		c.cancel = nil

		total, _ := c.duration()
		elapsed := c.state.Elapsed(c.clock.Now())
		if elapsed >= total {
			c.frame(total)
			c.session = uuid.Nil
			c.state.Halt()
			return
		}

		c.frame(elapsed)
		c.cancel = c.scheduler.Schedule(c.tick(session))
	}
}
