package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"sync"

	"github.com/ivlev/reel2video/internal/capture"
	"github.com/ivlev/reel2video/internal/clock"
	"github.com/ivlev/reel2video/internal/playback"
	"github.com/ivlev/reel2video/internal/render"
	"github.com/ivlev/reel2video/internal/surface"
	"github.com/ivlev/reel2video/internal/timeline"
	"github.com/ivlev/reel2video/internal/video"
)

var (
	ErrClosed            = errors.New("studio closed")
	ErrInvalidViewport   = errors.New("invalid viewport")
	ErrCaptureInProgress = capture.ErrCaptureInProgress
)

type Options struct {
	PreviewWidth  int
	PreviewHeight int
	ExportWidth   int
	ExportHeight  int
	FPS           int
	ShowStats     bool

	Clock     clock.Clock
	Scheduler clock.Scheduler
	Renderer  *render.Renderer
	Encoder   video.Encoder
}

// Status is a read-only view of the studio state
type Status struct {
	Title      string `json:"title"`
	HasPlan    bool   `json:"hasPlan"`
	Beats      int    `json:"beats"`
	DurationMs int    `json:"durationMs"`
	Playing    bool   `json:"playing"`
	Capturing  bool   `json:"capturing"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// Studio owns the plan and the drawing surface and hands the surface to either
// the preview loop or a capture, never both. Every exposed operation and every
// scheduled tick runs under mu.
type Studio struct {
	mu       sync.Mutex
	plan     *timeline.Plan
	surface  *surface.Surface
	renderer *render.Renderer
	preview  *playback.Controller
	recorder *capture.Recorder
	closed   bool
}

func New(opts Options) (*Studio, error) {
	if opts.Clock == nil || opts.Scheduler == nil {
		sys := clock.NewSystem(clock.DefaultRefreshInterval)
		if opts.Clock == nil {
			opts.Clock = sys
		}
		if opts.Scheduler == nil {
			opts.Scheduler = sys
		}
	}
	if opts.Renderer == nil {
		r, err := render.New(render.Options{})
		if err != nil {
			return nil, fmt.Errorf("renderer init error: %w", err)
		}
		opts.Renderer = r
	}
	if opts.Encoder == nil {
		opts.Encoder = &video.FFmpegEncoder{}
	}

	s := &Studio{
		renderer: opts.Renderer,
		surface:  surface.New(opts.PreviewWidth, opts.PreviewHeight, opts.Clock),
	}
	sched := clock.Serialize(opts.Scheduler, &s.mu)

	s.preview = playback.New(opts.Clock, sched, s.duration, s.drawPreview)
	s.recorder = &capture.Recorder{
		Width:       opts.ExportWidth,
		Height:      opts.ExportHeight,
		FPS:         opts.FPS,
		Lock:        &s.mu,
		Clock:       opts.Clock,
		Scheduler:   sched,
		Surface:     s.surface,
		Renderer:    opts.Renderer,
		Encoder:     opts.Encoder,
		Plan:        func() *timeline.Plan { return s.plan },
		BeforeStart: s.preview.Stop,
		ShowStats:   opts.ShowStats,
	}

	return s, nil
}

// LoadPlan replaces the current plan and resets any running preview or capture
// to the first frame.
func (s *Studio) LoadPlan(plan *timeline.Plan) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	plan = plan.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	s.plan = plan
	if s.recorder.ActiveLocked() {
		// Восстановление превью выполнит сама запись
		s.recorder.CancelLocked()
		return nil
	}
	s.preview.Stop()
	log.Printf("[*] План загружен: %q, %d бит(ов), %d мс", plan.Title, len(plan.Beats), plan.TotalDuration())
	return nil
}

// Play starts the preview loop
func (s *Studio) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.recorder.ActiveLocked() {
		return ErrCaptureInProgress
	}
	return s.preview.Play()
}

// Stop halts the preview, or cancels the running capture.
func (s *Studio) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.recorder.ActiveLocked() {
		s.recorder.CancelLocked()
		return
	}
	s.preview.Stop()
}

// SetViewport resizes the preview. During a capture the new size is applied
// when the capture restores the preview.
func (s *Studio) SetViewport(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidViewport, width, height)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.recorder.SetRestoreSizeLocked(width, height) {
		return nil
	}
	s.surface.Resize(width, height)
	s.preview.Stop()
	return nil
}

// RecordFullPlayback replays the plan at export resolution and returns the
// encoded video. The preview is stopped first and restored afterwards.
func (s *Studio) RecordFullPlayback(ctx context.Context) (*capture.Artifact, error) {
	art, err := s.recorder.Record(ctx)
	if errors.Is(err, capture.ErrRecorderClosed) {
		return nil, ErrClosed
	}
	return art, err
}

// Snapshot returns a copy of the frame currently on the surface. Ticks paint
// under mu, so the copy never catches a half-painted frame.
func (s *Studio) Snapshot() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface.Snapshot()
}

func (s *Studio) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Playing:   s.preview.Running(),
		Capturing: s.recorder.ActiveLocked(),
	}
	st.Width, st.Height = s.surface.Size()
	if s.plan != nil {
		st.HasPlan = true
		st.Title = s.plan.Title
		st.Beats = len(s.plan.Beats)
		st.DurationMs = s.plan.TotalDuration()
	}
	return st
}

// Close cancels every pending tick. The studio cannot be used afterwards.
func (s *Studio) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.recorder.CloseLocked()
	s.preview.Close()
}

func (s *Studio) duration() (int, bool) {
	if s.plan == nil {
		return 0, false
	}
	return s.plan.TotalDuration(), true
}

func (s *Studio) drawPreview(elapsedMs int) {
	if err := s.renderer.Paint(s.surface, s.plan, elapsedMs); err != nil {
		log.Printf("[!] Кадр %d мс пропущен: %v", elapsedMs, err)
	}
}
