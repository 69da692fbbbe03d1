package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ivlev/reel2video/internal/clock"
	"github.com/ivlev/reel2video/internal/playback"
	"github.com/ivlev/reel2video/internal/render"
	"github.com/ivlev/reel2video/internal/surface"
	"github.com/ivlev/reel2video/internal/system"
	"github.com/ivlev/reel2video/internal/timeline"
	"github.com/ivlev/reel2video/internal/video"
)

// Export resolution and frame rate used when the caller leaves them unset
const (
	DefaultWidth  = 1080
	DefaultHeight = 1920
	DefaultFPS    = 30
)

var (
	ErrCaptureCancelled  = errors.New("capture cancelled")
	ErrEncoderFailure    = errors.New("encoder failure")
	ErrCaptureInProgress = errors.New("capture already in progress")
	ErrRecorderClosed    = errors.New("recorder closed")
	// ErrSurfaceUnavailable is fatal for a capture, unlike in preview
	ErrSurfaceUnavailable = render.ErrSurfaceUnavailable
)

// Artifact is the encoded result of one capture
type Artifact struct {
	ID        uuid.UUID
	Data      []byte
	MediaType string
}

// Recorder replays the loaded plan at export resolution while an encoder sink
// consumes the presented frames.
//
// Lock guards the recorder and the surface it shares with the preview.
// Scheduler must run callbacks while holding Lock (see clock.Serialize).
// Methods with the Locked suffix expect the caller to hold Lock already.
type Recorder struct {
	Width  int
	Height int
	FPS    int

	Lock      sync.Locker
	Clock     clock.Clock
	Scheduler clock.Scheduler
	Surface   *surface.Surface
	Renderer  *render.Renderer
	Encoder   video.Encoder

	// Plan returns the plan to record, nil when none is loaded
	Plan func() *timeline.Plan
	// BeforeStart stops the preview loop; it runs with Lock held
	BeforeStart func()
	// ShowStats prints a performance report after each capture
	ShowStats bool

	active *session
	closed bool
}

type session struct {
	id       uuid.UUID
	plan     *timeline.Plan
	state    playback.State
	restoreW int
	restoreH int
	sink     video.Sink
	stream   *surface.Stream
	cancel   func()
	started  time.Time

	ended chan struct{}
	err   error
}

func (s *session) finish(err error) {
	select {
	case <-s.ended:
		return
	default:
	}
	s.state.Halt()
	s.err = err
	close(s.ended)
}

// Capture is a running export started by Start
type Capture struct {
	r *Recorder
	s *session
}

// ID identifies the capture and the artifact it produces
func (c *Capture) ID() uuid.UUID {
	return c.s.id
}

// Record runs a full capture and blocks until the artifact is ready, the
// capture fails, or ctx is done.
func (r *Recorder) Record(ctx context.Context) (*Artifact, error) {
	c, err := r.Start(ctx)
	if err != nil {
		return nil, err
	}
	return c.Wait(ctx)
}

// Start resizes the surface to export size, opens the encoder sink and
// schedules the first capture tick.
func (r *Recorder) Start(ctx context.Context) (*Capture, error) {
	r.Lock.Lock()
	defer r.Lock.Unlock()

	if r.closed {
		return nil, ErrRecorderClosed
	}
	plan := r.Plan()
	if plan == nil {
		return nil, timeline.ErrNoPlanLoaded
	}
	if r.active != nil {
		return nil, ErrCaptureInProgress
	}
	if r.BeforeStart != nil {
		r.BeforeStart()
	}

	width, height, fps := r.format()

	// 1. Запоминаем размер превью
	s := &session{id: uuid.New(), plan: plan, ended: make(chan struct{})}
	s.restoreW, s.restoreH = r.Surface.Size()

	// 2. Полное разрешение
	r.Surface.Resize(width, height)

	// 3-4. Энкодер запускается до первого кадра
	sink, err := r.Encoder.Open(ctx, video.Format{Width: width, Height: height, FPS: fps})
	if err != nil {
		r.restoreLocked(s)
		return nil, fmt.Errorf("%w: %v", ErrEncoderFailure, err)
	}
	s.sink = sink
	s.stream = r.Surface.CaptureStream(fps, sink)

	// 5. Собственный цикл с новым якорем
	s.started = r.Clock.Now()
	s.state.Start(s.started)
	r.active = s
	s.cancel = r.Scheduler.Schedule(r.tick(s))

	log.Printf("[*] Запись %s: %dx%d @ %d fps, %d бит(ов), %d мс", s.id, width, height, fps, len(plan.Beats), plan.TotalDuration())
	return &Capture{r: r, s: s}, nil
}

// Wait blocks until the capture resolves. The preview geometry is restored on
// every path before Wait returns.
func (c *Capture) Wait(ctx context.Context) (*Artifact, error) {
	r, s := c.r, c.s

	select {
	case <-s.ended:
	case <-ctx.Done():
		r.Lock.Lock()
		r.abortLocked(s, fmt.Errorf("%w: %v", ErrCaptureCancelled, ctx.Err()))
		r.Lock.Unlock()
	}

	// Всегда дожидаемся энкодера, даже после Abort
	res := <-s.sink.Done()

	r.Lock.Lock()
	r.restoreLocked(s)
	if r.active == s {
		r.active = nil
	}
	r.Lock.Unlock()

	if r.ShowStats {
		r.report(s, len(res.Data))
	}

	if s.err != nil {
		log.Printf("[-] Запись %s прервана: %v", s.id, s.err)
		return nil, s.err
	}
	if res.Err != nil {
		log.Printf("[-] Ошибка энкодера %s: %v", s.id, res.Err)
		return nil, fmt.Errorf("%w: %v", ErrEncoderFailure, res.Err)
	}

	log.Printf("[+++] Запись %s готова: %d байт за %v", s.id, len(res.Data), r.Clock.Now().Sub(s.started).Round(time.Millisecond))
	return &Artifact{ID: s.id, Data: res.Data, MediaType: video.MediaType}, nil
}

// Cancel stops the running capture, if any
func (r *Recorder) Cancel() {
	r.Lock.Lock()
	defer r.Lock.Unlock()
	r.CancelLocked()
}

func (r *Recorder) CancelLocked() {
	if r.active != nil {
		r.abortLocked(r.active, ErrCaptureCancelled)
	}
}

// CloseLocked cancels the running capture and rejects every later Start.
func (r *Recorder) CloseLocked() {
	r.closed = true
	r.CancelLocked()
}

// Active reports whether a capture owns the surface
func (r *Recorder) Active() bool {
	r.Lock.Lock()
	defer r.Lock.Unlock()
	return r.ActiveLocked()
}

func (r *Recorder) ActiveLocked() bool {
	return r.active != nil
}

// SetRestoreSizeLocked changes the preview geometry restored after the running
// capture. It reports false when no capture is running.
func (r *Recorder) SetRestoreSizeLocked(width, height int) bool {
	if r.active == nil {
		return false
	}
	r.active.restoreW, r.active.restoreH = width, height
	return true
}

func (r *Recorder) format() (width, height, fps int) {
	width, height, fps = r.Width, r.Height, r.FPS
	if width <= 0 || height <= 0 {
		width, height = DefaultWidth, DefaultHeight
	}
	if fps <= 0 {
		fps = DefaultFPS
	}
	return width, height, fps
}

func (r *Recorder) tick(s *session) func() {
	return func() {
		if r.active != s || !s.state.Running {
			return
		}
		s.cancel = nil

		total := s.plan.TotalDuration()
		elapsed := s.state.Elapsed(r.Clock.Now())
		final := elapsed >= total
		if final {
			elapsed = total
		}

		if err := r.Renderer.Paint(r.Surface, s.plan, elapsed); err != nil {
			r.abortLocked(s, err)
			return
		}
		if err := s.stream.Err(); err != nil {
			r.abortLocked(s, fmt.Errorf("%w: %v", ErrEncoderFailure, err))
			return
		}

		if final {
			s.stream.Close()
			s.sink.Finalize()
			s.finish(nil)
			return
		}
		s.cancel = r.Scheduler.Schedule(r.tick(s))
	}
}

func (r *Recorder) abortLocked(s *session, err error) {
	select {
	case <-s.ended:
		return
	default:
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.stream != nil {
		s.stream.Close()
	}
	if s.sink != nil {
		s.sink.Abort()
	}
	s.finish(err)
}

// restoreLocked puts the preview geometry back and repaints its first frame
func (r *Recorder) restoreLocked(s *session) {
	r.Surface.Resize(s.restoreW, s.restoreH)
	if err := r.Renderer.Paint(r.Surface, r.Plan(), 0); err != nil {
		log.Printf("[!] Превью не восстановлено: %v", err)
	}
}

func (r *Recorder) report(s *session, size int) {
	total := r.Clock.Now().Sub(s.started)
	frames := s.stream.Frames()
	fps := 0.0
	if total > 0 {
		fps = float64(frames) / total.Seconds()
	}

	usage := "n/a"
	if st, err := system.CollectStats(); err == nil {
		usage = st.String()
	} else {
		log.Printf("[!] Статистика недоступна: %v", err)
	}

	fmt.Printf("\n--- [PERFORMANCE REPORT] ---\n"+
		"Capture: %s\n"+
		"Total Time: %.2fs\n"+
		"Frames: %d\n"+
		"Effective FPS: %.2f\n"+
		"Output: %d bytes\n"+
		"Resources: %s\n"+
		"----------------------------\n",
		s.id, total.Seconds(), frames, fps, size, usage)
}
