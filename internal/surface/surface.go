package surface

import (
	"errors"
	"image"
	"sync"

	"github.com/ivlev/reel2video/internal/clock"
	"github.com/ivlev/reel2video/internal/system"
)

// ErrUnavailable is returned when the paint context cannot be obtained
var ErrUnavailable = errors.New("surface has no paint context")

// Surface is a resizable RGBA raster. Finished frames are announced with
// Present and forwarded to any attached capture streams.
type Surface struct {
	mu      sync.Mutex
	width   int
	height  int
	img     *image.RGBA
	clock   clock.Clock
	streams map[*Stream]struct{}
}

func New(width, height int, clk clock.Clock) *Surface {
	s := &Surface{clock: clk, streams: make(map[*Stream]struct{})}
	s.Resize(width, height)
	return s
}

// Size returns the current surface dimensions
func (s *Surface) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// Resize changes the surface dimensions. The old raster goes back to the frame pool.
func (s *Surface) Resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if width == s.width && height == s.height && s.img != nil {
		return
	}
	if s.img != nil {
		system.PutFrame(s.img)
		s.img = nil
	}
	s.width, s.height = width, height
	if width > 0 && height > 0 {
		s.img = system.GetFrame(width, height)
	}
}

// Canvas returns the raster to paint on
func (s *Surface) Canvas() (*image.RGBA, error) {
	if s == nil {
		return nil, ErrUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		return nil, ErrUnavailable
	}
	return s.img, nil
}

// Present announces that the current raster holds a finished frame
func (s *Surface) Present() {
	s.mu.Lock()
	img := s.img
	streams := make([]*Stream, 0, len(s.streams))
	for st := range s.streams {
		streams = append(streams, st)
	}
	s.mu.Unlock()

	if img == nil {
		return
	}
	now := s.clock.Now()
	for _, st := range streams {
		st.push(img, now)
	}
}

// Snapshot returns a copy of the current frame, or nil when the surface is empty
func (s *Surface) Snapshot() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		return nil
	}
	cp := image.NewRGBA(s.img.Rect)
	copy(cp.Pix, s.img.Pix)
	return cp
}

// CaptureStream attaches a fixed-rate frame stream that feeds w.
func (s *Surface) CaptureStream(fps int, w FrameWriter) *Stream {
	if fps <= 0 {
		fps = 30
	}
	st := &Stream{surface: s, fps: fps, writer: w}
	s.mu.Lock()
	s.streams[st] = struct{}{}
	s.mu.Unlock()
	return st
}

func (s *Surface) detach(st *Stream) {
	s.mu.Lock()
	delete(s.streams, st)
	s.mu.Unlock()
}
