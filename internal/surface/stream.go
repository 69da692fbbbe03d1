package surface

import (
	"image"
	"sync"
	"time"
)

// FrameWriter consumes raw frames. Implementations must copy img before returning.
type FrameWriter interface {
	WriteFrame(img *image.RGBA) error
}

// Stream samples presented frames at a fixed rate. When presents arrive slower
// than the rate the latest frame is repeated; faster presents are dropped.
type Stream struct {
	surface *Surface
	fps     int
	writer  FrameWriter

	mu      sync.Mutex
	start   time.Time
	emitted int
	err     error
	closed  bool
}

func (st *Stream) push(img *image.RGBA, now time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed || st.err != nil {
		return
	}
	if st.start.IsZero() {
		st.start = now
	}

	due := int(now.Sub(st.start).Seconds()*float64(st.fps)) + 1
	for st.emitted < due {
		if err := st.writer.WriteFrame(img); err != nil {
			st.err = err
			return
		}
		st.emitted++
	}
}

// Frames returns the number of frames handed to the writer
func (st *Stream) Frames() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.emitted
}

// Err returns the first write error, if any
func (st *Stream) Err() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.err
}

// Close detaches the stream; later presents are ignored.
func (st *Stream) Close() {
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return
	}
	st.closed = true
	st.mu.Unlock()
	st.surface.detach(st)
}
