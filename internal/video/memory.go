package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
)

// MemoryEncoder is an in-process sink used for dry runs and tests. Its artifact
// is a short text summary of the frames it received.
type MemoryEncoder struct {
	// OpenErr makes Open fail
	OpenErr error
	// FailAfter makes WriteFrame fail once this many frames were accepted (0 = never)
	FailAfter int

	mu    sync.Mutex
	sinks []*MemorySink
}

func (e *MemoryEncoder) Open(ctx context.Context, f Format) (Sink, error) {
	if e.OpenErr != nil {
		return nil, e.OpenErr
	}
	s := &MemorySink{format: f, failAfter: e.FailAfter, done: make(chan Result, 1)}

	e.mu.Lock()
	e.sinks = append(e.sinks, s)
	e.mu.Unlock()
	return s, nil
}

// Sinks returns every sink opened so far
func (e *MemoryEncoder) Sinks() []*MemorySink {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*MemorySink(nil), e.sinks...)
}

type MemorySink struct {
	format    Format
	failAfter int
	done      chan Result

	mu        sync.Mutex
	frames    int
	finalized bool
	aborted   bool
}

func (s *MemorySink) WriteFrame(img *image.RGBA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized || s.aborted {
		return ErrSinkClosed
	}
	if s.failAfter > 0 && s.frames >= s.failAfter {
		return errors.New("memory sink: injected write failure")
	}
	if img.Rect.Dx() != s.format.Width || img.Rect.Dy() != s.format.Height {
		return fmt.Errorf("memory sink: frame %v does not match %dx%d", img.Rect, s.format.Width, s.format.Height)
	}
	s.frames++
	return nil
}

func (s *MemorySink) Finalize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized || s.aborted {
		return
	}
	s.finalized = true
	s.done <- Result{Data: []byte(fmt.Sprintf("frames=%d size=%dx%d fps=%d", s.frames, s.format.Width, s.format.Height, s.format.FPS))}
}

func (s *MemorySink) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized || s.aborted {
		return
	}
	s.aborted = true
	s.done <- Result{Err: ErrAborted}
}

func (s *MemorySink) Done() <-chan Result {
	return s.done
}

func (s *MemorySink) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *MemorySink) Finalized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalized
}

func (s *MemorySink) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}
