package video

import (
	"context"
	"errors"
	"image"
)

// MediaType is the declared type of every exported artifact
const MediaType = "video/mp4"

var (
	// ErrAborted is delivered on Done when the sink was aborted before finishing
	ErrAborted = errors.New("encoding aborted")
	// ErrSinkClosed is returned by WriteFrame after Finalize, Abort or a sink failure
	ErrSinkClosed = errors.New("encoding sink closed")
)

// Format describes the raw frames fed into a sink
type Format struct {
	Width  int
	Height int
	FPS    int
}

// Result is the one-shot outcome of a sink
type Result struct {
	Data []byte
	Err  error
}

// Sink consumes a live sequence of RGBA frames and buffers encoded chunks.
// Exactly one Result is delivered on Done, after Finalize or Abort.
type Sink interface {
	WriteFrame(img *image.RGBA) error
	Finalize()
	Abort()
	Done() <-chan Result
}

// Encoder starts sinks. A sink is already running when Open returns.
type Encoder interface {
	Open(ctx context.Context, f Format) (Sink, error)
}
