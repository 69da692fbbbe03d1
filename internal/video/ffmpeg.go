package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/ivlev/reel2video/internal/system"
	ffmpeg "github.com/u2takey/ffmpeg-go"
	"golang.org/x/sync/errgroup"
)

// frameQueue bounds how many raw frames wait for ffmpeg
const frameQueue = 8

// FFmpegEncoder streams raw RGBA frames into ffmpeg over stdin and collects
// fragmented MP4 from stdout.
type FFmpegEncoder struct {
	Binary  string
	Codec   string
	Quality int
}

func (e *FFmpegEncoder) binary() string {
	if e.Binary == "" {
		return "ffmpeg"
	}
	return e.Binary
}

func (e *FFmpegEncoder) codec() string {
	if e.Codec == "" {
		return "libx264"
	}
	return e.Codec
}

// BuildArgs returns the ffmpeg arguments for a rawvideo → mp4 pipe
func (e *FFmpegEncoder) BuildArgs(f Format) []string {
	out := ffmpeg.KwArgs{
		"c:v":      e.codec(),
		"pix_fmt":  "yuv420p",
		"r":        f.FPS,
		"f":        "mp4",
		"movflags": "frag_keyframe+empty_moov+default_base_moof",
	}

	// Качество в зависимости от энкодера
	switch e.codec() {
	case "h264_videotoolbox":
		out["b:v"] = fmt.Sprintf("%dk", e.Quality*100)
	case "h264_nvenc":
		out["cq"] = e.Quality
	default: // libx264
		out["crf"] = e.Quality
		out["preset"] = "medium"
	}

	return ffmpeg.Input("pipe:", ffmpeg.KwArgs{
		"f":       "rawvideo",
		"pix_fmt": "rgba",
		"s":       fmt.Sprintf("%dx%d", f.Width, f.Height),
		"r":       f.FPS,
	}).
		Output("pipe:", out).
		GlobalArgs("-hide_banner", "-loglevel", "error").
		OverWriteOutput().
		GetArgs()
}

// Open starts ffmpeg. Frames written before Finalize end up in the artifact.
func (e *FFmpegEncoder) Open(ctx context.Context, f Format) (Sink, error) {
	if f.Width <= 0 || f.Height <= 0 || f.FPS <= 0 {
		return nil, fmt.Errorf("invalid format %dx%d@%d", f.Width, f.Height, f.FPS)
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, e.binary(), e.BuildArgs(f)...)

	s := &ffmpegSink{
		format: f,
		cancel: cancel,
		frames: make(chan *image.RGBA, frameQueue),
		done:   make(chan Result, 1),
	}
	cmd.Stderr = &s.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdin pipe error: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdout pipe error: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	s.gctx = gctx
	g.Go(func() error { return s.writeLoop(gctx, stdin) })
	g.Go(func() error { return s.readLoop(stdout) })
	go s.wait(g, cmd)

	return s, nil
}

type ffmpegSink struct {
	format Format
	cancel context.CancelFunc
	gctx   context.Context
	frames chan *image.RGBA
	done   chan Result

	mu     sync.Mutex
	closed bool

	aborted atomic.Bool
	stderr  bytes.Buffer

	chunkMu sync.Mutex
	chunks  [][]byte
}

func (s *ffmpegSink) WriteFrame(img *image.RGBA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}

	cp := s.copyFrame(img)
	select {
	case s.frames <- cp:
		return nil
	case <-s.gctx.Done():
		system.PutFrame(cp)
		return fmt.Errorf("%w: %v", ErrSinkClosed, context.Cause(s.gctx))
	}
}

// Finalize closes the frame queue; ffmpeg flushes and exits on stdin EOF.
func (s *ffmpegSink) Finalize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.frames)
}

// Abort kills ffmpeg and discards buffered chunks.
func (s *ffmpegSink) Abort() {
	s.aborted.Store(true)
	s.cancel()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *ffmpegSink) Done() <-chan Result {
	return s.done
}

func (s *ffmpegSink) copyFrame(img *image.RGBA) *image.RGBA {
	cp := system.GetFrame(s.format.Width, s.format.Height)
	if img.Rect == cp.Rect && img.Stride == cp.Stride {
		copy(cp.Pix, img.Pix)
		return cp
	}
	draw.Draw(cp, cp.Rect, img, img.Rect.Min, draw.Src)
	return cp
}

func (s *ffmpegSink) writeLoop(ctx context.Context, w io.WriteCloser) error {
	defer w.Close()
	for {
		select {
		case img, ok := <-s.frames:
			if !ok {
				return nil
			}
			_, err := w.Write(img.Pix)
			system.PutFrame(img)
			if err != nil {
				s.cancel()
				return fmt.Errorf("write raw error: %w", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *ffmpegSink) readLoop(r io.Reader) error {
	buf := make([]byte, 64*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			s.chunkMu.Lock()
			s.chunks = append(s.chunks, chunk)
			s.chunkMu.Unlock()
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			s.cancel()
			return fmt.Errorf("read output error: %w", err)
		}
	}
}

func (s *ffmpegSink) wait(g *errgroup.Group, cmd *exec.Cmd) {
	err := g.Wait()
	if werr := cmd.Wait(); err == nil {
		err = werr
	}
	s.cancel()

	if s.aborted.Load() {
		s.done <- Result{Err: ErrAborted}
		return
	}
	if err != nil {
		s.done <- Result{Err: fmt.Errorf("ffmpeg wait error: %v, output: %s", err, s.stderr.String())}
		return
	}

	s.chunkMu.Lock()
	data := bytes.Join(s.chunks, nil)
	s.chunkMu.Unlock()
	s.done <- Result{Data: data}
}
