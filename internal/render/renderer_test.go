package render

import (
	"bytes"
	"errors"
	"image"
	"math"
	"strings"
	"testing"

	"github.com/ivlev/reel2video/internal/timeline"
)

func TestEaseEndpoints(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{0.5, 0.5},
		{1, 1},
	}

	for _, tt := range tests {
		if got := Ease(tt.in); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Ease(%.2f): expected %.2f, got %f", tt.in, tt.want, got)
		}
	}
}

func TestEaseMonotonic(t *testing.T) {
	prev := Ease(0)
	for i := 1; i <= 1000; i++ {
		v := Ease(float64(i) / 1000)
		if v < prev {
			t.Fatalf("Ease decreased at t=%.3f: %f < %f", float64(i)/1000, v, prev)
		}
		prev = v
	}
}

// monospace measures 10px per rune
func monospace(s string) float64 {
	return float64(len([]rune(s))) * 10
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxWidth float64
		want     []string
	}{
		{"empty", "", 100, nil},
		{"fits", "Hello World", 200, []string{"Hello World"}},
		{"breaks", "one two three four", 90, []string{"one two", "three", "four"}},
		{"long word alone", "a supercalifragilistic b", 60, []string{"a", "supercalifragilistic", "b"}},
		{"collapses spaces", "  spaced   out  ", 200, []string{"spaced out"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Wrap(tt.text, tt.maxWidth, monospace)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestWrapIdempotentAndBounded(t *testing.T) {
	r, err := New(Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	texts := []string{
		"Most people start their morning by checking the phone before even getting out of bed",
		"Internationalization is a surprisingly long word for a vertical reel",
		"Short",
	}
	measures := map[string]Measurer{
		"monospace": monospace,
		"gobold":    func(s string) float64 { return r.MeasureBody(s, 1080, 1920) },
	}

	for name, m := range measures {
		for _, text := range texts {
			for _, maxWidth := range []float64{120, 400, 952} {
				first := Wrap(text, maxWidth, m)
				second := Wrap(strings.Join(first, " "), maxWidth, m)
				if strings.Join(first, "\n") != strings.Join(second, "\n") {
					t.Errorf("%s: wrap not idempotent at %.0f: %q vs %q", name, maxWidth, first, second)
				}
				for _, line := range first {
					if m(line) > maxWidth && len(strings.Fields(line)) > 1 {
						t.Errorf("%s: multi-word line %q is %.1fpx wide, max %.0f", name, line, m(line), maxWidth)
					}
				}
			}
		}
	}
}

func samplePlan() *timeline.Plan {
	return &timeline.Plan{
		Title:    "3 habits",
		CTA:      "Follow for part 2",
		Hashtags: []string{"#habits", "#growth", "#morning", "#ignored"},
		Beats: []timeline.Beat{
			{Text: "Hello World", DurationMs: 1000},
			{Text: "Drink a glass of water before coffee", DurationMs: 2000},
		},
	}
}

func TestRenderDeterministic(t *testing.T) {
	r, err := New(Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	a := image.NewRGBA(image.Rect(0, 0, 270, 480))
	b := image.NewRGBA(image.Rect(0, 0, 270, 480))
	plan := samplePlan()

	if err := r.Render(a, plan, 1234, 270, 480); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if err := r.Render(b, plan, 1234, 270, 480); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if !bytes.Equal(a.Pix, b.Pix) {
		t.Error("same inputs produced different frames")
	}
}

func TestRenderTextSettlesBeforeBeatEnd(t *testing.T) {
	r, _ := New(Options{})
	plan := samplePlan()
	w, h := 270, 480

	early := image.NewRGBA(image.Rect(0, 0, w, h))
	late := image.NewRGBA(image.Rect(0, 0, w, h))
	moving := image.NewRGBA(image.Rect(0, 0, w, h))

	// Beat 2 is 2000ms long: the reveal completes at 1/1.2 of it.
	r.Render(early, plan, 1000+1700, w, h)
	r.Render(late, plan, 1000+1950, w, h)
	r.Render(moving, plan, 1000+400, w, h)

	middle := image.Rect(0, h/4, w, 3*h/4)
	if !bytes.Equal(crop(early, middle), crop(late, middle)) {
		t.Error("beat text still moving after the reveal finished")
	}
	if bytes.Equal(crop(moving, middle), crop(late, middle)) {
		t.Error("beat text did not animate during the reveal")
	}
}

func TestRenderProgressBar(t *testing.T) {
	r, _ := New(Options{})
	plan := samplePlan()
	w, h := 540, 960

	start := image.NewRGBA(image.Rect(0, 0, w, h))
	end := image.NewRGBA(image.Rect(0, 0, w, h))
	r.Render(start, plan, 0, w, h)
	r.Render(end, plan, plan.TotalDuration(), w, h)

	// Near the right end of the track the filled bar only exists in the final frame.
	scale := math.Min(float64(w)/refWidth, float64(h)/refHeight)
	titleFace := r.face(true, titleSize*scale)
	y := int(margin*scale + ascent(titleFace) + trackGap*scale + trackHeight*scale/2)
	x := int(float64(w) - margin*scale - 3)

	if brightness(end, x, y) <= brightness(start, x, y) {
		t.Errorf("expected filled bar at (%d,%d) in the final frame", x, y)
	}
}

func TestRenderDegradesGracefully(t *testing.T) {
	r, _ := New(Options{QRContent: "https://example.com/reel"})
	dst := image.NewRGBA(image.Rect(0, 0, 180, 320))

	plans := []*timeline.Plan{
		nil,
		{},
		{Title: "Only a title"},
		{Beats: []timeline.Beat{{Text: "", DurationMs: 500}}},
	}
	for i, p := range plans {
		if err := r.Render(dst, p, 250, 180, 320); err != nil {
			t.Errorf("plan %d: unexpected error %v", i, err)
		}
	}
}

func TestRenderRejectsMissingSurface(t *testing.T) {
	r, _ := New(Options{})

	if err := r.Render(nil, samplePlan(), 0, 100, 100); !errors.Is(err, ErrSurfaceUnavailable) {
		t.Errorf("expected ErrSurfaceUnavailable for nil dst, got %v", err)
	}
	dst := image.NewRGBA(image.Rect(0, 0, 10, 10))
	if err := r.Render(dst, samplePlan(), 0, 0, 100); !errors.Is(err, ErrSurfaceUnavailable) {
		t.Errorf("expected ErrSurfaceUnavailable for zero width, got %v", err)
	}
}

func TestHashtagLine(t *testing.T) {
	if got := hashtagLine([]string{"#a", "#b", "#c", "#d"}); got != "#a #b #c" {
		t.Errorf("expected first three hashtags, got %q", got)
	}
	if got := hashtagLine(nil); got != "" {
		t.Errorf("expected empty line, got %q", got)
	}
}

type fakeTarget struct {
	img       *image.RGBA
	presented int
}

func (f *fakeTarget) Size() (int, int) {
	if f.img == nil {
		return 0, 0
	}
	return f.img.Rect.Dx(), f.img.Rect.Dy()
}

func (f *fakeTarget) Canvas() (*image.RGBA, error) {
	if f.img == nil {
		return nil, errors.New("no canvas")
	}
	return f.img, nil
}

func (f *fakeTarget) Present() { f.presented++ }

func TestPaint(t *testing.T) {
	r, _ := New(Options{})

	ok := &fakeTarget{img: image.NewRGBA(image.Rect(0, 0, 90, 160))}
	if err := r.Paint(ok, samplePlan(), 0); err != nil {
		t.Fatalf("Paint failed: %v", err)
	}
	if ok.presented != 1 {
		t.Errorf("expected one presented frame, got %d", ok.presented)
	}

	missing := &fakeTarget{}
	if err := r.Paint(missing, samplePlan(), 0); !errors.Is(err, ErrSurfaceUnavailable) {
		t.Errorf("expected ErrSurfaceUnavailable, got %v", err)
	}
	if missing.presented != 0 {
		t.Error("a skipped frame must not be presented")
	}
}

func crop(img *image.RGBA, r image.Rectangle) []byte {
	var out []byte
	for y := r.Min.Y; y < r.Max.Y; y++ {
		start := img.PixOffset(r.Min.X, y)
		out = append(out, img.Pix[start:start+r.Dx()*4]...)
	}
	return out
}

func brightness(img *image.RGBA, x, y int) int {
	c := img.RGBAAt(x, y)
	return int(c.R) + int(c.G) + int(c.B)
}
