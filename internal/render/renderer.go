package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"sync"

	"github.com/ivlev/reel2video/internal/timeline"
	"github.com/skip2/go-qrcode"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// ErrSurfaceUnavailable is returned when there is nothing to paint on.
var ErrSurfaceUnavailable = errors.New("drawing surface unavailable")

// Layout is expressed for a 1080x1920 canvas and scaled to the target surface.
const (
	refWidth  = 1080.0
	refHeight = 1920.0

	margin       = 64.0
	titleSize    = 56.0
	bodySize     = 76.0
	ctaSize      = 46.0
	hashtagSize  = 34.0
	lineSpacing  = 1.25
	trackGap     = 40.0
	trackHeight  = 10.0
	ctaBottom    = 140.0
	hashtagGap   = 72.0
	qrSize       = 220.0
	revealOffset = 40.0
	revealFloor  = 0.15
	revealRate   = 1.2
	maxHashtags  = 3
)

var (
	gradientFrom = color.RGBA{0x1f, 0x1c, 0x4d, 0xff}
	gradientTo   = color.RGBA{0xc2, 0x3b, 0x6e, 0xff}
	vignette     = color.NRGBA{0, 0, 0, 0x59}
	trackColor   = color.NRGBA{0xff, 0xff, 0xff, 0x40}
	barColor     = color.NRGBA{0xff, 0xff, 0xff, 0xe6}
	mutedColor   = color.NRGBA{0xff, 0xff, 0xff, 0xcc}
)

// Options tune optional overlays
type Options struct {
	// QRContent, when set, is encoded as a QR code shown while the last beat plays.
	QRContent string
}

// Renderer paints reel frames. Render output depends only on its arguments;
// the struct only caches parsed fonts, sized faces and the QR bitmap.
type Renderer struct {
	opts    Options
	regular *opentype.Font
	bold    *opentype.Font
	qr      image.Image

	mu    sync.Mutex
	faces map[faceKey]font.Face
}

type faceKey struct {
	bold bool
	size float64
}

func New(opts Options) (*Renderer, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}

	r := &Renderer{
		opts:    opts,
		regular: regular,
		bold:    bold,
		faces:   make(map[faceKey]font.Face),
	}

	if opts.QRContent != "" {
		code, err := qrcode.New(opts.QRContent, qrcode.Medium)
		if err != nil {
			return nil, fmt.Errorf("qr code: %w", err)
		}
		r.qr = code.Image(256)
	}

	return r, nil
}

// Render paints the frame for elapsedMs onto the top-left width×height area of dst.
// Missing title, CTA or hashtags are drawn as empty strings and a plan without
// beats draws only the chrome.
func (r *Renderer) Render(dst *image.RGBA, plan *timeline.Plan, elapsedMs, width, height int) error {
	if dst == nil || width <= 0 || height <= 0 {
		return ErrSurfaceUnavailable
	}
	bounds := image.Rect(0, 0, width, height).Intersect(dst.Bounds())
	if bounds.Empty() {
		return ErrSurfaceUnavailable
	}
	if plan == nil {
		plan = &timeline.Plan{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	w, h := float64(width), float64(height)
	scale := math.Min(w/refWidth, h/refHeight)
	m := margin * scale

	// 1-2. Фон
	draw.Draw(dst, bounds, image.Transparent, image.Point{}, draw.Src)
	paintGradient(dst, bounds, width, height)
	draw.Draw(dst, bounds, image.NewUniform(vignette), image.Point{}, draw.Over)

	// 3. Заголовок
	titleFace := r.face(true, titleSize*scale)
	titleBaseline := m + ascent(titleFace)
	drawText(dst, titleFace, plan.Title, m, titleBaseline, color.White)

	// 4. Общий прогресс по всему ролику
	trackY := titleBaseline + trackGap*scale
	trackW := w - 2*m
	fill(dst, rectF(m, trackY, m+trackW, trackY+trackHeight*scale), trackColor)
	fill(dst, rectF(m, trackY, m+trackW*globalProgress(plan, elapsedMs), trackY+trackHeight*scale), barColor)

	// 5. Текст текущего бита
	pos, ok := plan.BeatAt(elapsedMs)
	if ok {
		r.drawBeat(dst, pos, w, h, scale)
	}

	// 6. CTA
	ctaFace := r.face(true, ctaSize*scale)
	ctaBaseline := h - ctaBottom*scale
	drawText(dst, ctaFace, plan.CTA, (w-measure(ctaFace, plan.CTA))/2, ctaBaseline, color.White)

	// 7. Хэштеги
	tagFace := r.face(false, hashtagSize*scale)
	tagBaseline := ctaBaseline - hashtagGap*scale
	drawText(dst, tagFace, hashtagLine(plan.Hashtags), m, tagBaseline, mutedColor)

	if r.qr != nil && (!ok || pos.Index == len(plan.Beats)-1) {
		size := qrSize * scale
		top := tagBaseline - ascent(tagFace) - m/2 - size
		target := rectF(w-m-size, top, w-m, top+size)
		xdraw.NearestNeighbor.Scale(dst, target, r.qr, r.qr.Bounds(), xdraw.Over, nil)
	}

	return nil
}

func (r *Renderer) drawBeat(dst *image.RGBA, pos timeline.Position, w, h, scale float64) {
	face := r.face(true, bodySize*scale)
	maxWidth := w - 2*margin*scale
	lines := Wrap(pos.Beat.Text, maxWidth, func(s string) float64 { return measure(face, s) })
	if len(lines) == 0 {
		return
	}

	eased := Ease(math.Min(1, pos.Progress()*revealRate))
	offset := revealOffset * scale * (1 - eased)
	alpha := lerp(revealFloor, 1, eased)
	c := color.NRGBA{0xff, 0xff, 0xff, uint8(math.Round(alpha * 0xff))}

	lineHeight := bodySize * scale * lineSpacing
	top := (h - lineHeight*float64(len(lines))) / 2
	for i, line := range lines {
		baseline := top + float64(i)*lineHeight + ascent(face) + offset
		drawText(dst, face, line, (w-measure(face, line))/2, baseline, c)
	}
}

// MeasureBody reports the width of s in the beat text face for a surface of the given height
func (r *Renderer) MeasureBody(s string, width, height int) float64 {
	scale := math.Min(float64(width)/refWidth, float64(height)/refHeight)
	r.mu.Lock()
	defer r.mu.Unlock()
	return measure(r.face(true, bodySize*scale), s)
}

func (r *Renderer) face(bold bool, size float64) font.Face {
	size = math.Max(1, math.Round(size*2)/2)
	key := faceKey{bold: bold, size: size}
	if f, ok := r.faces[key]; ok {
		return f
	}

	src := r.regular
	if bold {
		src = r.bold
	}
	f, err := opentype.NewFace(src, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		// Go fonts are embedded, NewFace only fails on a broken size
		panic(fmt.Sprintf("render: face %.1fpx: %v", size, err))
	}
	r.faces[key] = f
	return f
}

func globalProgress(plan *timeline.Plan, elapsedMs int) float64 {
	total := plan.TotalDuration()
	if total <= 0 {
		return 0
	}
	return timeline.Clamp01(float64(elapsedMs) / float64(total))
}

func hashtagLine(tags []string) string {
	if len(tags) > maxHashtags {
		tags = tags[:maxHashtags]
	}
	return strings.Join(tags, " ")
}

// paintGradient fills bounds with a diagonal two-stop ramp from top-left to bottom-right
func paintGradient(dst *image.RGBA, bounds image.Rectangle, width, height int) {
	span := float64(width-1) + float64(height-1)
	if span <= 0 {
		span = 1
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := dst.PixOffset(bounds.Min.X, y)
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			t := float64(x+y) / span
			dst.Pix[row+0] = uint8(lerp(float64(gradientFrom.R), float64(gradientTo.R), t))
			dst.Pix[row+1] = uint8(lerp(float64(gradientFrom.G), float64(gradientTo.G), t))
			dst.Pix[row+2] = uint8(lerp(float64(gradientFrom.B), float64(gradientTo.B), t))
			dst.Pix[row+3] = 0xff
			row += 4
		}
	}
}

func fill(dst draw.Image, r image.Rectangle, c color.Color) {
	if r.Empty() {
		return
	}
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Over)
}

func drawText(dst draw.Image, face font.Face, s string, x, baseline float64, c color.Color) {
	if s == "" {
		return
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: toFixed(x), Y: toFixed(baseline)},
	}
	d.DrawString(s)
}

func measure(face font.Face, s string) float64 {
	return float64(font.MeasureString(face, s)) / 64
}

func ascent(face font.Face) float64 {
	return float64(face.Metrics().Ascent) / 64
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}

func rectF(x0, y0, x1, y1 float64) image.Rectangle {
	return image.Rect(int(math.Round(x0)), int(math.Round(y0)), int(math.Round(x1)), int(math.Round(y1)))
}
