package api

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ivlev/reel2video/internal/engine"
	"github.com/ivlev/reel2video/internal/video"
)

const planJSON = `{"title":"API","cta":"Go","hashtags":["#x"],"beats":[{"text":"short beat","durationMs":100}]}`

func newTestRouter(t *testing.T) (*gin.Engine, *engine.Studio) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s, err := engine.New(engine.Options{
		PreviewWidth:  36,
		PreviewHeight: 64,
		ExportWidth:   72,
		ExportHeight:  128,
		FPS:           10,
		Encoder:       &video.MemoryEncoder{},
	})
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}
	t.Cleanup(s.Close)
	return NewRouter(s), s
}

func do(r *gin.Engine, method, path, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(r, http.MethodGet, "/api/health", "", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ok") {
		t.Errorf("unexpected health response %d %s", w.Code, w.Body.String())
	}
}

func TestPutPlanJSONAndYAML(t *testing.T) {
	r, s := newTestRouter(t)

	w := do(r, http.MethodPut, "/api/plan", "application/json", planJSON)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT json plan: %d %s", w.Code, w.Body.String())
	}
	var st engine.Status
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("bad status body: %v", err)
	}
	if !st.HasPlan || st.DurationMs != 100 {
		t.Errorf("unexpected status %+v", st)
	}

	yamlPlan := "title: YAML\nbeats:\n  - text: a\n    duration_ms: 300\n"
	w = do(r, http.MethodPut, "/api/plan", "application/yaml", yamlPlan)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT yaml plan: %d %s", w.Code, w.Body.String())
	}
	if got := s.Status(); got.Title != "YAML" || got.DurationMs != 300 {
		t.Errorf("yaml plan not loaded: %+v", got)
	}
}

func TestPutPlanRejectsBadBeat(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(r, http.MethodPut, "/api/plan", "application/json", `{"beats":[{"text":"x","durationMs":-1}]}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestPlayWithoutPlanConflicts(t *testing.T) {
	r, _ := newTestRouter(t)
	if w := do(r, http.MethodPost, "/api/play", "", ""); w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/export", "", ""); w.Code != http.StatusConflict {
		t.Errorf("expected 409 for export, got %d", w.Code)
	}
}

func TestPlayStopAndViewport(t *testing.T) {
	r, s := newTestRouter(t)
	do(r, http.MethodPut, "/api/plan", "application/json", planJSON)

	if w := do(r, http.MethodPost, "/api/play", "", ""); w.Code != http.StatusOK {
		t.Fatalf("play: %d %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodPost, "/api/stop", "", ""); w.Code != http.StatusOK {
		t.Fatalf("stop: %d", w.Code)
	}
	if s.Status().Playing {
		t.Error("still playing after stop")
	}

	w := do(r, http.MethodPut, "/api/viewport", "application/json", `{"width":48,"height":80}`)
	if w.Code != http.StatusOK {
		t.Fatalf("viewport: %d %s", w.Code, w.Body.String())
	}
	if st := s.Status(); st.Width != 48 || st.Height != 80 {
		t.Errorf("viewport not applied: %dx%d", st.Width, st.Height)
	}

	if w := do(r, http.MethodPut, "/api/viewport", "application/json", `{"width":-4,"height":80}`); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for negative width, got %d", w.Code)
	}
}

func TestFrameIsPNG(t *testing.T) {
	r, _ := newTestRouter(t)
	do(r, http.MethodPut, "/api/plan", "application/json", planJSON)

	w := do(r, http.MethodGet, "/api/frame", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("frame: %d", w.Code)
	}
	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("frame is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 36 || b.Dy() != 64 {
		t.Errorf("unexpected frame size %v", b)
	}
}

func TestExport(t *testing.T) {
	r, s := newTestRouter(t)
	do(r, http.MethodPut, "/api/plan", "application/json", planJSON)

	w := do(r, http.MethodPost, "/api/export", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("export: %d %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != video.MediaType {
		t.Errorf("unexpected content type %q", ct)
	}
	if w.Header().Get("X-Capture-ID") == "" {
		t.Error("missing capture id header")
	}
	if !strings.Contains(w.Body.String(), "size=72x128") {
		t.Errorf("unexpected artifact %q", w.Body.String())
	}
	if st := s.Status(); st.Width != 36 || st.Height != 64 || st.Capturing {
		t.Errorf("preview not restored after export: %+v", st)
	}
}
