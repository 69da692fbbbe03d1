package system

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFramePoolReusesBySize(t *testing.T) {
	p := NewFramePool()

	img := p.Get(8, 4)
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 4 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	p.Put(img)

	other := p.Get(4, 8)
	if other.Bounds().Dx() != 4 || other.Bounds().Dy() != 8 {
		t.Errorf("pool returned a frame of the wrong size: %v", other.Bounds())
	}
}

func TestFindLatestPlan(t *testing.T) {
	dir := t.TempDir()

	files := []string{"a.yaml", "b.json", "c.txt", "d.yml"}
	for i, name := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("title: x\n"), 0644); err != nil {
			t.Fatal(err)
		}
		modTime := time.Now().Add(time.Duration(i) * time.Hour)
		os.Chtimes(path, modTime, modTime)
	}

	latest, err := FindLatestPlan(dir)
	if err != nil {
		t.Fatalf("FindLatestPlan failed: %v", err)
	}
	if filepath.Base(latest) != "d.yml" {
		t.Errorf("expected d.yml, got %s", latest)
	}

	if _, err := FindLatestPlan(t.TempDir()); err == nil {
		t.Error("expected error for a directory without plans")
	}
}

func TestDefaultQuality(t *testing.T) {
	tests := map[string]int{
		"libx264":           23,
		"h264_nvenc":        28,
		"h264_videotoolbox": 75,
	}
	for enc, want := range tests {
		if got := DefaultQuality(enc); got != want {
			t.Errorf("%s: expected %d, got %d", enc, want, got)
		}
	}
}

func TestCollectStats(t *testing.T) {
	s, err := CollectStats()
	if err != nil {
		t.Skipf("stats unavailable on this host: %v", err)
	}
	if s.RSSBytes == 0 {
		t.Error("expected non-zero RSS for the running process")
	}
	t.Logf("stats: %s", s)
}
