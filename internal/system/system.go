package system

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// CheckFFmpeg verifies that the ffmpeg binary can be found
func CheckFFmpeg(binary string) error {
	if binary == "" {
		binary = "ffmpeg"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return fmt.Errorf("ffmpeg не найден (%s): %w", binary, err)
	}
	return nil
}

// FindLatestPlan ищет самый свежий файл плана (.yaml, .yml, .json) в указанной директории
func FindLatestPlan(dir string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	extensions := []string{".yaml", ".yml", ".json"}
	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() {
			continue
		}
		isPlan := false
		for _, ext := range extensions {
			if strings.HasSuffix(strings.ToLower(f.Name()), ext) {
				isPlan = true
				break
			}
		}
		if isPlan {
			info, err := f.Info()
			if err != nil {
				continue
			}
			if info.ModTime().After(latestTime) {
				latestTime = info.ModTime()
				latestFile = filepath.Join(dir, f.Name())
			}
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("в папке %s не найдено файлов плана", dir)
	}

	return latestFile, nil
}

// GetBestH264Encoder picks a hardware H.264 encoder when ffmpeg reports one.
func GetBestH264Encoder(binary string) string {
	// Приоритеты:
	// 1. MacOS (VideoToolbox)
	// 2. NVIDIA (NVENC)
	// 3. Software (libx264)
	if binary == "" {
		binary = "ffmpeg"
	}

	out, err := exec.Command(binary, "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264"
	}

	for _, name := range []string{"h264_videotoolbox", "h264_nvenc"} {
		if strings.Contains(string(out), name) {
			return name
		}
	}

	return "libx264"
}

// DefaultQuality returns a sensible quality value for the given encoder
func DefaultQuality(encoder string) int {
	switch encoder {
	case "h264_videotoolbox":
		return 75 // битрейт = Q*100 кбит/с
	case "h264_nvenc":
		return 28 // эквивалент CRF для NVENC
	default:
		return 23 // стандартный CRF для x264
	}
}
