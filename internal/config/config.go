package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	PreviewWidth  int    `yaml:"preview_width"`
	PreviewHeight int    `yaml:"preview_height"`
	ExportWidth   int    `yaml:"export_width"`
	ExportHeight  int    `yaml:"export_height"`
	FPS           int    `yaml:"fps"`
	RefreshHz     int    `yaml:"refresh_hz"`
	VideoEncoder  string `yaml:"video_encoder"`
	Quality       int    `yaml:"quality"`
	FFmpegPath    string `yaml:"ffmpeg_path"`
	QRContent     string `yaml:"qr_content"`
	ListenAddr    string `yaml:"listen_addr"`
	PlanPath      string `yaml:"plan"`
	OutputVideo   string `yaml:"output"`
	ShowStats     bool   `yaml:"show_stats"`
	BuildVersion  string `yaml:"-"`
}

// Default returns the settings used when nothing else is configured
func Default() *Config {
	return &Config{
		PreviewWidth:  360,
		PreviewHeight: 640,
		ExportWidth:   1080,
		ExportHeight:  1920,
		FPS:           30,
		RefreshHz:     60,
		VideoEncoder:  "auto",
		FFmpegPath:    "ffmpeg",
		ListenAddr:    ":8080",
	}
}

// Load reads a YAML file on top of the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv loads envFile (if it exists) into the process environment and then
// overrides fields from REEL_* variables.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("env file %s: %w", envFile, err)
		}
	}

	ints := map[string]*int{
		"REEL_PREVIEW_WIDTH":  &c.PreviewWidth,
		"REEL_PREVIEW_HEIGHT": &c.PreviewHeight,
		"REEL_EXPORT_WIDTH":   &c.ExportWidth,
		"REEL_EXPORT_HEIGHT":  &c.ExportHeight,
		"REEL_FPS":            &c.FPS,
		"REEL_REFRESH_HZ":     &c.RefreshHz,
		"REEL_QUALITY":        &c.Quality,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", key, v, err)
		}
		*dst = n
	}

	strs := map[string]*string{
		"REEL_VIDEO_ENCODER": &c.VideoEncoder,
		"REEL_FFMPEG_PATH":   &c.FFmpegPath,
		"REEL_QR_CONTENT":    &c.QRContent,
		"REEL_LISTEN_ADDR":   &c.ListenAddr,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("REEL_SHOW_STATS"); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("REEL_SHOW_STATS=%q: %w", v, err)
		}
		c.ShowStats = b
	}
	return nil
}

// Validate rejects geometry and rates the pipeline cannot work with.
func (c *Config) Validate() error {
	switch {
	case c.PreviewWidth <= 0 || c.PreviewHeight <= 0:
		return fmt.Errorf("invalid preview size %dx%d", c.PreviewWidth, c.PreviewHeight)
	case c.ExportWidth <= 0 || c.ExportHeight <= 0:
		return fmt.Errorf("invalid export size %dx%d", c.ExportWidth, c.ExportHeight)
	case c.ExportWidth%2 != 0 || c.ExportHeight%2 != 0:
		// yuv420p
		return fmt.Errorf("export size %dx%d must be even", c.ExportWidth, c.ExportHeight)
	case c.FPS <= 0 || c.RefreshHz <= 0:
		return fmt.Errorf("invalid fps %d / refresh %dHz", c.FPS, c.RefreshHz)
	}
	return nil
}

// RefreshInterval is the preview and capture tick period
func (c *Config) RefreshInterval() time.Duration {
	if c.RefreshHz <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.RefreshHz)
}
