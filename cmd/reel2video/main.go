package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ivlev/reel2video/internal/api"
	"github.com/ivlev/reel2video/internal/clock"
	"github.com/ivlev/reel2video/internal/config"
	"github.com/ivlev/reel2video/internal/engine"
	"github.com/ivlev/reel2video/internal/render"
	"github.com/ivlev/reel2video/internal/system"
	"github.com/ivlev/reel2video/internal/timeline"
	"github.com/ivlev/reel2video/internal/video"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code so deferred cleanup runs on every path
func run(args []string) int {
	// Создаем нужные директории, если их нет
	dirs := []string{"input/plans", "output"}
	for _, d := range dirs {
		os.MkdirAll(d, 0755)
	}

	fs := flag.NewFlagSet("reel2video", flag.ContinueOnError)
	configPtr := fs.String("config", "", "Путь к YAML-конфигу")
	envPtr := fs.String("env", ".env", "Файл с переменными окружения REEL_*")
	planPtr := fs.String("plan", "", "Путь к плану ролика (по умолчанию: самый свежий файл в input/plans/)")
	outputPtr := fs.String("output", "", "Путь к видео (если пусто, генерируется автоматически в output/)")
	servePtr := fs.Bool("serve", false, "Запустить HTTP API вместо разового экспорта")
	addrPtr := fs.String("addr", "", "Адрес HTTP API (по умолчанию :8080)")
	widthPtr := fs.Int("width", 0, "Ширина экспорта (по умолчанию 1080)")
	heightPtr := fs.Int("height", 0, "Высота экспорта (по умолчанию 1920)")
	fpsPtr := fs.Int("fps", 0, "FPS экспорта (по умолчанию 30)")
	encoderPtr := fs.String("encoder", "", "Энкодер: auto, libx264, h264_nvenc, h264_videotoolbox")
	qualityPtr := fs.Int("quality", 0, "Качество видео (0 - авто, x264: CRF 1-51, VideoToolbox: битрейт = Q*100кбит/с)")
	qrPtr := fs.String("qr", "", "Содержимое QR-кода на финальном бите (пусто - без QR)")
	dryRunPtr := fs.Bool("dry-run", false, "Прогон без ffmpeg: кадры считаются, видео не кодируется")
	statsPtr := fs.Bool("stats", false, "Показать отчет о производительности после экспорта")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPtr)
	if err != nil {
		log.Printf("[-] Ошибка конфигурации: %v", err)
		return 1
	}
	if err := cfg.ApplyEnv(*envPtr); err != nil {
		log.Printf("[-] Ошибка окружения: %v", err)
		return 1
	}
	cfg.BuildVersion = Version

	// Флаги перекрывают файл и окружение
	if *planPtr != "" {
		cfg.PlanPath = *planPtr
	}
	if *outputPtr != "" {
		cfg.OutputVideo = *outputPtr
	}
	if *addrPtr != "" {
		cfg.ListenAddr = *addrPtr
	}
	if *widthPtr > 0 {
		cfg.ExportWidth = *widthPtr
	}
	if *heightPtr > 0 {
		cfg.ExportHeight = *heightPtr
	}
	if *fpsPtr > 0 {
		cfg.FPS = *fpsPtr
	}
	if *encoderPtr != "" {
		cfg.VideoEncoder = *encoderPtr
	}
	if *qualityPtr > 0 {
		cfg.Quality = *qualityPtr
	}
	if *qrPtr != "" {
		cfg.QRContent = *qrPtr
	}
	if *statsPtr {
		cfg.ShowStats = true
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("[-] Ошибка конфигурации: %v", err)
		return 1
	}

	if cfg.PlanPath == "" {
		latest, err := system.FindLatestPlan("input/plans")
		if err != nil && !*servePtr {
			log.Printf("[-] Ошибка: %v. Положите план в input/plans/", err)
			return 1
		}
		cfg.PlanPath = latest
		if latest != "" {
			fmt.Printf("[*] Выбран план: %s\n", latest)
		}
	}

	encoder, err := newEncoder(cfg, *dryRunPtr)
	if err != nil {
		log.Printf("[-] %v", err)
		return 1
	}

	renderer, err := render.New(render.Options{QRContent: cfg.QRContent})
	if err != nil {
		log.Printf("[-] Ошибка инициализации рендера: %v", err)
		return 1
	}

	sys := clock.NewSystem(cfg.RefreshInterval())
	studio, err := engine.New(engine.Options{
		PreviewWidth:  cfg.PreviewWidth,
		PreviewHeight: cfg.PreviewHeight,
		ExportWidth:   cfg.ExportWidth,
		ExportHeight:  cfg.ExportHeight,
		FPS:           cfg.FPS,
		ShowStats:     cfg.ShowStats,
		Clock:         sys,
		Scheduler:     sys,
		Renderer:      renderer,
		Encoder:       encoder,
	})
	if err != nil {
		log.Printf("[-] Ошибка инициализации: %v", err)
		return 1
	}
	defer studio.Close()

	if cfg.PlanPath != "" {
		plan, err := timeline.ReadPlan(cfg.PlanPath)
		if err != nil {
			log.Printf("[-] Ошибка чтения плана: %v", err)
			return 1
		}
		if err := studio.LoadPlan(plan); err != nil {
			log.Printf("[-] Ошибка загрузки плана: %v", err)
			return 1
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *servePtr {
		if err := serve(ctx, cfg.ListenAddr, studio); err != nil {
			log.Printf("[-] Ошибка сервера: %v", err)
			return 1
		}
		return 0
	}

	if cfg.OutputVideo == "" {
		cfg.OutputVideo = outputName(cfg.PlanPath)
	}

	fmt.Printf("[*] Экспорт %dx%d @ %d fps (build %s)\n", cfg.ExportWidth, cfg.ExportHeight, cfg.FPS, cfg.BuildVersion)
	art, err := studio.RecordFullPlayback(ctx)
	if err != nil {
		log.Printf("[-] Ошибка экспорта: %v", err)
		return 1
	}

	if *dryRunPtr {
		fmt.Printf("[+++] Прогон завершен: %s\n", art.Data)
		return 0
	}
	if err := os.WriteFile(cfg.OutputVideo, art.Data, 0644); err != nil {
		log.Printf("[-] Ошибка записи видео: %v", err)
		return 1
	}
	fmt.Printf("[+++] Успех! Результат: %s (%d байт)\n", cfg.OutputVideo, len(art.Data))
	return 0
}

func newEncoder(cfg *config.Config, dryRun bool) (video.Encoder, error) {
	if dryRun {
		return &video.MemoryEncoder{}, nil
	}
	if err := system.CheckFFmpeg(cfg.FFmpegPath); err != nil {
		return nil, err
	}

	codec := cfg.VideoEncoder
	if codec == "" || codec == "auto" {
		codec = system.GetBestH264Encoder(cfg.FFmpegPath)
		if codec != "libx264" {
			fmt.Printf("[*] Обнаружено аппаратное ускорение: %s\n", codec)
		}
	}

	quality := cfg.Quality
	if quality == 0 {
		quality = system.DefaultQuality(codec)
	}

	return &video.FFmpegEncoder{Binary: cfg.FFmpegPath, Codec: codec, Quality: quality}, nil
}

func serve(ctx context.Context, addr string, studio *engine.Studio) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(studio),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("[*] HTTP API слушает %s\n", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		fmt.Println("[*] Остановка сервера...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		studio.Close()
		return srv.Shutdown(shutdownCtx)
	}
}

func outputName(planPath string) string {
	nameOnly := "reel"
	if planPath != "" {
		baseName := filepath.Base(planPath)
		nameOnly = strings.TrimSuffix(baseName, filepath.Ext(baseName))
	}
	cleanName := strings.ReplaceAll(nameOnly, " ", "_")
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join("output", fmt.Sprintf("%s_%s.mp4", cleanName, timestamp))
}
