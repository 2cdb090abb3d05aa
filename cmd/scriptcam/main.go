package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ivlev/scriptcam/internal/capture"
	"github.com/ivlev/scriptcam/internal/config"
	"github.com/ivlev/scriptcam/internal/crop"
	"github.com/ivlev/scriptcam/internal/layout"
	"github.com/ivlev/scriptcam/internal/library"
	"github.com/ivlev/scriptcam/internal/logger"
	"github.com/ivlev/scriptcam/internal/recorder"
	"github.com/ivlev/scriptcam/internal/scroll"
	"github.com/ivlev/scriptcam/internal/server"
	"github.com/ivlev/scriptcam/internal/system"
	"github.com/ivlev/scriptcam/internal/telemetry"
	"github.com/ivlev/scriptcam/internal/video"
)

func main() {
	if err := run(); err != nil {
		logger.Get().Fatal().Err(err).Msg("scriptcam failed")
	}
}

func run() error {
	configPtr := flag.String("config", "", "YAML config file (default: scriptcam.yaml if present)")
	outputPtr := flag.String("output", "", "Directory for finished videos")
	listenPtr := flag.String("listen", "", "Control API address, host:port")
	formatPtr := flag.String("input-format", "", "ffmpeg capture device: v4l2, avfoundation, dshow, lavfi")
	videoPtr := flag.String("input-video", "", "Camera device or lavfi source")
	audioPtr := flag.String("input-audio", "", "Microphone device (empty: no audio)")
	encoderPtr := flag.String("encoder", "", "H.264 encoder, or auto to detect hardware acceleration")
	qualityPtr := flag.Int("quality", -1, "Video quality (0 - auto, x264: CRF 1-51, VideoToolbox: bitrate = Q*100kbit/s)")
	keepPtr := flag.Bool("keep-original", false, "Keep the uncropped recording next to the cropped export")
	levelPtr := flag.String("log-level", "", "Log level: trace, debug, info, warn, error")
	listPtr := flag.Bool("list", false, "Print the library and exit")
	dumpPtr := flag.String("write-config", "", "Write the effective config to this path and exit")
	qrPtr := flag.Bool("qr", false, "Print a QR code of the overlay stream URL on startup")

	flag.Parse()

	cfg, err := config.Loader{}.Load(*configPtr)
	if err != nil {
		return err
	}
	setString(&cfg.OutputDir, *outputPtr)
	setString(&cfg.ListenAddr, *listenPtr)
	setString(&cfg.Input.Format, *formatPtr)
	setString(&cfg.Input.Video, *videoPtr)
	setString(&cfg.Input.Audio, *audioPtr)
	setString(&cfg.Encoder, *encoderPtr)
	setString(&cfg.LogLevel, *levelPtr)
	if *qualityPtr >= 0 {
		cfg.Quality = *qualityPtr
	}
	if *keepPtr {
		cfg.KeepOriginal = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Init(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "scriptcam"})
	log := logger.Named("main")

	if *dumpPtr != "" {
		return config.Write(*dumpPtr, cfg)
	}

	system.InitResourceLimits(log)

	lib, err := library.NewDir(cfg.OutputDir, logger.Named("library"))
	if err != nil {
		return err
	}
	if *listPtr {
		return printLibrary(lib)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	encoder := cfg.Encoder
	if encoder == config.DefaultEncoder {
		encoder = system.BestH264Encoder(ctx, cfg.FFmpeg)
		if encoder != "libx264" {
			log.Info().Str("encoder", encoder).Msg("hardware acceleration detected")
		}
	}
	displayRotation := system.FFmpegMajorVersion(ctx, cfg.FFmpeg) >= video.DisplayRotationSince

	quality := cfg.Quality
	if quality == 0 {
		quality = defaultQuality(encoder)
	}
	workers := cfg.Workers
	if workers == 0 {
		workers = system.ExportWorkers()
	}

	stats := telemetry.NewRecorder(logger.Named("telemetry"))
	defer stats.LogSummary()

	measurer, err := layout.New(cfg.FontSize, cfg.ViewWidth, cfg.SidePadding)
	if err != nil {
		return err
	}

	transformer := crop.NewTransformer(
		video.FFprobe{Bin: cfg.FFprobe},
		video.FFmpeg{Bin: cfg.FFmpeg},
		crop.Options{
			OutputDir:    cfg.OutputDir,
			Encoder:      encoder,
			Quality:      quality,
			MinFreeBytes: cfg.MinFreeBytes,
			Workers:      workers,

			DisplayRotation: displayRotation,
		},
		crop.WithTelemetry(stats),
		crop.WithLogger(logger.Named("crop")),
	)

	device := capture.NewFFmpegDevice(cfg.FFmpeg, cfg.Input, encoder, quality, logger.Named("device"))
	device.DisplayRotation = displayRotation
	attitude := capture.NewManualAttitude(capture.Portrait)
	session := capture.NewSession(device, device, attitude,
		capture.Options{Dir: cfg.OutputDir, KeepOriginal: cfg.KeepOriginal},
		capture.WithCropper(transformer),
		capture.WithTelemetry(stats),
		capture.WithLogger(logger.Named("capture")),
	)
	defer session.Close()

	if err := session.Configure(ctx); err != nil {
		// The API still serves status and the library; recording reports not ready.
		log.Error().Err(err).Msg("capture session not configured")
	}

	engine := scroll.NewEngine(
		scroll.WithTickInterval(cfg.TickInterval),
		scroll.WithGrace(cfg.Grace),
		scroll.WithLogger(logger.Named("scroll")),
	)
	defer engine.Stop()

	coord := recorder.New(session, engine, lib, measurer,
		recorder.Options{TopPadding: cfg.TopPadding}, logger.Named("recorder"))

	srv := server.New(cfg.ListenAddr, server.Deps{
		Recorder:   coord,
		Positions:  engine,
		Library:    lib,
		Attitude:   attitude,
		Session:    session,
		ScriptsDir: cfg.ScriptsDir,
	}, logger.Named("http"))

	if *qrPtr {
		if err := printQR(cfg.ListenAddr); err != nil {
			log.Warn().Err(err).Msg("overlay QR code not printed")
		}
	}

	err = srv.Run(ctx)

	coord.Stop(context.Background())
	waitCtx, cancel := context.WithTimeout(context.Background(), capture.FinalizeTimeout+time.Minute)
	defer cancel()
	if werr := coord.Wait(waitCtx); werr != nil {
		log.Warn().Err(werr).Msg("shutdown before last recording was delivered")
	}
	return err
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func defaultQuality(encoder string) int {
	switch encoder {
	case "h264_videotoolbox":
		return 75
	case "h264_nvenc":
		return 28
	default:
		return 23
	}
}

func printLibrary(lib *library.Dir) error {
	entries, err := lib.List()
	if err != nil {
		return err
	}
	for _, e := range entries {
		title := e.Title
		if title == "" {
			title = "-"
		}
		kind := "original"
		if e.Cropped {
			kind = "cropped"
		}
		fmt.Printf("%s  %-8s %6.1f MiB  %s  %s\n",
			e.Modified.Format("2006-01-02 15:04:05"), kind, float64(e.Size)/(1<<20), title, e.Path)
	}
	return nil
}

func printQR(addr string) error {
	link, err := server.Link(addr, server.LinkStream)
	if err != nil {
		return err
	}
	text, err := server.QRText(link)
	if err != nil {
		return err
	}
	fmt.Fprint(os.Stderr, text)
	fmt.Fprintln(os.Stderr, link)
	return nil
}
