package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pagevoice/pagevoice/internal/bus"
	"github.com/pagevoice/pagevoice/internal/cache"
	"github.com/pagevoice/pagevoice/internal/config"
	"github.com/pagevoice/pagevoice/internal/natsserver"
	"github.com/pagevoice/pagevoice/internal/pipeline"
	"github.com/pagevoice/pagevoice/internal/runtime"
	"github.com/pagevoice/pagevoice/internal/segmenter"
	"github.com/pagevoice/pagevoice/internal/synth"
	"github.com/pagevoice/pagevoice/internal/token"
	"github.com/pagevoice/pagevoice/internal/tts"
)

var version = "0.1.0-dev"

func main() {
	var (
		configPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	// A .env file is optional; environment overrides still apply without one.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.Telemetry.LogLevel)}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	model, err := buildSegmenterModel(cfg.Segmenter)
	if err != nil {
		logger.Error("failed to build segmenter model", slog.String("error", err.Error()))
		os.Exit(1)
	}
	gateway := segmenter.NewGateway(cfg.Segmenter, model, logger)

	pool := tts.NewPool(func(voice string) (tts.Synthesizer, error) {
		if cfg.TTS.Mode == "exec" {
			return tts.NewExecSynth(cfg.TTS.Command, cfg.TTS.SampleRate, cfg.TTS.Channels)
		}
		return tts.NewMockSynth(cfg.TTS.SampleRate), nil
	})

	tokens := token.NewAdapter(logger)
	engine := synth.NewEngine(cfg.Synthesis, tokens, pool, cfg.TTS.SampleRate, logger)

	store, err := cache.Open(ctx, cfg.Cache, logger)
	if err != nil {
		logger.Error("failed to open cache", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	var events *bus.Client
	if cfg.Bus.Enabled {
		embedded, err := natsserver.Start(cfg.Bus, logger)
		if err != nil {
			logger.Error("failed to start embedded NATS server", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer embedded.Shutdown()

		busCfg := cfg.Bus
		if embedded != nil {
			busCfg.Servers = []string{fmt.Sprintf("nats://127.0.0.1:%d", cfg.Bus.Port)}
		}
		events, err = bus.Connect(ctx, busCfg, logger)
		if err != nil {
			logger.Error("failed to connect to NATS", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer events.Close()
	}

	pipe := pipeline.New(gateway, engine, store, events, cfg.TTS.DefaultVoice, logger)
	rt := runtime.New(cfg, pipe, events, logger)

	if err := rt.Start(ctx); err != nil {
		logger.Error("runtime exited with error", slog.String("error", err.Error()))
		time.Sleep(1 * time.Second)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func buildSegmenterModel(cfg config.SegmenterConfig) (segmenter.Model, error) {
	switch cfg.Mode {
	case "openai":
		return segmenter.NewOpenAIModel(cfg)
	case "exec":
		return segmenter.NewExecModel(cfg.Command)
	default:
		return segmenter.NewMockModel(), nil
	}
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
