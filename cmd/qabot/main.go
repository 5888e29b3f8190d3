package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Alashybay/ai-voice-agent-evaluator/config"
	"github.com/Alashybay/ai-voice-agent-evaluator/internal/application"
	"github.com/Alashybay/ai-voice-agent-evaluator/internal/audio"
	"github.com/Alashybay/ai-voice-agent-evaluator/internal/infra/download"
	"github.com/Alashybay/ai-voice-agent-evaluator/internal/infra/ollama"
	"github.com/Alashybay/ai-voice-agent-evaluator/internal/infra/openaiwhisper"
	"github.com/Alashybay/ai-voice-agent-evaluator/internal/infra/slack"
	"github.com/Alashybay/ai-voice-agent-evaluator/internal/infra/whispercpp"
	"github.com/Alashybay/ai-voice-agent-evaluator/internal/transcribe"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Optional; config values reference env vars via ${...}.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger, closeLog, err := setupLogger(cfg.Log)
	if err != nil {
		slog.Error("setting up logger", "error", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	transcriber, closeTranscriber, err := createTranscriber(cfg.Transcriber, logger)
	if err != nil {
		logger.Error("creating transcriber", "error", err)
		os.Exit(1)
	}
	defer closeTranscriber()

	generator := ollama.NewClient(cfg.Ollama.Host, cfg.Ollama.Model)
	analyzer := application.NewQAAnalyzer(generator)

	slackClient := slack.NewClient(cfg.Slack.BotToken, cfg.Slack.AppToken)
	downloader := download.NewClient(cfg.Slack.BotToken)

	processor := application.NewProcessor(
		transcriber,
		analyzer,
		slackClient,
		downloader,
		application.Options{
			ChannelID:   cfg.Slack.ChannelID,
			AnalyzeOnly: cfg.AnalyzeOnly,
		},
		logger,
	)

	logger.Info("starting call QA bot",
		"model", cfg.Ollama.Model,
		"strategy", cfg.Transcriber.Strategy,
		"channel", orAll(cfg.Slack.ChannelID),
		"analyze_only", cfg.AnalyzeOnly,
	)

	if cfg.Slack.ReplayOnStart && cfg.Slack.ChannelID != "" {
		if err := processor.ProcessLatest(ctx, cfg.Slack.ChannelID); err != nil {
			logger.Error("startup replay", "error", err)
		}
	}

	listener := slack.NewSocketListener(slackClient, processor.HandleMessage, logger)

	logger.Info("live, waiting for recordings")
	if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("listener error", "error", err)
		os.Exit(1)
	}
}

func createTranscriber(cfg config.TranscriberConfig, logger *slog.Logger) (application.Transcriber, func(), error) {
	switch cfg.Strategy {
	case config.StrategyChunked:
		recognizer := openaiwhisper.NewRecognizer(cfg.OpenAIAPIKey, cfg.Language)
		splitCfg := audio.SplitConfig{
			MinSilence:      time.Duration(cfg.MinSilenceMs) * time.Millisecond,
			SilenceMarginDB: cfg.SilenceMarginDB,
			Padding:         time.Duration(cfg.PaddingMs) * time.Millisecond,
		}
		return transcribe.NewChunked(recognizer, splitCfg, logger), func() {}, nil

	default: // whole_file; config validation rejects anything else
		t, err := whispercpp.New(cfg.WhisperModelPath, cfg.Language, logger)
		if err != nil {
			return nil, nil, err
		}
		return t, func() { _ = t.Close() }, nil
	}
}

func setupLogger(cfg config.LogConfig) (*slog.Logger, func(), error) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	out := io.Writer(os.Stdout)
	closeLog := func() {}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		out = io.MultiWriter(os.Stdout, f)
		closeLog = func() { _ = f.Close() }
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler), closeLog, nil
}

func orAll(channel string) string {
	if channel == "" {
		return "ALL"
	}
	return channel
}
