package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	StrategyChunked   = "chunked"
	StrategyWholeFile = "whole_file"
)

type Config struct {
	Slack       SlackConfig       `yaml:"slack"`
	Ollama      OllamaConfig      `yaml:"ollama"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
	AnalyzeOnly bool              `yaml:"analyze_only"`
	Log         LogConfig         `yaml:"log"`
}

type SlackConfig struct {
	BotToken string `yaml:"bot_token"`
	AppToken string `yaml:"app_token"`
	// ChannelID restricts the bot to one channel; empty listens
	// everywhere the bot is invited.
	ChannelID     string `yaml:"channel_id"`
	ReplayOnStart bool   `yaml:"replay_on_start"`
}

type OllamaConfig struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
}

type TranscriberConfig struct {
	// Strategy selects "chunked" (silence splitting plus a per-chunk
	// recognizer) or "whole_file" (one local whisper pass).
	Strategy string `yaml:"strategy"`

	// Whole-file strategy.
	WhisperModelPath string `yaml:"whisper_model_path"`
	Language         string `yaml:"language"`

	// Chunked strategy.
	OpenAIAPIKey    string  `yaml:"openai_api_key"`
	MinSilenceMs    int     `yaml:"min_silence_ms"`
	SilenceMarginDB float64 `yaml:"silence_margin_db"`
	PaddingMs       int     `yaml:"padding_ms"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File duplicates the log stream to an append-only local file.
	File string `yaml:"file"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Ollama.Host == "" {
		c.Ollama.Host = "http://localhost:11434"
	}
	if c.Ollama.Model == "" {
		c.Ollama.Model = "hf.co/bartowski/Llama-3.2-1B-Instruct-GGUF:Q8_0"
	}
	if c.Transcriber.Strategy == "" {
		c.Transcriber.Strategy = StrategyWholeFile
	}
	if c.Transcriber.Language == "" {
		c.Transcriber.Language = "en"
	}
	if c.Transcriber.MinSilenceMs == 0 {
		c.Transcriber.MinSilenceMs = 500
	}
	if c.Transcriber.SilenceMarginDB == 0 {
		c.Transcriber.SilenceMarginDB = 14
	}
	if c.Transcriber.PaddingMs == 0 {
		c.Transcriber.PaddingMs = 250
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	// A channel ID that doesn't look like one is treated as unset
	// rather than silently filtering out everything.
	if !strings.HasPrefix(c.Slack.ChannelID, "C") || len(c.Slack.ChannelID) <= 5 {
		c.Slack.ChannelID = ""
	}
}

func (c *Config) validate() error {
	if c.Slack.BotToken == "" {
		return fmt.Errorf("slack.bot_token is required")
	}
	if c.Slack.AppToken == "" {
		return fmt.Errorf("slack.app_token is required")
	}

	switch c.Transcriber.Strategy {
	case StrategyChunked:
		if c.Transcriber.OpenAIAPIKey == "" {
			return fmt.Errorf("transcriber.openai_api_key is required for the chunked strategy")
		}
	case StrategyWholeFile:
		if c.Transcriber.WhisperModelPath == "" {
			return fmt.Errorf("transcriber.whisper_model_path is required for the whole_file strategy")
		}
	default:
		return fmt.Errorf("unknown transcriber.strategy %q", c.Transcriber.Strategy)
	}

	return nil
}
