package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Alashybay/ai-voice-agent-evaluator/internal/audio"
)

// Recognizer converts one WAV-encoded speech chunk to text. A chunk with
// no recognizable speech returns "" and a nil error; errors are reserved
// for transport or backend failures.
type Recognizer interface {
	Recognize(ctx context.Context, wav []byte) (string, error)
}

// Chunked transcribes a recording by splitting it on silence and sending
// each speech chunk to the recognizer independently. Splitting bounds the
// recognizer's input size and lets a noise-only segment fail without
// discarding the rest of the recording.
type Chunked struct {
	recognizer Recognizer
	cfg        audio.SplitConfig
	logger     *slog.Logger
}

func NewChunked(recognizer Recognizer, cfg audio.SplitConfig, logger *slog.Logger) *Chunked {
	return &Chunked{
		recognizer: recognizer,
		cfg:        cfg,
		logger:     logger,
	}
}

// Transcribe decodes the WAV buffer, splits it on silence, and joins the
// recognized chunk texts with single spaces in chunk order. A recording
// where nothing is recognized returns "" without error.
func (c *Chunked) Transcribe(ctx context.Context, wavData []byte) (string, error) {
	clip, err := audio.DecodeWAV(wavData)
	if err != nil {
		return "", fmt.Errorf("decoding wav: %w", err)
	}

	chunks := clip.SplitOnSilence(c.cfg)
	c.logger.Info("split audio on silence",
		"duration", clip.Duration(),
		"chunks", len(chunks),
	)

	var parts []string
	for i, chunk := range chunks {
		encoded, err := chunk.EncodeWAV()
		if err != nil {
			return "", fmt.Errorf("encoding chunk %d: %w", i+1, err)
		}

		text, err := c.recognizer.Recognize(ctx, encoded)
		if err != nil {
			return "", fmt.Errorf("recognizing chunk %d/%d: %w", i+1, len(chunks), err)
		}

		text = strings.TrimSpace(text)
		if text == "" {
			c.logger.Debug("chunk unintelligible, skipped",
				"chunk", i+1, "of", len(chunks))
			continue
		}

		c.logger.Debug("chunk recognized", "chunk", i+1, "chars", len(text))
		parts = append(parts, text)
	}

	return strings.Join(parts, " "), nil
}
