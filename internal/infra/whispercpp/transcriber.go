package whispercpp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/Alashybay/ai-voice-agent-evaluator/internal/audio"
)

// modelSampleRate is the only input rate ggml whisper accepts.
const modelSampleRate = 16000

// Transcriber runs a local whisper.cpp model over the whole recording in
// one pass. The model is loaded once at startup; silence handling is
// internal to the model.
type Transcriber struct {
	model    whisper.Model
	language string
	logger   *slog.Logger

	// ggml whisper contexts are not safe for concurrent Process calls on
	// the same backend state; concurrent runs serialize here.
	mu sync.Mutex
}

// New loads the model at modelPath. Call Close when done.
func New(modelPath, language string, logger *slog.Logger) (*Transcriber, error) {
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("loading whisper model %s: %w", modelPath, err)
	}
	if language == "" {
		language = "en"
	}

	logger.Info("whisper model loaded", "path", modelPath, "language", language)

	return &Transcriber{
		model:    model,
		language: language,
		logger:   logger,
	}, nil
}

// Transcribe decodes the WAV buffer, resamples to the model's rate, and
// runs one inference over the full recording. A recording the model hears
// nothing in returns "" without error.
func (t *Transcriber) Transcribe(ctx context.Context, wavData []byte) (string, error) {
	clip, err := audio.DecodeWAV(wavData)
	if err != nil {
		return "", fmt.Errorf("decoding wav: %w", err)
	}
	if len(clip.Samples) == 0 {
		return "", nil
	}

	samples := clip.Resample(modelSampleRate).Float32Samples()

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	wctx, err := t.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("creating whisper context: %w", err)
	}

	if err := wctx.SetLanguage(t.language); err != nil {
		return "", fmt.Errorf("setting language %q: %w", t.language, err)
	}
	wctx.SetTranslate(false)

	var result strings.Builder
	segmentCallback := func(segment whisper.Segment) {
		result.WriteString(segment.Text)
	}

	if err := wctx.Process(samples, nil, segmentCallback, nil); err != nil {
		return "", fmt.Errorf("whisper process: %w", err)
	}

	text := strings.TrimSpace(result.String())
	if text == "[BLANK_AUDIO]" || text == "BLANK_AUDIO" {
		return "", nil
	}
	return text, nil
}

// Close releases the loaded model.
func (t *Transcriber) Close() error {
	return t.model.Close()
}
