package openaiwhisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Alashybay/ai-voice-agent-evaluator/internal/infra"
)

// Recognizer turns short WAV chunks into text via the hosted Whisper API.
// It is the speech backend for the chunked transcription strategy.
type Recognizer struct {
	client   *openai.Client
	language string
}

func NewRecognizer(apiKey, language string) *Recognizer {
	return NewRecognizerWithURL(apiKey, language, "")
}

func NewRecognizerWithURL(apiKey, language, baseURL string) *Recognizer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Recognizer{
		client:   openai.NewClientWithConfig(cfg),
		language: language,
	}
}

// Recognize transcribes one chunk. A chunk the model hears nothing in
// comes back as "" with a nil error so the caller can skip it; only
// transport and API failures are errors.
func (r *Recognizer) Recognize(ctx context.Context, wav []byte) (string, error) {
	var text string

	retryErr := infra.WithRetry(ctx, infra.DefaultRetryConfig(), func() error {
		resp, err := r.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:    openai.Whisper1,
			FilePath: "chunk.wav",
			Reader:   bytes.NewReader(wav),
			Language: r.language,
		})
		if err != nil {
			var apiErr *openai.APIError
			if errors.As(err, &apiErr) && !infra.IsRetryableHTTPStatus(apiErr.HTTPStatusCode) {
				return infra.Permanent(fmt.Errorf("whisper API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message))
			}
			return fmt.Errorf("transcription request: %w", err)
		}
		text = resp.Text
		return nil
	})

	if retryErr != nil {
		return "", retryErr
	}

	return strings.TrimSpace(text), nil
}
