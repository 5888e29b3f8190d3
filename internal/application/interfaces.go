package application

import (
	"context"

	"github.com/Alashybay/ai-voice-agent-evaluator/internal/domain"
)

// Transcriber converts a WAV-encoded audio buffer into plain text. An
// empty string means no speech was recognized; that is success, not an
// error. Both the silence-chunked and whole-file strategies implement
// this.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Analyzer grades a transcript and returns the model's raw verdict text.
type Analyzer interface {
	Analyze(ctx context.Context, transcript string) (string, error)
}

// ChatClient is the slice of the chat platform the pipeline needs.
// Reactions are best-effort from the caller's point of view; replies
// matter more.
type ChatClient interface {
	AddReaction(ctx context.Context, channel, timestamp, name string) error
	RemoveReaction(ctx context.Context, channel, timestamp, name string) error
	PostThreadReply(ctx context.Context, channel, parentTimestamp, text string) error
	RecentMessages(ctx context.Context, channel string, limit int) ([]domain.Message, error)
}

// Downloader fetches a referenced audio file into a local path.
type Downloader interface {
	Fetch(ctx context.Context, url string, private bool, dest string) (int64, error)
}
