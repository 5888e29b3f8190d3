package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/Alashybay/ai-voice-agent-evaluator/internal/domain"
)

const (
	// markerReaction is added while a recording is being processed and
	// removed on every exit path.
	markerReaction = "hourglass_flowing_sand"

	// minUsableTranscript is the minimum transcript length that counts
	// as usable speech downstream.
	minUsableTranscript = 10

	// transcriptExcerptLimit bounds the transcript portion of a reply.
	transcriptExcerptLimit = 1500

	// replayHistoryLimit is how far back the startup replay looks for a
	// matching message.
	replayHistoryLimit = 20
)

// Options tunes processor behavior.
type Options struct {
	// ChannelID restricts processing to one channel; empty means all.
	ChannelID string
	// AnalyzeOnly logs transcripts and grades without posting any
	// reaction or reply.
	AnalyzeOnly bool
}

// Processor runs the per-message QA pipeline: discover audio references,
// download, transcribe, analyze, extract grades, and emit reactions and
// a threaded reply. Each reference is one independent run owning its own
// temp file, so concurrent event deliveries are safe without locking.
type Processor struct {
	transcriber Transcriber
	analyzer    Analyzer
	chat        ChatClient
	downloader  Downloader
	opts        Options
	logger      *slog.Logger
}

func NewProcessor(
	transcriber Transcriber,
	analyzer Analyzer,
	chat ChatClient,
	downloader Downloader,
	opts Options,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		transcriber: transcriber,
		analyzer:    analyzer,
		chat:        chat,
		downloader:  downloader,
		opts:        opts,
		logger:      logger,
	}
}

// HandleMessage filters one inbound message and processes every audio
// reference on it. It never returns an error: per-run failures are
// logged and reported in-channel so the listener stays alive.
func (p *Processor) HandleMessage(ctx context.Context, msg domain.Message) {
	if p.opts.ChannelID != "" && msg.Channel != p.opts.ChannelID {
		return
	}

	refs := msg.AudioReferences()
	if len(refs) == 0 {
		return
	}

	p.logger.Info("processing message",
		"channel", msg.Channel,
		"ts", msg.Timestamp,
		"user", msg.User,
		"references", len(refs),
	)

	for _, ref := range refs {
		p.processReference(ctx, msg, ref)
	}
}

// ProcessLatest replays the most recent channel message carrying an
// audio reference through the same pipeline. Used once at startup.
func (p *Processor) ProcessLatest(ctx context.Context, channel string) error {
	messages, err := p.chat.RecentMessages(ctx, channel, replayHistoryLimit)
	if err != nil {
		return fmt.Errorf("fetching history: %w", err)
	}

	for _, msg := range messages {
		if len(msg.AudioReferences()) == 0 {
			continue
		}
		p.logger.Info("replaying latest matching message", "ts", msg.Timestamp, "user", msg.User)
		p.HandleMessage(ctx, msg)
		return nil
	}

	p.logger.Info("no recent message with audio references", "channel", channel)
	return nil
}

// processReference is one ProcessingRun. The temp file and the
// in-progress marker are released on every exit path.
func (p *Processor) processReference(ctx context.Context, msg domain.Message, ref domain.AudioReference) {
	logger := p.logger.With("run_id", uuid.NewString(), "file", ref.Name)
	logger.Info("run started", "url", ref.URL)

	p.addMarker(ctx, msg, logger)

	tmp, err := os.CreateTemp("", "qa-*.wav")
	if err != nil {
		logger.Error("creating temp file", "error", err)
		p.removeMarker(ctx, msg, logger)
		p.replyFailure(ctx, msg, ref, err, logger)
		return
	}
	tmpPath := tmp.Name()
	tmp.Close()

	defer func() {
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			logger.Warn("removing temp file", "error", err)
		}
		p.removeMarker(ctx, msg, logger)
	}()

	size, err := p.downloader.Fetch(ctx, ref.URL, ref.Private, tmpPath)
	if err != nil {
		logger.Error("download failed", "error", err)
		p.replyFailure(ctx, msg, ref, err, logger)
		return
	}
	logger.Info("downloaded audio", "bytes", size)

	audioData, err := os.ReadFile(tmpPath)
	if err != nil {
		logger.Error("reading downloaded audio", "error", err)
		p.replyFailure(ctx, msg, ref, err, logger)
		return
	}

	transcript, err := p.transcriber.Transcribe(ctx, audioData)
	if err != nil {
		logger.Error("transcription failed", "error", err)
		p.replyFailure(ctx, msg, ref, err, logger)
		return
	}

	transcript = strings.TrimSpace(transcript)
	if len(transcript) < minUsableTranscript {
		// Not an error: the recording just had no usable speech.
		logger.Warn("no usable speech detected", "transcript", transcript)
		p.emitNoSpeech(ctx, msg, ref, logger)
		return
	}
	logger.Info("transcribed", "chars", len(transcript), "excerpt", excerpt(transcript, 600))

	analysis, err := p.analyzer.Analyze(ctx, transcript)
	if err != nil {
		logger.Error("analysis failed", "error", err)
		p.replyFailure(ctx, msg, ref, err, logger)
		return
	}

	grades := domain.ExtractGrades(analysis)
	logger.Info("analysis complete", "grade", gradeString(grades))
	logger.Info("assessment", "text", analysis)

	if p.opts.AnalyzeOnly {
		return
	}

	// A failed reaction for one label must not prevent the rest; an
	// indeterminate grade simply emits no reactions.
	for _, grade := range grades {
		if err := p.chat.AddReaction(ctx, msg.Channel, msg.Timestamp, string(grade)); err != nil {
			logger.Warn("reaction failed", "reaction", grade, "error", err)
		}
	}

	reply := composeReply(ref.Name, transcript, analysis)
	if err := p.chat.PostThreadReply(ctx, msg.Channel, msg.Timestamp, reply); err != nil {
		logger.Error("posting reply", "error", err)
	}

	logger.Info("run finished")
}

func (p *Processor) addMarker(ctx context.Context, msg domain.Message, logger *slog.Logger) {
	if p.opts.AnalyzeOnly {
		return
	}
	if err := p.chat.AddReaction(ctx, msg.Channel, msg.Timestamp, markerReaction); err != nil {
		logger.Warn("adding in-progress marker", "error", err)
	}
}

func (p *Processor) removeMarker(ctx context.Context, msg domain.Message, logger *slog.Logger) {
	if p.opts.AnalyzeOnly {
		return
	}
	if err := p.chat.RemoveReaction(ctx, msg.Channel, msg.Timestamp, markerReaction); err != nil {
		logger.Warn("removing in-progress marker", "error", err)
	}
}

func (p *Processor) emitNoSpeech(ctx context.Context, msg domain.Message, ref domain.AudioReference, logger *slog.Logger) {
	if p.opts.AnalyzeOnly {
		return
	}
	if err := p.chat.AddReaction(ctx, msg.Channel, msg.Timestamp, string(domain.GradeUnintelligible)); err != nil {
		logger.Warn("no-speech reaction failed", "error", err)
	}
	text := fmt.Sprintf("⚠️ Could not transcribe any speech from `%s`.", ref.Name)
	if err := p.chat.PostThreadReply(ctx, msg.Channel, msg.Timestamp, text); err != nil {
		logger.Error("posting no-speech notice", "error", err)
	}
}

func (p *Processor) replyFailure(ctx context.Context, msg domain.Message, ref domain.AudioReference, cause error, logger *slog.Logger) {
	if p.opts.AnalyzeOnly {
		return
	}
	text := fmt.Sprintf("❌ Error analyzing `%s`: %s", ref.Name, cause)
	if err := p.chat.PostThreadReply(ctx, msg.Channel, msg.Timestamp, text); err != nil {
		logger.Error("posting failure notice", "error", err)
	}
}

func composeReply(filename, transcript, analysis string) string {
	return fmt.Sprintf(
		"*QA Analysis for* `%s`\n\n*Transcript:*\n>>> %s\n\n*Assessment:*\n%s",
		filename,
		excerpt(transcript, transcriptExcerptLimit),
		analysis,
	)
}

// excerpt truncates s to at most limit characters, appending an ellipsis
// marker when something was cut.
func excerpt(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func gradeString(grades []domain.Grade) string {
	if len(grades) == 0 {
		return "???"
	}
	parts := make([]string, len(grades))
	for i, g := range grades {
		parts[i] = ":" + string(g) + ":"
	}
	return strings.Join(parts, " ")
}
