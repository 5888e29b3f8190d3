package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/Alashybay/ai-voice-agent-evaluator/internal/application"
	"github.com/Alashybay/ai-voice-agent-evaluator/internal/domain"
)

type stubTranscriber struct {
	text  string
	err   error
	calls int
}

func (s *stubTranscriber) Transcribe(_ context.Context, audio []byte) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

type stubAnalyzer struct {
	response    string
	err         error
	transcripts []string
}

func (s *stubAnalyzer) Analyze(_ context.Context, transcript string) (string, error) {
	s.transcripts = append(s.transcripts, transcript)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

type reaction struct {
	channel, timestamp, name string
}

type reply struct {
	channel, timestamp, text string
}

type stubChat struct {
	mu            sync.Mutex
	added         []reaction
	removed       []reaction
	replies       []reply
	failReactions map[string]error
	failReply     error
	history       []domain.Message
}

func (s *stubChat) AddReaction(_ context.Context, channel, timestamp, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failReactions[name]; ok {
		return err
	}
	s.added = append(s.added, reaction{channel, timestamp, name})
	return nil
}

func (s *stubChat) RemoveReaction(_ context.Context, channel, timestamp, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, reaction{channel, timestamp, name})
	return nil
}

func (s *stubChat) PostThreadReply(_ context.Context, channel, timestamp, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReply != nil {
		return s.failReply
	}
	s.replies = append(s.replies, reply{channel, timestamp, text})
	return nil
}

func (s *stubChat) RecentMessages(_ context.Context, channel string, limit int) ([]domain.Message, error) {
	return s.history, nil
}

func (s *stubChat) addedNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.added))
	for i, r := range s.added {
		names[i] = r.name
	}
	return names
}

type stubDownloader struct {
	data  []byte
	err   error
	dests []string
}

func (s *stubDownloader) Fetch(_ context.Context, url string, private bool, dest string) (int64, error) {
	s.dests = append(s.dests, dest)
	if s.err != nil {
		return 0, s.err
	}
	if err := os.WriteFile(dest, s.data, 0o644); err != nil {
		return 0, err
	}
	return int64(len(s.data)), nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func urlMessage() domain.Message {
	return domain.Message{
		Channel:   "C123",
		Timestamp: "1700000000.000100",
		User:      "U42",
		Text:      "fresh call <https://x.example/call123.wav|recording.wav>",
	}
}

// fixture wires a processor around stubs with a happy-path default.
type fixture struct {
	transcriber *stubTranscriber
	analyzer    *stubAnalyzer
	chat        *stubChat
	downloader  *stubDownloader
}

func newFixture() *fixture {
	return &fixture{
		transcriber: &stubTranscriber{text: "thank you for calling how can I help you today"},
		analyzer:    &stubAnalyzer{response: "💛 Agent was polite but repeated the greeting."},
		chat:        &stubChat{},
		downloader:  &stubDownloader{data: []byte("fake wav bytes")},
	}
}

func (f *fixture) processor(opts application.Options) *application.Processor {
	return application.NewProcessor(f.transcriber, f.analyzer, f.chat, f.downloader, opts, discard())
}

func (f *fixture) assertTempFilesGone(t *testing.T) {
	t.Helper()
	if len(f.downloader.dests) == 0 {
		t.Fatal("downloader was never asked for a destination")
	}
	for _, dest := range f.downloader.dests {
		if _, err := os.Stat(dest); !os.IsNotExist(err) {
			os.Remove(dest)
			t.Errorf("temp file %s still exists after run", dest)
		}
	}
}

func TestProcessor_FullRun(t *testing.T) {
	f := newFixture()
	p := f.processor(application.Options{})

	p.HandleMessage(context.Background(), urlMessage())

	names := f.chat.addedNames()
	if len(names) != 2 || names[0] != "hourglass_flowing_sand" || names[1] != "yellow_heart" {
		t.Errorf("reactions added: got %v, want marker then yellow_heart", names)
	}
	if len(f.chat.removed) != 1 || f.chat.removed[0].name != "hourglass_flowing_sand" {
		t.Errorf("marker not removed: %v", f.chat.removed)
	}

	if len(f.chat.replies) != 1 {
		t.Fatalf("replies: got %d, want 1", len(f.chat.replies))
	}
	r := f.chat.replies[0]
	if r.channel != "C123" || r.timestamp != "1700000000.000100" {
		t.Errorf("reply threading: %+v", r)
	}
	if !strings.Contains(r.text, "recording.wav") {
		t.Errorf("reply missing filename: %q", r.text)
	}
	if !strings.Contains(r.text, "thank you for calling") {
		t.Errorf("reply missing transcript excerpt: %q", r.text)
	}
	if !strings.Contains(r.text, "💛 Agent was polite but repeated the greeting.") {
		t.Errorf("reply missing analysis text: %q", r.text)
	}

	if len(f.analyzer.transcripts) != 1 || !strings.Contains(f.analyzer.transcripts[0], "thank you for calling") {
		t.Errorf("analyzer input: %v", f.analyzer.transcripts)
	}

	f.assertTempFilesGone(t)
}

func TestProcessor_ChannelFilter(t *testing.T) {
	f := newFixture()
	p := f.processor(application.Options{ChannelID: "COTHER"})

	p.HandleMessage(context.Background(), urlMessage())

	if len(f.chat.addedNames()) != 0 || len(f.chat.replies) != 0 || f.transcriber.calls != 0 {
		t.Error("message from other channel must be a silent no-op")
	}
}

func TestProcessor_NoReferencesIsNoop(t *testing.T) {
	f := newFixture()
	p := f.processor(application.Options{})

	p.HandleMessage(context.Background(), domain.Message{
		Channel:   "C123",
		Timestamp: "1.2",
		Text:      "just chatting, no audio here",
	})

	if len(f.chat.addedNames()) != 0 || len(f.downloader.dests) != 0 {
		t.Error("message without references must be a silent no-op")
	}
}

func TestProcessor_NoSpeech(t *testing.T) {
	f := newFixture()
	f.transcriber.text = ""
	p := f.processor(application.Options{})

	p.HandleMessage(context.Background(), urlMessage())

	names := f.chat.addedNames()
	if len(names) != 2 || names[1] != "x" {
		t.Errorf("expected marker then x reaction, got %v", names)
	}
	if len(f.analyzer.transcripts) != 0 {
		t.Error("analyzer must not run on empty transcript")
	}
	if len(f.chat.replies) != 1 || !strings.Contains(f.chat.replies[0].text, "Could not transcribe") {
		t.Errorf("expected no-speech notice, got %v", f.chat.replies)
	}
	if len(f.chat.removed) != 1 {
		t.Error("marker must be removed on the no-speech path")
	}
	f.assertTempFilesGone(t)
}

func TestProcessor_ShortTranscriptCountsAsNoSpeech(t *testing.T) {
	f := newFixture()
	f.transcriber.text = "uh huh" // below the usability threshold
	p := f.processor(application.Options{})

	p.HandleMessage(context.Background(), urlMessage())

	if len(f.analyzer.transcripts) != 0 {
		t.Error("analyzer must not run on an unusable transcript")
	}
	if len(f.chat.replies) != 1 || !strings.Contains(f.chat.replies[0].text, "Could not transcribe") {
		t.Errorf("expected no-speech notice, got %v", f.chat.replies)
	}
}

func TestProcessor_DownloadFailure(t *testing.T) {
	f := newFixture()
	f.downloader.err = errors.New("unexpected status 404 Not Found")
	p := f.processor(application.Options{})

	p.HandleMessage(context.Background(), urlMessage())

	if f.transcriber.calls != 0 {
		t.Error("transcriber must not run after a failed download")
	}
	if len(f.chat.replies) != 1 {
		t.Fatalf("replies: got %d, want 1 failure notice", len(f.chat.replies))
	}
	text := f.chat.replies[0].text
	if !strings.Contains(text, "recording.wav") || !strings.Contains(text, "404") {
		t.Errorf("failure notice should name the file and the cause: %q", text)
	}
	if len(f.chat.removed) != 1 {
		t.Error("marker must be removed after failure")
	}
	f.assertTempFilesGone(t)
}

func TestProcessor_TranscribeFailure(t *testing.T) {
	f := newFixture()
	f.transcriber.err = errors.New("recognizer unreachable")
	p := f.processor(application.Options{})

	p.HandleMessage(context.Background(), urlMessage())

	if len(f.analyzer.transcripts) != 0 {
		t.Error("analyzer must not run after a failed transcription")
	}
	if len(f.chat.replies) != 1 || !strings.Contains(f.chat.replies[0].text, "Error analyzing") {
		t.Errorf("expected failure notice, got %v", f.chat.replies)
	}
	f.assertTempFilesGone(t)
}

func TestProcessor_AnalyzeFailure(t *testing.T) {
	f := newFixture()
	f.analyzer.err = errors.New("model not loaded")
	p := f.processor(application.Options{})

	p.HandleMessage(context.Background(), urlMessage())

	if len(f.chat.replies) != 1 || !strings.Contains(f.chat.replies[0].text, "model not loaded") {
		t.Errorf("expected failure notice with cause, got %v", f.chat.replies)
	}
	if len(f.chat.removed) != 1 {
		t.Error("marker must be removed after analysis failure")
	}
	f.assertTempFilesGone(t)
}

func TestProcessor_ReactionFailureDoesNotStopOthers(t *testing.T) {
	f := newFixture()
	f.analyzer.response = "💚🔥 Perfect, genuinely ad-worthy."
	f.chat.failReactions = map[string]error{"green_heart": errors.New("rate limited")}
	p := f.processor(application.Options{})

	p.HandleMessage(context.Background(), urlMessage())

	names := f.chat.addedNames()
	found := false
	for _, n := range names {
		if n == "fire" {
			found = true
		}
	}
	if !found {
		t.Errorf("fire reaction should still be attempted after green_heart failed: %v", names)
	}
	if len(f.chat.replies) != 1 {
		t.Error("reply must still be posted after a reaction failure")
	}
}

func TestProcessor_IndeterminateGrade(t *testing.T) {
	f := newFixture()
	f.analyzer.response = "The agent handled the call adequately, no complaints."
	p := f.processor(application.Options{})

	p.HandleMessage(context.Background(), urlMessage())

	names := f.chat.addedNames()
	if len(names) != 1 || names[0] != "hourglass_flowing_sand" {
		t.Errorf("indeterminate grade must emit no grade reactions: %v", names)
	}
	if len(f.chat.replies) != 1 || !strings.Contains(f.chat.replies[0].text, "no complaints") {
		t.Errorf("reply with full analysis must still be posted: %v", f.chat.replies)
	}
}

func TestProcessor_AnalyzeOnlyMode(t *testing.T) {
	f := newFixture()
	p := f.processor(application.Options{AnalyzeOnly: true})

	p.HandleMessage(context.Background(), urlMessage())

	if f.transcriber.calls != 1 || len(f.analyzer.transcripts) != 1 {
		t.Error("analyze-only mode must still transcribe and analyze")
	}
	if len(f.chat.addedNames()) != 0 || len(f.chat.removed) != 0 || len(f.chat.replies) != 0 {
		t.Error("analyze-only mode must not touch the channel")
	}
	f.assertTempFilesGone(t)
}

func TestProcessor_TranscriptExcerptTruncated(t *testing.T) {
	f := newFixture()
	f.transcriber.text = strings.Repeat("blah ", 600) + "end marker"
	p := f.processor(application.Options{})

	p.HandleMessage(context.Background(), urlMessage())

	if len(f.chat.replies) != 1 {
		t.Fatal("expected one reply")
	}
	text := f.chat.replies[0].text
	if strings.Contains(text, "end marker") {
		t.Error("transcript should have been truncated before its tail")
	}
	if !strings.Contains(text, "...") {
		t.Error("truncated transcript should carry an ellipsis marker")
	}
}

func TestProcessor_ProcessLatest(t *testing.T) {
	f := newFixture()
	f.chat.history = []domain.Message{
		{Channel: "C123", Timestamp: "3.0", Text: "no audio here"},
		{Channel: "C123", Timestamp: "2.0", Text: "call at https://x.example/old.wav"},
		{Channel: "C123", Timestamp: "1.0", Text: "call at https://x.example/older.wav"},
	}
	p := f.processor(application.Options{})

	if err := p.ProcessLatest(context.Background(), "C123"); err != nil {
		t.Fatalf("ProcessLatest: %v", err)
	}

	if len(f.chat.replies) != 1 {
		t.Fatalf("replies: got %d, want 1 (only the newest matching message)", len(f.chat.replies))
	}
	if f.chat.replies[0].timestamp != "2.0" {
		t.Errorf("replayed wrong message: %+v", f.chat.replies[0])
	}
}

func TestProcessor_ProcessLatestNoMatch(t *testing.T) {
	f := newFixture()
	f.chat.history = []domain.Message{
		{Channel: "C123", Timestamp: "1.0", Text: "nothing to hear"},
	}
	p := f.processor(application.Options{})

	if err := p.ProcessLatest(context.Background(), "C123"); err != nil {
		t.Fatalf("ProcessLatest: %v", err)
	}
	if len(f.chat.replies) != 0 {
		t.Error("no matching history message must be a no-op")
	}
}
