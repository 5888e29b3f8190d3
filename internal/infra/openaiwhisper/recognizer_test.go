package openaiwhisper_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Alashybay/ai-voice-agent-evaluator/internal/infra/openaiwhisper"
)

func TestRecognizer_Recognize(t *testing.T) {
	var gotAuth, gotModel, gotLanguage string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parsing multipart form: %v", err)
		}
		gotModel = r.FormValue("model")
		gotLanguage = r.FormValue("language")
		json.NewEncoder(w).Encode(map[string]string{"text": "  thank you for calling  "})
	}))
	defer server.Close()

	rec := openaiwhisper.NewRecognizerWithURL("sk-test", "en", server.URL)

	text, err := rec.Recognize(context.Background(), []byte("RIFF....WAVE"))
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if text != "thank you for calling" {
		t.Errorf("text: got %q", text)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth header: got %q", gotAuth)
	}
	if gotModel != "whisper-1" {
		t.Errorf("model: got %q", gotModel)
	}
	if gotLanguage != "en" {
		t.Errorf("language: got %q", gotLanguage)
	}
}

func TestRecognizer_EmptyTranscription(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": ""})
	}))
	defer server.Close()

	rec := openaiwhisper.NewRecognizerWithURL("sk-test", "en", server.URL)

	text, err := rec.Recognize(context.Background(), []byte("RIFF....WAVE"))
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if text != "" {
		t.Errorf("expected empty transcript, got %q", text)
	}
}

func TestRecognizer_BadRequestIsNotRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "audio file is corrupted", "type": "invalid_request_error"},
		})
	}))
	defer server.Close()

	rec := openaiwhisper.NewRecognizerWithURL("sk-test", "en", server.URL)

	_, err := rec.Recognize(context.Background(), []byte("not a wav"))
	if err == nil {
		t.Fatal("expected error on 400")
	}
	if !strings.Contains(err.Error(), "audio file is corrupted") {
		t.Errorf("error should carry API message, got %v", err)
	}
	if calls != 1 {
		t.Errorf("bad request should not be retried, got %d calls", calls)
	}
}

func TestRecognizer_ServerErrorIsRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "overloaded", "type": "server_error"},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "recovered"})
	}))
	defer server.Close()

	rec := openaiwhisper.NewRecognizerWithURL("sk-test", "en", server.URL)

	text, err := rec.Recognize(context.Background(), []byte("RIFF....WAVE"))
	if err != nil {
		t.Fatalf("Recognize after retry: %v", err)
	}
	if text != "recovered" {
		t.Errorf("text: got %q", text)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}
