package domain

import (
	"path"
	"regexp"
	"strings"
)

// Message is the slice of an inbound chat event the pipeline cares about.
type Message struct {
	Channel   string
	Timestamp string
	User      string
	Text      string
	Files     []FileDescriptor
}

// FileDescriptor describes one attachment on a message.
type FileDescriptor struct {
	Name        string
	MimeType    string
	DownloadURL string
}

// AudioReference locates one WAV recording to process. Private references
// require bearer-token auth on download.
type AudioReference struct {
	Name    string
	URL     string
	Private bool
}

var (
	// Chat markup wraps links as <url|label> or <url>; prefer those.
	markupWAVPattern = regexp.MustCompile(`(?i)<(https?://[^|>]+\.wav)[|>]`)
	bareWAVPattern   = regexp.MustCompile(`(?i)https?://[^\s<>|]+\.wav`)
)

// ExtractWAVURLs pulls .wav URLs out of message text, trying the
// markup-wrapped form before falling back to bare URL matching.
func ExtractWAVURLs(text string) []string {
	var urls []string
	for _, m := range markupWAVPattern.FindAllStringSubmatch(text, -1) {
		urls = append(urls, m[1])
	}
	if len(urls) > 0 {
		return urls
	}
	return bareWAVPattern.FindAllString(text, -1)
}

// AudioReferences collects every WAV reference on a message: attached
// files first, then URLs embedded in the text.
func (m *Message) AudioReferences() []AudioReference {
	var refs []AudioReference
	for _, f := range m.Files {
		if !f.IsWAV() || f.DownloadURL == "" {
			continue
		}
		refs = append(refs, AudioReference{
			Name:    f.Name,
			URL:     f.DownloadURL,
			Private: true,
		})
	}
	for _, u := range ExtractWAVURLs(m.Text) {
		refs = append(refs, AudioReference{
			Name: path.Base(u),
			URL:  u,
		})
	}
	return refs
}

// IsWAV reports whether the attachment looks like a WAV recording by
// extension or declared MIME type.
func (f *FileDescriptor) IsWAV() bool {
	return strings.HasSuffix(strings.ToLower(f.Name), ".wav") ||
		f.MimeType == "audio/wav" ||
		f.MimeType == "audio/x-wav"
}
