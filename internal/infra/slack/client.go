package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Alashybay/ai-voice-agent-evaluator/internal/domain"
)

// Client is a minimal Slack Web API client covering what the QA pipeline
// needs: reactions, threaded replies, channel history, and opening a
// Socket Mode connection.
type Client struct {
	httpClient *http.Client
	baseURL    string
	botToken   string
	appToken   string
}

func NewClient(botToken, appToken string) *Client {
	return NewClientWithURL(botToken, appToken, "https://slack.com/api")
}

func NewClientWithURL(botToken, appToken, baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		botToken:   botToken,
		appToken:   appToken,
	}
}

// apiResponse is the envelope every Web API method answers with.
type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (c *Client) postJSON(ctx context.Context, token, method string, payload any, out any) error {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack %s: unexpected status %s", method, resp.Status)
	}

	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", method, err)
	}
	return nil
}

// AddReaction attaches an emoji to a message. already_reacted is treated
// as success so replays stay idempotent.
func (c *Client) AddReaction(ctx context.Context, channel, timestamp, name string) error {
	var result apiResponse
	err := c.postJSON(ctx, c.botToken, "reactions.add", map[string]string{
		"channel":   channel,
		"timestamp": timestamp,
		"name":      name,
	}, &result)
	if err != nil {
		return err
	}
	if !result.OK && result.Error != "already_reacted" {
		return fmt.Errorf("reactions.add: %s", result.Error)
	}
	return nil
}

// RemoveReaction removes an emoji from a message. no_reaction is treated
// as success.
func (c *Client) RemoveReaction(ctx context.Context, channel, timestamp, name string) error {
	var result apiResponse
	err := c.postJSON(ctx, c.botToken, "reactions.remove", map[string]string{
		"channel":   channel,
		"timestamp": timestamp,
		"name":      name,
	}, &result)
	if err != nil {
		return err
	}
	if !result.OK && result.Error != "no_reaction" {
		return fmt.Errorf("reactions.remove: %s", result.Error)
	}
	return nil
}

// PostThreadReply posts text as a reply in the parent message's thread.
func (c *Client) PostThreadReply(ctx context.Context, channel, parentTimestamp, text string) error {
	var result apiResponse
	err := c.postJSON(ctx, c.botToken, "chat.postMessage", map[string]string{
		"channel":   channel,
		"thread_ts": parentTimestamp,
		"text":      text,
	}, &result)
	if err != nil {
		return err
	}
	if !result.OK {
		return fmt.Errorf("chat.postMessage: %s", result.Error)
	}
	return nil
}

type historyResponse struct {
	apiResponse
	Messages []eventMessage `json:"messages"`
}

// RecentMessages fetches up to limit recent messages from a channel,
// newest first.
func (c *Client) RecentMessages(ctx context.Context, channel string, limit int) ([]domain.Message, error) {
	q := url.Values{}
	q.Set("channel", channel)
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/conversations.history?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.botToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("conversations.history: unexpected status %s", resp.Status)
	}

	var result historyResponse
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding history: %w", err)
	}
	if !result.OK {
		return nil, fmt.Errorf("conversations.history: %s", result.Error)
	}

	messages := make([]domain.Message, 0, len(result.Messages))
	for _, m := range result.Messages {
		messages = append(messages, m.toDomain(channel))
	}
	return messages, nil
}

type connectionsOpenResponse struct {
	apiResponse
	URL string `json:"url"`
}

// OpenSocketURL asks Slack for a fresh Socket Mode websocket URL. This
// uses the app-level token, not the bot token.
func (c *Client) OpenSocketURL(ctx context.Context) (string, error) {
	var result connectionsOpenResponse
	err := c.postJSON(ctx, c.appToken, "apps.connections.open", map[string]string{}, &result)
	if err != nil {
		return "", err
	}
	if !result.OK {
		return "", fmt.Errorf("apps.connections.open: %s", result.Error)
	}
	return result.URL, nil
}

// eventMessage is the wire shape of a message in both event payloads and
// history responses.
type eventMessage struct {
	Type    string      `json:"type"`
	Channel string      `json:"channel"`
	User    string      `json:"user"`
	Text    string      `json:"text"`
	TS      string      `json:"ts"`
	Files   []eventFile `json:"files"`
}

type eventFile struct {
	Name               string `json:"name"`
	MimeType           string `json:"mimetype"`
	URLPrivateDownload string `json:"url_private_download"`
	URLPrivate         string `json:"url_private"`
}

func (m eventMessage) toDomain(channel string) domain.Message {
	if m.Channel != "" {
		channel = m.Channel
	}
	msg := domain.Message{
		Channel:   channel,
		Timestamp: m.TS,
		User:      m.User,
		Text:      m.Text,
	}
	for _, f := range m.Files {
		downloadURL := f.URLPrivateDownload
		if downloadURL == "" {
			downloadURL = f.URLPrivate
		}
		msg.Files = append(msg.Files, domain.FileDescriptor{
			Name:        f.Name,
			MimeType:    f.MimeType,
			DownloadURL: downloadURL,
		})
	}
	return msg
}
