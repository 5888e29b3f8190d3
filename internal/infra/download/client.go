package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Client fetches audio files over HTTP. Private platform files need the
// bot's bearer token; public URLs are fetched without auth.
type Client struct {
	httpClient *http.Client
	botToken   string
}

func NewClient(botToken string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		botToken:   botToken,
	}
}

// Fetch downloads url into dest, overwriting it. A non-2xx status is a
// hard failure. Returns the number of bytes written.
func (c *Client) Fetch(ctx context.Context, url string, private bool, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	if private {
		req.Header.Set("Authorization", "Bearer "+c.botToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("fetching %s: unexpected status %s", url, resp.Status)
	}

	f, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", dest, err)
	}
	defer f.Close()

	n, err := io.Copy(f, resp.Body)
	if err != nil {
		return n, fmt.Errorf("writing %s: %w", dest, err)
	}
	return n, nil
}
