package media

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OverseerrClient requests a title on behalf of a household member once
// they've confirmed a recommendation they don't already have access to.
type OverseerrClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewOverseerrClient(baseURL, apiKey string) *OverseerrClient {
	return &OverseerrClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *OverseerrClient) RequestMedia(ctx context.Context, tmdbID int, mediaType string) error {
	payload, err := json.Marshal(map[string]any{"mediaId": tmdbID, "mediaType": mediaType})
	if err != nil {
		return fmt.Errorf("overseerr: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/request", strings.NewReader(string(payload)))
	if err != nil {
		return fmt.Errorf("overseerr: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("overseerr: request media: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("overseerr: request media returned status %d", res.StatusCode)
	}
	return nil
}
