package media

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// PlexClient supplies continue-watching candidates from a household's Plex
// media server.
type PlexClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewPlexClient(baseURL, token string) *PlexClient {
	return &PlexClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type plexMetadataItem struct {
	Title          string `json:"title"`
	Year           int    `json:"year"`
	Duration       int    `json:"duration"` // milliseconds
	ViewOffset     int    `json:"viewOffset"`
	GUID           string `json:"guid"`
	TMDBID         int    `json:"-"`
}

type plexContainer struct {
	MediaContainer struct {
		Metadata []plexMetadataItem `json:"Metadata"`
	} `json:"MediaContainer"`
}

func (c *PlexClient) ContinueWatchingCandidates(ctx context.Context, uuid string) ([]Candidate, error) {
	url := fmt.Sprintf("%s/hubs/continueWatching?X-Plex-Token=%s", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("plex: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("plex: continue watching: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("plex: continue watching returned status %d", res.StatusCode)
	}

	var body plexContainer
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("plex: decode continue watching: %w", err)
	}

	out := make([]Candidate, 0, len(body.MediaContainer.Metadata))
	for _, m := range body.MediaContainer.Metadata {
		out = append(out, Candidate{
			TMDBID:     m.TMDBID,
			Title:      m.Title,
			Year:       m.Year,
			RuntimeMin: m.Duration / 60000,
			Source:     "continue_watching",
		})
	}
	return out, nil
}
