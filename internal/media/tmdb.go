package media

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/halcyonhq/halcyon/internal/reliability"
)

// TMDBClient is a thin wrapper over the subset of the TMDB v3 API the
// recommender needs: trending items and seeded recommendations.
type TMDBClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewTMDBClient(baseURL, apiKey string) *TMDBClient {
	return &TMDBClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type tmdbResult struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Name        string   `json:"name"`
	GenreIDs    []int    `json:"genre_ids"`
	Popularity  float64  `json:"popularity"`
	Adult       bool     `json:"adult"`
	ReleaseDate string   `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
}

type tmdbResponse struct {
	Results []tmdbResult `json:"results"`
}

func (c *TMDBClient) get(ctx context.Context, path string, query url.Values) ([]Candidate, error) {
	if query == nil {
		query = url.Values{}
	}
	if c.apiKey != "" {
		query.Set("api_key", c.apiKey)
	}
	full := fmt.Sprintf("%s%s?%s", c.baseURL, path, query.Encode())

	var body tmdbResponse
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
		if err != nil {
			return nil, fmt.Errorf("tmdb: build request: %w", err)
		}
		res, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("tmdb: request %s: %w", path, err)
		}

		if res.StatusCode < 200 || res.StatusCode >= 300 {
			res.Body.Close()
			if attempt == 0 && reliability.IsRetryableHTTPStatus(res.StatusCode) {
				time.Sleep(reliability.ExponentialBackoff(attempt, 200*time.Millisecond, 2*time.Second))
				continue
			}
			return nil, fmt.Errorf("tmdb: %s returned status %d", path, res.StatusCode)
		}

		err = json.NewDecoder(res.Body).Decode(&body)
		res.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("tmdb: decode %s: %w", path, err)
		}
		break
	}

	candidates := make([]Candidate, 0, len(body.Results))
	for _, r := range body.Results {
		candidates = append(candidates, toCandidate(r))
	}
	return candidates, nil
}

func toCandidate(r tmdbResult) Candidate {
	title := r.Title
	if title == "" {
		title = r.Name
	}
	date := r.ReleaseDate
	if date == "" {
		date = r.FirstAirDate
	}
	year := 0
	if len(date) >= 4 {
		fmt.Sscanf(date[:4], "%d", &year)
	}
	return Candidate{
		TMDBID:     r.ID,
		Title:      title,
		Popularity: r.Popularity,
		Adult:      r.Adult,
		Year:       year,
		Source:     "trending",
	}
}

func (c *TMDBClient) TrendingCandidates(ctx context.Context) ([]Candidate, error) {
	movies, err := c.get(ctx, "/trending/movie/week", nil)
	if err != nil {
		return nil, err
	}
	tv, err := c.get(ctx, "/trending/tv/week", nil)
	if err != nil {
		return nil, err
	}
	return append(movies, tv...), nil
}

func (c *TMDBClient) RecommendationsFor(ctx context.Context, seedTMDBIDs []int) ([]Candidate, error) {
	out := make([]Candidate, 0, len(seedTMDBIDs)*4)
	for _, id := range seedTMDBIDs {
		recs, err := c.get(ctx, fmt.Sprintf("/movie/%d/recommendations", id), nil)
		if err != nil {
			continue
		}
		for i := range recs {
			recs[i].Source = "recommendations"
		}
		out = append(out, recs...)
	}
	return out, nil
}
