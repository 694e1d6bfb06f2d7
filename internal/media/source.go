package media

import (
	"context"
	"encoding/json"

	"github.com/halcyonhq/halcyon/internal/kvstore"
)

// AggregateSource implements SourceProvider by combining TMDB trending and
// recommendations, Plex continue-watching, and a per-user watch-history
// record kept in the shared kvstore.
type AggregateSource struct {
	tmdb *TMDBClient
	plex *PlexClient
	kv   kvstore.Store
}

func NewAggregateSource(tmdb *TMDBClient, plex *PlexClient, kv kvstore.Store) *AggregateSource {
	return &AggregateSource{tmdb: tmdb, plex: plex, kv: kv}
}

func historyKey(uuid string) string { return "halcyon:media:history:" + uuid }

func (s *AggregateSource) TrendingCandidates(ctx context.Context) ([]Candidate, error) {
	return s.tmdb.TrendingCandidates(ctx)
}

func (s *AggregateSource) ContinueWatchingCandidates(ctx context.Context, uuid string) ([]Candidate, error) {
	if s.plex == nil {
		return nil, nil
	}
	return s.plex.ContinueWatchingCandidates(ctx, uuid)
}

func (s *AggregateSource) RecommendationsFor(ctx context.Context, seedTMDBIDs []int) ([]Candidate, error) {
	return s.tmdb.RecommendationsFor(ctx, seedTMDBIDs)
}

func (s *AggregateSource) WatchHistory(ctx context.Context, uuid string) ([]Candidate, error) {
	raw, ok, err := s.kv.Get(ctx, historyKey(uuid))
	if err != nil || !ok {
		return nil, err
	}
	var history []Candidate
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		return nil, nil
	}
	return history, nil
}

func (s *AggregateSource) WatchedTMDBIDs(ctx context.Context, uuid string) (map[int]bool, error) {
	history, err := s.WatchHistory(ctx, uuid)
	if err != nil {
		return nil, err
	}
	watched := make(map[int]bool, len(history))
	for _, c := range history {
		watched[c.TMDBID] = true
	}
	return watched, nil
}

// RecordWatched prepends c to uuid's watch history, so the history stays
// newest first.
func (s *AggregateSource) RecordWatched(ctx context.Context, uuid string, c Candidate) error {
	history, err := s.WatchHistory(ctx, uuid)
	if err != nil {
		return err
	}
	history = append([]Candidate{c}, history...)
	body, err := json.Marshal(history)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, historyKey(uuid), string(body), 0)
}
