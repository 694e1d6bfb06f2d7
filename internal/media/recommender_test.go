package media

import (
	"context"
	"testing"
)

type fakeSource struct {
	trending  []Candidate
	continuing []Candidate
	recs      []Candidate
	history   []Candidate
	watched   map[int]bool
}

func (f fakeSource) TrendingCandidates(ctx context.Context) ([]Candidate, error) { return f.trending, nil }
func (f fakeSource) ContinueWatchingCandidates(ctx context.Context, uuid string) ([]Candidate, error) {
	return f.continuing, nil
}
func (f fakeSource) RecommendationsFor(ctx context.Context, seeds []int) ([]Candidate, error) {
	return f.recs, nil
}
func (f fakeSource) WatchHistory(ctx context.Context, uuid string) ([]Candidate, error) {
	return f.history, nil
}
func (f fakeSource) WatchedTMDBIDs(ctx context.Context, uuid string) (map[int]bool, error) {
	return f.watched, nil
}

func TestRecommendForUserFiltersWatchedAndMissingTMDBID(t *testing.T) {
	src := fakeSource{
		trending: []Candidate{
			{TMDBID: 1, Title: "Watched", Source: "trending"},
			{TMDBID: 0, Title: "NoID", Source: "trending"},
			{TMDBID: 2, Title: "Fresh", Source: "trending", Popularity: 5},
		},
		watched: map[int]bool{1: true},
	}
	r := NewRecommender(src, nil)

	recs, err := r.RecommendForUser(context.Background(), "uuid-1", 3)
	if err != nil {
		t.Fatalf("RecommendForUser() error = %v", err)
	}
	if len(recs) != 1 || recs[0].Candidate.Title != "Fresh" {
		t.Fatalf("RecommendForUser() = %+v, want only Fresh", recs)
	}
}

func TestRecommendForUserRanksContinueWatchingHigher(t *testing.T) {
	src := fakeSource{
		trending: []Candidate{{TMDBID: 1, Title: "Trend", Source: "trending", Popularity: 50}},
		continuing: []Candidate{{TMDBID: 2, Title: "Continue", Source: "continue_watching", Popularity: 50}},
	}
	r := NewRecommender(src, nil)

	recs, err := r.RecommendForUser(context.Background(), "uuid-2", 3)
	if err != nil {
		t.Fatalf("RecommendForUser() error = %v", err)
	}
	if len(recs) != 2 || recs[0].Candidate.Title != "Continue" {
		t.Fatalf("RecommendForUser() = %+v, want Continue ranked first", recs)
	}
}

func TestFormatSpokenScarletIsTerse(t *testing.T) {
	recs := []Recommendation{{Candidate: Candidate{Title: "A"}}, {Candidate: Candidate{Title: "B"}}}
	got := FormatSpoken(recs, true)
	if got != "Choose one." {
		t.Fatalf("FormatSpoken(scarlet) = %q, want terse prompt", got)
	}
}
