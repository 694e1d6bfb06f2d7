package media

import (
	"context"
	"sort"

	"github.com/halcyonhq/halcyon/internal/telemetry"
)

// SourceProvider supplies one of the three recommendation candidate
// sources: TMDB trending, Plex continue-watching, or TMDB recommendations
// seeded by watch history.
type SourceProvider interface {
	TrendingCandidates(ctx context.Context) ([]Candidate, error)
	ContinueWatchingCandidates(ctx context.Context, uuid string) ([]Candidate, error)
	RecommendationsFor(ctx context.Context, seedTMDBIDs []int) ([]Candidate, error)
	WatchHistory(ctx context.Context, uuid string) ([]Candidate, error)
	WatchedTMDBIDs(ctx context.Context, uuid string) (map[int]bool, error)
}

// Recommender blends the three candidate sources into a single ranked
// recommendation set.
type Recommender struct {
	source SourceProvider
	bus    *telemetry.Bus
}

func NewRecommender(source SourceProvider, bus *telemetry.Bus) *Recommender {
	return &Recommender{source: source, bus: bus}
}

// Recommendation is one scored, ranked candidate returned to the user.
type Recommendation struct {
	Candidate Candidate
	Score     float64
}

// RecommendForUser returns up to k ranked candidates for uuid, blending
// trending, continue-watching, and personalized-history sources, filtering
// out anything already watched or missing a TMDB identity.
func (r *Recommender) RecommendForUser(ctx context.Context, uuid string, k int) ([]Recommendation, error) {
	if k <= 0 {
		k = 3
	}

	history, err := r.source.WatchHistory(ctx, uuid)
	if err != nil {
		return nil, err
	}
	profile := BuildProfile(history)

	seeds := topSeeds(history, 10)

	trending, err := r.source.TrendingCandidates(ctx)
	if err != nil {
		return nil, err
	}
	continuing, err := r.source.ContinueWatchingCandidates(ctx, uuid)
	if err != nil {
		return nil, err
	}
	recs, err := r.source.RecommendationsFor(ctx, seeds)
	if err != nil {
		return nil, err
	}

	watched, err := r.source.WatchedTMDBIDs(ctx, uuid)
	if err != nil {
		return nil, err
	}

	candidates := make([]Recommendation, 0, len(trending)+len(continuing)+len(recs))
	sources := make(map[string]bool)
	for _, c := range trending {
		candidates = append(candidates, score(c, profile, watched))
	}
	for _, c := range continuing {
		candidates = append(candidates, score(c, profile, watched))
	}
	for _, c := range recs {
		candidates = append(candidates, score(c, profile, watched))
	}
	candidates = filterValid(candidates)
	for _, c := range candidates {
		sources[c.Candidate.Source] = true
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	if r.bus != nil {
		sourceNames := make([]string, 0, len(sources))
		for s := range sources {
			sourceNames = append(sourceNames, s)
		}
		_ = r.bus.Publish("media/recommendation", map[string]any{
			"uuid":       uuid,
			"n_options":  len(candidates),
			"sources":    sourceNames,
		})
	}

	return candidates, nil
}

func score(c Candidate, profile Profile, watched map[int]bool) Recommendation {
	if c.TMDBID == 0 || watched[c.TMDBID] {
		return Recommendation{Candidate: c, Score: -1}
	}
	base := profile.Score(c)
	novelty := 0.0
	if c.Popularity < 10 {
		novelty = 0.1
	}
	sourceBonus := 0.0
	if c.Source == "continue_watching" {
		sourceBonus = 0.2
	}
	total := base + novelty + sourceBonus
	if total > 1 {
		total = 1
	}
	if total < 0 {
		total = 0
	}
	return Recommendation{Candidate: c, Score: total}
}

func filterValid(in []Recommendation) []Recommendation {
	out := make([]Recommendation, 0, len(in))
	for _, r := range in {
		if r.Score >= 0 {
			out = append(out, r)
		}
	}
	return out
}

func topSeeds(history []Candidate, n int) []int {
	if len(history) > n {
		history = history[:n]
	}
	seeds := make([]int, 0, len(history))
	for _, c := range history {
		if c.TMDBID != 0 {
			seeds = append(seeds, c.TMDBID)
		}
	}
	return seeds
}

// FormatSpoken renders a persona-appropriate spoken summary of ranked
// recommendations. HALSTON walks through the options by ordinal and title
// only; no per-option rationale is given. SCARLET is terse and asks for a
// single choice without naming the options.
func FormatSpoken(recs []Recommendation, scarlet bool) string {
	if len(recs) == 0 {
		return "I don't have anything to recommend right now."
	}
	if scarlet {
		return "Choose one."
	}
	out := "Here's what I'd suggest: "
	for i, r := range recs {
		if i > 0 {
			out += "; "
		}
		out += ordinalWord(i+1) + ", " + r.Candidate.Title
	}
	out += ". Which would you like?"
	return out
}

func ordinalWord(n int) string {
	switch n {
	case 1:
		return "first"
	case 2:
		return "second"
	case 3:
		return "third"
	default:
		return "next"
	}
}
