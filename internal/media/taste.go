// Package media implements the household media-recommendation stack: a
// per-user taste profile learned from watch history, a recommender that
// blends trending, continue-watching, and personalized candidates, and the
// media-intent handler that turns a spoken pick into an Overseerr request.
package media

import (
	"fmt"
	"sort"
)

// Candidate is one recommendable item with the feature tags the taste
// profile scores against.
type Candidate struct {
	TMDBID     int
	Title      string
	Genres     []string
	Network    string
	RuntimeMin int
	Year       int
	Adult      bool
	Popularity float64
	Source     string // "trending", "continue_watching", "recommendations"
}

// Profile is a normalized feature-weight distribution learned from a
// user's watch history.
type Profile struct {
	weights map[string]float64
	total   float64
}

// BuildProfile derives a taste profile from watched candidates, weighting
// genre, network, runtime "pace" bucket, and release-era features.
func BuildProfile(watched []Candidate) Profile {
	p := Profile{weights: make(map[string]float64)}
	for _, c := range watched {
		for _, g := range c.Genres {
			p.add("genre:"+g, 1.0)
		}
		if c.Network != "" {
			p.add("network:"+c.Network, 0.5)
		}
		p.add("pace:"+paceBucket(c.RuntimeMin), 0.4)
		p.add("year:"+yearBucket(c.Year), 0.6)
	}
	return p
}

func (p *Profile) add(feature string, weight float64) {
	p.weights[feature] += weight
	p.total += weight
}

func paceBucket(runtimeMin int) string {
	switch {
	case runtimeMin < 30:
		return "short"
	case runtimeMin < 60:
		return "medium"
	case runtimeMin < 110:
		return "feature"
	default:
		return "epic"
	}
}

func yearBucket(year int) string {
	switch {
	case year < 2000:
		return "classic"
	case year < 2010:
		return "mid"
	case year < 2020:
		return "recent"
	default:
		return "new"
	}
}

// Score returns a clamped [0,1] affinity for candidate against the profile.
// An empty profile (cold start) scores everything neutrally at 0.5; a
// candidate sharing none of the profile's features scores 0.3 rather than
// 0, so novel genres aren't entirely suppressed.
func (p Profile) Score(c Candidate) float64 {
	if p.total == 0 {
		return 0.5
	}
	features := candidateFeatures(c)
	sum := 0.0
	matched := false
	for _, f := range features {
		if w, ok := p.weights[f]; ok {
			sum += w
			matched = true
		}
	}
	if !matched {
		return 0.3
	}
	score := sum / p.total
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

func candidateFeatures(c Candidate) []string {
	features := make([]string, 0, len(c.Genres)+2)
	for _, g := range c.Genres {
		features = append(features, "genre:"+g)
	}
	if c.Network != "" {
		features = append(features, "network:"+c.Network)
	}
	features = append(features, "pace:"+paceBucket(c.RuntimeMin), "year:"+yearBucket(c.Year))
	return features
}

// Explain returns a short phrase naming the top features driving the
// profile, used to give the HALSTON persona something concrete to say.
func (p Profile) Explain() string {
	type kv struct {
		feature string
		weight  float64
	}
	ranked := make([]kv, 0, len(p.weights))
	for f, w := range p.weights {
		ranked = append(ranked, kv{f, w})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].weight > ranked[j].weight })
	if len(ranked) == 0 {
		return "your usual taste"
	}
	if len(ranked) == 1 {
		return fmt.Sprintf("your taste for %s", ranked[0].feature)
	}
	return fmt.Sprintf("your taste for %s and %s", ranked[0].feature, ranked[1].feature)
}
