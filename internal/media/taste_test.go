package media

import "testing"

func TestBuildProfileEmptyScoresNeutral(t *testing.T) {
	p := BuildProfile(nil)
	got := p.Score(Candidate{Genres: []string{"drama"}, RuntimeMin: 100, Year: 2015})
	if got != 0.5 {
		t.Fatalf("Score() on empty profile = %v, want 0.5", got)
	}
}

func TestBuildProfileUnmatchedFeatureScoresLow(t *testing.T) {
	p := BuildProfile([]Candidate{{Genres: []string{"comedy"}, RuntimeMin: 90, Year: 2015}})
	got := p.Score(Candidate{Genres: []string{"horror"}, RuntimeMin: 20, Year: 1980})
	if got != 0.3 {
		t.Fatalf("Score() on unmatched features = %v, want 0.3", got)
	}
}

func TestBuildProfileMatchedFeatureScoresHigher(t *testing.T) {
	p := BuildProfile([]Candidate{
		{Genres: []string{"scifi"}, RuntimeMin: 100, Year: 2018},
		{Genres: []string{"scifi"}, RuntimeMin: 95, Year: 2019},
	})
	got := p.Score(Candidate{Genres: []string{"scifi"}, RuntimeMin: 98, Year: 2018})
	if got <= 0.3 {
		t.Fatalf("Score() for matching genre = %v, want > 0.3", got)
	}
}
