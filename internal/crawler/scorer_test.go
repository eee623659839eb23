package crawler

import (
	"math"
	"testing"

	"github.com/nao1215/deepcrawl/internal/config"
	"github.com/nao1215/deepcrawl/internal/model"
)

// TestScorer tests keyword scoring on anchor text and URL path.
func TestScorer(t *testing.T) {
	t.Parallel()

	scorer := NewScorer([]config.Keyword{
		{Term: "golang", Weight: 0.7},
		{Term: "tutorial", Weight: 0.2},
	})

	testCases := []struct {
		name     string
		link     model.LinkCandidate
		expected float64
	}{
		{"no match", model.LinkCandidate{URL: "https://example.com/about", AnchorText: "About us"}, 0},
		{"anchor match", model.LinkCandidate{URL: "https://example.com/x", AnchorText: "Learn GoLang"}, 0.7},
		{"path match", model.LinkCandidate{URL: "https://example.com/tutorial/1"}, 0.2},
		{"both keywords", model.LinkCandidate{URL: "https://example.com/golang/tutorial"}, 0.9},
		{"keyword counted once", model.LinkCandidate{URL: "https://example.com/golang", AnchorText: "golang"}, 0.7},
		{"host is not scored", model.LinkCandidate{URL: "https://golang.org/"}, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := scorer.Score(tc.link)
			if math.Abs(got-tc.expected) > 1e-9 {
				t.Errorf("got %v, expected %v", got, tc.expected)
			}
		})
	}

	if math.Abs(scorer.MaxScore()-0.9) > 1e-9 {
		t.Errorf("MaxScore() = %v, want 0.9", scorer.MaxScore())
	}
}

// TestScorerNoKeywords verifies every link scores zero without keywords.
func TestScorerNoKeywords(t *testing.T) {
	t.Parallel()

	s := NewScorer(nil)
	if got := s.Score(model.LinkCandidate{URL: "https://example.com/anything", AnchorText: "anything"}); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
}

// TestScorerUnicodeFolding verifies full case folding is used.
func TestScorerUnicodeFolding(t *testing.T) {
	t.Parallel()

	s := NewScorer([]config.Keyword{{Term: "straße", Weight: 0.5}})
	if got := s.Score(model.LinkCandidate{URL: "https://example.com/", AnchorText: "HAUPTSTRASSE"}); got != 0.5 {
		t.Errorf("expected 0.5, got %v", got)
	}
}
