package crawler

import (
	"net/url"
	"strings"

	"golang.org/x/text/cases"

	"github.com/nao1215/deepcrawl/internal/config"
	"github.com/nao1215/deepcrawl/internal/model"
)

// Scorer assigns a keyword relevance score to a link.
//
// The score is the sum of the weights of every keyword that occurs in the
// link's anchor text or URL path. Matching is Unicode case-insensitive
// (full case folding, so "STRASSE" matches "straße"). With no keywords every
// link scores 0.
type Scorer struct {
	terms []scoredTerm
}

type scoredTerm struct {
	folded string
	weight float64
}

// NewScorer builds a Scorer from the configured keywords.
func NewScorer(keywords []config.Keyword) *Scorer {
	s := &Scorer{terms: make([]scoredTerm, 0, len(keywords))}
	for _, kw := range keywords {
		term := strings.TrimSpace(kw.Term)
		if term == "" {
			continue
		}
		s.terms = append(s.terms, scoredTerm{folded: fold(term), weight: kw.Weight})
	}
	return s
}

// Score returns the relevance of c, in [0, sum of weights].
func (s *Scorer) Score(c model.LinkCandidate) float64 {
	if len(s.terms) == 0 {
		return 0
	}

	anchor := fold(c.AnchorText)
	path := c.URL
	if u, err := url.Parse(c.URL); err == nil {
		path = u.Path
	}
	path = fold(path)

	score := 0.0
	for _, t := range s.terms {
		if strings.Contains(anchor, t.folded) || strings.Contains(path, t.folded) {
			score += t.weight
		}
	}
	return score
}

// MaxScore returns the highest score any link can reach.
func (s *Scorer) MaxScore() float64 {
	total := 0.0
	for _, t := range s.terms {
		total += t.weight
	}
	return total
}

// fold applies Unicode full case folding. A Caser is not safe for
// concurrent use, so a fresh one is built per call.
func fold(s string) string {
	return cases.Fold().String(s)
}
