package config

import (
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"

	"github.com/nao1215/deepcrawl/internal/model"
)

const (
	// DefaultMaxDepth is how many links away from the seed a traversal goes.
	DefaultMaxDepth = 2

	// MaxAllowedDepth bounds MaxDepth. Deeper traversals grow the frontier
	// exponentially and rarely stay on topic.
	MaxAllowedDepth = 10

	// DefaultMaxPages is the per-seed page cap.
	DefaultMaxPages = 50

	// MaxAllowedPages bounds MaxPages.
	MaxAllowedPages = 1000

	// DefaultKeywordWeight is the weight given to a keyword given without one.
	DefaultKeywordWeight = 0.7
)

// Keyword is a relevance term with its weight.
type Keyword struct {
	Term   string  `yaml:"term" json:"term"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// ParseKeyword parses "term" or "term=weight". A term without an explicit
// weight gets defaultWeight.
func ParseKeyword(s string, defaultWeight float64) (Keyword, error) {
	term, weight, found := strings.Cut(s, "=")
	kw := Keyword{Term: strings.TrimSpace(term), Weight: defaultWeight}
	if found {
		w, err := strconv.ParseFloat(strings.TrimSpace(weight), 64)
		if err != nil {
			return Keyword{}, invalid("keywords", fmt.Errorf("%w: %q", ErrInvalidKeyword, s))
		}
		kw.Weight = w
	}
	if kw.Term == "" || kw.Weight < 0 || kw.Weight > 1 || math.IsNaN(kw.Weight) {
		return Keyword{}, invalid("keywords", fmt.Errorf("%w: %q", ErrInvalidKeyword, s))
	}
	return kw, nil
}

// TraversalConfig describes one traversal. It is validated once with
// Validate before the traversal starts and treated as read-only afterwards.
type TraversalConfig struct {
	// Strategy selects the visiting order.
	Strategy model.Strategy `yaml:"strategy" json:"strategy"`

	// MaxDepth is the maximum link distance from the seed.
	MaxDepth int `yaml:"maxDepth" json:"max_depth"`

	// MaxPages caps the number of pages emitted per seed, failures included.
	MaxPages int `yaml:"maxPages" json:"max_pages"`

	// IncludeExternal allows following links to hosts other than the seed's.
	IncludeExternal bool `yaml:"includeExternal" json:"include_external"`

	// Streaming emits each page as soon as it is fetched instead of
	// releasing all pages when the traversal ends.
	Streaming bool `yaml:"streaming" json:"streaming"`

	// URLPatterns are glob patterns; when non-empty a link must match one.
	URLPatterns []string `yaml:"urlPatterns,omitempty" json:"url_patterns,omitempty"`

	// AllowedDomains restricts links to these domains and their subdomains.
	AllowedDomains []string `yaml:"allowedDomains,omitempty" json:"allowed_domains,omitempty"`

	// BlockedDomains rejects links to these domains and their subdomains.
	BlockedDomains []string `yaml:"blockedDomains,omitempty" json:"blocked_domains,omitempty"`

	// Keywords drive relevance scoring.
	Keywords []Keyword `yaml:"keywords,omitempty" json:"keywords,omitempty"`

	// ScoreThreshold drops links scoring below it under BFS and DFS.
	// Zero or less disables the gate.
	ScoreThreshold float64 `yaml:"scoreThreshold" json:"score_threshold"`

	singlePage bool
}

// NewTraversalConfig returns a TraversalConfig with default values.
func NewTraversalConfig() TraversalConfig {
	return TraversalConfig{
		Strategy:  model.StrategyBFS,
		MaxDepth:  DefaultMaxDepth,
		MaxPages:  DefaultMaxPages,
		Streaming: true,
	}
}

// SinglePage returns a copy of c that fetches only the seed.
// Filters and keywords are kept so the result still carries scores of zero
// and the same delivery mode.
func (c TraversalConfig) SinglePage() TraversalConfig {
	c.MaxDepth = 0
	c.MaxPages = 1
	c.singlePage = true
	return c
}

// IsSinglePage reports whether c was produced by SinglePage.
func (c TraversalConfig) IsSinglePage() bool {
	return c.singlePage
}

// HasKeywords reports whether relevance scoring is active.
func (c TraversalConfig) HasKeywords() bool {
	return len(c.Keywords) > 0
}

// Validate checks every rule and returns the first violation as a
// *ValidationError.
func (c TraversalConfig) Validate() error {
	if !c.Strategy.Valid() {
		return invalid("strategy", ErrUnknownStrategy)
	}

	if c.singlePage {
		if c.MaxDepth != 0 || c.MaxPages != 1 {
			return invalid("max_depth", ErrInvalidMaxDepth)
		}
	} else {
		if c.MaxDepth < 1 || c.MaxDepth > MaxAllowedDepth {
			return invalid("max_depth", ErrInvalidMaxDepth)
		}
		if c.MaxPages < 1 || c.MaxPages > MaxAllowedPages {
			return invalid("max_pages", ErrInvalidMaxPages)
		}
	}

	for _, kw := range c.Keywords {
		if strings.TrimSpace(kw.Term) == "" || kw.Weight < 0 || kw.Weight > 1 || math.IsNaN(kw.Weight) {
			return invalid("keywords", ErrInvalidKeyword)
		}
	}

	if math.IsNaN(c.ScoreThreshold) || math.IsInf(c.ScoreThreshold, 0) {
		return invalid("score_threshold", ErrInvalidThreshold)
	}
	if c.ScoreThreshold > 0 && len(c.Keywords) == 0 {
		return invalid("score_threshold", ErrThresholdWithoutKeywords)
	}

	for _, p := range c.URLPatterns {
		if strings.TrimSpace(p) == "" {
			return invalid("url_patterns", ErrInvalidPattern)
		}
	}

	blocked := make(map[string]struct{}, len(c.BlockedDomains))
	for _, d := range c.BlockedDomains {
		blocked[NormalizeDomain(d)] = struct{}{}
	}
	for _, d := range c.AllowedDomains {
		if _, ok := blocked[NormalizeDomain(d)]; ok {
			return invalid("allowed_domains", fmt.Errorf("%w: %s", ErrConflictingDomains, d))
		}
	}

	return nil
}

// NormalizeDomain reduces a domain list entry to a bare lowercase host.
// It accepts entries such as "https://Example.com/path", "*.example.com",
// ".example.com" and "example.com:8080", all of which become "example.com".
func NormalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if host, _, err := net.SplitHostPort(d); err == nil {
		d = host
	}
	d = strings.TrimPrefix(d, "*.")
	d = strings.Trim(d, ".")
	return d
}
