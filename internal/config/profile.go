package config

import (
	"fmt"
	"maps"

	"github.com/nao1215/deepcrawl/internal/model"
)

// Profile is a reusable set of traversal and request settings stored in the
// configuration file. Zero values mean "not set" so that a named profile can
// override only what it mentions.
type Profile struct {
	// Strategy is "bfs", "dfs" or "best-first".
	Strategy string `yaml:"strategy,omitempty"`

	MaxDepth int `yaml:"maxDepth,omitempty"`
	MaxPages int `yaml:"maxPages,omitempty"`

	IncludeExternal *bool `yaml:"includeExternal,omitempty"`
	Streaming       *bool `yaml:"streaming,omitempty"`

	URLPatterns    []string `yaml:"urlPatterns,omitempty"`
	AllowedDomains []string `yaml:"allowedDomains,omitempty"`
	BlockedDomains []string `yaml:"blockedDomains,omitempty"`

	// Keywords are "term" or "term=weight" entries.
	Keywords []string `yaml:"keywords,omitempty"`

	// KeywordWeight is the weight of keywords listed without one.
	KeywordWeight float64 `yaml:"keywordWeight,omitempty"`

	ScoreThreshold *float64 `yaml:"scoreThreshold,omitempty"`

	// Cookie is an HTTP cookie sent with every request.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers sent with every request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Browser overrides the fetch options when set.
	Browser *model.BrowserOptions `yaml:"browser,omitempty"`
}

// File represents the structure of the .deepcrawl configuration file.
type File struct {
	// Defaults apply to every crawl.
	Defaults Profile `yaml:"defaults,omitempty"`

	// Profiles are named overrides selected with --profile.
	Profiles map[string]Profile `yaml:"profiles,omitempty"`
}

// GetProfile returns the defaults merged with the named profile.
// An empty name returns the defaults alone.
func (cf *File) GetProfile(name string) (Profile, error) {
	result := cf.Defaults
	if name == "" {
		return result, nil
	}

	p, ok := cf.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}

	if p.Strategy != "" {
		result.Strategy = p.Strategy
	}
	if p.MaxDepth != 0 {
		result.MaxDepth = p.MaxDepth
	}
	if p.MaxPages != 0 {
		result.MaxPages = p.MaxPages
	}
	if p.IncludeExternal != nil {
		result.IncludeExternal = p.IncludeExternal
	}
	if p.Streaming != nil {
		result.Streaming = p.Streaming
	}
	if len(p.URLPatterns) > 0 {
		result.URLPatterns = p.URLPatterns
	}
	if len(p.AllowedDomains) > 0 {
		result.AllowedDomains = p.AllowedDomains
	}
	if len(p.BlockedDomains) > 0 {
		result.BlockedDomains = p.BlockedDomains
	}
	if len(p.Keywords) > 0 {
		result.Keywords = p.Keywords
	}
	if p.KeywordWeight != 0 {
		result.KeywordWeight = p.KeywordWeight
	}
	if p.ScoreThreshold != nil {
		result.ScoreThreshold = p.ScoreThreshold
	}
	if p.Cookie != "" {
		result.Cookie = p.Cookie
	}
	if len(p.Headers) > 0 {
		merged := make(map[string]string, len(result.Headers)+len(p.Headers))
		maps.Copy(merged, result.Headers)
		maps.Copy(merged, p.Headers)
		result.Headers = merged
	}
	if p.Browser != nil {
		result.Browser = p.Browser
	}

	return result, nil
}

// Apply copies the settings present in p onto cfg.
func (p Profile) Apply(cfg *Config) error {
	t := &cfg.Traversal

	if p.Strategy != "" {
		s, err := model.ParseStrategy(p.Strategy)
		if err != nil {
			return invalid("strategy", fmt.Errorf("%w: %s", ErrUnknownStrategy, p.Strategy))
		}
		t.Strategy = s
	}
	if p.MaxDepth != 0 {
		t.MaxDepth = p.MaxDepth
	}
	if p.MaxPages != 0 {
		t.MaxPages = p.MaxPages
	}
	if p.IncludeExternal != nil {
		t.IncludeExternal = *p.IncludeExternal
	}
	if p.Streaming != nil {
		t.Streaming = *p.Streaming
	}
	if len(p.URLPatterns) > 0 {
		t.URLPatterns = append([]string(nil), p.URLPatterns...)
	}
	if len(p.AllowedDomains) > 0 {
		t.AllowedDomains = append([]string(nil), p.AllowedDomains...)
	}
	if len(p.BlockedDomains) > 0 {
		t.BlockedDomains = append([]string(nil), p.BlockedDomains...)
	}
	if len(p.Keywords) > 0 {
		weight := p.KeywordWeight
		if weight == 0 {
			weight = DefaultKeywordWeight
		}
		t.Keywords = t.Keywords[:0:0]
		for _, raw := range p.Keywords {
			kw, err := ParseKeyword(raw, weight)
			if err != nil {
				return err
			}
			t.Keywords = append(t.Keywords, kw)
		}
	}
	if p.ScoreThreshold != nil {
		t.ScoreThreshold = *p.ScoreThreshold
	}
	if p.Cookie != "" {
		cfg.Cookie = p.Cookie
	}
	if len(p.Headers) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(p.Headers))
		}
		maps.Copy(cfg.Headers, p.Headers)
	}
	if p.Browser != nil {
		cfg.Browser = *p.Browser
	}

	return nil
}
