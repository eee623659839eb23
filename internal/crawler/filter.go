package crawler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nao1215/deepcrawl/internal/config"
	"github.com/nao1215/deepcrawl/internal/model"
)

// Filter names, as reported by FilterChain.Reason.
const (
	FilterBlockList = "blocked-domain"
	FilterAllowList = "allowed-domain"
	FilterPattern   = "url-pattern"
	FilterExternal  = "external"
)

// FilterChain decides whether a discovered link may enter the frontier.
// Predicates run in a fixed order (block list, allow list, URL patterns,
// external) and stop at the first rejection. A FilterChain is immutable
// once built and safe for concurrent use.
type FilterChain struct {
	filters []linkFilter
}

type linkFilter struct {
	name   string
	accept func(host, rawURL string) bool
}

// FilterOption configures a FilterChain.
type FilterOption func(*filterSettings)

type filterSettings struct {
	disabled map[string]bool
}

// WithoutFilter disables the named predicate (one of the Filter* constants).
func WithoutFilter(name string) FilterOption {
	return func(s *filterSettings) {
		s.disabled[name] = true
	}
}

// NewFilterChain builds the chain for one traversal. seedURL must already
// be normalized; its host is the reference for the external filter.
func NewFilterChain(cfg config.TraversalConfig, seedURL string, opts ...FilterOption) (*FilterChain, error) {
	settings := &filterSettings{disabled: make(map[string]bool)}
	for _, opt := range opts {
		opt(settings)
	}

	seedHost := hostOf(seedURL)
	if seedHost == "" {
		return nil, fmt.Errorf("%w: %q", ErrEmptyHost, seedURL)
	}

	fc := &FilterChain{}

	if blocked := normalizeDomains(cfg.BlockedDomains); len(blocked) > 0 && !settings.disabled[FilterBlockList] {
		fc.filters = append(fc.filters, linkFilter{
			name: FilterBlockList,
			accept: func(host, _ string) bool {
				return !matchesAnyDomain(host, blocked)
			},
		})
	}

	if allowed := normalizeDomains(cfg.AllowedDomains); len(allowed) > 0 && !settings.disabled[FilterAllowList] {
		fc.filters = append(fc.filters, linkFilter{
			name: FilterAllowList,
			accept: func(host, _ string) bool {
				return matchesAnyDomain(host, allowed)
			},
		})
	}

	if len(cfg.URLPatterns) > 0 && !settings.disabled[FilterPattern] {
		patterns := make([]*regexp.Regexp, 0, len(cfg.URLPatterns))
		for _, p := range cfg.URLPatterns {
			re, err := compileGlob(p)
			if err != nil {
				return nil, err
			}
			patterns = append(patterns, re)
		}
		fc.filters = append(fc.filters, linkFilter{
			name: FilterPattern,
			accept: func(_, rawURL string) bool {
				for _, re := range patterns {
					if re.MatchString(rawURL) {
						return true
					}
				}
				return false
			},
		})
	}

	if !cfg.IncludeExternal && !settings.disabled[FilterExternal] {
		fc.filters = append(fc.filters, linkFilter{
			name: FilterExternal,
			accept: func(host, _ string) bool {
				return host == seedHost
			},
		})
	}

	return fc, nil
}

// Accepts reports whether c passes every enabled predicate.
func (fc *FilterChain) Accepts(c model.LinkCandidate) bool {
	return fc.Reason(c) == ""
}

// Reason returns the name of the first predicate rejecting c, or "" if c
// is accepted. A URL without a parsable host is rejected by the first
// predicate in the chain, or accepted when the chain is empty.
func (fc *FilterChain) Reason(c model.LinkCandidate) string {
	host := hostOf(c.URL)
	for _, f := range fc.filters {
		if host == "" || !f.accept(host, c.URL) {
			return f.name
		}
	}
	return ""
}

// Len returns the number of enabled predicates.
func (fc *FilterChain) Len() int {
	return len(fc.filters)
}

func normalizeDomains(domains []string) []string {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		if n := config.NormalizeDomain(d); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// matchesAnyDomain reports whether host equals one of domains or is a
// subdomain of it. "notexample.com" does not match "example.com".
func matchesAnyDomain(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// compileGlob turns a glob into a case-insensitive regular expression
// anchored on the whole URL. '*' matches any run of characters, including
// '/', and '?' matches exactly one character.
func compileGlob(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("compile url pattern %q: %w", pattern, err)
	}
	return re, nil
}
