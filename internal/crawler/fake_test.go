package crawler

import (
	"context"
	"errors"
	"sync"

	"github.com/nao1215/deepcrawl/internal/model"
)

// fakeLink is an anchor on a fake page.
type fakeLink struct {
	url  string
	text string
}

// fakeSite is an in-memory web: URL -> links. It records every fetch.
type fakeSite struct {
	mu      sync.Mutex
	pages   map[string][]fakeLink
	errs    map[string]error
	panics  map[string]bool
	hooks   map[string]func(ctx context.Context)
	fetched []string
}

func newFakeSite() *fakeSite {
	return &fakeSite{
		pages:  make(map[string][]fakeLink),
		errs:   make(map[string]error),
		panics: make(map[string]bool),
		hooks:  make(map[string]func(ctx context.Context)),
	}
}

func (s *fakeSite) page(url string, links ...fakeLink) *fakeSite {
	s.pages[url] = links
	return s
}

func link(url string) fakeLink {
	return fakeLink{url: url}
}

func anchor(url, text string) fakeLink {
	return fakeLink{url: url, text: text}
}

func (s *fakeSite) Fetch(ctx context.Context, url string, _ model.BrowserOptions) (*model.FetchResult, error) {
	s.mu.Lock()
	s.fetched = append(s.fetched, url)
	hook := s.hooks[url]
	err := s.errs[url]
	shouldPanic := s.panics[url]
	links, ok := s.pages[url]
	s.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}
	if shouldPanic {
		panic("renderer crashed")
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return &model.FetchResult{StatusCode: 404}, errors.New("404 not found")
	}

	res := &model.FetchResult{
		StatusCode: 200,
		Markdown:   "# " + url,
		HTML:       "<html></html>",
	}
	for _, l := range links {
		res.Links = append(res.Links, model.LinkCandidate{URL: l.url, AnchorText: l.text})
	}
	return res, nil
}

func (s *fakeSite) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.fetched...)
}

func urls(pages []model.PageResult) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.URL
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
