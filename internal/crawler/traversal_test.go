package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/nao1215/deepcrawl/internal/config"
	"github.com/nao1215/deepcrawl/internal/model"
)

const (
	pageA = "https://example.com/"
	pageB = "https://example.com/b"
	pageC = "https://example.com/c"
	pageD = "https://example.com/d"
	pageE = "https://example.com/e"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func crawlSite(t *testing.T, site *fakeSite, cfg config.TraversalConfig) Outcome {
	t.Helper()
	out, err := Crawl(context.Background(), site, pageA, cfg, nil, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	return out
}

// treeSite is A -> B, C; B -> D; C -> E.
func treeSite() *fakeSite {
	return newFakeSite().
		page(pageA, link(pageB), link(pageC)).
		page(pageB, link(pageD)).
		page(pageC, link(pageE)).
		page(pageD).
		page(pageE)
}

// TestTraversalStrategies tests the visiting order of each strategy.
func TestTraversalStrategies(t *testing.T) {
	t.Parallel()

	t.Run("bfs visits level by level", func(t *testing.T) {
		t.Parallel()
		out := crawlSite(t, treeSite(), config.NewTraversalConfig())
		want := []string{pageA, pageB, pageC, pageD, pageE}
		if got := urls(out.Pages); !equalStrings(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
		wantDepths := []int{0, 1, 1, 2, 2}
		for i, p := range out.Pages {
			if p.Depth != wantDepths[i] {
				t.Errorf("%s: depth %d, want %d", p.URL, p.Depth, wantDepths[i])
			}
		}
		if out.Status != model.StatusCompleted {
			t.Errorf("expected completed, got %s", out.Status)
		}
	})

	t.Run("dfs follows first child to the bottom", func(t *testing.T) {
		t.Parallel()
		site := newFakeSite().
			page(pageA, link(pageB), link(pageC)).
			page(pageB, link(pageD)).
			page(pageC).
			page(pageD)
		cfg := config.NewTraversalConfig()
		cfg.Strategy = model.StrategyDFS
		out := crawlSite(t, site, cfg)
		want := []string{pageA, pageB, pageD, pageC}
		if got := urls(out.Pages); !equalStrings(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("best first visits the most relevant link first", func(t *testing.T) {
		t.Parallel()
		site := newFakeSite().
			page(pageA, anchor(pageB, "About"), anchor(pageC, "Go tutorial")).
			page(pageB).
			page(pageC)
		cfg := config.NewTraversalConfig()
		cfg.Strategy = model.StrategyBestFirst
		cfg.Keywords = []config.Keyword{{Term: "tutorial", Weight: 0.7}}
		out := crawlSite(t, site, cfg)
		want := []string{pageA, pageC, pageB}
		if got := urls(out.Pages); !equalStrings(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
		if out.Pages[1].Score != 0.7 || out.Pages[2].Score != 0 {
			t.Errorf("unexpected scores: %v, %v", out.Pages[1].Score, out.Pages[2].Score)
		}
	})

	t.Run("best first without keywords keeps discovery order", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewTraversalConfig()
		cfg.Strategy = model.StrategyBestFirst
		out := crawlSite(t, treeSite(), cfg)
		want := []string{pageA, pageB, pageC, pageD, pageE}
		if got := urls(out.Pages); !equalStrings(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})
}

// TestTraversalCaps tests the depth and page limits.
func TestTraversalCaps(t *testing.T) {
	t.Parallel()

	t.Run("no page deeper than max depth", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewTraversalConfig()
		cfg.MaxDepth = 1
		out := crawlSite(t, treeSite(), cfg)
		for _, p := range out.Pages {
			if p.Depth > 1 {
				t.Errorf("%s fetched at depth %d", p.URL, p.Depth)
			}
		}
		if len(out.Pages) != 3 {
			t.Errorf("expected 3 pages, got %d", len(out.Pages))
		}
	})

	t.Run("max pages stops the traversal", func(t *testing.T) {
		t.Parallel()
		site := treeSite()
		cfg := config.NewTraversalConfig()
		cfg.MaxPages = 2
		out := crawlSite(t, site, cfg)
		if len(out.Pages) != 2 {
			t.Errorf("expected 2 pages, got %d", len(out.Pages))
		}
		if len(site.calls()) != 2 {
			t.Errorf("expected 2 fetches, got %v", site.calls())
		}
		if out.Status != model.StatusCompleted {
			t.Errorf("expected completed, got %s", out.Status)
		}
	})

	t.Run("failed pages count toward max pages", func(t *testing.T) {
		t.Parallel()
		site := treeSite()
		site.errs[pageB] = errors.New("connection reset")
		cfg := config.NewTraversalConfig()
		cfg.MaxPages = 2
		out := crawlSite(t, site, cfg)
		if got := urls(out.Pages); !equalStrings(got, []string{pageA, pageB}) {
			t.Errorf("got %v", got)
		}
		if out.Pages[1].Success {
			t.Error("expected page B to be a failure")
		}
	})
}

// TestTraversalDeduplication verifies cycles and repeated links are fetched once.
func TestTraversalDeduplication(t *testing.T) {
	t.Parallel()

	site := newFakeSite().
		page(pageA, link(pageB), link(pageB+"#top"), link("https://EXAMPLE.com/b")).
		page(pageB, link(pageA), link(pageC)).
		page(pageC, link(pageB))
	cfg := config.NewTraversalConfig()
	cfg.MaxDepth = 5
	out := crawlSite(t, site, cfg)

	want := []string{pageA, pageB, pageC}
	if got := site.calls(); !equalStrings(got, want) {
		t.Errorf("fetches: got %v, want %v", got, want)
	}
	if len(out.Pages) != 3 {
		t.Errorf("expected 3 pages, got %d", len(out.Pages))
	}
}

// TestTraversalRedirectTargetNotRefetched verifies the final URL of a
// redirect is treated as visited.
func TestTraversalRedirectTargetNotRefetched(t *testing.T) {
	t.Parallel()

	site := newFakeSite().page(pageB).page(pageC)
	fetcher := FetcherFunc(func(ctx context.Context, url string, opts model.BrowserOptions) (*model.FetchResult, error) {
		if url == pageA {
			return &model.FetchResult{
				FinalURL: pageC,
				Links:    []model.LinkCandidate{{URL: pageC}, {URL: pageB}},
			}, nil
		}
		return site.Fetch(ctx, url, opts)
	})

	out, err := Crawl(context.Background(), fetcher, pageA, config.NewTraversalConfig(), nil, WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	if got := urls(out.Pages); !equalStrings(got, []string{pageA, pageB}) {
		t.Errorf("got %v", got)
	}
}

// TestTraversalRedirectToQueuedPage verifies a page already waiting in the
// frontier is dropped once another page redirects to it.
func TestTraversalRedirectToQueuedPage(t *testing.T) {
	t.Parallel()

	site := newFakeSite().page(pageA, link(pageB), link(pageC)).page(pageC)
	fetcher := FetcherFunc(func(ctx context.Context, url string, opts model.BrowserOptions) (*model.FetchResult, error) {
		res, err := site.Fetch(ctx, url, opts)
		if url == pageB {
			return &model.FetchResult{StatusCode: 200, FinalURL: pageC, Markdown: "# c"}, nil
		}
		return res, err
	})

	for _, strategy := range []model.Strategy{model.StrategyBFS, model.StrategyDFS, model.StrategyBestFirst} {
		t.Run(strategy.String(), func(t *testing.T) {
			t.Parallel()

			cfg := config.NewTraversalConfig()
			cfg.Strategy = strategy
			out, err := Crawl(context.Background(), fetcher, pageA, cfg, nil, WithLogger(quietLogger()))
			if err != nil {
				t.Fatal(err)
			}
			for _, p := range out.Pages {
				if p.URL == pageC {
					t.Errorf("redirect target emitted twice: %v", urls(out.Pages))
				}
			}
			if len(out.Pages) != 2 {
				t.Errorf("got %v", urls(out.Pages))
			}
		})
	}
}

// TestTraversalBlockedInsideAllowedDomain verifies the block list wins over
// an allow list that also covers the link.
func TestTraversalBlockedInsideAllowedDomain(t *testing.T) {
	t.Parallel()

	const ads = "https://ads.example.com/x"
	site := newFakeSite().
		page(pageA, link(ads), link("https://docs.example.com/"), link(pageB)).
		page(pageB).
		page(ads).
		page("https://docs.example.com/")

	cfg := config.NewTraversalConfig()
	cfg.IncludeExternal = true
	cfg.AllowedDomains = []string{"example.com"}
	cfg.BlockedDomains = []string{"ads.example.com"}
	crawlSite(t, site, cfg)

	calls := site.calls()
	for _, u := range calls {
		if u == ads {
			t.Errorf("blocked URL fetched: %v", calls)
		}
	}
	if len(calls) != 3 {
		t.Errorf("expected seed, docs and b fetched, got %v", calls)
	}
}

// TestTraversalFetchFailure verifies a failed page does not stop the run.
func TestTraversalFetchFailure(t *testing.T) {
	t.Parallel()

	site := treeSite()
	site.errs[pageB] = errors.New("timeout")
	out := crawlSite(t, site, config.NewTraversalConfig())

	if out.Status != model.StatusCompleted || out.Err != nil {
		t.Fatalf("expected completed without error, got %s %v", out.Status, out.Err)
	}
	want := []string{pageA, pageB, pageC, pageE}
	if got := urls(out.Pages); !equalStrings(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	b := out.Pages[1]
	if b.Success || b.ErrorMessage != "timeout" {
		t.Errorf("unexpected failed page: %+v", b)
	}
	if !out.Pages[0].Success {
		t.Error("seed should succeed")
	}
}

// TestTraversalFault verifies an unusable fetch service fails the traversal.
func TestTraversalFault(t *testing.T) {
	t.Parallel()

	t.Run("wrapped ErrFetcherUnavailable", func(t *testing.T) {
		t.Parallel()
		site := treeSite()
		site.errs[pageC] = fmt.Errorf("chrome exited: %w", ErrFetcherUnavailable)
		out := crawlSite(t, site, config.NewTraversalConfig())

		if out.Status != model.StatusFailed {
			t.Fatalf("expected failed, got %s", out.Status)
		}
		var fault *WorkerFault
		if !errors.As(out.Err, &fault) {
			t.Fatalf("expected *WorkerFault, got %v", out.Err)
		}
		if fault.URL != pageC || fault.Seed != pageA {
			t.Errorf("unexpected fault: %+v", fault)
		}
		if got := urls(out.Pages); !equalStrings(got, []string{pageA, pageB}) {
			t.Errorf("pages before the fault must be kept, got %v", got)
		}
	})

	t.Run("panic in fetcher", func(t *testing.T) {
		t.Parallel()
		site := treeSite()
		site.panics[pageB] = true
		out := crawlSite(t, site, config.NewTraversalConfig())
		if out.Status != model.StatusFailed {
			t.Fatalf("expected failed, got %s", out.Status)
		}
		if !errors.Is(out.Err, ErrFetcherUnavailable) {
			t.Errorf("expected ErrFetcherUnavailable, got %v", out.Err)
		}
	})

	t.Run("buffered pages are flushed on fault", func(t *testing.T) {
		t.Parallel()
		site := treeSite()
		site.errs[pageC] = ErrFetcherUnavailable
		cfg := config.NewTraversalConfig()
		cfg.Streaming = false
		out := crawlSite(t, site, cfg)
		if len(out.Pages) != 2 {
			t.Errorf("expected 2 flushed pages, got %d", len(out.Pages))
		}
	})
}

// TestTraversalFilters verifies filters and the score gate apply to links
// but never to the seed.
func TestTraversalFilters(t *testing.T) {
	t.Parallel()

	const external = "https://other.org/"

	t.Run("external links are skipped by default", func(t *testing.T) {
		t.Parallel()
		site := newFakeSite().page(pageA, link(external), link(pageB)).page(pageB).page(external)
		out := crawlSite(t, site, config.NewTraversalConfig())
		if got := urls(out.Pages); !equalStrings(got, []string{pageA, pageB}) {
			t.Errorf("got %v", got)
		}
	})

	t.Run("external links are followed when included", func(t *testing.T) {
		t.Parallel()
		site := newFakeSite().page(pageA, link(external), link(pageB)).page(pageB).page(external)
		cfg := config.NewTraversalConfig()
		cfg.IncludeExternal = true
		out := crawlSite(t, site, cfg)
		if got := urls(out.Pages); !equalStrings(got, []string{pageA, external, pageB}) {
			t.Errorf("got %v", got)
		}
	})

	t.Run("seed is never filtered", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewTraversalConfig()
		cfg.BlockedDomains = []string{"example.com"}
		cfg.URLPatterns = []string{"*/nothing/*"}
		out := crawlSite(t, treeSite(), cfg)
		if got := urls(out.Pages); !equalStrings(got, []string{pageA}) {
			t.Errorf("got %v", got)
		}
	})

	t.Run("non http links are ignored", func(t *testing.T) {
		t.Parallel()
		site := newFakeSite().page(pageA, link("mailto:a@example.com"), link("javascript:void(0)"), link(pageB)).page(pageB)
		out := crawlSite(t, site, config.NewTraversalConfig())
		if got := urls(out.Pages); !equalStrings(got, []string{pageA, pageB}) {
			t.Errorf("got %v", got)
		}
	})

	t.Run("score threshold gates bfs", func(t *testing.T) {
		t.Parallel()
		site := newFakeSite().
			page(pageA, anchor(pageB, "golang news"), anchor(pageC, "cooking")).
			page(pageB).
			page(pageC)
		cfg := config.NewTraversalConfig()
		cfg.Keywords = []config.Keyword{{Term: "golang", Weight: 0.7}}
		cfg.ScoreThreshold = 0.5
		out := crawlSite(t, site, cfg)
		if got := urls(out.Pages); !equalStrings(got, []string{pageA, pageB}) {
			t.Errorf("got %v", got)
		}
	})

	t.Run("score threshold does not gate best first", func(t *testing.T) {
		t.Parallel()
		site := newFakeSite().
			page(pageA, anchor(pageC, "cooking"), anchor(pageB, "golang news")).
			page(pageB).
			page(pageC)
		cfg := config.NewTraversalConfig()
		cfg.Strategy = model.StrategyBestFirst
		cfg.Keywords = []config.Keyword{{Term: "golang", Weight: 0.7}}
		cfg.ScoreThreshold = 0.5
		out := crawlSite(t, site, cfg)
		if got := urls(out.Pages); !equalStrings(got, []string{pageA, pageB, pageC}) {
			t.Errorf("got %v", got)
		}
	})
}

// TestTraversalLinkStamping verifies links on a page carry their source.
func TestTraversalLinkStamping(t *testing.T) {
	t.Parallel()

	out := crawlSite(t, treeSite(), config.NewTraversalConfig())
	b := out.Pages[1]
	if len(b.Links) != 1 {
		t.Fatalf("expected 1 link on B, got %d", len(b.Links))
	}
	l := b.Links[0]
	if l.SourceDepth != 1 || l.SourceURL != pageB || l.URL != pageD {
		t.Errorf("unexpected link: %+v", l)
	}
}

// TestNewTraversalValidation verifies invalid input never reaches the fetcher.
func TestNewTraversalValidation(t *testing.T) {
	t.Parallel()

	site := treeSite()
	cfg := config.NewTraversalConfig()
	cfg.MaxDepth = 0

	_, err := NewTraversal(site, pageA, cfg, nil)
	var verr *config.ValidationError
	if !errors.As(err, &verr) || !errors.Is(err, config.ErrInvalidMaxDepth) {
		t.Errorf("expected ValidationError for max depth, got %v", err)
	}

	_, err = NewTraversal(site, "ftp://example.com/", config.NewTraversalConfig(), nil)
	if !errors.As(err, &verr) || !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("expected ValidationError for seed scheme, got %v", err)
	}

	if len(site.calls()) != 0 {
		t.Errorf("fetcher must not be called, got %v", site.calls())
	}
}
