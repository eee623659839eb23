package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/deepcrawl/internal/model"
)

// TestNewConfig verifies that NewConfig returns the documented defaults.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default traversal is bfs depth 2 pages 50 streaming", func(t *testing.T) {
		t.Parallel()
		tr := cfg.Traversal
		if tr.Strategy != model.StrategyBFS {
			t.Errorf("expected bfs, got %s", tr.Strategy)
		}
		if tr.MaxDepth != 2 {
			t.Errorf("expected MaxDepth 2, got %d", tr.MaxDepth)
		}
		if tr.MaxPages != 50 {
			t.Errorf("expected MaxPages 50, got %d", tr.MaxPages)
		}
		if !tr.Streaming {
			t.Error("expected streaming to be enabled")
		}
		if tr.IncludeExternal {
			t.Error("expected external links to be excluded")
		}
	})

	t.Run("default engine is http", func(t *testing.T) {
		t.Parallel()
		if cfg.Engine != EngineHTTP {
			t.Errorf("expected engine http, got %q", cfg.Engine)
		}
	})

	t.Run("default browser is headless and simulates a user", func(t *testing.T) {
		t.Parallel()
		if !cfg.Browser.Headless || !cfg.Browser.SimulateUser {
			t.Errorf("unexpected browser defaults: %+v", cfg.Browser)
		}
	})

	t.Run("default timeout is 60 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 60*time.Second {
			t.Errorf("expected Timeout to be 60s, got %v", cfg.Timeout)
		}
	})
}

// TestConfigValidate tests the Validate method, one rule per case.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.Seeds = []string{"https://example.com/"}
		return cfg
	}

	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid config returns nil", func(*Config) {}, nil},
		{"no seeds", func(c *Config) { c.Seeds = nil }, ErrNoSeed},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"json and markdown", func(c *Config) { c.JSONReport, c.MarkdownReport = true, true }, ErrConflictingReportFormats},
		{"negative delay", func(c *Config) { c.Browser.DelaySeconds = -1 }, ErrInvalidDelay},
		{"delay above 60", func(c *Config) { c.Browser.DelaySeconds = 61 }, ErrInvalidDelay},
		{"negative body size", func(c *Config) { c.MaxBodySize = -1 }, ErrInvalidMaxBodySize},
		{"negative rate", func(c *Config) { c.RequestsPerSecond = -1 }, ErrInvalidRate},
		{"unknown engine", func(c *Config) { c.Engine = "lynx" }, ErrUnknownEngine},
		{"traversal errors surface", func(c *Config) { c.Traversal.MaxDepth = 0 }, ErrInvalidMaxDepth},
		{"single page ignores depth", func(c *Config) { c.SinglePage = true; c.Traversal.MaxDepth = 99 }, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == nil {
				if err != nil {
					t.Errorf("expected nil, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

// TestFindConfigFile tests the explicit path lookup.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit existing path is returned", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(path, []byte("defaults: {}\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		if got := FindConfigFile(path); got != path {
			t.Errorf("expected %q, got %q", path, got)
		}
	})

	t.Run("explicit missing path returns empty", func(t *testing.T) {
		t.Parallel()
		if got := FindConfigFile(filepath.Join(t.TempDir(), "nope")); got != "" {
			t.Errorf("expected empty, got %q", got)
		}
	})
}

// TestLoadConfigFile tests YAML parsing of profiles.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("missing file returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()
		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("parses defaults and profiles", func(t *testing.T) {
		t.Parallel()
		content := `
defaults:
  strategy: bfs
  maxDepth: 3
  blockedDomains:
    - ads.example.com
profiles:
  docs:
    strategy: best-first
    maxPages: 200
    keywords:
      - tutorial
      - api=0.4
    streaming: false
`
		path := filepath.Join(t.TempDir(), ".deepcrawl")
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}

		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cf.Defaults.MaxDepth != 3 {
			t.Errorf("expected default depth 3, got %d", cf.Defaults.MaxDepth)
		}
		docs, ok := cf.Profiles["docs"]
		if !ok {
			t.Fatal("expected docs profile")
		}
		if docs.Streaming == nil || *docs.Streaming {
			t.Error("expected docs profile to disable streaming")
		}
	})

	t.Run("invalid yaml returns error", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), ".deepcrawl")
		if err := os.WriteFile(path, []byte("defaults: [unclosed"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected parse error")
		}
	})
}

// TestFileGetProfile tests merging of defaults with a named profile.
func TestFileGetProfile(t *testing.T) {
	t.Parallel()

	no := false
	cf := &File{
		Defaults: Profile{
			Strategy: "bfs",
			MaxDepth: 3,
			Headers:  map[string]string{"X-Default": "1", "X-Shared": "default"},
			Keywords: []string{"go"},
		},
		Profiles: map[string]Profile{
			"deep": {
				Strategy:  "dfs",
				MaxDepth:  6,
				Streaming: &no,
				Headers:   map[string]string{"X-Shared": "profile"},
			},
		},
	}

	t.Run("empty name returns defaults", func(t *testing.T) {
		t.Parallel()
		p, err := cf.GetProfile("")
		if err != nil {
			t.Fatal(err)
		}
		if p.Strategy != "bfs" || p.MaxDepth != 3 {
			t.Errorf("unexpected profile: %+v", p)
		}
	})

	t.Run("named profile overrides set fields only", func(t *testing.T) {
		t.Parallel()
		p, err := cf.GetProfile("deep")
		if err != nil {
			t.Fatal(err)
		}
		if p.Strategy != "dfs" || p.MaxDepth != 6 {
			t.Errorf("expected dfs depth 6, got %s depth %d", p.Strategy, p.MaxDepth)
		}
		if len(p.Keywords) != 1 || p.Keywords[0] != "go" {
			t.Errorf("expected keywords inherited from defaults, got %v", p.Keywords)
		}
		if p.Headers["X-Default"] != "1" || p.Headers["X-Shared"] != "profile" {
			t.Errorf("unexpected merged headers: %v", p.Headers)
		}
		if cf.Defaults.Headers["X-Shared"] != "default" {
			t.Error("merging must not modify the defaults")
		}
	})

	t.Run("unknown profile returns ErrProfileNotFound", func(t *testing.T) {
		t.Parallel()
		if _, err := cf.GetProfile("missing"); !errors.Is(err, ErrProfileNotFound) {
			t.Errorf("expected ErrProfileNotFound, got %v", err)
		}
	})
}

// TestProfileApply tests that a profile is applied onto a Config.
func TestProfileApply(t *testing.T) {
	t.Parallel()

	t.Run("applies traversal settings and keyword weights", func(t *testing.T) {
		t.Parallel()
		threshold := 0.3
		yes := true
		p := Profile{
			Strategy:        "best-first",
			MaxPages:        120,
			IncludeExternal: &yes,
			Keywords:        []string{"crawler", "go=0.2"},
			KeywordWeight:   0.5,
			ScoreThreshold:  &threshold,
			Cookie:          "session=abc",
		}

		cfg := NewConfig()
		if err := p.Apply(cfg); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tr := cfg.Traversal
		if tr.Strategy != model.StrategyBestFirst || tr.MaxPages != 120 || !tr.IncludeExternal {
			t.Errorf("unexpected traversal: %+v", tr)
		}
		if tr.MaxDepth != DefaultMaxDepth {
			t.Errorf("unset depth must keep the default, got %d", tr.MaxDepth)
		}
		want := []Keyword{{"crawler", 0.5}, {"go", 0.2}}
		if len(tr.Keywords) != len(want) {
			t.Fatalf("expected %d keywords, got %v", len(want), tr.Keywords)
		}
		for i := range want {
			if tr.Keywords[i] != want[i] {
				t.Errorf("keyword %d: got %+v, want %+v", i, tr.Keywords[i], want[i])
			}
		}
		if tr.ScoreThreshold != 0.3 || cfg.Cookie != "session=abc" {
			t.Errorf("threshold or cookie not applied: %v %q", tr.ScoreThreshold, cfg.Cookie)
		}
	})

	t.Run("bad strategy is a validation error", func(t *testing.T) {
		t.Parallel()
		err := Profile{Strategy: "sideways"}.Apply(NewConfig())
		var verr *ValidationError
		if !errors.As(err, &verr) || !errors.Is(err, ErrUnknownStrategy) {
			t.Errorf("expected ValidationError wrapping ErrUnknownStrategy, got %v", err)
		}
	})

	t.Run("bad keyword weight is rejected", func(t *testing.T) {
		t.Parallel()
		err := Profile{Keywords: []string{"go=2"}}.Apply(NewConfig())
		if !errors.Is(err, ErrInvalidKeyword) {
			t.Errorf("expected ErrInvalidKeyword, got %v", err)
		}
	})
}
