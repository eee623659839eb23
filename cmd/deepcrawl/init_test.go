package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/nao1215/deepcrawl/internal/config"
)

func TestNewInitCmdFlags(t *testing.T) {
	t.Parallel()

	cmd := NewInitCmd()
	if cmd.Use != "init" || cmd.Short == "" {
		t.Errorf("unexpected command %q / %q", cmd.Use, cmd.Short)
	}

	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{"output", "o", config.DefaultConfigFile},
		{"force", "f", "false"},
		{"stdout", "", "false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("missing --%s", tt.name)
			}
			if flag.Shorthand != tt.shorthand || flag.DefValue != tt.defValue {
				t.Errorf("--%s: shorthand %q default %q", tt.name, flag.Shorthand, flag.DefValue)
			}
		})
	}
}

func TestRunInitCmd(t *testing.T) {
	t.Parallel()

	template, err := configTemplate.ReadFile(templatePath)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		relPath  string
		existing string
		extra    []string
		wantErr  string
		wantFile string
	}{
		{name: "writes template", relPath: ".deepcrawl", wantFile: string(template)},
		{name: "creates parent directories", relPath: "a/b/config.yaml", wantFile: string(template)},
		{name: "refuses to overwrite", relPath: ".deepcrawl", existing: "keep me", wantErr: "already exists", wantFile: "keep me"},
		{name: "overwrites with force", relPath: ".deepcrawl", existing: "old", extra: []string{"-f"}, wantFile: string(template)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), tt.relPath)
			if tt.existing != "" {
				if err := os.WriteFile(path, []byte(tt.existing), 0600); err != nil {
					t.Fatal(err)
				}
			}

			var out bytes.Buffer
			cmd := NewInitCmd()
			cmd.SetOut(&out)
			cmd.SetArgs(append([]string{"-o", path}, tt.extra...))
			err := cmd.Execute()

			switch {
			case tt.wantErr != "":
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
				}
			case err != nil:
				t.Fatalf("unexpected error: %v", err)
			default:
				if !strings.Contains(out.String(), "Created configuration file: "+path) {
					t.Errorf("unexpected output %q", out.String())
				}
			}

			got, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.wantFile {
				t.Errorf("file content mismatch:\n%s", got)
			}
		})
	}

	t.Run("stdout writes no file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), ".deepcrawl")
		var out bytes.Buffer
		cmd := NewInitCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"-o", path, "--stdout"})
		if err := cmd.Execute(); err != nil {
			t.Fatal(err)
		}
		if out.String() != string(template) {
			t.Error("expected the template on stdout")
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("file should not exist, stat err %v", err)
		}
	})

	t.Run("file is owner only", func(t *testing.T) {
		t.Parallel()
		if runtime.GOOS == "windows" {
			t.Skip("no unix permissions on windows")
		}

		path := filepath.Join(t.TempDir(), ".deepcrawl")
		cmd := NewInitCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"-o", path})
		if err := cmd.Execute(); err != nil {
			t.Fatal(err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("got %o, want 600", perm)
		}
	})
}

// TestConfigTemplateLoads checks that the embedded template is a usable
// configuration file and that its example profile validates.
func TestConfigTemplateLoads(t *testing.T) {
	t.Parallel()

	content, err := configTemplate.ReadFile(templatePath)
	if err != nil {
		t.Fatal(err)
	}
	for _, section := range []string{"defaults:", "profiles:", "# "} {
		if !strings.Contains(string(content), section) {
			t.Errorf("template lacks %q", section)
		}
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatal(err)
	}
	cf, err := config.LoadConfigFile(path)
	if err != nil {
		t.Fatalf("template does not parse: %v", err)
	}

	for _, name := range []string{"", "docs"} {
		p, err := cf.GetProfile(name)
		if err != nil {
			t.Fatalf("profile %q: %v", name, err)
		}
		cfg := config.NewConfig()
		cfg.Seeds = []string{"https://example.com/"}
		if err := p.Apply(cfg); err != nil {
			t.Fatalf("profile %q does not apply: %v", name, err)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("profile %q is not valid: %v", name, err)
		}
	}
}
