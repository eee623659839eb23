package main

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/deepcrawl/internal/config"
)

//go:embed templates/deepcrawl.yaml
var configTemplate embed.FS

const (
	templatePath   = "templates/deepcrawl.yaml"
	configFileName = config.DefaultConfigFile
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a .deepcrawl configuration file",
		Long: `Init writes a commented .deepcrawl configuration file.

The file holds default traversal settings applied to every crawl and named
profiles selected with 'deepcrawl crawl --profile <name>'.

Examples:
  # Create .deepcrawl in the current directory
  deepcrawl init

  # Create the file at a specific path
  deepcrawl init -o ~/.config/deepcrawl/config.yaml

  # Print the template instead of writing a file
  deepcrawl init --stdout`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", configFileName,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite an existing configuration file")
	cmd.Flags().Bool("stdout", false,
		"Print the template to standard output")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	path, _ := flags.GetString("output")   //nolint:errcheck // flag is registered above
	force, _ := flags.GetBool("force")     //nolint:errcheck // flag is registered above
	toStdout, _ := flags.GetBool("stdout") //nolint:errcheck // flag is registered above

	content, err := configTemplate.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("read embedded template: %w", err)
	}

	out := cmd.OutOrStdout()
	if toStdout {
		_, err := out.Write(content)
		return err
	}

	if err := writeConfigFile(path, content, force); err != nil {
		return err
	}

	fmt.Fprintf(out, "Created configuration file: %s\n\n", path)
	fmt.Fprintln(out, "Set the default strategy, depth and page cap under 'defaults',")
	fmt.Fprintln(out, "and add a profile per site you crawl often. Keywords enable")
	fmt.Fprintln(out, "best-first crawling.")
	return nil
}

// writeConfigFile creates path with owner-only permissions. Without force
// an existing file is left alone and reported.
func writeConfigFile(path string, content []byte, force bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}

	mode := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		mode = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(path, mode, 0600) //nolint:gosec // path is chosen by the user
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", path)
	}
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if _, err := f.Write(content); err != nil {
		_ = f.Close() //nolint:errcheck // the write error is reported
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
