package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for deepcrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deepcrawl",
		Short: "Multi-page web crawler with BFS, DFS and best-first traversal",
		Long: `deepcrawl crawls web sites starting from seed URLs.

Each seed is crawled in turn with the same traversal settings: a strategy
(bfs, dfs or best-first), a depth limit, a page cap, URL and domain filters
and optional keyword relevance scoring. Pages are printed as they arrive and
stored in a local history database.

Pages are fetched with a plain HTTP client by default. Use --engine chrome
to render JavaScript with a headless browser, and --tor-proxy or
--embedded-tor to route traffic through Tor.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("log-format", "text", "Log format on stderr: text or json")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
