package cmd

import (
	"github.com/spf13/cobra"

	"github.com/acemcp/acemcp/internal/config"
)

var (
	flagBaseURL string
	flagToken   string
)

var rootCmd = &cobra.Command{
	Use:   "acemcp",
	Short: "Code-indexing and semantic-search bridge for MCP clients",
	Long: `acemcp walks a project tree, splits textual sources into
content-addressed fragments, uploads only the new ones to a remote
retrieval API, and answers semantic queries over the resulting index.
It is normally run as an MCP stdio server (acemcp serve), but one-shot
indexing and searching are available as plain commands.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "override the configured API base URL")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "override the configured API token")
}

// loadConfig bootstraps the user config tree and returns the settings
// snapshot with CLI overrides applied.
func loadConfig() (*config.Config, error) {
	path, err := config.EnsureUserConfig()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path, config.Overrides{BaseURL: flagBaseURL, Token: flagToken})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
