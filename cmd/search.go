package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/acemcp/acemcp/internal/config"
	"github.com/acemcp/acemcp/internal/indexer"
	"github.com/acemcp/acemcp/internal/logging"
	"github.com/acemcp/acemcp/internal/registry"
	"github.com/acemcp/acemcp/internal/remote"
)

var searchCmd = &cobra.Command{
	Use:   "search <project-root> <query...>",
	Short: "Index a project and run one semantic search",
	Long: `Performs the same operation the MCP search_context tool exposes:
an incremental indexing pass followed by a semantic query against the
remote index. Prints the retrieved context.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logging.Setup(logging.Options{
			Level:    logging.LevelFromEnv(),
			FilePath: filepath.Join(config.LogDir(), "acemcp.log"),
		})

		store := registry.NewStore(config.DataDir())
		client := remote.NewClient(remote.Options{
			BaseURL:        cfg.BaseURL,
			Token:          cfg.Token,
			MaxRetries:     cfg.MaxRetries,
			RetryDelay:     cfg.RetryDelayDuration(),
			MaxConnections: cfg.MaxConcurrentUploads,
		})
		manager := indexer.NewManager(cfg, store, client)

		text, err := manager.SearchContext(cmd.Context(), args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}

		fmt.Println(text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
