package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/acemcp/acemcp/internal/config"
	"github.com/acemcp/acemcp/internal/indexer"
	"github.com/acemcp/acemcp/internal/logging"
	"github.com/acemcp/acemcp/internal/registry"
	"github.com/acemcp/acemcp/internal/remote"
)

var indexCmd = &cobra.Command{
	Use:   "index <project-root>",
	Short: "Run one incremental indexing pass over a project",
	Long: `Walks the project tree, uploads new or changed fragments to the
retrieval API, and records the confirmed identities. Unchanged projects
upload nothing.`,
	Args: cobra.ExactArgs(1),
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

		bar := progressbar.Default(-1, "uploading blobs")
		manager.SetProgressFunc(func(confirmed int) {
			bar.Add(confirmed)
		})

		identities, err := manager.IndexProject(cmd.Context(), args[0])
		bar.Finish()
		if err != nil {
			return err
		}

		fmt.Printf("\nIndexed %s: %d identities on record\n", args[0], len(identities))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
