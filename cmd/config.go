package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/acemcp/acemcp/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or initialize the acemcp configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively create the user settings file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.EnsureUserConfig(); err != nil {
			return err
		}
		_, err := config.RunWizard()
		return err
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active configuration with the token masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("settings file:          %s\n", config.SettingsPath())
		fmt.Printf("base_url:               %s\n", cfg.BaseURL)
		fmt.Printf("token:                  %s\n", config.MaskToken(cfg.Token))
		fmt.Printf("batch_size:             %d\n", cfg.BatchSize)
		fmt.Printf("max_lines_per_blob:     %d\n", cfg.MaxLinesPerBlob)
		fmt.Printf("max_concurrent_uploads: %d\n", cfg.MaxConcurrentUploads)
		fmt.Printf("max_retries:            %d\n", cfg.MaxRetries)
		fmt.Printf("retry_delay:            %gs\n", cfg.RetryDelay)
		fmt.Printf("text_extensions:        %s\n", strings.Join(cfg.TextExtensions, " "))
		fmt.Printf("exclude_patterns:       %s\n", strings.Join(cfg.ExcludePatterns, " "))

		if err := cfg.Validate(); err != nil {
			fmt.Printf("\nwarning: %v\n", err)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
