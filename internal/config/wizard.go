package config

import (
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to the user settings file.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to acemcp! Let's configure the retrieval API connection.")
	fmt.Println()

	cfg := DefaultConfig()

	urlPrompt := promptui.Prompt{
		Label:   "Retrieval API base URL",
		Default: cfg.BaseURL,
		Validate: func(s string) error {
			if !validHTTPURL(s) {
				return fmt.Errorf("must be a valid http(s) URL")
			}
			return nil
		},
	}
	baseURL, err := urlPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("base URL: %w", err)
	}
	cfg.BaseURL = baseURL

	tokenPrompt := promptui.Prompt{
		Label: "API bearer token",
		Mask:  '*',
		Validate: func(s string) error {
			if s == "" || s == TokenSentinel {
				return fmt.Errorf("token is required")
			}
			return nil
		},
	}
	token, err := tokenPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}
	cfg.Token = token

	batchPrompt := promptui.Prompt{
		Label:   "Upload batch size (1-100)",
		Default: strconv.Itoa(cfg.BatchSize),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > 100 {
				return fmt.Errorf("must be an integer between 1 and 100")
			}
			return nil
		},
	}
	batchStr, err := batchPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("batch size: %w", err)
	}
	cfg.BatchSize, _ = strconv.Atoi(batchStr)

	concPrompt := promptui.Prompt{
		Label:   "Max concurrent uploads (1-100)",
		Default: strconv.Itoa(cfg.MaxConcurrentUploads),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > 100 {
				return fmt.Errorf("must be an integer between 1 and 100")
			}
			return nil
		},
	}
	concStr, err := concPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("concurrency: %w", err)
	}
	cfg.MaxConcurrentUploads, _ = strconv.Atoi(concStr)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	path := SettingsPath()
	if err := cfg.Save(path); err != nil {
		return nil, err
	}
	fmt.Printf("\nConfiguration written to %s\n", path)

	return cfg, nil
}
