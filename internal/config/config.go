package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	toml "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	tomlenc "github.com/pelletier/go-toml/v2"
)

// Overrides carries command-line flag values that take precedence over both
// the settings file and environment variables.
type Overrides struct {
	BaseURL string
	Token   string
}

// Load reads the settings file at path, overlays ACEMCP_* environment
// variables and then CLI overrides, and returns the resulting snapshot.
// A missing file yields the defaults.
func Load(path string, overrides Overrides) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: ACEMCP_BATCH_SIZE -> batch_size, etc.
	if err := k.Load(env.Provider("ACEMCP_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "ACEMCP_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if overrides.BaseURL != "" {
		cfg.BaseURL = overrides.BaseURL
	}
	if overrides.Token != "" {
		cfg.Token = overrides.Token
	}

	return cfg, nil
}

// EnsureUserConfig creates the user config directory tree and seeds a
// default settings.toml on first run. The settings file is kept at mode
// 0600 since it holds the API token.
func EnsureUserConfig() (string, error) {
	for _, dir := range []string{UserDir(), DataDir(), LogDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	path := SettingsPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := DefaultConfig().Save(path); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", fmt.Errorf("accessing config %s: %w", path, err)
	}

	if info, err := os.Stat(path); err == nil && info.Mode().Perm() != 0o600 {
		if err := os.Chmod(path, 0o600); err != nil {
			return "", fmt.Errorf("restricting config permissions: %w", err)
		}
	}

	return path, nil
}

// Save writes the configuration to the given TOML file path with owner-only
// permissions.
func (c *Config) Save(path string) error {
	data, err := tomlenc.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// extensionPattern matches well-formed extension entries: a leading dot
// followed by alphanumerics and ._+- characters.
var extensionPattern = regexp.MustCompile(`^\.[A-Za-z0-9][A-Za-z0-9._+-]*$`)

// dangerousPatternPrefixes are exclude-pattern prefixes that point at system
// directories and are refused outright.
var dangerousPatternPrefixes = []string{
	"/etc", "/sys", "/proc", "/dev", "/boot", "/root",
	`C:\Windows`, `C:\System`,
}

// Validate checks that the configuration contains valid values. The token
// sentinel is refused so the server cannot run unconfigured.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url must be configured")
	}
	if !validHTTPURL(c.BaseURL) {
		return fmt.Errorf("base_url must be a valid HTTP/HTTPS URL: %s", c.BaseURL)
	}

	if c.Token == "" {
		return fmt.Errorf("token not configured")
	}
	for _, sentinel := range tokenSentinels {
		if c.Token == sentinel {
			return fmt.Errorf("token not configured")
		}
	}

	if c.BatchSize < 1 || c.BatchSize > 100 {
		return fmt.Errorf("batch_size must be between 1 and 100, got %d", c.BatchSize)
	}
	if c.MaxLinesPerBlob < 100 || c.MaxLinesPerBlob > 10000 {
		return fmt.Errorf("max_lines_per_blob must be between 100 and 10000, got %d", c.MaxLinesPerBlob)
	}
	if c.MaxConcurrentUploads < 1 || c.MaxConcurrentUploads > 100 {
		return fmt.Errorf("max_concurrent_uploads must be between 1 and 100, got %d", c.MaxConcurrentUploads)
	}
	if c.MaxRetries < 1 || c.MaxRetries > 10 {
		return fmt.Errorf("max_retries must be between 1 and 10, got %d", c.MaxRetries)
	}
	if c.RetryDelay < 0.1 || c.RetryDelay > 60.0 {
		return fmt.Errorf("retry_delay must be between 0.1 and 60.0 seconds, got %g", c.RetryDelay)
	}

	for _, ext := range c.TextExtensions {
		if !extensionPattern.MatchString(ext) {
			return fmt.Errorf("invalid file extension format (must start with '.'): %s", ext)
		}
	}

	for _, pattern := range c.ExcludePatterns {
		if err := validateExcludePattern(pattern); err != nil {
			return err
		}
	}

	return nil
}

func validHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func validateExcludePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("exclude pattern cannot be empty")
	}
	for _, prefix := range dangerousPatternPrefixes {
		if strings.HasPrefix(pattern, prefix) {
			return fmt.Errorf("invalid or dangerous exclude pattern: %s", pattern)
		}
	}
	if strings.Contains(pattern, "..") {
		return fmt.Errorf("invalid or dangerous exclude pattern: %s", pattern)
	}
	return nil
}

// MaskToken masks a secret for display, keeping the first and last four
// characters visible. Short tokens are masked entirely.
func MaskToken(token string) string {
	const visible = 4
	if token == "" {
		return ""
	}
	if len(token) <= visible*2 {
		return strings.Repeat("*", len(token))
	}
	return token[:visible] + "****" + token[len(token)-visible:]
}
