package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TokenSentinel is the placeholder token shipped in the default settings
// file. A config carrying it is treated as unconfigured.
const TokenSentinel = "your-token-here"

// tokenSentinels lists every placeholder value refused at validation.
var tokenSentinels = []string{
	TokenSentinel,
	"your-token-here-please-configure",
}

// Config is the immutable settings snapshot consumed by the indexing core.
// It corresponds to ~/.acemcp/settings.toml with ACEMCP_* env overrides.
type Config struct {
	BatchSize            int      `toml:"batch_size" koanf:"batch_size"`
	MaxLinesPerBlob      int      `toml:"max_lines_per_blob" koanf:"max_lines_per_blob"`
	MaxConcurrentUploads int      `toml:"max_concurrent_uploads" koanf:"max_concurrent_uploads"`
	MaxRetries           int      `toml:"max_retries" koanf:"max_retries"`
	RetryDelay           float64  `toml:"retry_delay" koanf:"retry_delay"` // seconds
	BaseURL              string   `toml:"base_url" koanf:"base_url"`
	Token                string   `toml:"token" koanf:"token"`
	TextExtensions       []string `toml:"text_extensions" koanf:"text_extensions"`
	ExcludePatterns      []string `toml:"exclude_patterns" koanf:"exclude_patterns"`
}

// RetryDelayDuration returns the retry base delay as a time.Duration.
func (c *Config) RetryDelayDuration() time.Duration {
	return time.Duration(c.RetryDelay * float64(time.Second))
}

// IsTextExtension reports whether ext (including the leading dot) is on
// the allow-list.
func (c *Config) IsTextExtension(ext string) bool {
	for _, e := range c.TextExtensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// UserDir returns the acemcp home directory (~/.acemcp), honouring the
// ACEMCP_HOME override used by tests.
func UserDir() string {
	if dir := os.Getenv("ACEMCP_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".acemcp"
	}
	return filepath.Join(home, ".acemcp")
}

// SettingsPath returns the path of the user settings file.
func SettingsPath() string {
	return filepath.Join(UserDir(), "settings.toml")
}

// DataDir returns the directory holding persistent index state.
func DataDir() string {
	return filepath.Join(UserDir(), "data")
}

// LogDir returns the directory holding rotated log files.
func LogDir() string {
	return filepath.Join(UserDir(), "log")
}
