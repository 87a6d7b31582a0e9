package config

// DefaultTextExtensions is the extension allow-list applied when the user
// settings file does not override it.
var DefaultTextExtensions = []string{
	".py", ".js", ".ts", ".jsx", ".tsx",
	".java", ".go", ".rs", ".cpp", ".c", ".h", ".hpp", ".cs",
	".rb", ".php",
	".md", ".txt", ".json", ".yaml", ".yml", ".toml", ".xml",
	".html", ".css", ".scss",
	".sql", ".sh", ".bash",
}

// DefaultExcludePatterns are path patterns excluded from indexing by default.
var DefaultExcludePatterns = []string{
	".venv", "venv", ".env", "env",
	"node_modules",
	".git", ".svn", ".hg",
	"__pycache__", ".pytest_cache", ".mypy_cache", ".tox", ".eggs",
	"*.egg-info",
	"dist", "build",
	".idea", ".vscode", ".DS_Store",
	"*.pyc", "*.pyo", "*.pyd", ".Python",
	"pip-log.txt", "pip-delete-this-directory.txt",
	".coverage", "htmlcov",
	".gradle", "target", "bin", "obj",
}

// DefaultConfig returns a Config with sensible defaults. The token is the
// unconfigured sentinel and must be replaced before the server will run.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:            10,
		MaxLinesPerBlob:      800,
		MaxConcurrentUploads: 3,
		MaxRetries:           3,
		RetryDelay:           1.0,
		BaseURL:              "https://api.example.com/v1",
		Token:                TokenSentinel,
		TextExtensions:       append([]string(nil), DefaultTextExtensions...),
		ExcludePatterns:      append([]string(nil), DefaultExcludePatterns...),
	}
}
