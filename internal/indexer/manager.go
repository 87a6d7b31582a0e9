package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/acemcp/acemcp/internal/config"
	"github.com/acemcp/acemcp/internal/registry"
	"github.com/acemcp/acemcp/internal/remote"
)

const (
	maxPathLength  = 4096
	maxQueryLength = 10000
)

// ProgressFunc is invoked after each successfully uploaded batch with the
// number of blobs it confirmed.
type ProgressFunc func(confirmed int)

// Manager drives incremental indexing passes and semantic searches for a
// configured remote API. One Manager serves all projects; per-call state
// lives on the stack so concurrent calls are safe.
type Manager struct {
	cfg        *config.Config
	store      *registry.Store
	client     *remote.Client
	onProgress ProgressFunc
}

// NewManager wires the indexing core from its collaborators.
func NewManager(cfg *config.Config, store *registry.Store, client *remote.Client) *Manager {
	return &Manager{cfg: cfg, store: store, client: client}
}

// SetProgressFunc installs a callback for CLI progress reporting.
func (m *Manager) SetProgressFunc(fn ProgressFunc) {
	m.onProgress = fn
}

// SearchContext runs one incremental indexing pass over projectRoot and
// then queries the remote index. Batches that failed after retries are
// skipped; the search proceeds over whatever identities are confirmed.
func (m *Manager) SearchContext(ctx context.Context, projectRoot, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("invalid query: must not be empty")
	}
	if len(query) > maxQueryLength {
		return "", fmt.Errorf("invalid query: too long (max %d characters)", maxQueryLength)
	}

	start := time.Now()

	identities, err := m.IndexProject(ctx, projectRoot)
	if err != nil {
		return "", err
	}

	text, err := m.client.Search(ctx, query, identities)
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}

	slog.Info("search_context completed",
		"project", projectRoot,
		"identities", len(identities),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return text, nil
}

// validateProjectRoot normalizes and checks a project root, returning the
// canonical project key: the symlink-resolved absolute path with forward
// slashes. The checks mirror the tool-boundary contract; nothing touches
// the filesystem tree before they pass.
func validateProjectRoot(root string) (string, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return "", fmt.Errorf("invalid project_root_path: must not be empty")
	}
	if len(root) > maxPathLength {
		return "", fmt.Errorf("invalid project_root_path: too long (max %d characters)", maxPathLength)
	}

	normalized := filepath.ToSlash(root)
	if strings.Contains(normalized, "..") {
		return "", fmt.Errorf("invalid project_root_path: path traversal detected")
	}
	if !filepath.IsAbs(filepath.FromSlash(root)) {
		return "", fmt.Errorf("invalid project_root_path: must be absolute")
	}

	canonical, err := filepath.EvalSymlinks(filepath.FromSlash(root))
	if err != nil {
		return "", fmt.Errorf("invalid project_root_path: %w", err)
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return "", fmt.Errorf("invalid project_root_path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("invalid project_root_path: not a directory")
	}

	// Readability probe: a root we cannot list would fail mid-walk anyway.
	f, err := os.Open(canonical)
	if err != nil {
		return "", fmt.Errorf("invalid project_root_path: %w", err)
	}
	f.Close()

	return filepath.ToSlash(canonical), nil
}
