package ignore

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/denormal/go-gitignore"
)

// Matcher decides whether a project-relative path is excluded from
// indexing. It combines the configured exclude patterns with the
// .gitignore found at the project root, if any. Matching is
// case-sensitive and operates on forward-slash paths.
type Matcher struct {
	root      string
	patterns  []string
	gitIgnore gitignore.GitIgnore
}

// gitignoreCache holds parsed .gitignore files keyed by project root.
// Read-mostly; safe for concurrent use.
var gitignoreCache sync.Map // string -> cachedGitignore

type cachedGitignore struct {
	gi gitignore.GitIgnore
}

// NewMatcher builds a matcher for the given project root and configured
// exclude patterns. The root's .gitignore is parsed once and cached.
func NewMatcher(root string, patterns []string) *Matcher {
	return &Matcher{
		root:      root,
		patterns:  patterns,
		gitIgnore: loadGitignore(root),
	}
}

// Excluded reports whether the given project-relative path should be
// skipped. Callers walking a tree must prune excluded directories rather
// than descending into them.
func (m *Matcher) Excluded(relPath string, isDir bool) bool {
	norm := filepath.ToSlash(relPath)
	if norm == "" || norm == "." {
		return false
	}

	if m.matchesPatterns(norm, isDir) {
		return true
	}

	if m.gitIgnore != nil {
		if match := m.gitIgnore.Relative(norm, isDir); match != nil && match.Ignore() {
			return true
		}
	}

	return false
}

// matchesPatterns applies the configured exclude-pattern semantics:
// literal or glob match against any single path segment, trailing-slash
// directory-only patterns against the component chain, and a full-path
// glob attempt.
func (m *Matcher) matchesPatterns(norm string, isDir bool) bool {
	segments := strings.Split(norm, "/")

	for _, pattern := range m.patterns {
		p := filepath.ToSlash(pattern)
		dirOnly := strings.HasSuffix(p, "/")
		p = strings.TrimSuffix(p, "/")
		if p == "" {
			continue
		}

		if dirOnly {
			// Matches any path whose component chain contains the directory.
			for i, seg := range segments {
				if ok, _ := doublestar.Match(p, seg); ok {
					if i < len(segments)-1 || isDir {
						return true
					}
				}
			}
			continue
		}

		for _, seg := range segments {
			if ok, _ := doublestar.Match(p, seg); ok {
				return true
			}
		}

		if ok, _ := doublestar.Match(p, norm); ok {
			return true
		}
	}

	return false
}

// loadGitignore parses .gitignore at the project root, consulting the
// per-root cache first. Roots without a .gitignore are cached as absent.
func loadGitignore(root string) gitignore.GitIgnore {
	if cached, ok := gitignoreCache.Load(root); ok {
		return cached.(cachedGitignore).gi
	}

	var gi gitignore.GitIgnore
	if f, err := os.Open(filepath.Join(root, ".gitignore")); err == nil {
		gi = gitignore.New(f, root, nil)
		f.Close()
	}

	gitignoreCache.Store(root, cachedGitignore{gi: gi})
	return gi
}

// InvalidateCache drops the cached .gitignore for a project root. Used by
// tests and by callers that know the file changed.
func InvalidateCache(root string) {
	gitignoreCache.Delete(root)
}
