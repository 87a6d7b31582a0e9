package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ErrCorrupt reports an unparseable registry file. It is surfaced to the
// caller rather than recovered, so state is never silently discarded.
var ErrCorrupt = errors.New("project registry is corrupt")

// Store persists, per project key, the set of blob identities the remote
// API has acknowledged. It is a single JSON document written atomically;
// an in-process lock serializes load-merge-save cycles.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore returns a store backed by projects.json inside dataDir.
func NewStore(dataDir string) *Store {
	return &Store{path: filepath.Join(dataDir, "projects.json")}
}

// Path returns the location of the backing file.
func (s *Store) Path() string { return s.path }

// Get returns the identity set currently recorded for projectKey. A
// missing file or absent project yields an empty set.
func (s *Store) Get(projectKey string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, err := s.load()
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(reg[projectKey]))
	for _, id := range reg[projectKey] {
		set[id] = struct{}{}
	}
	return set, nil
}

// MergeAndSave unions newIdentities into the project's recorded set and
// rewrites the registry atomically. It returns the post-merge set.
// Identities are never dropped: concurrent callers serialize here and
// each merges onto the latest on-disk state.
func (s *Store) MergeAndSave(projectKey string, newIdentities []string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, err := s.load()
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(reg[projectKey])+len(newIdentities))
	for _, id := range reg[projectKey] {
		set[id] = struct{}{}
	}
	for _, id := range newIdentities {
		set[id] = struct{}{}
	}

	merged := make([]string, 0, len(set))
	for id := range set {
		merged = append(merged, id)
	}
	sort.Strings(merged)
	reg[projectKey] = merged

	if err := s.save(reg); err != nil {
		return nil, err
	}
	return set, nil
}

// Projects returns every project key with its identity count, for the
// admin status endpoint.
func (s *Store) Projects() (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, err := s.load()
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(reg))
	for key, ids := range reg {
		counts[key] = len(ids)
	}
	return counts, nil
}

// load reads and parses the registry file. Callers hold s.mu.
func (s *Store) load() (map[string][]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string][]string), nil
		}
		return nil, fmt.Errorf("reading registry %s: %w", s.path, err)
	}

	var reg map[string][]string
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	if reg == nil {
		reg = make(map[string][]string)
	}
	return reg, nil
}

// save writes the registry via a temp file and rename, so readers never
// observe a partial document. Callers hold s.mu.
func (s *Store) save(reg map[string][]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating registry directory: %w", err)
	}

	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".projects-*.json")
	if err != nil {
		return fmt.Errorf("creating registry temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing registry: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing registry temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing registry: %w", err)
	}
	return nil
}
