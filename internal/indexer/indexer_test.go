package indexer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/acemcp/acemcp/internal/blob"
	"github.com/acemcp/acemcp/internal/config"
	"github.com/acemcp/acemcp/internal/registry"
	"github.com/acemcp/acemcp/internal/remote"
)

// fakeAPI is an httptest-backed stand-in for the retrieval API. It
// records every uploaded batch and answers searches with a fixed result.
type fakeAPI struct {
	mu         sync.Mutex
	batches    [][]remote.UploadBlob
	searches   []searchCall
	uploadHook func(w http.ResponseWriter, blobs []remote.UploadBlob) bool // true = handled
	srv        *httptest.Server
}

type searchCall struct {
	Query      string
	Identities []string
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{}
	mux := http.NewServeMux()
	mux.HandleFunc("/batch-upload", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Blobs []remote.UploadBlob `json:"blobs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		api.mu.Lock()
		hook := api.uploadHook
		api.mu.Unlock()
		if hook != nil && hook(w, req.Blobs) {
			return
		}
		api.mu.Lock()
		api.batches = append(api.batches, req.Blobs)
		api.mu.Unlock()
		names := make([]string, len(req.Blobs))
		for i, b := range req.Blobs {
			names[i] = blob.Identity(b.Path, b.Content)
		}
		json.NewEncoder(w).Encode(map[string]any{"blob_names": names})
	})
	mux.HandleFunc("/agents/codebase-retrieval", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			InformationRequest string `json:"information_request"`
			Blobs              struct {
				AddedBlobs []string `json:"added_blobs"`
			} `json:"blobs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		api.mu.Lock()
		api.searches = append(api.searches, searchCall{Query: req.InformationRequest, Identities: req.Blobs.AddedBlobs})
		api.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"formatted_retrieval": "relevant code here"})
	})
	api.srv = httptest.NewServer(mux)
	t.Cleanup(api.srv.Close)
	return api
}

func (a *fakeAPI) batchCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.batches)
}

func (a *fakeAPI) uploadedLabels() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var labels []string
	for _, batch := range a.batches {
		for _, b := range batch {
			labels = append(labels, b.Path)
		}
	}
	return labels
}

func newTestManager(t *testing.T, api *fakeAPI, mutate func(*config.Config)) (*Manager, *registry.Store) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Token = "test-token-abcdef"
	cfg.BaseURL = api.srv.URL
	cfg.RetryDelay = 0.005
	if mutate != nil {
		mutate(cfg)
	}
	store := registry.NewStore(t.TempDir())
	client := remote.NewClient(remote.Options{
		BaseURL:        cfg.BaseURL,
		Token:          cfg.Token,
		MaxRetries:     cfg.MaxRetries,
		RetryDelay:     cfg.RetryDelayDuration(),
		MaxConnections: cfg.MaxConcurrentUploads,
	})
	return NewManager(cfg, store, client), store
}

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// The temp dir may itself live behind a symlink (e.g. /tmp on macOS).
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		t.Fatal(err)
	}
	return resolved
}

func TestFreshProjectSingleFile(t *testing.T) {
	api := newFakeAPI(t)
	m, store := newTestManager(t, api, nil)
	root := writeProject(t, map[string]string{
		"a.py": strings.Repeat("print('hi')\n", 10),
	})

	text, err := m.SearchContext(context.Background(), root, "greeting logic")
	if err != nil {
		t.Fatalf("SearchContext: %v", err)
	}
	if text != "relevant code here" {
		t.Errorf("text = %q", text)
	}

	if api.batchCount() != 1 {
		t.Fatalf("batch count = %d, want 1", api.batchCount())
	}
	labels := api.uploadedLabels()
	if len(labels) != 1 || labels[0] != "a.py" {
		t.Errorf("uploaded labels = %v", labels)
	}

	key := filepath.ToSlash(root)
	set, err := store.Get(key)
	if err != nil {
		t.Fatal(err)
	}
	if len(set) != 1 {
		t.Errorf("registry holds %d identities, want 1", len(set))
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.searches) != 1 || len(api.searches[0].Identities) != 1 {
		t.Errorf("search call = %+v", api.searches)
	}
}

func TestSecondPassUploadsNothing(t *testing.T) {
	api := newFakeAPI(t)
	m, _ := newTestManager(t, api, nil)
	root := writeProject(t, map[string]string{
		"a.py": "x = 1\n",
		"b.go": "package b\n",
	})

	if _, err := m.SearchContext(context.Background(), root, "anything"); err != nil {
		t.Fatal(err)
	}
	first := api.batchCount()

	if _, err := m.SearchContext(context.Background(), root, "anything else"); err != nil {
		t.Fatal(err)
	}
	if api.batchCount() != first {
		t.Errorf("second pass uploaded %d batches, want 0", api.batchCount()-first)
	}
}

func TestChangedFileUploadsOnlyNewFragments(t *testing.T) {
	api := newFakeAPI(t)
	m, _ := newTestManager(t, api, nil)
	root := writeProject(t, map[string]string{"a.py": "version = 1\n"})

	if _, err := m.IndexProject(context.Background(), root); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "a.py"), []byte("version = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := m.IndexProject(context.Background(), root); err != nil {
		t.Fatal(err)
	}

	labels := api.uploadedLabels()
	if len(labels) != 2 {
		t.Errorf("uploaded labels = %v, want the file twice (old + new content)", labels)
	}
}

func TestLargeFileSplitsIntoLabelledFragments(t *testing.T) {
	api := newFakeAPI(t)
	m, _ := newTestManager(t, api, func(c *config.Config) {
		c.BatchSize = 10
	})
	root := writeProject(t, map[string]string{
		"big.py": strings.Repeat("line\n", 1700),
	})

	if _, err := m.IndexProject(context.Background(), root); err != nil {
		t.Fatal(err)
	}

	if api.batchCount() != 1 {
		t.Errorf("batch count = %d, want 1 (three fragments fit one batch)", api.batchCount())
	}
	labels := api.uploadedLabels()
	want := map[string]bool{"big.py#0": false, "big.py#1": false, "big.py#2": false}
	for _, l := range labels {
		if _, ok := want[l]; !ok {
			t.Errorf("unexpected label %q", l)
		}
		want[l] = true
	}
	for l, seen := range want {
		if !seen {
			t.Errorf("label %q missing", l)
		}
	}
}

func TestExcludedPathsNeverUploaded(t *testing.T) {
	api := newFakeAPI(t)
	m, _ := newTestManager(t, api, nil)
	root := writeProject(t, map[string]string{
		"src/main.py":               "ok\n",
		"node_modules/pkg/index.js": "skip\n",
		".git/config.json":          "skip\n",
		"build/out.js":              "skip\n",
		"ignored-by-gitignore.py":   "skip\n",
		".gitignore":                "ignored-by-gitignore.py\n",
	})

	if _, err := m.IndexProject(context.Background(), root); err != nil {
		t.Fatal(err)
	}

	for _, label := range api.uploadedLabels() {
		if label != "src/main.py" {
			t.Errorf("excluded path uploaded: %s", label)
		}
	}
	if n := len(api.uploadedLabels()); n != 1 {
		t.Errorf("uploaded %d blobs, want 1", n)
	}
}

func TestNonTextExtensionsSkipped(t *testing.T) {
	api := newFakeAPI(t)
	m, _ := newTestManager(t, api, nil)
	root := writeProject(t, map[string]string{
		"image.png": "\x89PNG....",
		"main.py":   "ok\n",
	})

	if _, err := m.IndexProject(context.Background(), root); err != nil {
		t.Fatal(err)
	}
	labels := api.uploadedLabels()
	if len(labels) != 1 || labels[0] != "main.py" {
		t.Errorf("uploaded labels = %v, want only main.py", labels)
	}
}

func TestBatchSizeOne(t *testing.T) {
	api := newFakeAPI(t)
	m, _ := newTestManager(t, api, func(c *config.Config) {
		c.BatchSize = 1
		c.MaxConcurrentUploads = 2
	})
	root := writeProject(t, map[string]string{
		"a.py": "a\n", "b.py": "b\n", "c.py": "c\n",
	})

	if _, err := m.IndexProject(context.Background(), root); err != nil {
		t.Fatal(err)
	}
	if api.batchCount() != 3 {
		t.Errorf("batch count = %d, want 3 with batch size 1", api.batchCount())
	}
}

func TestFailedBatchIsSkippedAndSearchProceeds(t *testing.T) {
	api := newFakeAPI(t)
	api.uploadHook = func(w http.ResponseWriter, blobs []remote.UploadBlob) bool {
		for _, b := range blobs {
			if b.Path == "poison.py" {
				http.Error(w, "rejected", http.StatusBadRequest)
				return true
			}
		}
		return false
	}
	m, store := newTestManager(t, api, func(c *config.Config) {
		c.BatchSize = 1
	})
	root := writeProject(t, map[string]string{
		"good.py":   "fine\n",
		"poison.py": "rejected upstream\n",
	})

	text, err := m.SearchContext(context.Background(), root, "query")
	if err != nil {
		t.Fatalf("SearchContext should succeed over the confirmed subset: %v", err)
	}
	if text != "relevant code here" {
		t.Errorf("text = %q", text)
	}

	set, err := store.Get(filepath.ToSlash(root))
	if err != nil {
		t.Fatal(err)
	}
	if len(set) != 1 {
		t.Errorf("registry holds %d identities, want only the confirmed one", len(set))
	}
}

func TestUploadRetriesTransientFailures(t *testing.T) {
	var failures atomic.Int32
	api := newFakeAPI(t)
	api.uploadHook = func(w http.ResponseWriter, blobs []remote.UploadBlob) bool {
		if failures.Add(1) <= 2 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return true
		}
		return false
	}
	m, _ := newTestManager(t, api, nil)
	root := writeProject(t, map[string]string{"a.py": "x\n"})

	if _, err := m.IndexProject(context.Background(), root); err != nil {
		t.Fatal(err)
	}
	if api.batchCount() != 1 {
		t.Errorf("confirmed batches = %d, want 1 after retries", api.batchCount())
	}
}

func TestInvalidProjectRoot(t *testing.T) {
	api := newFakeAPI(t)
	m, _ := newTestManager(t, api, nil)

	cases := []string{
		"",
		"   ",
		"../etc/passwd",
		"relative/path",
		strings.Repeat("/x", 2049),
	}
	for _, root := range cases {
		_, err := m.SearchContext(context.Background(), root, "q")
		if err == nil {
			t.Errorf("root %q: expected error", root)
			continue
		}
		if !strings.Contains(err.Error(), "invalid project_root_path") {
			t.Errorf("root %q: error = %v", root, err)
		}
	}
	if api.batchCount() != 0 {
		t.Error("invalid roots must not reach the network")
	}
}

func TestInvalidQuery(t *testing.T) {
	api := newFakeAPI(t)
	m, _ := newTestManager(t, api, nil)
	root := writeProject(t, map[string]string{"a.py": "x\n"})

	if _, err := m.SearchContext(context.Background(), root, ""); err == nil ||
		!strings.Contains(err.Error(), "invalid query") {
		t.Errorf("empty query: err = %v", err)
	}
	if _, err := m.SearchContext(context.Background(), root, strings.Repeat("q", 10001)); err == nil ||
		!strings.Contains(err.Error(), "invalid query") {
		t.Errorf("oversize query: err = %v", err)
	}
}

func TestSymlinkRootUsesCanonicalKey(t *testing.T) {
	api := newFakeAPI(t)
	m, store := newTestManager(t, api, nil)
	real := writeProject(t, map[string]string{"a.py": "x\n"})

	link := filepath.Join(t.TempDir(), "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	if _, err := m.IndexProject(context.Background(), link); err != nil {
		t.Fatal(err)
	}

	set, err := store.Get(filepath.ToSlash(real))
	if err != nil {
		t.Fatal(err)
	}
	if len(set) != 1 {
		t.Errorf("canonical key not used; registry = %v", set)
	}
}

func TestRegistryUnionInvariant(t *testing.T) {
	api := newFakeAPI(t)
	m, store := newTestManager(t, api, nil)
	root := writeProject(t, map[string]string{"a.py": "x\n"})

	key := filepath.ToSlash(root)
	if _, err := store.MergeAndSave(key, []string{"pre-existing-identity"}); err != nil {
		t.Fatal(err)
	}

	ids, err := m.IndexProject(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}

	found := false
	for _, id := range ids {
		if id == "pre-existing-identity" {
			found = true
		}
	}
	if !found {
		t.Error("pre-existing identity dropped: registry must stay additive")
	}
	if len(ids) != 2 {
		t.Errorf("post-merge set = %v, want pre-existing plus uploaded", ids)
	}
}

func TestCancellationPreservesMergedProgress(t *testing.T) {
	api := newFakeAPI(t)
	m, _ := newTestManager(t, api, nil)
	root := writeProject(t, map[string]string{"a.py": "x\n"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.IndexProject(ctx, root)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	// A cancelled pass must not have corrupted anything: a fresh pass works.
	if _, err := m.IndexProject(context.Background(), root); err != nil {
		t.Fatalf("pass after cancellation: %v", err)
	}
}

func TestProgressCallback(t *testing.T) {
	api := newFakeAPI(t)
	m, _ := newTestManager(t, api, func(c *config.Config) { c.BatchSize = 1 })
	root := writeProject(t, map[string]string{"a.py": "a\n", "b.py": "b\n"})

	var total atomic.Int32
	m.SetProgressFunc(func(confirmed int) { total.Add(int32(confirmed)) })

	if _, err := m.IndexProject(context.Background(), root); err != nil {
		t.Fatal(err)
	}
	if total.Load() != 2 {
		t.Errorf("progress total = %d, want 2", total.Load())
	}

	// IndexProject waits for every upload goroutine, so all callbacks have
	// already run; this pause is not needed for the count checked above.
	time.Sleep(10 * time.Millisecond)
}
