package indexer

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/acemcp/acemcp/internal/blob"
	"github.com/acemcp/acemcp/internal/ignore"
	"github.com/acemcp/acemcp/internal/remote"
)

// IndexProject runs one incremental indexing pass: walk, filter, split,
// diff against the registry, upload new fragments in bounded-parallel
// batches, and merge the confirmed identities. It returns the post-merge
// identity set for the project, sorted.
func (m *Manager) IndexProject(ctx context.Context, projectRoot string) ([]string, error) {
	key, err := validateProjectRoot(projectRoot)
	if err != nil {
		return nil, err
	}

	existing, err := m.store.Get(key)
	if err != nil {
		return nil, err
	}

	passID := uuid.NewString()[:8]
	log := slog.With("pass", passID, "project", key)
	log.Info("indexing pass started", "known_identities", len(existing))

	matcher := ignore.NewMatcher(filepath.FromSlash(key), m.cfg.ExcludePatterns)

	// The walker pipelines into batching through a bounded channel that
	// holds at most batch_size * max_concurrent_uploads * 4 blobs. Batches
	// being assembled or uploaded, and the fragments of the file the walker
	// is currently sending, are held in addition to that buffer.
	blobCh := make(chan blob.Blob, m.cfg.BatchSize*m.cfg.MaxConcurrentUploads*4)

	walkCtx, cancelWalk := context.WithCancel(ctx)
	defer cancelWalk()

	var walkErr error
	go func() {
		defer close(blobCh)
		walkErr = m.walk(walkCtx, key, matcher, existing, blobCh, log)
	}()

	confirmed, uploadErrs := m.uploadAll(ctx, blobCh, log)

	// Preserve partial progress before reporting any failure: identities
	// the API acknowledged are merged even when the pass was cancelled.
	var merged map[string]struct{}
	if len(confirmed) > 0 {
		merged, err = m.store.MergeAndSave(key, confirmed)
	} else {
		merged, err = m.store.Get(key)
	}
	if err != nil {
		return nil, err
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if walkErr != nil {
		return nil, walkErr
	}
	if uploadErrs > 0 {
		log.Warn("pass finished with skipped batches", "failed_batches", uploadErrs, "confirmed", len(confirmed))
	} else {
		log.Info("indexing pass finished", "uploaded", len(confirmed), "total", len(merged))
	}

	ids := make([]string, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// walk traverses the project tree depth-first, pruning excluded
// directories, and sends every new blob to out in discovery order.
func (m *Manager) walk(ctx context.Context, key string, matcher *ignore.Matcher, existing map[string]struct{}, out chan<- blob.Blob, log *slog.Logger) error {
	root := filepath.FromSlash(key)

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			log.Warn("skipping unreadable entry", "path", path, "error", walkErr)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if matcher.Excluded(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !m.cfg.IsTextExtension(filepath.Ext(d.Name())) {
			return nil
		}
		if matcher.Excluded(rel, false) {
			return nil
		}

		text, err := blob.DecodeFile(path)
		if err != nil {
			log.Warn("skipping unreadable file", "path", rel, "error", err)
			return nil
		}

		for _, b := range blob.Split(rel, text, m.cfg.MaxLinesPerBlob) {
			if _, known := existing[b.Identity]; known {
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
}

// uploadAll drains the blob channel into contiguous batches and uploads
// them with bounded concurrency. Batches are independent: one failing
// after all retries is logged and skipped, the rest continue. It returns
// the identities of every confirmed blob and the failed batch count.
func (m *Manager) uploadAll(ctx context.Context, in <-chan blob.Blob, log *slog.Logger) ([]string, int) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.MaxConcurrentUploads)

	var mu sync.Mutex
	var confirmed []string
	var failed int

	dispatch := func(batch []blob.Blob) {
		g.Go(func() error {
			payload := make([]remote.UploadBlob, len(batch))
			for i, b := range batch {
				payload[i] = remote.UploadBlob{Path: b.Label(), Content: b.Content}
			}

			names, err := m.client.UploadBatch(gctx, payload)
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				log.Warn("batch upload failed, skipping batch", "blobs", len(batch), "error", err)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			if len(names) != len(batch) {
				log.Warn("upload acknowledged unexpected blob count", "sent", len(batch), "acknowledged", len(names))
			}

			mu.Lock()
			for _, b := range batch {
				confirmed = append(confirmed, b.Identity)
			}
			mu.Unlock()
			if m.onProgress != nil {
				m.onProgress(len(batch))
			}
			return nil
		})
	}

	batch := make([]blob.Blob, 0, m.cfg.BatchSize)
	for b := range in {
		batch = append(batch, b)
		if len(batch) == m.cfg.BatchSize {
			dispatch(batch)
			batch = make([]blob.Blob, 0, m.cfg.BatchSize)
		}
	}
	if len(batch) > 0 {
		dispatch(batch)
	}

	g.Wait()
	return confirmed, failed
}
