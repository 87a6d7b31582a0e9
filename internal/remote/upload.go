package remote

import (
	"context"
	"encoding/json"
	"fmt"
)

// UploadBlob is one fragment in a batch-upload request. Path carries the
// fragment label (relative path plus optional #n suffix).
type UploadBlob struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type uploadRequest struct {
	Blobs []UploadBlob `json:"blobs"`
}

type uploadResponse struct {
	BlobNames []string `json:"blob_names"`
}

// UploadBatch posts one batch of fragments and returns the identities the
// API acknowledged, in request order. The caller correlates them with its
// own computed identities.
func (c *Client) UploadBatch(ctx context.Context, blobs []UploadBlob) ([]string, error) {
	data, err := c.postJSON(ctx, "batch upload", "/batch-upload", uploadRequest{Blobs: blobs}, c.retryDelay)
	if err != nil {
		return nil, err
	}

	var resp uploadResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &PermanentError{Op: "batch upload", Err: fmt.Errorf("decoding response: %w", err)}
	}
	return resp.BlobNames, nil
}
