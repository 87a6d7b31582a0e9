package remote

import (
	"context"
	"encoding/json"
	"fmt"
)

// NoContextMessage is returned when the API produces no retrieval text.
const NoContextMessage = "No relevant code context found for your query."

type searchBlobs struct {
	CheckpointID *string  `json:"checkpoint_id"`
	AddedBlobs   []string `json:"added_blobs"`
	DeletedBlobs []string `json:"deleted_blobs"`
}

type searchRequest struct {
	InformationRequest       string      `json:"information_request"`
	Blobs                    searchBlobs `json:"blobs"`
	Dialog                   []string    `json:"dialog"`
	MaxOutputLength          int         `json:"max_output_length"`
	DisableCodebaseRetrieval bool        `json:"disable_codebase_retrieval"`
	EnableCommitRetrieval    bool        `json:"enable_commit_retrieval"`
}

type searchResponse struct {
	FormattedRetrieval string `json:"formatted_retrieval"`
}

// Search posts a semantic query over the project's known identities and
// returns the formatted retrieval text verbatim. Deleted blobs are never
// signalled; the index is additive.
func (c *Client) Search(ctx context.Context, query string, identities []string) (string, error) {
	if identities == nil {
		identities = []string{}
	}
	req := searchRequest{
		InformationRequest: query,
		Blobs: searchBlobs{
			CheckpointID: nil,
			AddedBlobs:   identities,
			DeletedBlobs: []string{},
		},
		Dialog: []string{},
	}

	// Searches back off more conservatively than uploads.
	delay := c.retryDelay
	if delay < searchDelayFloor {
		delay = searchDelayFloor
	}

	data, err := c.postJSON(ctx, "search", "/agents/codebase-retrieval", req, delay)
	if err != nil {
		return "", err
	}

	var resp searchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", &PermanentError{Op: "search", Err: fmt.Errorf("decoding response: %w", err)}
	}
	if resp.FormattedRetrieval == "" {
		return NoContextMessage, nil
	}
	return resp.FormattedRetrieval, nil
}
