package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// handleSearchContext validates arguments, runs the facade, and renders
// every outcome as a text result. Errors never escape the tool boundary.
func (s *Server) handleSearchContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectRoot, err := request.RequireString("project_root_path")
	if err != nil {
		return mcp.NewToolResultText("Error: project_root_path is required"), nil
	}
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultText("Error: query is required"), nil
	}

	slog.Info("tool invoked: search_context", "project", projectRoot, "query", firstN(query, 100))
	start := time.Now()

	text, err := s.searcher.SearchContext(ctx, projectRoot, query)
	if err != nil {
		slog.Error("search_context failed", "project", projectRoot, "error", err)
		return mcp.NewToolResultText(fmt.Sprintf("Error: %v", err)), nil
	}

	slog.Info("search_context completed", "elapsed", time.Since(start).Round(time.Millisecond))
	return mcp.NewToolResultText(text), nil
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
