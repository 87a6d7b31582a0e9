package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Searcher is the indexing facade the server delegates to.
type Searcher interface {
	SearchContext(ctx context.Context, projectRoot, query string) (string, error)
}

// Server wraps an MCP stdio server exposing the search_context tool.
type Server struct {
	searcher Searcher
	mcp      *server.MCPServer
}

// NewServer creates the MCP server around the given facade.
func NewServer(searcher Searcher) *Server {
	s := &Server{searcher: searcher}

	s.mcp = server.NewMCPServer(
		"acemcp",
		Version,
		server.WithToolCapabilities(false),
	)

	s.mcp.AddTool(searchContextTool, s.handleSearchContext)

	return s
}

// Serve starts the MCP server on stdio. Stdout carries MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
