package mcp

import "github.com/mark3labs/mcp-go/mcp"

// searchContextTool defines the search_context MCP tool.
var searchContextTool = mcp.NewTool("search_context",
	mcp.WithDescription(
		"Search for relevant code context based on a query within a specific project. "+
			"This tool automatically performs incremental indexing before searching, ensuring "+
			"results are always up-to-date. Returns formatted text snippets from the codebase "+
			"that are semantically related to your query.\n\n"+
			"Only use absolute, trusted paths; paths containing '..' are rejected. "+
			"Use forward slashes (/) as path separators in project_root_path, even on Windows.",
	),
	mcp.WithString("project_root_path",
		mcp.Required(),
		mcp.Description("Absolute path to the project root directory. Use forward slashes (/) as separators. Example: C:/Users/username/projects/myproject"),
	),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query to find relevant code context. Examples: 'logging configuration setup', 'user authentication login', 'database connection pool'. Returns formatted snippets with file paths showing where the relevant code lives."),
	),
)
