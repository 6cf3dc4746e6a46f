// Package mcp exposes the structure checker to AI agents over the Model
// Context Protocol.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ormasoftchile/padawan/pkg/checker"
)

// NewServer creates a new MCP server with padawan tools registered.
func NewServer(version string, c *checker.Checker) *server.MCPServer {
	s := server.NewMCPServer(
		"padawan",
		version,
		server.WithToolCapabilities(true),
	)
	h := &Handlers{Checker: c}

	s.AddTool(
		mcp.NewTool("padawan/check",
			mcp.WithDescription("Check a test document (.jedi, .padawan) or fragment file (.star, .py) on disk"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the file")),
		),
		h.HandleCheck,
	)

	s.AddTool(
		mcp.NewTool("padawan/check_text",
			mcp.WithDescription("Check unsaved text as if it were the content of path; the suffix of path selects the check"),
			mcp.WithString("path", mcp.Required(), mcp.Description("File name used to pick the check")),
			mcp.WithString("text", mcp.Required(), mcp.Description("Content to check")),
		),
		h.HandleCheckText,
	)

	s.AddTool(
		mcp.NewTool("padawan/diagnose",
			mcp.WithDescription("List the findings of a test document as JSON"),
			mcp.WithString("text", mcp.Required(), mcp.Description("Test document content")),
		),
		h.HandleDiagnose,
	)

	s.AddTool(
		mcp.NewTool("padawan/schema",
			mcp.WithDescription("Export the JSON Schema of test-mode bridge messages"),
		),
		HandleSchema,
	)

	return s
}
