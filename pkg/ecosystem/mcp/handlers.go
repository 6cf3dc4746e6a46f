package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ormasoftchile/padawan/pkg/bridge"
	"github.com/ormasoftchile/padawan/pkg/checker"
)

// Handlers serves the checker tools.
type Handlers struct {
	Checker *checker.Checker
}

// HandleCheck implements the padawan/check MCP tool.
func (h *Handlers) HandleCheck(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errorResult(fmt.Sprintf("read %s: %s", path, err)), nil
	}
	return h.checkResult(path, string(data)), nil
}

// HandleCheckText implements the padawan/check_text MCP tool.
func (h *Handlers) HandleCheckText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	text, ok := args["text"].(string)
	if !ok {
		return errorResult("text argument is required"), nil
	}
	return h.checkResult(path, text), nil
}

// HandleDiagnose implements the padawan/diagnose MCP tool.
func (h *Handlers) HandleDiagnose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	text, ok := args["text"].(string)
	if !ok {
		return errorResult("text argument is required"), nil
	}
	diags := h.Checker.Diagnose(text)
	if diags == nil {
		diags = []*checker.Diagnostic{}
	}
	data, err := json.MarshalIndent(diags, "", "  ")
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: len(diags) > 0,
	}, nil
}

// HandleSchema implements the padawan/schema MCP tool.
func HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := bridge.MessageSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

func (h *Handlers) checkResult(path, text string) *mcp.CallToolResult {
	if checker.Classify(path) == checker.KindUnchecked {
		return textResult(fmt.Sprintf("- %s is not a checked file type", path))
	}
	passed, report := h.Checker.Check(path, text)
	if passed {
		return textResult(fmt.Sprintf("✓ %s is valid", path))
	}
	return errorResult(fmt.Sprintf("✗ %s%s", path, indent(report)))
}

// indent shifts every report line under the file name.
func indent(report string) string {
	if !strings.HasPrefix(report, "\n") {
		report = "\n" + report
	}
	return strings.ReplaceAll(report, "\n", "\n  ")
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
