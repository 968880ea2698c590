// Package mcp exposes email search as Model Context Protocol tools over stdio.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/foia-search/internal/adapters/render"
	"github.com/kirillkom/foia-search/internal/core/domain"
	"github.com/kirillkom/foia-search/internal/core/ports"
)

const (
	ServerName    = "foia-search"
	ServerVersion = "0.1.0"
)

type Server struct {
	mcp    *server.MCPServer
	search ports.DocumentSearchService
	docs   ports.DocumentReader
}

func NewServer(search ports.DocumentSearchService, docs ports.DocumentReader) *Server {
	s := &Server{
		mcp:    server.NewMCPServer(ServerName, ServerVersion),
		search: search,
		docs:   docs,
	}
	s.mcp.AddTool(searchEmailsTool(), s.handleSearchEmails)
	s.mcp.AddTool(getEmailTool(), s.handleGetEmail)
	return s
}

// Serve blocks on stdin/stdout until the client disconnects. Logs must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}

func searchEmailsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_emails",
		Description: "Search the FOIA email archive. Returns ranked emails with near-duplicates removed.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Free-text search query",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of emails to return",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"query"},
		},
	}
}

func getEmailTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_email",
		Description: "Fetch one email from the archive by id, with metadata and page scans.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Email document id as returned by search_emails",
				},
			},
			Required: []string{"id"},
		},
	}
}

func (s *Server) handleSearchEmails(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	query, _ := args["query"].(string)
	limit, err := intArgument(args, "limit")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp, err := s.search.Search(ctx, query, limit)
	if err != nil {
		return toolError("search_emails", err), nil
	}
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultText("Query is empty; no search was run."), nil
	}
	return mcp.NewToolResultText(render.Results(resp)), nil
}

func (s *Server) handleGetEmail(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	id, _ := args["id"].(string)

	result, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return toolError("get_email", err), nil
	}
	return mcp.NewToolResultText(render.Markdown(*result)), nil
}

// intArgument accepts JSON numbers and numeric strings. A missing key yields 0.
func intArgument(args map[string]interface{}, key string) (int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, nil
	}
	switch v := raw.(type) {
	case float64:
		if v < 0 || v != float64(int(v)) {
			return 0, fmt.Errorf("%s must be a non-negative integer", key)
		}
		return int(v), nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("%s must be a non-negative integer", key)
		}
		return v, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%s must be a non-negative integer", key)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
}

func toolError(tool string, err error) *mcp.CallToolResult {
	switch {
	case domain.IsKind(err, domain.ErrRetrievalUnavailable):
		slog.Error("mcp_tool_failed", "tool", tool, "error", err.Error())
		return mcp.NewToolResultError("search temporarily unavailable")
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return mcp.NewToolResultError("email not found")
	case domain.IsKind(err, domain.ErrInvalidInput):
		return mcp.NewToolResultError(err.Error())
	default:
		slog.Error("mcp_tool_failed", "tool", tool, "error", err.Error())
		return mcp.NewToolResultError("internal error")
	}
}
