// Package mcpserver exposes the nl_query tool over the Model Context Protocol.
package mcpserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nlquery/nlquery/internal/observability"
)

const (
	ToolName      = "nl_query"
	DefaultFormat = "formatted"
)

// Handler answers one tool call with its text reply.
type Handler interface {
	Handle(ctx context.Context, prompt, format string) string
}

func New(name, version string, handler Handler) *server.MCPServer {
	s := server.NewMCPServer(name, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.AddTool(Tool(), ToolHandler(handler))
	return s
}

func Tool() mcp.Tool {
	return mcp.NewTool(ToolName,
		mcp.WithDescription("Translate a natural-language question into a read-only SQL SELECT statement, "+
			"run it against the configured database and return at most 100 rows."),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("Natural-language description of the data to fetch, e.g. \"authors living in CA\"."),
		),
		mcp.WithString("output_format",
			mcp.Description("formatted (table, default), query_only (SQL text only, not executed), csv or json."),
			mcp.DefaultString(DefaultFormat),
		),
		mcp.WithTitleAnnotation("Natural language query"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// ToolHandler always returns a single text block. Failures are part of the
// text, never a protocol error.
func ToolHandler(handler Handler) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt := request.GetString("prompt", "")
		if strings.TrimSpace(prompt) == "" {
			return mcp.NewToolResultText("Error: prompt is required"), nil
		}
		format := request.GetString("output_format", DefaultFormat)
		return mcp.NewToolResultText(handler.Handle(ctx, prompt, format)), nil
	}
}

// Serve speaks JSON-RPC on stdin/stdout until ctx is cancelled or stdin
// closes. Diagnostics go to logger, never to stdout.
func Serve(ctx context.Context, s *server.MCPServer, stdin io.Reader, stdout io.Writer, logger *slog.Logger) error {
	stdio := server.NewStdioServer(s)
	stdio.SetErrorLogger(observability.StdLogger(logger, slog.LevelError))

	logger.Info("starting mcp stdio server", slog.String("tool", ToolName))
	err := stdio.Listen(ctx, stdin, stdout)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return err
	}
	logger.Info("mcp stdio server stopped")
	return nil
}
