// Package mcpserver exposes the query engine and command suggestions as MCP tools.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rfushimi/q/internal/commands"
	"github.com/rfushimi/q/internal/engine"
	"github.com/rfushimi/q/internal/render"
	"github.com/rs/zerolog"
)

// Tool names
const (
	QueryTool   = "query"
	SuggestTool = "suggest_command"
)

// Server wraps the MCP server for q
type Server struct {
	mcpServer *mcp.Server
	engine    *engine.Engine
	matcher   *commands.Matcher
	logger    zerolog.Logger
}

// QueryToolArgs defines the arguments for the query tool
type QueryToolArgs struct {
	Prompt string `json:"prompt" jsonschema:"the prompt to send to the language model"`
}

// SuggestToolArgs defines the arguments for the suggest_command tool
type SuggestToolArgs struct {
	Query string `json:"query" jsonschema:"a description of the task, e.g. benchmark a shell command"`
}

// New creates a new MCP server
func New(eng *engine.Engine, matcher *commands.Matcher, version string, logger zerolog.Logger) *Server {
	s := &Server{
		engine:  eng,
		matcher: matcher,
		logger:  logger,
	}

	impl := &mcp.Implementation{
		Name:    "q",
		Version: version,
	}

	mcpServer := mcp.NewServer(impl, nil)

	mcp.AddTool(
		mcpServer,
		&mcp.Tool{
			Name:        QueryTool,
			Description: fmt.Sprintf("Ask %s a question and get a concise answer. Answers are cached.", eng.ModelName()),
		},
		s.handleQueryTool,
	)

	mcp.AddTool(
		mcpServer,
		&mcp.Tool{
			Name:        SuggestTool,
			Description: "Suggest command-line tools for a task, with examples.",
		},
		s.handleSuggestTool,
	)

	s.mcpServer = mcpServer

	logger.Info().
		Str("model", eng.ModelName()).
		Strs("tools", []string{QueryTool, SuggestTool}).
		Msg("MCP server initialized")

	return s
}

// ServeStdio starts the MCP server in stdio mode
func (s *Server) ServeStdio(ctx context.Context) error {
	s.logger.Info().Msg("Starting MCP server in stdio mode")

	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) handleQueryTool(ctx context.Context, request *mcp.CallToolRequest, args QueryToolArgs) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Prompt) == "" {
		return nil, nil, errors.New("prompt is required")
	}

	s.logger.Info().
		Int("prompt_len", len(args.Prompt)).
		Msg("MCP query invoked")

	result, err := s.engine.Run(ctx, args.Prompt, engine.QueryOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("query error: %w", err)
	}

	s.logger.Info().
		Str("id", result.ID).
		Bool("cached", result.Cached).
		Dur("duration", result.Duration).
		Msg("MCP query completed")

	return textResult(result.Answer), nil, nil
}

func (s *Server) handleSuggestTool(ctx context.Context, request *mcp.CallToolRequest, args SuggestToolArgs) (*mcp.CallToolResult, any, error) {
	s.logger.Info().
		Str("query", args.Query).
		Msg("MCP suggest invoked")

	cmds, err := s.matcher.Suggest(args.Query)
	if err != nil && !errors.Is(err, commands.ErrNoMatch) {
		return nil, nil, err
	}

	return textResult(commands.FormatSuggestions(cmds, render.PlainTheme())), nil, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
