// Package mcpserver exposes the document service as Model Context Protocol
// tools so that agents can ask questions about the active document.
//
// Tools:
//   - ask_document: answer a question from the active document
//   - clear_document: remove the active document
//   - document_status: report the active document
//
// Uploading is not offered as a tool; documents arrive over HTTP.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/askdoc/pkg/api"
	"github.com/rhuss/askdoc/pkg/debug"
	"github.com/rhuss/askdoc/pkg/transport"
)

// AskInput is the argument of the ask_document tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the active document"`
	Strategy string `json:"strategy,omitempty" jsonschema:"retrieval strategy, SIMILAR (default) or MMR"`
}

// Server serves the askdoc tools.
type Server struct {
	service transport.DocumentService
	server  *mcp.Server
}

// New creates an MCP server backed by service.
func New(service transport.DocumentService, version string) *Server {
	s := &Server{
		service: service,
		server: mcp.NewServer(
			&mcp.Implementation{Name: "askdoc", Version: version},
			nil,
		),
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask_document",
		Description: "Answers a question using only the content of the currently uploaded document",
	}, s.ask)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "clear_document",
		Description: "Removes the currently uploaded document",
	}, s.clear)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "document_status",
		Description: "Reports whether a document is loaded and how many chunks it has",
	}, s.status)

	return s
}

// MCP returns the underlying SDK server.
func (s *Server) MCP() *mcp.Server {
	return s.server
}

// Handler returns a streamable HTTP handler for mounting on the HTTP server.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}

func (s *Server) ask(ctx context.Context, _ *mcp.CallToolRequest, in AskInput) (*mcp.CallToolResult, struct{}, error) {
	debug.Log("mcp", "ask_document", "question", debug.Truncate(in.Question, 80), "strategy", in.Strategy)

	strategy, err := api.ParseStrategy(in.Strategy)
	if err != nil {
		return toolError(api.NewInvalidRequestError("strategy", err.Error())), struct{}{}, nil
	}

	answer, err := s.service.Ask(ctx, &api.Query{Text: in.Question, Strategy: strategy})
	if err != nil {
		return toolError(err), struct{}{}, nil
	}

	var b strings.Builder
	b.WriteString(answer.Answer)
	if len(answer.Sources) > 0 {
		b.WriteString("\n\nSources:")
		for i, src := range answer.Sources {
			fmt.Fprintf(&b, "\n[%d] %s", i+1, strings.TrimSpace(src))
		}
	}
	return textResult(b.String()), struct{}{}, nil
}

func (s *Server) clear(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, struct{}, error) {
	debug.Log("mcp", "clear_document")

	if err := s.service.Clear(ctx); err != nil {
		return toolError(err), struct{}{}, nil
	}
	return textResult("Document cleared."), struct{}{}, nil
}

func (s *Server) status(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, struct{}, error) {
	status, err := s.service.Status(ctx)
	if err != nil {
		return toolError(err), struct{}{}, nil
	}
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return toolError(err), struct{}{}, nil
	}
	return textResult(string(data)), struct{}{}, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		IsError: true,
	}
}
