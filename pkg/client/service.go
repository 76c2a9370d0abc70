package client

import (
	"context"
	"io"

	"github.com/rhuss/askdoc/pkg/api"
	"github.com/rhuss/askdoc/pkg/transport"
)

// Service adapts a Client to transport.DocumentService, so a remote askdoc
// server can back a local front end such as the stdio MCP server.
type Service struct {
	client *Client
}

// Ensure Service implements transport.DocumentService at compile time.
var _ transport.DocumentService = (*Service)(nil)

// NewService wraps c.
func NewService(c *Client) *Service {
	return &Service{client: c}
}

func (s *Service) Upload(ctx context.Context, name, contentType string, body io.Reader) (*api.Document, error) {
	return s.client.Upload(ctx, name, contentType, body)
}

func (s *Service) Ask(ctx context.Context, q *api.Query) (*api.Answer, error) {
	return s.client.Ask(ctx, q.Text, q.Strategy)
}

func (s *Service) Clear(ctx context.Context) error {
	return s.client.Clear(ctx)
}

func (s *Service) Status(ctx context.Context) (*api.DocumentStatus, error) {
	return s.client.Status(ctx)
}
