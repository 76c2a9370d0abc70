// Package client is a Go client for the askdoc HTTP API. The askdoc CLI
// uses it, and it can be embedded in other programs.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/rhuss/askdoc/pkg/api"
)

// DefaultBaseURL is used when no server URL is configured.
const DefaultBaseURL = "http://localhost:8080"

// Client talks to an askdoc server.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New creates a Client for the server at baseURL. A zero timeout means no
// client-side timeout; uploads of large PDFs can take a while.
func New(baseURL string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

// Upload sends a document and replaces the active one. The body is
// streamed; it is not read into memory first.
func (c *Client) Upload(ctx context.Context, name, contentType string, body io.Reader) (*api.Document, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="document"; filename=%q`, name))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)

		part, err := mw.CreatePart(h)
		if err == nil {
			_, err = io.Copy(part, body)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload_document", pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var doc api.Document
	if err := c.do(req, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Ask answers a question about the active document. An empty strategy
// lets the server pick its default.
func (c *Client) Ask(ctx context.Context, question string, strategy api.Strategy) (*api.Answer, error) {
	body, err := json.Marshal(api.Query{Text: question, Strategy: strategy})
	if err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query_document", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var answer api.Answer
	if err := c.do(req, &answer); err != nil {
		return nil, err
	}
	return &answer, nil
}

// Clear removes the active document.
func (c *Client) Clear(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/clear_document", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, nil)
}

// Status reports the active document.
func (c *Client) Status(ctx context.Context) (*api.DocumentStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/document", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	var status api.DocumentStatus
	if err := c.do(req, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// do sends req and decodes a successful JSON response into out. Error
// responses are returned as *api.APIError.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("contacting %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var errResp api.ErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error != nil {
		return errResp.Error
	}

	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return api.NewServerError(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, msg))
}
