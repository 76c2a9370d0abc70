// Package integration provides integration tests for the askdoc API.
//
// Tests run against a real askdoc HTTP server backed by a mock
// OpenAI-compatible backend for embeddings and chat, both started
// in-process using net/http/httptest. The tests share one document store
// and therefore must not run in parallel.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/askdoc/pkg/api"
	"github.com/rhuss/askdoc/pkg/docstore"
	"github.com/rhuss/askdoc/pkg/embedding"
	"github.com/rhuss/askdoc/pkg/engine"
	"github.com/rhuss/askdoc/pkg/generation"
	"github.com/rhuss/askdoc/pkg/index/memory"
	"github.com/rhuss/askdoc/pkg/mcpserver"
	"github.com/rhuss/askdoc/pkg/mockbackend"
	transporthttp "github.com/rhuss/askdoc/pkg/transport/http"
)

// maxUploadSize is kept small so the size limit can be tested cheaply.
const maxUploadSize = 64 << 10

// testEnv holds the shared servers for all integration tests.
var testEnv *TestEnvironment

// TestEnvironment holds the askdoc server and mock backend for testing.
type TestEnvironment struct {
	AskdocServer *httptest.Server
	MockBackend  *httptest.Server
	Backend      *mockbackend.Backend
	Docs         *docstore.Store
}

// TestMain starts the mock backend and askdoc server before running tests.
func TestMain(m *testing.M) {
	testEnv = setupTestEnvironment()
	code := m.Run()
	testEnv.Teardown()
	os.Exit(code)
}

// setupTestEnvironment wires the production components to the mock backend.
func setupTestEnvironment() *TestEnvironment {
	backend := mockbackend.New(mockbackend.DefaultDimensions)
	mockServer := httptest.NewServer(backend.Handler())

	embedder := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
		BaseURL: mockServer.URL + "/v1",
		APIKey:  "sk-mock",
		Model:   "mock-embedding",
	})
	generator := generation.NewOpenAI(generation.OpenAIConfig{
		BaseURL: mockServer.URL + "/v1",
		APIKey:  "sk-mock",
		Model:   "mock-model",
	})

	cfg := docstore.DefaultConfig()
	cfg.ChunkSize = 200
	cfg.ChunkOverlap = 20
	docs, err := docstore.New(memory.New(0), embedder, cfg)
	if err != nil {
		panic(fmt.Sprintf("creating document store: %v", err))
	}

	eng, err := engine.New(docs, generator, engine.Config{})
	if err != nil {
		panic(fmt.Sprintf("creating engine: %v", err))
	}

	srv := transporthttp.NewServer(eng,
		transporthttp.WithMaxUploadSize(maxUploadSize),
		transporthttp.WithHandler("GET /metrics", promhttp.Handler()),
		transporthttp.WithHandler("/mcp", mcpserver.New(eng, "test").Handler()),
	)

	return &TestEnvironment{
		AskdocServer: httptest.NewServer(srv.Handler()),
		MockBackend:  mockServer,
		Backend:      backend,
		Docs:         docs,
	}
}

// Teardown stops both servers.
func (env *TestEnvironment) Teardown() {
	if env.AskdocServer != nil {
		env.AskdocServer.Close()
	}
	if env.MockBackend != nil {
		env.MockBackend.Close()
	}
	if env.Docs != nil {
		env.Docs.Close()
	}
}

// BaseURL returns the askdoc server base URL.
func (env *TestEnvironment) BaseURL() string {
	return env.AskdocServer.URL
}

// --- HTTP helpers ---

// postJSON sends a POST request with JSON body and returns the response.
func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

// postUpload sends a multipart upload with the given field name.
func postUpload(t *testing.T, field, filename, contentType string, content []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename)}
	h["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("creating part: %v", err)
	}
	part.Write(content)
	mw.Close()

	resp, err := http.Post(testEnv.BaseURL()+"/upload_document", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST /upload_document: %v", err)
	}
	return resp
}

// uploadText uploads a text document and fails the test unless it loads.
func uploadText(t *testing.T, filename, content string) *api.Document {
	t.Helper()
	resp := postUpload(t, "document", filename, "text/plain", []byte(content))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload %s: status %d: %s", filename, resp.StatusCode, readBody(t, resp))
	}
	var doc api.Document
	decodeJSON(t, resp, &doc)
	return &doc
}

// ask posts a query and decodes a successful answer.
func ask(t *testing.T, text string, strategy string) *api.Answer {
	t.Helper()
	body := map[string]any{"text": text}
	if strategy != "" {
		body["retrieve_strategy"] = strategy
	}
	resp := postJSON(t, testEnv.BaseURL()+"/query_document", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("query: status %d: %s", resp.StatusCode, readBody(t, resp))
	}
	var answer api.Answer
	decodeJSON(t, resp, &answer)
	return &answer
}

// getURL sends a GET request and returns the response.
func getURL(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	return resp
}

// deleteURL sends a DELETE request and returns the response.
func deleteURL(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		t.Fatalf("creating DELETE request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE %s: %v", url, err)
	}
	return resp
}

// status fetches the current document status.
func status(t *testing.T) *api.DocumentStatus {
	t.Helper()
	resp := getURL(t, testEnv.BaseURL()+"/document")
	var st api.DocumentStatus
	decodeJSON(t, resp, &st)
	return &st
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading response body: %v", err)
	}
	return string(body)
}

// decodeJSON reads the response body and decodes it into the target.
func decodeJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decoding JSON: %v", err)
	}
}

// expectError checks the status code and the error envelope type.
func expectError(t *testing.T, resp *http.Response, wantStatus int, wantType api.ErrorType) {
	t.Helper()
	if resp.StatusCode != wantStatus {
		t.Errorf("status = %d, want %d: %s", resp.StatusCode, wantStatus, readBody(t, resp))
		return
	}
	var errResp api.ErrorResponse
	decodeJSON(t, resp, &errResp)
	if errResp.Error == nil {
		t.Fatal("error object is nil")
	}
	if errResp.Error.Type != wantType {
		t.Errorf("error.type = %q, want %q", errResp.Error.Type, wantType)
	}
}
