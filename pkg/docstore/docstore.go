// Package docstore owns the lifecycle of the single active document:
// staging the upload, extracting and chunking its text, embedding the
// chunks and publishing them to the vector index.
//
// At most one document is represented in the index at any time. Store and
// Clear are serialized by a writer mutex. Publishing a new document and
// retrieval share a read/write lock, so a query sees either the previous
// document or the new one but never a partially replaced index.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rhuss/askdoc/pkg/api"
	"github.com/rhuss/askdoc/pkg/chunker"
	"github.com/rhuss/askdoc/pkg/debug"
	"github.com/rhuss/askdoc/pkg/embedding"
	"github.com/rhuss/askdoc/pkg/extract"
	"github.com/rhuss/askdoc/pkg/index"
	"github.com/rhuss/askdoc/pkg/observability"
	"github.com/rhuss/askdoc/pkg/retrieval"
)

// sniffLen is the number of leading bytes used for format detection.
const sniffLen = 512

// sampleChunks is the number of random chunks logged after splitting.
const sampleChunks = 2

// Upload is a raw document submitted for ingestion.
type Upload struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// Config holds the ingestion settings.
type Config struct {
	// StagingDir receives the raw upload. Empty means os.TempDir().
	StagingDir string

	// BatchSize is the number of chunks per embedding request. 0 sends
	// all chunks in one request.
	BatchSize int

	ChunkSize    int
	ChunkOverlap int

	Retrieval retrieval.Config
}

// DefaultConfig returns the default ingestion settings.
func DefaultConfig() Config {
	return Config{
		BatchSize:    64,
		ChunkSize:    chunker.DefaultSize,
		ChunkOverlap: chunker.DefaultOverlap,
		Retrieval:    retrieval.DefaultConfig(),
	}
}

// Store is the single-document store.
type Store struct {
	index     index.Index
	embedder  embedding.Embedder
	retriever *retrieval.Engine
	splitter  chunker.Splitter
	cfg       Config

	// writeMu serializes Store and Clear for their whole run.
	writeMu    sync.Mutex
	generation uint64
	staged     string // path of the staged upload, guarded by writeMu

	// publishMu is held exclusively while the index is replaced and
	// shared by retrievals.
	publishMu sync.RWMutex
	doc       *api.Document
	closed    bool
}

// New creates an empty document store over idx. The embedder is used for
// both ingestion and queries.
func New(idx index.Index, embedder embedding.Embedder, cfg Config) (*Store, error) {
	splitter, err := chunker.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("docstore: %w", err)
	}
	retriever, err := retrieval.NewEngine(idx, embedder, cfg.Retrieval)
	if err != nil {
		return nil, fmt.Errorf("docstore: %w", err)
	}
	if cfg.StagingDir == "" {
		cfg.StagingDir = os.TempDir()
	}
	if err := os.MkdirAll(cfg.StagingDir, 0o700); err != nil {
		return nil, fmt.Errorf("docstore: creating staging directory: %w", err)
	}

	return &Store{
		index:     idx,
		embedder:  embedder,
		retriever: retriever,
		splitter:  splitter,
		cfg:       cfg,
	}, nil
}

// Store replaces the active document with up. On success the returned
// document is queryable. On failure the store is left empty.
func (s *Store) Store(ctx context.Context, up Upload) (doc *api.Document, err error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.isClosed() {
		return nil, ErrClosed
	}

	start := time.Now()
	s.generation++
	gen := s.generation
	observability.DocumentGeneration.Set(float64(gen))

	defer func() {
		observability.IngestionsTotal.WithLabelValues(observability.Status(err)).Inc()
		observability.IngestionDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			s.failClean(gen, err)
		}
	}()

	s.releaseStaged()

	path, size, err := s.stage(up)
	if err != nil {
		return nil, err
	}
	s.staged = path

	pages, err := s.extract(ctx, path, size, up)
	if err != nil {
		return nil, err
	}

	pieces := s.splitter.Split(chunker.Join(pages))
	if len(pieces) == 0 {
		return nil, fmt.Errorf("%w: document has no text", ErrIngestion)
	}
	s.logSplit(up.Name, pieces)

	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Text
	}
	vectors, err := embedding.EmbedAll(ctx, s.embedder, texts, s.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	chunks := make([]api.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = api.Chunk{
			ID:   api.ChunkID(gen, i),
			Text: p.Text,
			Metadata: api.ChunkMetadata{
				SourcePage: p.SourcePage,
				Start:      p.Start,
				End:        p.End,
				Generation: gen,
				Source:     up.Name,
			},
			Embedding: vectors[i],
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc = &api.Document{
		Object:     "document",
		ID:         api.NewDocumentID(),
		Name:       up.Name,
		Pages:      len(pages),
		Chunks:     len(chunks),
		Generation: gen,
		LoadedAt:   time.Now().UTC(),
	}
	if err := s.publish(ctx, doc, chunks); err != nil {
		return nil, err
	}

	slog.Info("document stored",
		"id", doc.ID,
		"name", doc.Name,
		"pages", doc.Pages,
		"chunks", doc.Chunks,
		"generation", gen,
		"duration", time.Since(start),
	)
	d := *doc
	return &d, nil
}

// Clear removes the active document. Clearing an empty store is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.isClosed() {
		return ErrClosed
	}

	s.publishMu.Lock()
	err := s.index.Clear(ctx)
	s.doc = nil
	s.publishMu.Unlock()

	s.releaseStaged()
	observability.ActiveChunks.Set(0)

	if err != nil {
		return wrapIndex(err)
	}
	debug.Log("ingest", "document cleared")
	return nil
}

// Retrieve returns the chunk texts most relevant to q from the active
// document. It is valid in any state; an empty store yields no texts.
func (s *Store) Retrieve(ctx context.Context, q api.Query) ([]string, error) {
	s.publishMu.RLock()
	defer s.publishMu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	return s.retriever.Retrieve(ctx, q)
}

// Status reports the store state and the active document.
func (s *Store) Status() api.DocumentStatus {
	s.publishMu.RLock()
	defer s.publishMu.RUnlock()

	status := api.DocumentStatus{Object: "document.status", State: api.DocumentStateEmpty}
	if s.doc != nil {
		d := *s.doc
		status.State = api.DocumentStateLoaded
		status.Count = d.Chunks
		status.Document = &d
	}
	return status
}

// Ping checks that the index backend answers.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.index.Count(ctx); err != nil {
		return wrapIndex(err)
	}
	return nil
}

// Close releases the staged upload and the index. The store cannot be used
// afterwards.
func (s *Store) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.doc = nil
	s.releaseStaged()
	return s.index.Close()
}

func (s *Store) isClosed() bool {
	s.publishMu.RLock()
	defer s.publishMu.RUnlock()
	return s.closed
}

// stage copies the upload body to a file in the staging directory.
func (s *Store) stage(up Upload) (string, int64, error) {
	if up.Body == nil {
		return "", 0, fmt.Errorf("%w: empty upload", ErrIngestion)
	}

	f, err := os.CreateTemp(s.cfg.StagingDir, "askdoc-*"+filepath.Ext(filepath.Base(up.Name)))
	if err != nil {
		return "", 0, fmt.Errorf("staging document: %w", err)
	}
	size, err := io.Copy(f, up.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", 0, fmt.Errorf("staging document: %w", err)
	}

	debug.Log("ingest", "staged upload", "name", up.Name, "path", f.Name(), "bytes", size)
	return f.Name(), size, nil
}

// extract detects the format of the staged file and returns its pages.
func (s *Store) extract(ctx context.Context, path string, size int64, up Upload) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening staged document: %w", err)
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := f.ReadAt(head, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading staged document: %w", err)
	}

	format, err := extract.Detect(up.Name, up.ContentType, head[:n])
	if err != nil {
		return nil, err
	}

	pages, err := extract.Pages(ctx, format, f, size)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupportedFormat) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrIngestion, err)
	}

	debug.Log("ingest", "extracted text", "name", up.Name, "format", format, "pages", len(pages))
	return pages, nil
}

// publish replaces the index contents with chunks.
func (s *Store) publish(ctx context.Context, doc *api.Document, chunks []api.Chunk) error {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	if err := s.index.Clear(ctx); err != nil {
		return wrapIndex(err)
	}
	if err := s.index.Insert(ctx, chunks); err != nil {
		return wrapIndex(err)
	}
	s.doc = doc
	observability.ActiveChunks.Set(float64(len(chunks)))
	return nil
}

// failClean empties the index after a failed Store.
func (s *Store) failClean(gen uint64, cause error) {
	s.publishMu.Lock()
	s.doc = nil
	// The request context may already be done.
	clearErr := s.index.Clear(context.Background())
	s.publishMu.Unlock()

	s.releaseStaged()
	observability.ActiveChunks.Set(0)

	slog.Warn("document ingestion failed", "generation", gen, "error", cause)
	if clearErr != nil {
		slog.Error("clearing index after failed ingestion", "generation", gen, "error", clearErr)
	}
}

// releaseStaged removes the staged upload, if any.
func (s *Store) releaseStaged() {
	if s.staged == "" {
		return
	}
	if err := os.Remove(s.staged); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("removing staged document", "path", s.staged, "error", err)
	}
	s.staged = ""
}

func (s *Store) logSplit(name string, pieces []chunker.Piece) {
	debug.Log("ingest", "split document", "name", name, "chunks", len(pieces))
	if !debug.Enabled("ingest") {
		return
	}
	for _, i := range rand.Perm(len(pieces))[:min(sampleChunks, len(pieces))] {
		p := pieces[i]
		debug.Log("ingest", "sample chunk",
			"index", i,
			"page", p.SourcePage,
			"text", debug.Truncate(p.Text, 200),
		)
	}
}

func wrapIndex(err error) error {
	if errors.Is(err, index.ErrIndex) {
		return err
	}
	return fmt.Errorf("%w: %w", index.ErrIndex, err)
}
