package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rhuss/askdoc/pkg/api"
	"github.com/rhuss/askdoc/pkg/index"
)

func makeChunk(gen uint64, text string, vec ...float32) api.Chunk {
	return api.Chunk{
		Text:      text,
		Embedding: vec,
		Metadata:  api.ChunkMetadata{Generation: gen, SourcePage: 1},
	}
}

func TestInsertAndCount(t *testing.T) {
	x := New(0)
	ctx := context.Background()

	err := x.Insert(ctx, []api.Chunk{
		makeChunk(1, "alpha", 1, 0),
		makeChunk(1, "beta", 0, 1),
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	n, err := x.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}

	got, err := x.SearchNearest(ctx, []float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("SearchNearest failed: %v", err)
	}
	if len(got) != 1 || got[0].Chunk.ID != "g1-1" {
		t.Fatalf("SearchNearest = %+v, want chunk g1-1", got)
	}
	if got[0].Chunk.Embedding != nil {
		t.Error("search results should not carry embeddings")
	}
}

func TestInsertAllOrNothing(t *testing.T) {
	x := New(0)
	ctx := context.Background()

	if err := x.Insert(ctx, []api.Chunk{makeChunk(1, "alpha", 1, 0)}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	tests := []struct {
		name   string
		chunks []api.Chunk
	}{
		{"dimension mismatch", []api.Chunk{makeChunk(2, "ok", 1, 1), makeChunk(2, "bad", 1, 1, 1)}},
		{"against collection", []api.Chunk{makeChunk(2, "bad", 1, 1, 1)}},
		{"missing embedding", []api.Chunk{makeChunk(2, "ok", 1, 1), makeChunk(2, "empty")}},
		{"existing id", []api.Chunk{makeChunk(1, "dup", 1, 1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := x.Insert(ctx, tt.chunks)
			if !errors.Is(err, index.ErrIndex) {
				t.Fatalf("Insert error = %v, want ErrIndex", err)
			}
			n, _ := x.Count(ctx)
			if n != 1 {
				t.Errorf("Count = %d after failed insert, want 1", n)
			}
		})
	}
}

func TestInsertCapacity(t *testing.T) {
	x := New(2)
	ctx := context.Background()
	err := x.Insert(ctx, []api.Chunk{makeChunk(1, "a", 1), makeChunk(1, "b", 1), makeChunk(1, "c", 1)})
	if !errors.Is(err, index.ErrIndex) {
		t.Fatalf("Insert error = %v, want ErrIndex", err)
	}
	if n, _ := x.Count(ctx); n != 0 {
		t.Errorf("Count = %d, want 0", n)
	}
}

func TestSearchEmpty(t *testing.T) {
	x := New(0)
	ctx := context.Background()

	got, err := x.SearchNearest(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("SearchNearest failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("SearchNearest on empty index returned %d matches", len(got))
	}

	got, err = x.SearchMMR(ctx, []float32{1, 0}, 3, 10, index.DefaultLambda)
	if err != nil {
		t.Fatalf("SearchMMR failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("SearchMMR on empty index returned %d matches", len(got))
	}
}

func TestSearchNearestOrderAndTies(t *testing.T) {
	x := New(0)
	ctx := context.Background()
	err := x.Insert(ctx, []api.Chunk{
		makeChunk(1, "far", 0, 1),
		makeChunk(1, "tie-first", 1, 1),
		makeChunk(1, "tie-second", 2, 2),
		makeChunk(1, "close", 1, 0),
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		got, err := x.SearchNearest(ctx, []float32{1, 0.2}, 3)
		if err != nil {
			t.Fatalf("SearchNearest failed: %v", err)
		}
		texts := index.Texts(got)
		want := []string{"close", "tie-first", "tie-second"}
		for j := range want {
			if texts[j] != want[j] {
				t.Fatalf("run %d: texts = %v, want %v", i, texts, want)
			}
		}
		if got[0].Score < got[1].Score {
			t.Errorf("scores not descending: %v, %v", got[0].Score, got[1].Score)
		}
	}
}

func TestSearchMMRLength(t *testing.T) {
	x := New(0)
	ctx := context.Background()
	var chunks []api.Chunk
	for i := 0; i < 5; i++ {
		chunks = append(chunks, makeChunk(1, fmt.Sprintf("c%d", i), float32(i+1), 1))
	}
	if err := x.Insert(ctx, chunks); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	tests := []struct {
		k, fetchK int
		want      int
	}{
		{3, 10, 3},
		{5, 10, 5},
		{8, 10, 5},
		{3, 1, 3},
	}
	for _, tt := range tests {
		got, err := x.SearchMMR(ctx, []float32{1, 1}, tt.k, tt.fetchK, index.DefaultLambda)
		if err != nil {
			t.Fatalf("SearchMMR failed: %v", err)
		}
		if len(got) != tt.want {
			t.Errorf("SearchMMR(k=%d, fetchK=%d) returned %d, want %d", tt.k, tt.fetchK, len(got), tt.want)
		}
	}
}

func TestSearchDimensionMismatch(t *testing.T) {
	x := New(0)
	ctx := context.Background()
	if err := x.Insert(ctx, []api.Chunk{makeChunk(1, "a", 1, 0)}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := x.SearchNearest(ctx, []float32{1, 0, 0}, 1); !errors.Is(err, index.ErrIndex) {
		t.Errorf("SearchNearest error = %v, want ErrIndex", err)
	}
}

func TestClearIdempotent(t *testing.T) {
	x := New(0)
	ctx := context.Background()
	if err := x.Insert(ctx, []api.Chunk{makeChunk(1, "a", 1, 0)}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := x.Clear(ctx); err != nil {
			t.Fatalf("Clear #%d failed: %v", i+1, err)
		}
		if n, _ := x.Count(ctx); n != 0 {
			t.Errorf("Count after Clear #%d = %d, want 0", i+1, n)
		}
	}

	// Dimensionality is forgotten with the data.
	if err := x.Insert(ctx, []api.Chunk{makeChunk(2, "b", 1, 0, 0)}); err != nil {
		t.Errorf("Insert after Clear failed: %v", err)
	}
}

func TestClosed(t *testing.T) {
	x := New(0)
	ctx := context.Background()
	if err := x.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := x.Count(ctx); !errors.Is(err, index.ErrIndex) {
		t.Errorf("Count after Close = %v, want ErrIndex", err)
	}
	if err := x.Insert(ctx, []api.Chunk{makeChunk(1, "a", 1)}); !errors.Is(err, index.ErrIndex) {
		t.Errorf("Insert after Close = %v, want ErrIndex", err)
	}
}

func TestConcurrentReadersSeeWholeBatches(t *testing.T) {
	x := New(0)
	ctx := context.Background()

	const batch = 50
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for gen := uint64(1); gen <= 20; gen++ {
			chunks := make([]api.Chunk, batch)
			for i := range chunks {
				chunks[i] = makeChunk(gen, "t", 1, float32(i))
			}
			if err := x.Insert(ctx, chunks); err != nil {
				t.Errorf("Insert failed: %v", err)
				return
			}
		}
	}()

	for i := 0; i < 200; i++ {
		n, err := x.Count(ctx)
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if n%batch != 0 {
			t.Fatalf("Count = %d, observed a partial batch", n)
		}
	}
	wg.Wait()
}
