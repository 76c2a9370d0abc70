package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/rhuss/askdoc/pkg/debug"
)

// DefaultHashDimensions is the vector size of the hashing embedder.
const DefaultHashDimensions = 256

// HashEmbedder is a deterministic local embedder. Each lower-cased word is
// hashed into a signed bucket and the result is L2-normalized, so texts
// sharing words have positive cosine similarity. It needs no network and
// is meant for development, tests, and air-gapped deployments.
type HashEmbedder struct {
	dims int
}

// Compile-time check that HashEmbedder implements Embedder.
var _ Embedder = (*HashEmbedder)(nil)

// NewHashEmbedder creates a HashEmbedder producing vectors of dims entries.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultHashDimensions
	}
	return &HashEmbedder{dims: dims}
}

// Embed hashes every text. It never fails unless ctx is done.
func (h *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = h.vector(text)
	}
	debug.Trace("embedding", "hashed texts", "count", len(texts), "dimensions", h.dims)
	return vectors, nil
}

// Dimensions returns the configured vector size.
func (h *HashEmbedder) Dimensions() int {
	return h.dims
}

func (h *HashEmbedder) vector(text string) []float32 {
	v := make([]float32, h.dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		f := fnv.New64a()
		f.Write([]byte(w))
		sum := f.Sum64()
		bucket := int(sum % uint64(h.dims))
		if sum&(1<<63) != 0 {
			v[bucket]--
		} else {
			v[bucket]++
		}
	}
	l2normalize(v)
	return v
}
