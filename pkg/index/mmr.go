package index

import "math"

// DefaultLambda weights relevance and diversity equally.
const DefaultLambda = 0.5

// CosineSimilarity returns the cosine of the angle between a and b. Vectors
// of different length or with zero norm have similarity 0.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// SelectMMR greedily picks up to k candidates maximizing
//
//	lambda*sim(query, c) - (1-lambda)*max(sim(c, s) for s in selected)
//
// Candidates must carry embeddings and be ordered by descending relevance;
// ties keep the earlier candidate. The returned matches keep their query
// similarity as Score.
func SelectMMR(query []float32, candidates []Match, k int, lambda float64) []Match {
	if k > len(candidates) {
		k = len(candidates)
	}
	if k <= 0 {
		return []Match{}
	}

	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		relevance[i] = float64(CosineSimilarity(query, c.Chunk.Embedding))
	}

	// redundancy[i] is the highest similarity of candidate i to any
	// selected candidate so far.
	redundancy := make([]float64, len(candidates))
	for i := range redundancy {
		redundancy[i] = math.Inf(-1)
	}
	used := make([]bool, len(candidates))
	selected := make([]Match, 0, k)

	for len(selected) < k {
		best := -1
		bestScore := math.Inf(-1)
		for i := range candidates {
			if used[i] {
				continue
			}
			penalty := 0.0
			if len(selected) > 0 {
				penalty = redundancy[i]
			}
			score := lambda*relevance[i] - (1-lambda)*penalty
			if best < 0 || score > bestScore {
				best, bestScore = i, score
			}
		}

		used[best] = true
		m := candidates[best]
		m.Score = float32(relevance[best])
		selected = append(selected, m)

		for i := range candidates {
			if used[i] {
				continue
			}
			sim := float64(CosineSimilarity(candidates[i].Chunk.Embedding, m.Chunk.Embedding))
			if sim > redundancy[i] {
				redundancy[i] = sim
			}
		}
	}

	return selected
}
