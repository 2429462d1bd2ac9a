package similarity

import (
	"context"
	"math"
	"strings"
)

// DefaultDimension is the fingerprint length produced by the default embedder
const DefaultDimension = 384

// Embedder turns text into a fixed-length, unit-norm vector.
// Implementations must be deterministic for a given input.
type Embedder interface {
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// HashEmbedder is a cheap character-hash pseudo-embedding. It is not semantic.
type HashEmbedder struct {
	Dim int
}

// NewHashEmbedder creates a hash embedder with the given dimension (default 384)
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &HashEmbedder{Dim: dim}
}

// Dimension returns the vector length
func (h *HashEmbedder) Dimension() int {
	return h.Dim
}

// Embed hashes each character of each word into the accumulator, weighting
// earlier words higher, then L2-normalizes.
func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	return hashEmbed(text, h.Dim), nil
}

// Fingerprint computes the default hash embedding of text
func Fingerprint(text string) []float64 {
	return hashEmbed(text, DefaultDimension)
}

func hashEmbed(text string, dim int) []float64 {
	vec := make([]float64, dim)
	for i, word := range strings.Fields(strings.ToLower(text)) {
		weight := 1 / float64(i+1)
		j := 0
		for _, r := range word {
			vec[(int(r)+j*37)%dim] += weight
			j++
		}
	}
	return normalize(vec)
}

// CosineSimilarity returns the cosine of the angle between v1 and v2.
// Empty, mismatched or zero vectors yield 0.
func CosineSimilarity(v1, v2 []float64) float64 {
	if len(v1) == 0 || len(v2) == 0 || len(v1) != len(v2) {
		return 0
	}

	var dot, n1, n2 float64
	for i := range v1 {
		dot += v1[i] * v2[i]
		n1 += v1[i] * v1[i]
		n2 += v2[i] * v2[i]
	}
	if n1 == 0 || n2 == 0 {
		return 0
	}
	return dot / (math.Sqrt(n1) * math.Sqrt(n2))
}

// Centroid returns the normalized mean of equal-length vectors.
// Vectors whose length differs from the first are skipped.
func Centroid(vectors [][]float64) []float64 {
	if len(vectors) == 0 {
		return nil
	}

	dim := len(vectors[0])
	sum := make([]float64, dim)
	for _, v := range vectors {
		if len(v) != dim {
			continue
		}
		for i, x := range v {
			sum[i] += x
		}
	}
	return normalize(sum)
}

func normalize(vec []float64) []float64 {
	var mag float64
	for _, x := range vec {
		mag += x * x
	}
	if mag == 0 {
		return vec
	}
	mag = math.Sqrt(mag)
	for i := range vec {
		vec[i] /= mag
	}
	return vec
}
