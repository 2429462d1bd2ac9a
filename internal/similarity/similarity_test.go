package similarity

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "The Earth revolves around the Sun", "the earth revolves around the sun", 1},
		{"partial overlap", "The cat sat", "the cat ran", 0.5},
		{"disjoint", "alpha beta", "gamma delta", 0},
		{"both empty", "", "   ", 1},
		{"one empty", "", "something", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, TextSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestTextSimilarity_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"vaccines cause autism", "autism is not caused by vaccines"},
		{"water boils at 100 degrees", "at sea level water boils"},
		{"", "x"},
	}
	for _, p := range pairs {
		assert.Equal(t, TextSimilarity(p[0], p[1]), TextSimilarity(p[1], p[0]))
		assert.Equal(t, 1.0, TextSimilarity(p[0], p[0]))
	}
}

func TestKeyTerms(t *testing.T) {
	terms := KeyTerms("The Earth is flat and it was NEVER round!")
	assert.Equal(t, []string{"earth", "flat", "never", "round"}, terms)

	long := KeyTerms("one1 two2 three four five six seven eight nine ten eleven twelve")
	assert.Len(t, long, maxKeyTerms)

	assert.Empty(t, KeyTerms("is it on?"))
}

func TestTermSimilarity(t *testing.T) {
	sim := TermSimilarity("Vaccines cause autism in children",
		"Vaccines do not cause autism in children. No link between vaccines and autism")
	assert.InDelta(t, 4.0/7.0, sim, 1e-9)

	assert.Equal(t, 0.0, TermSimilarity("is it", "is it"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "hello, world! 2024 fact", Normalize("  Hello,   World! @2024 #fact "))
	assert.Equal(t, "the earth revolves around the sun", Normalize("The Earth revolves around the Sun"))
	assert.Equal(t, "", Normalize("  @@@ "))
}

func TestFingerprint_UnitNorm(t *testing.T) {
	vec := Fingerprint("Climate change is a hoax invented by scientists")
	require.Len(t, vec, DefaultDimension)

	var sum float64
	for _, x := range vec {
		sum += x * x
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-9)
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("5G towers spread viruses")
	b := Fingerprint("5G towers spread viruses")
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, CosineSimilarity(a, b), 1e-9)
}

func TestFingerprint_Empty(t *testing.T) {
	vec := Fingerprint("")
	require.Len(t, vec, DefaultDimension)
	for _, x := range vec {
		assert.Equal(t, 0.0, x)
	}
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(0)
	assert.Equal(t, DefaultDimension, e.Dimension())

	small := NewHashEmbedder(16)
	vec, err := small.Embed(context.Background(), "short text")
	require.NoError(t, err)
	assert.Len(t, vec, 16)
}

func TestCosineSimilarity(t *testing.T) {
	assert.Equal(t, 0.0, CosineSimilarity(nil, []float64{1}))
	assert.Equal(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{1}))
	assert.Equal(t, 0.0, CosineSimilarity([]float64{0, 0}, []float64{1, 0}))
	assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-9)
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{2, 2}, []float64{1, 1}), 1e-9)
}

func TestCentroid(t *testing.T) {
	c := Centroid([][]float64{{1, 0}, {0, 1}})
	require.Len(t, c, 2)
	assert.InDelta(t, math.Sqrt2/2, c[0], 1e-9)
	assert.InDelta(t, math.Sqrt2/2, c[1], 1e-9)

	assert.Nil(t, Centroid(nil))
}
