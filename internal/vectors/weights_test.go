package vectors_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deidaraiorek/spidey/internal/vectors"
)

func TestIDF(t *testing.T) {
	assert.InDelta(t, math.Log(9.5/1.5), vectors.IDF(10, 1), 1e-12)
	assert.InDelta(t, 0.0, vectors.IDF(10, 5), 1e-12)
	assert.Less(t, vectors.IDF(10, 8), 0.0)
}

func TestTermWeight(t *testing.T) {
	assert.Zero(t, vectors.TermWeight(0, 10, 10))

	// Average length: (k1+1)tf / (tf+k1)
	assert.InDelta(t, 3.5*2/(2+2.5), vectors.TermWeight(2, 10, 10), 1e-12)

	// Longer fields weigh less.
	assert.Greater(t, vectors.TermWeight(2, 5, 10), vectors.TermWeight(2, 20, 10))

	// Zero average falls back to ratio 1.
	assert.Equal(t, vectors.TermWeight(3, 7, 7), vectors.TermWeight(3, 99, 0))

	// Saturates below k1+1.
	assert.Less(t, vectors.TermWeight(1000, 10, 10), vectors.K1+1)
}

func TestWeight(t *testing.T) {
	want := vectors.TermWeight(3, 4, 8) * vectors.IDF(20, 2)
	assert.Equal(t, want, vectors.Weight(3, 2, 20, 4, 8))
}

func TestCosine(t *testing.T) {
	a := vectors.Vector{1, 2, 0}
	b := vectors.Vector{2, 4, 0}
	c := vectors.Vector{-1, -2, 0}
	zero := vectors.Vector{0, 0, 0}

	assert.InDelta(t, 1.0, vectors.Cosine(a, b), 1e-12)
	assert.InDelta(t, -1.0, vectors.Cosine(a, c), 1e-12)
	assert.Zero(t, vectors.Cosine(a, zero))
	assert.Zero(t, vectors.Cosine(zero, zero))
	assert.Zero(t, vectors.Cosine(a, vectors.Vector{1, 2}))

	vs := []vectors.Vector{
		{0.3, -0.7, 1e-300, 5},
		{1e150, 1e150, -1e150, 0},
		{-2, 0.5, 3, 3},
		{1e-160, 0, 0, 1e-160},
	}
	for _, x := range vs {
		for _, y := range vs {
			sim := vectors.Cosine(x, y)
			assert.False(t, math.IsNaN(sim))
			assert.GreaterOrEqual(t, sim, -1.0)
			assert.LessOrEqual(t, sim, 1.0)
		}
	}
}

func TestCombine(t *testing.T) {
	got := vectors.Combine(vectors.Vector{1, 0, 2}, vectors.Vector{0, 5, 1}, vectors.TitleWeight, vectors.ContentWeight)
	assert.InDeltaSlice(t, []float64{0.8, 1.0, 1.8}, []float64(got), 1e-12)
}

func TestQueryVector(t *testing.T) {
	v := vectors.QueryVector(4, 10, []vectors.QueryTerm{
		{ID: 2, TF: 1, DF: 1},
		{ID: 9, TF: 1, DF: 1},
	})
	assert.Len(t, v, 4)
	assert.Zero(t, v[0])
	assert.InDelta(t, vectors.Weight(1, 1, 10, 1, 1), v[1], 1e-12)
}
