// Package vectors computes BM25 term-weight vectors for pages and queries and
// compares them by cosine similarity.
package vectors

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	K1 = 2.5
	B  = 0.75

	TitleWeight   = 0.8
	ContentWeight = 0.2
)

// IDF is ln((n - df + 0.5) / (df + 0.5)). It is negative for terms found in
// more than half of the n pages.
func IDF(n, df int) float64 {
	return math.Log((float64(n) - float64(df) + 0.5) / (float64(df) + 0.5))
}

// TermWeight is the BM25 saturation of a term frequency, normalized by the
// field length relative to the corpus average.
func TermWeight(tf int, fieldLen, avgFieldLen float64) float64 {
	if tf <= 0 {
		return 0
	}
	ratio := 1.0
	if avgFieldLen > 0 {
		ratio = fieldLen / avgFieldLen
	}
	f := float64(tf)
	return (K1 + 1) * f / (f + K1*(1-B+B*ratio))
}

// Weight is the vector component of a term: TermWeight times IDF. Page and
// query vectors are both built with it.
func Weight(tf, df, n int, fieldLen, avgFieldLen float64) float64 {
	return TermWeight(tf, fieldLen, avgFieldLen) * IDF(n, df)
}

// Vector is dense; component i belongs to term id i+1.
type Vector []float64

func (v Vector) Norm() float64 {
	return floats.Norm(v, 2)
}

// Combine returns wa*a + wb*b. Both vectors must have the same length.
func Combine(a, b Vector, wa, wb float64) Vector {
	out := make(Vector, len(a))
	floats.ScaleTo(out, wa, a)
	floats.AddScaled(out, wb, b)
	return out
}

// Cosine returns the cosine similarity of a and b, or 0 when either has zero
// norm or their lengths differ.
func Cosine(a, b Vector) float64 {
	if len(a) != len(b) {
		return 0
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	sim := floats.Dot(a, b) / (na * nb)
	return math.Max(-1, math.Min(1, sim))
}

// QueryTerm is one distinct stem of a query that exists in the dictionary.
type QueryTerm struct {
	ID int64
	TF int
	DF int
}

// QueryVector weights query terms with the same formula as pages. A query has
// no field length of its own, so it is treated as exactly average length.
func QueryVector(dim, n int, terms []QueryTerm) Vector {
	v := make(Vector, dim)
	for _, t := range terms {
		i := int(t.ID) - 1
		if i < 0 || i >= dim {
			continue
		}
		v[i] = Weight(t.TF, t.DF, n, 1, 1)
	}
	return v
}
