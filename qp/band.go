package qp

import (
	"gonum.org/v1/gonum/mat"
)

// RowSpan returns the first and last nonzero column of row i of m. ok is false for an all-zero row.
func RowSpan(m *mat.Dense, i int) (lo, hi int, ok bool) {
	lo = -1
	for j, v := range m.RawRowView(i) {
		if v == 0 {
			continue
		}
		if lo < 0 {
			lo = j
		}
		hi = j
	}
	return lo, hi, lo >= 0
}

// GramBandwidth is the bandwidth of mᵀm, the widest distance between nonzero columns of any one row of m.
func GramBandwidth(m *mat.Dense) int {
	k := 0
	for i := 0; i < rows(m); i++ {
		if lo, hi, ok := RowSpan(m, i); ok && hi-lo > k {
			k = hi - lo
		}
	}
	return k
}

// AddGram adds scale·mᵀm to dst. dst must be at least GramBandwidth(m) wide.
func AddGram(dst *mat.SymBandDense, m *mat.Dense, scale float64) {
	for r := 0; r < rows(m); r++ {
		lo, hi, ok := RowSpan(m, r)
		if !ok {
			continue
		}
		row := m.RawRowView(r)
		for i := lo; i <= hi; i++ {
			if row[i] == 0 {
				continue
			}
			for j := i; j <= hi; j++ {
				if row[j] != 0 {
					dst.SetSymBand(i, j, dst.At(i, j)+scale*row[i]*row[j])
				}
			}
		}
	}
}

// symBandwidth is the bandwidth of a, or n-1 when a does not expose one.
func symBandwidth(a mat.Symmetric) int {
	if b, ok := a.(mat.SymBanded); ok {
		_, k := b.SymBand()
		return k
	}
	return a.SymmetricDim() - 1
}
