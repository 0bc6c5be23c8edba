// Package interleave implements the frequency interleaver: the static
// permutation from a logical carrier index to an FFT-bin index.
package interleave

import "github.com/dabsdr/dabcore/internal/dabparams"

// Mapper holds the mode-dependent carrier-to-bin permutation table.
// Index i (0..K-1) maps to a signed bin offset; negative offsets are
// wrapped by the caller adding Tu, per spec.md's mapIn contract.
type Mapper struct {
	tu    int
	table []int
}

// New builds a Mapper for the given mode parameters. The permutation
// spreads logical carriers symmetrically around DC: even i map to
// positive offsets, odd i to negative offsets, growing outward — the
// standard DAB arrangement that keeps adjacent logical carriers apart
// in frequency (reduces the impact of a single fade on consecutive
// bits).
func New(p dabparams.Params) *Mapper {
	table := make([]int, p.K)
	for i := 0; i < p.K; i++ {
		if i%2 == 0 {
			table[i] = i/2 + 1
		} else {
			table[i] = -(i/2 + 1)
		}
	}
	return &Mapper{tu: p.Tu, table: table}
}

// MapIn returns the signed FFT-bin offset for logical carrier i. The
// caller must add Tu when the result is negative, matching
// ofdm-decoder.cpp's `if (index < 0) index += T_u;`.
func (m *Mapper) MapIn(i int) int {
	return m.table[i]
}

// Resolve returns the non-negative FFT-bin index for logical carrier i,
// applying the wrap a caller would otherwise have to do inline.
func (m *Mapper) Resolve(i int) int {
	idx := m.table[i]
	if idx < 0 {
		idx += m.tu
	}
	return idx
}

// K returns the number of logical carriers this mapper was built for.
func (m *Mapper) K() int {
	return len(m.table)
}
