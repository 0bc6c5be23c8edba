package ofdm

import (
	"math/rand"

	"github.com/dabsdr/dabcore/internal/dabparams"
	"github.com/dabsdr/dabcore/internal/dsp"
	"github.com/dabsdr/dabcore/internal/interleave"
)

// QPSK gray-coded constellation, reduced from the teacher's
// constellation.go (which also carried 16-QAM and 64-QAM tables this
// module has no use for: DAB's FIC/MSC carriers are differentially
// QPSK-coded, not demapped against a fixed constellation at all — this
// table exists only to build synthetic test frames).
var qpskPoints = []complex128{
	complex(1, 1) / complex(1.4142135623730951, 0),
	complex(-1, 1) / complex(1.4142135623730951, 0),
	complex(-1, -1) / complex(1.4142135623730951, 0),
	complex(1, -1) / complex(1.4142135623730951, 0),
}

// SyntheticFrame builds a perfectly aligned, noise-free sequence of
// time-domain blocks for exercising the decoder's round-trip law.
// Block 0's spectrum carries an arbitrary reference phase (1+0i) on
// every active carrier; each following block's spectrum is the
// previous block's rotated by the held QPSK symbol — true differential
// encoding, so the decoder's own forward FFT plus block-to-block
// phase-difference step recovers pattern[i] on every FIC/MSC block.
// Blocks are stored as time-domain samples (the inverse FFT of the
// target spectrum), matching what the decoder actually receives from
// the sample reader.
type SyntheticFrame struct {
	Params  dabparams.Params
	Mapper  *interleave.Mapper
	Blocks  [][]complex128 // Tu-length time-domain samples, index 0 = Block 0
	Pattern []int          // the QPSK symbol index (0..3) held per carrier
}

// NewSyntheticFrame builds a frame of numBlocks time-domain blocks
// (including Block 0) whose spectra rotate by the same held QPSK
// symbol block to block — so the differential decode recovers
// pattern[i] exactly on every data block.
func NewSyntheticFrame(p dabparams.Params, mapper *interleave.Mapper, numBlocks int, seed int64) *SyntheticFrame {
	rng := rand.New(rand.NewSource(seed))
	pattern := make([]int, p.K)
	for i := range pattern {
		pattern[i] = rng.Intn(4)
	}

	engine, err := dsp.NewEngine(p.Tu)
	if err != nil {
		panic(err) // Tu is always a power of two for every standard DAB mode
	}

	toTimeDomain := func(spectrum []complex128) []complex128 {
		buf := make([]complex128, len(spectrum))
		copy(buf, spectrum)
		engine.Inverse(buf)
		return buf
	}

	blocks := make([][]complex128, numBlocks)
	spectrum := make([]complex128, p.Tu)
	for i := 0; i < p.K; i++ {
		spectrum[mapper.Resolve(i)] = 1
	}
	blocks[0] = toTimeDomain(spectrum)

	for b := 1; b < numBlocks; b++ {
		next := make([]complex128, p.Tu)
		copy(next, spectrum)
		for i := 0; i < p.K; i++ {
			idx := mapper.Resolve(i)
			next[idx] = spectrum[idx] * qpskPoints[pattern[i]]
		}
		spectrum = next
		blocks[b] = toTimeDomain(spectrum)
	}

	return &SyntheticFrame{Params: p, Mapper: mapper, Blocks: blocks, Pattern: pattern}
}

// ExpectedSigns returns, for carrier i, the expected sign of ibits[i]
// and ibits[K+i] given the held QPSK symbol — used by tests to check
// the decoder's soft-bit output without needing a full Viterbi decode.
func (f *SyntheticFrame) ExpectedSigns(i int) (realSign, imagSign int) {
	p := qpskPoints[f.Pattern[i]]
	return signOf(-real(p)), signOf(-imag(p))
}

func signOf(v float64) int {
	if v > 0 {
		return 1
	}
	if v < 0 {
		return -1
	}
	return 0
}
