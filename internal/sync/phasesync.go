// Package sync implements the phase synchronizer: cyclic-prefix
// correlation for fine time alignment and a coarse carrier-offset
// estimate from Block 0.
package sync

import (
	"math/cmplx"

	"github.com/dabsdr/dabcore/internal/dabparams"
	"github.com/dabsdr/dabcore/internal/dsp"
)

// Magic numbers reproduced literally from the reference implementation,
// per spec.md §9: not derived from mode parameters, not to be "fixed".
const (
	threshold  = 0.35
	diffLength = 32
	noFit      = 100 // estimateCarrierOffset sentinel: no confident estimate

	// carrierOffsetRatio is the minimum ratio of candidate-band energy
	// to the ±100-sample guard-band noise floor (the same window
	// get_snr scans) before a shift is trusted. Below it the spectrum
	// looks like noise everywhere, not like a shifted carrier band.
	carrierOffsetRatio = 3.0

	// noiseWindow mirrors get_snr's ±100-sample bound around Tu/2.
	// EstimateCarrierOffset uses it as is where the guard band holds it
	// (modes I and IV) and narrows it otherwise.
	noiseWindow = 100
)

// PhaseSynchronizer finds the first post-cyclic-prefix sample in a
// window of Tu samples, and estimates an integer carrier-count shift
// from Block 0.
type PhaseSynchronizer struct {
	tu     int
	tg     int
	k      int
	engine *dsp.Engine
}

// New builds a PhaseSynchronizer for the given mode parameters.
func New(p dabparams.Params) *PhaseSynchronizer {
	engine, err := dsp.NewEngine(p.Tu)
	if err != nil {
		panic(err) // Tu is always a power of two for every standard DAB mode
	}
	return &PhaseSynchronizer{tu: p.Tu, tg: p.Tg, k: p.K, engine: engine}
}

// FindIndex correlates window (Tu samples) against the cyclic-prefix
// self-similarity of the expected symbol structure and returns the
// sample index of the first post-prefix sample, or -1 if the
// correlation metric never crosses threshold.
//
// The window is expected to start somewhere inside the null/guard
// transition; the correlation compares each candidate offset's trailing
// diffLength samples against the samples diffLength positions ahead
// (the same autocorrelation idea the teacher's Schmidl-Cox detector
// uses, applied here to the cyclic prefix rather than a repeated half
// symbol).
func (ps *PhaseSynchronizer) FindIndex(window []complex128) int {
	n := len(window)
	if n < ps.tg+diffLength {
		return -1
	}

	bestMetric := 0.0
	bestIdx := -1

	for d := 0; d <= n-ps.tg-diffLength; d++ {
		var corr complex128
		var energy float64
		for m := 0; m < diffLength; m++ {
			a := window[d+m]
			b := window[d+m+ps.tg]
			corr += a * cmplx.Conj(b)
			energy += real(b)*real(b) + imag(b)*imag(b)
		}
		if energy <= 0 {
			continue
		}
		metric := cmplx.Abs(corr) / energy
		if metric > bestMetric {
			bestMetric = metric
			bestIdx = d
		}
	}

	if bestMetric > threshold {
		return bestIdx
	}
	return -1
}

// EstimateCarrierOffset FFTs block0 and scans candidate integer carrier
// shifts s in [-maxShift, +maxShift], scoring each by how much energy
// lands in the band Mapper always occupies — bins 1..K/2 and
// Tu-K/2..Tu-1 (see internal/interleave.New: every logical carrier maps
// to exactly one of those bins, regardless of the permutation between
// them) — once that band is slid by s. A genuine carrier-frequency
// offset is a complex-exponential phase ramp across time-domain samples
// (the frequency-shift theorem), which the DFT turns into exactly this
// kind of circular bin shift; that is why the estimate is made in the
// frequency domain rather than by correlating time-domain samples
// against each other. The winning shift's band energy is compared
// against the guard-band floor around Tu/2 (get_snr's ±100-bin window,
// narrowed in modes whose guard band is smaller than that and the
// ±maxShift slide) to decide whether any shift is confident, or
// whether this is noFit (100).
func (ps *PhaseSynchronizer) EstimateCarrierOffset(block0 []complex128) int {
	if len(block0) != ps.tu {
		return noFit
	}

	spectrum := make([]complex128, ps.tu)
	copy(spectrum, block0)
	ps.engine.Forward(spectrum)

	mag := make([]float64, ps.tu)
	for i, v := range spectrum {
		mag[i] = cmplx.Abs(v)
	}

	// The noise window is narrowed below ±noiseWindow where the guard
	// band is too small to hold it (modes II and III), so that no
	// candidate shift's band reaches into it.
	const maxShift = 16
	w := noiseWindow
	if g := (ps.tu-ps.k)/2 - maxShift - 1; g < w {
		w = g
	}
	var noise float64
	for i := -w; i < w; i++ {
		noise += mag[wrapIndex(ps.tu/2+i, ps.tu)]
	}
	noise /= float64(2 * w)

	half := ps.k / 2
	bestShift := noFit
	bestBand := 0.0

	for shift := -maxShift; shift <= maxShift; shift++ {
		var band float64
		for i := 1; i <= half; i++ {
			band += mag[wrapIndex(i+shift, ps.tu)]
			band += mag[wrapIndex(-i+shift, ps.tu)]
		}
		band /= float64(2 * half)
		if band > bestBand {
			bestBand = band
			bestShift = shift
		}
	}

	if bestBand < carrierOffsetRatio*(noise+1e-12) {
		return noFit
	}
	return bestShift
}

func wrapIndex(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
