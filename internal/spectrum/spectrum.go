// Package spectrum implements the optional raw-sample push point and
// display-side FFT averaging described in spec.md §4.5: a Blackman
// window, an exponential magnitude average, and a dB mapper normalized
// to the device's bit depth. It is an external collaborator
// contractually (the GUI/spectrum viewer owns the actual plot), but the
// push point lives in this module because the sync loop must never
// block on it.
package spectrum

import (
	"math"
	"math/cmplx"

	"github.com/dabsdr/dabcore/internal/dsp"
	"github.com/dabsdr/dabcore/internal/ringbuffer"
)

// decay is the averaging weight applied to the previous frame,
// reproduced literally from spectrum-handler.cpp's averageCount=5
// ((averageCount-1)/averageCount = 4/5), per spec.md §4.5.
const decay = 4.0 / 5.0

// Feed duplicates raw time-domain samples into a ring buffer for an
// external spectrum viewer and exposes a Compute step that windows,
// FFTs, and averages a chunk into display-ready dB values. Grounded on
// spectrum-handler.cpp's showSpectrum/get_db/setBitDepth.
type Feed struct {
	ring       *ringbuffer.Ring[complex128]
	engine     *dsp.Engine
	window     []float64
	normalizer float64

	avg []float64 // exponentially averaged magnitudes, len == size
}

// NewFeed builds a Feed over an FFT of the given size, backed by a ring
// buffer of at least that capacity. bitDepth sets the dB normalizer.
func NewFeed(size, ringCapacity, bitDepth int) (*Feed, error) {
	engine, err := dsp.NewEngine(size)
	if err != nil {
		return nil, err
	}
	f := &Feed{
		ring:   ringbuffer.New[complex128](ringCapacity),
		engine: engine,
		window: blackmanWindow(size),
		avg:    make([]float64, size),
	}
	f.SetBitDepth(bitDepth)
	return f, nil
}

// SetBitDepth recomputes the dB normalizer for a new sample resolution,
// mirroring spectrumhandler::setBitDepth's 1<<(d-1) clamp to [0,32].
func (f *Feed) SetBitDepth(bitDepth int) {
	if bitDepth < 0 || bitDepth > 32 {
		bitDepth = 24
	}
	f.normalizer = float64(uint64(1) << uint(bitDepth-1))
}

// Push duplicates a raw sample into the ring buffer without blocking;
// a full buffer simply drops the sample, per spec.md §4.5's
// non-blocking push-point requirement.
func (f *Feed) Push(s complex128) {
	f.ring.TryWrite(s)
}

// Available reports how many raw samples are queued for the next Compute.
func (f *Feed) Available() int {
	return f.ring.Available()
}

// Compute drains one window's worth of samples (Engine's size), applies
// the Blackman window, runs the forward FFT, and folds the magnitudes
// into the running average. It returns false if fewer than one window
// of samples is queued yet.
func (f *Feed) Compute() ([]float64, bool) {
	size := len(f.window)
	if f.ring.Available() < size {
		return nil, false
	}
	chunk := f.ring.ReadN(size)

	buf := make([]complex128, size)
	for i, s := range chunk {
		buf[i] = s * complex(f.window[i], 0)
	}
	f.engine.Forward(buf)

	for i := 0; i < size; i++ {
		mag := cmplx.Abs(buf[i])
		if math.IsNaN(mag) || math.IsInf(mag, 0) {
			continue
		}
		f.avg[i] = decay*f.avg[i] + (1-decay)*mag
	}

	out := make([]float64, size)
	copy(out, f.avg)
	return out, true
}

// DB maps a magnitude to dB, the get_db formula reproduced literally:
// 20*log10((x+1)/normalizer).
func (f *Feed) DB(x float64) float64 {
	return 20 * math.Log10((x+1)/f.normalizer)
}

// blackmanWindow computes the three-term Blackman coefficients of
// spec.md §4.5: 0.42 - 0.5*cos(2*pi*i/(n-1)) + 0.08*cos(4*pi*i/(n-1)).
func blackmanWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	denom := float64(n - 1)
	for i := 0; i < n; i++ {
		x := float64(i) / denom
		w[i] = 0.42 - 0.5*math.Cos(2*math.Pi*x) + 0.08*math.Cos(4*math.Pi*x)
	}
	return w
}
