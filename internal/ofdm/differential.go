package ofdm

import (
	"math"
	"math/cmplx"

	"github.com/dabsdr/dabcore/internal/interleave"
)

// differentialDemod holds the phase reference (the previous block's FFT
// output) and turns the current block's FFT output into soft bits by
// comparing each carrier against its own value one block earlier.
//
// This plays the role the teacher's Equalizer played against a static
// channel estimate — received[k]/channelResp[k] with an epsilon guard —
// except the "channel estimate" here is simply the previous symbol,
// which is exactly what differential QPSK decoding is.
type differentialDemod struct {
	phaseRef []complex128
	mapper   *interleave.Mapper
	k        int
}

func newDifferentialDemod(tu, k int, mapper *interleave.Mapper) *differentialDemod {
	return &differentialDemod{
		phaseRef: make([]complex128, tu),
		mapper:   mapper,
		k:        k,
	}
}

// seedPhaseReference copies fftBuf (Block 0's FFT output) in as the
// first phase reference.
func (d *differentialDemod) seedPhaseReference(fftBuf []complex128) {
	copy(d.phaseRef, fftBuf)
}

// demodulate computes soft bits for fftBuf against the stored phase
// reference, then overwrites the reference with fftBuf for the next
// call — the differential-phase-ref update invariant of spec.md §8.5.
func (d *differentialDemod) demodulate(fftBuf []complex128, ibits []int8) {
	for i := 0; i < d.k; i++ {
		idx := d.mapper.Resolve(i)
		r := fftBuf[idx] * cmplx.Conj(d.phaseRef[idx])
		a := cmplx.Abs(r)
		if a == 0 {
			ibits[i] = 0
			ibits[d.k+i] = 0
			continue
		}
		ibits[i] = clampSoftBit(-real(r) / a * 127.0)
		ibits[d.k+i] = clampSoftBit(-imag(r) / a * 127.0)
	}
	copy(d.phaseRef, fftBuf)
}

func clampSoftBit(v float64) int8 {
	r := math.Round(v)
	if r > 127 {
		r = 127
	}
	if r < -127 {
		r = -127
	}
	return int8(r)
}

// getSNR implements the get_snr formula of spec.md §4.3 literally: noise
// is the mean magnitude of bins around Tu/2 (±100), signal is the mean
// magnitude of bins wrapped around DC (±K/4).
func getSNR(v []complex128, tu, k int) int {
	var noise, signal float64

	for i := -100; i < 100; i++ {
		noise += cmplx.Abs(v[tu/2+i])
	}
	noise /= 200

	for i := -k / 4; i < k/4; i++ {
		idx := ((tu + i) % tu + tu) % tu
		signal += cmplx.Abs(v[idx])
	}
	signal /= float64(k / 2)

	return int(20 * math.Log10((signal+0.005)/(noise+0.005)))
}
