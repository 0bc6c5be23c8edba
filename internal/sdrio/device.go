// Package sdrio adapts sample sources — a PortAudio stereo I/Q sound
// card input or an hz.tools/sdr device — to the per-sample and
// per-block reads the synchronization and demodulation pipeline wants.
package sdrio

import (
	"errors"
	"math"
	"math/cmplx"
	"sync"
	"sync/atomic"
)

// ErrStopped is returned once a Device has been closed or has run out
// of samples (end of a captured file, a disconnected dongle). It is the
// hard failure kind of spec.md §7: the caller stops, it does not retry.
var ErrStopped = errors.New("sdrio: device stopped")

// Device is the raw sample-source contract a hardware or file-backed
// adapter implements. A live SDR counts samples monotonically and
// ignores SetOffset; a captured IQ file honors it to support seeking
// back for a clean Reset.
type Device interface {
	// Read fills buf with up to len(buf) I/Q samples and returns the
	// count actually read. Returns ErrStopped, not io.EOF, once no more
	// samples will ever arrive.
	Read(buf []complex128) (int, error)

	// ResetBuffer discards any samples queued internally, so a fresh
	// Read starts from the next sample the hardware produces.
	ResetBuffer()

	// Offset reports how many samples have been consumed so far.
	Offset() int64

	// SetOffset repositions a seekable device; a no-op on live sources.
	SetOffset(int64)

	// BitDepth is the sample resolution the spectrum feed's dB
	// normalizer needs (spec.md §4.5).
	BitDepth() int

	Close() error
}

// sLevelDecay governs Reader's long-term envelope average, the same
// exponential-averaging constant the spectrum feed uses for its
// magnitude smoothing (spec.md §4.5) — one averaging idiom reused for
// two different long-term-level trackers rather than inventing a
// second unrelated constant.
const sLevelDecay = 0.8

// Reader is the sample reader spec.md §4.1 describes: it pulls complex
// samples from a Device, applies a caller-supplied integer frequency
// offset as a per-sample phase rotation, and maintains sLevel, a
// long-term envelope average used by the sync state machine to find
// the null dip.
type Reader struct {
	dev Device
	tu  int

	running atomic.Bool

	mu     sync.Mutex
	n      int64 // absolute sample index, the rotation's phase clock
	sLevel float64
}

// NewReader builds a Reader over dev. tu is T_u for the active mode,
// the rotation's phase denominator.
func NewReader(dev Device, tu int) *Reader {
	r := &Reader{dev: dev, tu: tu}
	r.running.Store(true)
	return r
}

// SetRunning(false) causes subsequent GetSample/GetSamples calls to
// fail with ErrStopped, unwinding the processor's run loop.
func (r *Reader) SetRunning(v bool) { r.running.Store(v) }

// ResetBuffer discards the device's internal backlog and rewinds the
// rotation's phase clock.
func (r *Reader) ResetBuffer() {
	r.dev.ResetBuffer()
	r.mu.Lock()
	r.n = 0
	r.mu.Unlock()
}

// Offset reports the device's raw consumed-sample count.
func (r *Reader) Offset() int64 { return r.dev.Offset() }

// SetOffset repositions a seekable device.
func (r *Reader) SetOffset(o int64) { r.dev.SetOffset(o) }

// BitDepth forwards the underlying device's sample resolution.
func (r *Reader) BitDepth() int { return r.dev.BitDepth() }

// SLevel returns the current long-term envelope average.
func (r *Reader) SLevel() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sLevel
}

// GetSample pulls one sample, rotated by offsetSamples.
func (r *Reader) GetSample(offsetSamples int) (complex128, error) {
	if !r.running.Load() {
		return 0, ErrStopped
	}
	var buf [1]complex128
	k, err := r.dev.Read(buf[:])
	if err != nil {
		return 0, err
	}
	if k == 0 {
		return 0, ErrStopped
	}
	s := r.rotate(buf[0], offsetSamples)
	r.track(s)
	return s, nil
}

// GetSamples fills dst[:n] with consecutive samples, rotated by
// offsetSamples, looping across as many Device.Read calls as it takes.
func (r *Reader) GetSamples(dst []complex128, n, offsetSamples int) error {
	for i := 0; i < n; {
		if !r.running.Load() {
			return ErrStopped
		}
		k, err := r.dev.Read(dst[i:n])
		if err != nil {
			return err
		}
		if k == 0 {
			return ErrStopped
		}
		for j := i; j < i+k; j++ {
			dst[j] = r.rotate(dst[j], offsetSamples)
			r.track(dst[j])
		}
		i += k
	}
	return nil
}

// rotate applies exp(-j*2*pi*offsetSamples*n/Tu) to s, where n is the
// absolute index of s in the sample stream — the time-domain
// realization of a frequency-offset correction (spec.md §4.1).
func (r *Reader) rotate(s complex128, offsetSamples int) complex128 {
	r.mu.Lock()
	n := r.n
	r.n++
	r.mu.Unlock()

	if offsetSamples == 0 {
		return s
	}
	theta := -2 * math.Pi * float64(offsetSamples) * float64(n) / float64(r.tu)
	return s * cmplx.Exp(complex(0, theta))
}

func (r *Reader) track(s complex128) {
	mag := cmplx.Abs(s)
	r.mu.Lock()
	r.sLevel = sLevelDecay*r.sLevel + (1-sLevelDecay)*mag
	r.mu.Unlock()
}
