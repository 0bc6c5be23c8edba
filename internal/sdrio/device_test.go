package sdrio

import (
	"math"
	"math/cmplx"
	"testing"
)

// chunkedDevice hands back samples in fixed-size chunks, exercising
// Reader.GetSamples's short-read accumulation.
type chunkedDevice struct {
	samples   []complex128
	chunkSize int
	pos       int
	resets    int
}

func (d *chunkedDevice) Read(buf []complex128) (int, error) {
	if d.pos >= len(d.samples) {
		return 0, ErrStopped
	}
	n := d.chunkSize
	if n > len(buf) {
		n = len(buf)
	}
	if d.pos+n > len(d.samples) {
		n = len(d.samples) - d.pos
	}
	copy(buf[:n], d.samples[d.pos:d.pos+n])
	d.pos += n
	return n, nil
}

func (d *chunkedDevice) ResetBuffer()    { d.resets++ }
func (d *chunkedDevice) Offset() int64   { return int64(d.pos) }
func (d *chunkedDevice) SetOffset(int64) {}
func (d *chunkedDevice) BitDepth() int   { return 16 }
func (d *chunkedDevice) Close() error    { return nil }

func TestGetSamplesAccumulatesShortReads(t *testing.T) {
	samples := make([]complex128, 100)
	for i := range samples {
		samples[i] = complex(float64(i), 0)
	}
	dev := &chunkedDevice{samples: samples, chunkSize: 7}
	r := NewReader(dev, 512)

	dst := make([]complex128, 100)
	if err := r.GetSamples(dst, 100, 0); err != nil {
		t.Fatalf("GetSamples: %v", err)
	}
	for i := range dst {
		if dst[i] != samples[i] {
			t.Fatalf("sample %d = %v, want %v", i, dst[i], samples[i])
		}
	}
}

func TestGetSamplesReturnsErrStoppedOnExhaustion(t *testing.T) {
	dev := &chunkedDevice{samples: make([]complex128, 10), chunkSize: 4}
	r := NewReader(dev, 512)

	dst := make([]complex128, 20)
	if err := r.GetSamples(dst, 20, 0); err != ErrStopped {
		t.Fatalf("GetSamples past exhaustion: err = %v, want ErrStopped", err)
	}
}

func TestSetRunningFalseStopsDelivery(t *testing.T) {
	dev := &chunkedDevice{samples: make([]complex128, 10), chunkSize: 10}
	r := NewReader(dev, 512)
	r.SetRunning(false)

	if _, err := r.GetSample(0); err != ErrStopped {
		t.Fatalf("GetSample after SetRunning(false): err = %v, want ErrStopped", err)
	}
}

func TestResetBufferForwardsToDevice(t *testing.T) {
	dev := &chunkedDevice{samples: make([]complex128, 5), chunkSize: 5}
	r := NewReader(dev, 512)
	r.ResetBuffer()
	if dev.resets != 1 {
		t.Fatalf("ResetBuffer called %d times, want 1", dev.resets)
	}
}

func TestRotateAppliesFrequencyOffsetPhase(t *testing.T) {
	tu := 512
	samples := make([]complex128, 4)
	for i := range samples {
		samples[i] = complex(1, 0)
	}
	dev := &chunkedDevice{samples: samples, chunkSize: 4}
	r := NewReader(dev, tu)

	dst := make([]complex128, 4)
	if err := r.GetSamples(dst, 4, 10); err != nil {
		t.Fatal(err)
	}
	for n, s := range dst {
		wantTheta := -2 * math.Pi * 10 * float64(n) / float64(tu)
		want := cmplx.Exp(complex(0, wantTheta))
		if diff := cmplx.Abs(s - want); diff > 1e-9 {
			t.Errorf("sample %d = %v, want %v (diff %g)", n, s, want, diff)
		}
	}
}

func TestSLevelTracksEnvelope(t *testing.T) {
	samples := make([]complex128, 50)
	for i := range samples {
		samples[i] = complex(3, 4) // magnitude 5
	}
	dev := &chunkedDevice{samples: samples, chunkSize: 50}
	r := NewReader(dev, 512)

	dst := make([]complex128, 50)
	if err := r.GetSamples(dst, 50, 0); err != nil {
		t.Fatal(err)
	}
	if diff := math.Abs(r.SLevel() - 5); diff > 0.1 {
		t.Errorf("SLevel = %v, want close to 5 after steady-state input", r.SLevel())
	}
}
