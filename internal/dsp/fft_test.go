package dsp

import (
	"math"
	"math/cmplx"
	"math/rand"
	"testing"
)

func TestForwardInverseRoundTrip(t *testing.T) {
	e, err := NewEngine(256)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(7))
	orig := make([]complex128, 256)
	for i := range orig {
		orig[i] = complex(rng.Float64()*2-1, rng.Float64()*2-1)
	}
	buf := make([]complex128, 256)
	copy(buf, orig)

	e.Forward(buf)
	e.Inverse(buf)

	for i := range orig {
		if cmplx.Abs(buf[i]-orig[i]) > 1e-9 {
			t.Fatalf("sample %d: got %v, want %v", i, buf[i], orig[i])
		}
	}
}

func TestForwardKnownTone(t *testing.T) {
	const n = 64
	e, err := NewEngine(n)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]complex128, n)
	for i := range buf {
		buf[i] = complex(math.Cos(2*math.Pi*3*float64(i)/n), 0)
	}
	e.Forward(buf)

	for k, v := range buf {
		mag := cmplx.Abs(v)
		if k == 3 || k == n-3 {
			if mag < float64(n)/2-1 {
				t.Errorf("bin %d: magnitude %v too small for tone bin", k, mag)
			}
		} else if mag > 1e-6 {
			t.Errorf("bin %d: magnitude %v, want ~0", k, mag)
		}
	}
}

func TestNewEngineRejectsNonPowerOfTwo(t *testing.T) {
	if _, err := NewEngine(100); err == nil {
		t.Fatal("expected error for non-power-of-two size")
	}
}

func TestForwardPanicsOnWrongLength(t *testing.T) {
	e, _ := NewEngine(16)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for mismatched buffer length")
		}
	}()
	e.Forward(make([]complex128, 8))
}
