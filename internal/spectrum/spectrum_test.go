package spectrum

import (
	"math"
	"testing"
)

func TestBlackmanWindowEndpointsAreNearZero(t *testing.T) {
	w := blackmanWindow(16)
	if w[0] > 0.01 {
		t.Errorf("w[0] = %v, want near 0", w[0])
	}
	if w[len(w)-1] > 0.01 {
		t.Errorf("w[last] = %v, want near 0", w[len(w)-1])
	}
	mid := w[len(w)/2]
	if mid < 0.9 {
		t.Errorf("w[mid] = %v, want near 1", mid)
	}
}

func TestPushComputeDrainsOneWindow(t *testing.T) {
	f, err := NewFeed(64, 256, 16)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 63; i++ {
		f.Push(complex(1, 0))
	}
	if _, ok := f.Compute(); ok {
		t.Fatal("Compute should report false with fewer than one window queued")
	}
	f.Push(complex(1, 0))
	if _, ok := f.Compute(); !ok {
		t.Fatal("Compute should succeed once a full window is queued")
	}
}

// TestBitDepthNormalizationAgreesWithinHalfDB exercises spec.md §8
// scenario 6: identically scaled signals at different bit depths, each
// normalized by SetBitDepth, must agree in dB to within 0.5 dB.
func TestBitDepthNormalizationAgreesWithinHalfDB(t *testing.T) {
	depths := []int{8, 12, 16, 24}
	f, err := NewFeed(64, 256, depths[0])
	if err != nil {
		t.Fatal(err)
	}

	var dbs []float64
	for _, d := range depths {
		f.SetBitDepth(d)
		fullScale := float64(int64(1) << uint(d-1))
		x := fullScale * 0.5 // same relative amplitude at every bit depth
		dbs = append(dbs, f.DB(x))
	}

	for i := 1; i < len(dbs); i++ {
		if math.Abs(dbs[i]-dbs[0]) > 0.5 {
			t.Errorf("depth %d: db = %v, depth %d: db = %v, differ by more than 0.5dB", depths[i], dbs[i], depths[0], dbs[0])
		}
	}
}

func TestSetBitDepthClampsOutOfRange(t *testing.T) {
	f, err := NewFeed(64, 256, 16)
	if err != nil {
		t.Fatal(err)
	}
	f.SetBitDepth(-1)
	want := float64(int64(1) << uint(24-1))
	if f.normalizer != want {
		t.Errorf("normalizer = %v, want %v (default 24-bit)", f.normalizer, want)
	}
}
