package interleave

import (
	"testing"

	"github.com/dabsdr/dabcore/internal/dabparams"
)

func TestResolveIsWithinBounds(t *testing.T) {
	p, err := dabparams.New(dabparams.ModeII)
	if err != nil {
		t.Fatal(err)
	}
	m := New(p)
	if m.K() != p.K {
		t.Fatalf("K() = %d, want %d", m.K(), p.K)
	}
	seen := make(map[int]bool)
	for i := 0; i < p.K; i++ {
		idx := m.Resolve(i)
		if idx < 0 || idx >= p.Tu {
			t.Fatalf("Resolve(%d) = %d, out of [0, %d)", i, idx, p.Tu)
		}
		if seen[idx] {
			t.Fatalf("Resolve(%d) = %d collides with an earlier carrier", i, idx)
		}
		seen[idx] = true
	}
}

func TestMapInNegativeNeedsWrap(t *testing.T) {
	p, err := dabparams.New(dabparams.ModeI)
	if err != nil {
		t.Fatal(err)
	}
	m := New(p)
	// Odd logical indices map to negative offsets by construction.
	if v := m.MapIn(1); v >= 0 {
		t.Fatalf("MapIn(1) = %d, want negative", v)
	}
	if v := m.MapIn(0); v <= 0 {
		t.Fatalf("MapIn(0) = %d, want positive", v)
	}
}
