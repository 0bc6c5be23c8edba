package dabparams

import "testing"

func TestNewAllModesValid(t *testing.T) {
	for _, m := range []Mode{ModeI, ModeII, ModeIII, ModeIV} {
		p, err := New(m)
		if err != nil {
			t.Fatalf("mode %s: %v", m, err)
		}
		if p.Ts <= p.Tu || p.Tu <= 0 {
			t.Errorf("mode %s: Ts=%d must exceed Tu=%d > 0", m, p.Ts, p.Tu)
		}
		if p.Tg != p.Ts-p.Tu {
			t.Errorf("mode %s: Tg=%d, want %d", m, p.Tg, p.Ts-p.Tu)
		}
		if p.Tg < 0 {
			t.Errorf("mode %s: negative guard", m)
		}
		if p.L < 5 {
			t.Errorf("mode %s: L=%d < 5", m, p.L)
		}
		if p.K%2 != 0 {
			t.Errorf("mode %s: K=%d is odd", m, p.K)
		}
		// Tu must be a power of two: the FFT engine requires it.
		if p.Tu&(p.Tu-1) != 0 {
			t.Errorf("mode %s: Tu=%d is not a power of two", m, p.Tu)
		}
	}
}

func TestNewUnknownMode(t *testing.T) {
	if _, err := New(Mode(99)); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestModeString(t *testing.T) {
	cases := map[Mode]string{ModeI: "I", ModeII: "II", ModeIII: "III", ModeIV: "IV", Mode(0): "unknown"}
	for m, want := range cases {
		if got := m.String(); got != want {
			t.Errorf("Mode(%d).String() = %q, want %q", m, got, want)
		}
	}
}
