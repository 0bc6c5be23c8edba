package ofdm

import (
	"sync"
	"testing"
	"time"

	"github.com/dabsdr/dabcore/internal/dabparams"
	"github.com/dabsdr/dabcore/internal/interleave"
)

type recordedBlock struct {
	index int
	ibits []int8
}

type fakeFIC struct {
	mu         sync.Mutex
	blocks     []recordedBlock
	synced     bool
	resetCount int
}

func (f *fakeFIC) ProcessFICBlock(ibits []int8, blockIndex int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]int8, len(ibits))
	copy(cp, ibits)
	f.blocks = append(f.blocks, recordedBlock{index: blockIndex, ibits: cp})
}

func (f *fakeFIC) SyncReached() bool { return f.synced }

func (f *fakeFIC) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetCount++
}

type fakeMSC struct {
	mu         sync.Mutex
	blocks     []recordedBlock
	resetCount int
	stopCount  int
}

func (m *fakeMSC) ProcessMSCBlock(ibits []int8, blockIndex int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]int8, len(ibits))
	copy(cp, ibits)
	m.blocks = append(m.blocks, recordedBlock{index: blockIndex, ibits: cp})
}

func (m *fakeMSC) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetCount++
}

func (m *fakeMSC) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCount++
}

// driveFrame pushes one synthetic frame's worth of blocks through dec:
// Block 0, then FIC blocks 1..3, then MSC blocks 4..L-1.
func driveFrame(t *testing.T, dec *Decoder, frame *SyntheticFrame) {
	t.Helper()
	p := frame.Params

	if err := dec.ProcessBlock0(frame.Blocks[0]); err != nil {
		t.Fatalf("ProcessBlock0: %v", err)
	}

	toTs := func(block []complex128) []complex128 {
		out := make([]complex128, p.Ts)
		copy(out[p.Tg:], block)
		return out
	}

	for n := 1; n < p.L; n++ {
		samples := toTs(frame.Blocks[n])
		var err error
		if n < 4 {
			err = dec.DecodeFicBlock(samples, n)
		} else {
			err = dec.DecodeMscBlock(samples, n)
		}
		if err != nil {
			t.Fatalf("block %d: %v", n, err)
		}
	}
}

func newTestDecoder(t *testing.T, threaded bool) (*Decoder, *fakeFIC, *fakeMSC, dabparams.Params, *interleave.Mapper) {
	t.Helper()
	p, err := dabparams.New(dabparams.ModeII)
	if err != nil {
		t.Fatal(err)
	}
	mapper := interleave.New(p)
	fic := &fakeFIC{}
	msc := &fakeMSC{}
	dec, err := New(p, mapper, fic, msc, threaded, nil)
	if err != nil {
		t.Fatal(err)
	}
	dec.Start()
	t.Cleanup(dec.Stop)
	return dec, fic, msc, p, mapper
}

func TestInlineDecodeRecoversPattern(t *testing.T) {
	dec, fic, msc, p, mapper := newTestDecoder(t, false)
	frame := NewSyntheticFrame(p, mapper, p.L, 42)
	driveFrame(t, dec, frame)

	if got, want := len(fic.blocks), 3; got != want {
		t.Fatalf("FIC blocks received = %d, want %d", got, want)
	}
	if got, want := len(msc.blocks), p.L-4; got != want {
		t.Fatalf("MSC blocks received = %d, want %d", got, want)
	}

	for i := 0; i < p.K; i++ {
		wantReal, wantImag := frame.ExpectedSigns(i)
		b := fic.blocks[0]
		if sign(b.ibits[i]) != wantReal {
			t.Errorf("carrier %d real sign = %d, want %d", i, sign(b.ibits[i]), wantReal)
		}
		if sign(b.ibits[p.K+i]) != wantImag {
			t.Errorf("carrier %d imag sign = %d, want %d", i, sign(b.ibits[p.K+i]), wantImag)
		}
	}
}

func sign(v int8) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func TestSoftBitsStayInRange(t *testing.T) {
	dec, fic, msc, p, mapper := newTestDecoder(t, false)
	frame := NewSyntheticFrame(p, mapper, p.L, 7)
	driveFrame(t, dec, frame)

	check := func(blocks []recordedBlock) {
		for _, b := range blocks {
			for _, v := range b.ibits {
				if v < -127 || v > 127 {
					t.Fatalf("block %d: soft bit %d out of range [-127,127]", b.index, v)
				}
			}
		}
	}
	check(fic.blocks)
	check(msc.blocks)
}

func TestBlockOrderingPreserved(t *testing.T) {
	dec, fic, msc, p, mapper := newTestDecoder(t, false)
	frame := NewSyntheticFrame(p, mapper, p.L, 9)
	driveFrame(t, dec, frame)

	for i, b := range fic.blocks {
		if b.index != i+1 {
			t.Errorf("FIC block %d has index %d, want %d", i, b.index, i+1)
		}
	}
	for i, b := range msc.blocks {
		if b.index != i+4 {
			t.Errorf("MSC block %d has index %d, want %d", i, b.index, i+4)
		}
	}
}

func TestThreadedAndInlineProduceIdenticalBits(t *testing.T) {
	inlineDec, inlineFIC, inlineMSC, p, mapper := newTestDecoder(t, false)
	frame := NewSyntheticFrame(p, mapper, p.L, 99)
	driveFrame(t, inlineDec, frame)

	threadedDec, threadedFIC, threadedMSC, _, _ := newTestDecoder(t, true)
	driveFrame(t, threadedDec, frame)

	// Threaded processing finishes asynchronously; give the worker a
	// moment to drain the mailbox before comparing.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		threadedFIC.mu.Lock()
		n := len(threadedFIC.blocks)
		threadedFIC.mu.Unlock()
		if n == len(inlineFIC.blocks) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if len(threadedFIC.blocks) != len(inlineFIC.blocks) {
		t.Fatalf("threaded FIC blocks = %d, want %d", len(threadedFIC.blocks), len(inlineFIC.blocks))
	}
	for i := range inlineFIC.blocks {
		a, b := inlineFIC.blocks[i], threadedFIC.blocks[i]
		if a.index != b.index {
			t.Fatalf("FIC block %d: index mismatch inline=%d threaded=%d", i, a.index, b.index)
		}
		for j := range a.ibits {
			if a.ibits[j] != b.ibits[j] {
				t.Fatalf("FIC block %d carrier %d: inline=%d threaded=%d", i, j, a.ibits[j], b.ibits[j])
			}
		}
	}

	if len(threadedMSC.blocks) != len(inlineMSC.blocks) {
		t.Fatalf("threaded MSC blocks = %d, want %d", len(threadedMSC.blocks), len(inlineMSC.blocks))
	}
	for i := range inlineMSC.blocks {
		a, b := inlineMSC.blocks[i], threadedMSC.blocks[i]
		for j := range a.ibits {
			if a.ibits[j] != b.ibits[j] {
				t.Fatalf("MSC block %d carrier %d: inline=%d threaded=%d", i, j, a.ibits[j], b.ibits[j])
			}
		}
	}
}

func TestProcessBlock0RejectsWrongLength(t *testing.T) {
	dec, _, _, p, _ := newTestDecoder(t, false)
	err := dec.ProcessBlock0(make([]complex128, p.Tu-1))
	if err == nil {
		t.Fatal("expected error for wrong-length Block 0")
	}
}

func TestDecodeFicBlockRejectsWrongLength(t *testing.T) {
	dec, _, _, p, _ := newTestDecoder(t, false)
	err := dec.DecodeFicBlock(make([]complex128, p.Ts-1), 1)
	if err == nil {
		t.Fatal("expected error for wrong-length FIC block")
	}
}

// TestStopStopsAndResetsEachHandlerOnce checks that one Stop call, in
// both configurations, calls msc.Stop, msc.Reset and fic.Reset exactly
// once each. The order of those calls is not checked here.
func TestStopStopsAndResetsEachHandlerOnce(t *testing.T) {
	for _, threaded := range []bool{false, true} {
		dec, fic, msc, _, _ := newTestDecoder(t, threaded)
		dec.Stop()

		msc.mu.Lock()
		stopCount, resetCount := msc.stopCount, msc.resetCount
		msc.mu.Unlock()
		if stopCount != 1 {
			t.Errorf("threaded=%v: msc.Stop called %d times, want 1", threaded, stopCount)
		}
		if resetCount != 1 {
			t.Errorf("threaded=%v: msc.Reset called %d times, want 1", threaded, resetCount)
		}

		fic.mu.Lock()
		ficReset := fic.resetCount
		fic.mu.Unlock()
		if ficReset != 1 {
			t.Errorf("threaded=%v: fic.Reset called %d times, want 1", threaded, ficReset)
		}
	}
}

func TestResetMSCResetsOnlyMSC(t *testing.T) {
	dec, fic, msc, _, _ := newTestDecoder(t, false)
	dec.ResetMSC()

	msc.mu.Lock()
	resetCount := msc.resetCount
	msc.mu.Unlock()
	if resetCount != 1 {
		t.Errorf("msc.Reset called %d times, want 1", resetCount)
	}

	fic.mu.Lock()
	ficReset := fic.resetCount
	fic.mu.Unlock()
	if ficReset != 0 {
		t.Errorf("fic.Reset called %d times, want 0 (ResetMSC must not touch FIC)", ficReset)
	}
}

func TestSNRCallbackFiresOnEleventhBlock0(t *testing.T) {
	p, err := dabparams.New(dabparams.ModeII)
	if err != nil {
		t.Fatal(err)
	}
	mapper := interleave.New(p)
	fic := &fakeFIC{}
	msc := &fakeMSC{}

	var calls int
	var mu sync.Mutex
	dec, err := New(p, mapper, fic, msc, false, func(int) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	dec.Start()
	defer dec.Stop()

	block0 := make([]complex128, p.Tu)
	for i := 0; i < p.K; i++ {
		block0[mapper.Resolve(i)] = complex(1, 0)
	}

	for i := 0; i < 22; i++ {
		if err := dec.ProcessBlock0(block0); err != nil {
			t.Fatal(err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Errorf("SNR callback fired %d times over 22 Block 0s, want 2 (cadence of 11)", calls)
	}
}
