// Package ofdm implements the per-block OFDM decode: FFT, differential
// demodulation against the previous block, and periodic SNR estimation,
// either inline on the caller's goroutine or on a dedicated worker
// behind a bounded mailbox.
package ofdm

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dabsdr/dabcore/internal/dabparams"
	"github.com/dabsdr/dabcore/internal/dsp"
	"github.com/dabsdr/dabcore/internal/interleave"
)

// FICHandler consumes Fast Information Channel soft bits.
type FICHandler interface {
	ProcessFICBlock(ibits []int8, blockIndex int)
	SyncReached() bool
	Reset()
}

// MSCHandler consumes Main Service Channel soft bits, plus the channel
// setup operations of spec.md §6.
type MSCHandler interface {
	ProcessMSCBlock(ibits []int8, blockIndex int)
	Reset()
	Stop()
}

type blockKind int

const (
	kindBlock0 blockKind = iota
	kindFIC
	kindMSC
)

// unit is one arena slot: a fixed Tu-sized complex buffer reused across
// frames, plus the metadata the worker needs to route it. This is the Go
// rendition of the original's command[block][T_u] arena: fixed geometry,
// no per-block allocation.
type unit struct {
	kind  blockKind
	index int
	data  []complex128 // Tu samples, already guard-stripped
}

// Decoder runs the Block 0 / FIC / MSC processing pipeline described in
// spec.md §4.3.
type Decoder struct {
	p      dabparams.Params
	engine *dsp.Engine
	mapper *interleave.Mapper
	demod  *differentialDemod
	fic    FICHandler
	msc    MSCHandler
	onSNR  func(int)

	threaded bool
	running  atomic.Bool
	quit     chan struct{}
	wg       sync.WaitGroup

	arena       []unit        // L fixed slots
	mailbox     chan *unit    // FIFO, capacity L
	bufferSpace chan struct{} // semaphore, L tokens

	snrMu    sync.Mutex
	snrCount int
	snr      float64

	fftBuf []complex128 // scratch, reused every block
	ibits  []int8       // scratch, reused every block
}

// New builds a Decoder. threaded selects whether ingestion hands blocks
// to a dedicated worker goroutine (true) or processes them inline on the
// caller's goroutine (false); both configurations must produce
// byte-identical ibits sequences (spec.md §8 scenario 5).
func New(p dabparams.Params, mapper *interleave.Mapper, fic FICHandler, msc MSCHandler, threaded bool, onSNR func(int)) (*Decoder, error) {
	engine, err := dsp.NewEngine(p.Tu)
	if err != nil {
		return nil, fmt.Errorf("ofdm: %w", err)
	}

	d := &Decoder{
		p:        p,
		engine:   engine,
		mapper:   mapper,
		demod:    newDifferentialDemod(p.Tu, p.K, mapper),
		fic:      fic,
		msc:      msc,
		onSNR:    onSNR,
		threaded: threaded,
		fftBuf:   make([]complex128, p.Tu),
		ibits:    make([]int8, 2*p.K),
	}

	d.arena = make([]unit, p.L)
	for i := range d.arena {
		d.arena[i] = unit{data: make([]complex128, p.Tu)}
	}

	if threaded {
		d.mailbox = make(chan *unit, p.L)
		d.bufferSpace = make(chan struct{}, p.L)
		for i := 0; i < p.L; i++ {
			d.bufferSpace <- struct{}{}
		}
	}

	return d, nil
}

// Start launches the worker goroutine in the threaded configuration. It
// is a no-op in the inline configuration, matching the original's
// compile-time split realized here as a runtime branch.
func (d *Decoder) Start() {
	if !d.threaded {
		return
	}
	d.running.Store(true)
	d.quit = make(chan struct{})
	d.wg.Add(1)
	go d.run()
}

// Stop halts the worker goroutine (in the threaded configuration) and
// then shuts down the MSC and FIC handlers in that order, per spec.md
// §5 ("stops the decoder, resets FIC and MSC handlers") and §7
// ("shuts down decoder, MSC, and FIC in that order").
func (d *Decoder) Stop() {
	if d.threaded && d.running.CompareAndSwap(true, false) {
		close(d.quit)
		d.wg.Wait()
	}
	d.msc.Stop()
	d.msc.Reset()
	d.fic.Reset()
}

// Reset stops the worker and both handlers, then restarts the worker in
// the threaded configuration. The phase reference needs no explicit
// clearing: it is reseeded by the next Block 0 regardless.
func (d *Decoder) Reset() {
	d.Stop()
	if d.threaded {
		d.Start()
	}
}

// ResetMSC resets only the MSC handler, the resetMsc control-surface
// operation of spec.md §6 — used to switch audio/data channels without
// tearing down frame synchronization.
func (d *Decoder) ResetMSC() {
	d.msc.Reset()
}

func (d *Decoder) run() {
	defer d.wg.Done()
	for {
		select {
		case u := <-d.mailbox:
			d.process(u)
			d.bufferSpace <- struct{}{}
		case <-d.quit:
			return
		}
	}
}

// acquireSlot returns the arena slot for blockIndex, modulo L — the
// fixed-size arena this decoder was constructed with.
func (d *Decoder) acquireSlot(index int, kind blockKind) *unit {
	slot := &d.arena[index%len(d.arena)]
	slot.kind = kind
	slot.index = index
	return slot
}

// ProcessBlock0 ingests the first Tu samples of the frame (already
// cyclic-prefix aligned by the caller).
func (d *Decoder) ProcessBlock0(samples []complex128) error {
	if len(samples) != d.p.Tu {
		return fmt.Errorf("ofdm: ProcessBlock0: expected %d samples, got %d", d.p.Tu, len(samples))
	}
	return d.submit(0, kindBlock0, samples)
}

// DecodeFicBlock ingests Ts samples for FIC blocks 1..3, dropping the
// leading Tg guard samples.
func (d *Decoder) DecodeFicBlock(samples []complex128, n int) error {
	return d.submitGuarded(samples, n, kindFIC)
}

// DecodeMscBlock ingests Ts samples for MSC blocks 4..L-1, dropping the
// leading Tg guard samples.
func (d *Decoder) DecodeMscBlock(samples []complex128, n int) error {
	return d.submitGuarded(samples, n, kindMSC)
}

// FICSyncReached forwards the FIC handler's SyncReached query, the
// signal the processor uses to decide whether the coarse corrector
// should keep estimating (spec.md §4.4, Block_0 row:
// "f2Correction = !fic.syncReached()").
func (d *Decoder) FICSyncReached() bool {
	return d.fic.SyncReached()
}

func (d *Decoder) submitGuarded(samples []complex128, n int, kind blockKind) error {
	if len(samples) != d.p.Ts {
		return fmt.Errorf("ofdm: block %d: expected %d samples, got %d", n, d.p.Ts, len(samples))
	}
	return d.submit(n, kind, samples[d.p.Tg:])
}

func (d *Decoder) submit(index int, kind blockKind, samples []complex128) error {
	if !d.threaded {
		slot := d.acquireSlot(index, kind)
		copy(slot.data, samples)
		d.process(slot)
		return nil
	}

	<-d.bufferSpace // acquire: blocks the producer when all L slots are in flight
	slot := d.acquireSlot(index, kind)
	copy(slot.data, samples)
	d.mailbox <- slot
	return nil
}

func (d *Decoder) process(u *unit) {
	copy(d.fftBuf, u.data)
	d.engine.Forward(d.fftBuf)

	switch u.kind {
	case kindBlock0:
		d.snrMu.Lock()
		d.snrCount++
		if d.snrCount > 10 {
			snr := getSNR(d.fftBuf, d.p.Tu, d.p.K)
			d.snr = 0.8*d.snr + 0.2*float64(snr)
			if d.onSNR != nil {
				d.onSNR(int(d.snr))
			}
			d.snrCount = 0
		}
		d.snrMu.Unlock()
		d.demod.seedPhaseReference(d.fftBuf)

	case kindFIC:
		d.demod.demodulate(d.fftBuf, d.ibits)
		d.fic.ProcessFICBlock(d.ibits, u.index)

	case kindMSC:
		d.demod.demodulate(d.fftBuf, d.ibits)
		d.msc.ProcessMSCBlock(d.ibits, u.index)
	}
}
