// Package dab runs the top-level synchronization state machine: it
// drives a sample reader through null-dip detection, cyclic-prefix
// alignment, and coarse/fine frequency correction, handing aligned
// blocks to an ofdm.Decoder for the rest of the frame.
package dab

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/dabsdr/dabcore/internal/dabparams"
	"github.com/dabsdr/dabcore/internal/ofdm"
	"github.com/dabsdr/dabcore/internal/sdrio"
	dabsync "github.com/dabsdr/dabcore/internal/sync"
)

// cLevelSize is the sliding-window length over which the envelope
// average is tracked while hunting for the null dip, reproduced
// literally from the reference implementation per spec.md §9.
const cLevelSize = 50

// syncBufferSize is the masked ring the envelope history lives in; a
// power of two so the index can be masked instead of modulo'd.
const (
	syncBufferSize = 32768
	syncBufferMask = syncBufferSize - 1
)

// khz35 is the coarse-offset runaway clamp: if |coarseOffset| exceeds
// this, the estimate is discarded and the offset reset to zero.
const khz35 = 35000

// Processor drives the full acquisition and tracking loop described in
// spec.md §4.4, literally grounded on dab-processor.cpp's run(): every
// threshold and magic constant below is reproduced from that source,
// not re-derived.
type Processor struct {
	p       dabparams.Params
	reader  *sdrio.Reader
	phase   *dabsync.PhaseSynchronizer
	decoder *ofdm.Decoder

	sm *stateMachine

	coarseOffset  int
	fineCorrector float64
	f2Correction  bool

	scanMode bool
	attempts int

	envBuffer       [syncBufferSize]float64
	syncBufferIndex int
	cLevel          float64

	block0       []complex128
	block0Filled int

	wg sync.WaitGroup

	mu sync.Mutex // guards scanMode/attempts/f2Correction and the coarseOffset writes of control calls and Block 0 estimation; the run loop reads coarseOffset and updates fineCorrector without it

	onStateChange   func(from, to SyncState)
	onNoSignalFound func()
	onSynced        func(bool)
	onSyncLost      func()
}

// New builds a Processor for mode p, reading samples from reader and
// handing decoded blocks to decoder (already wired to its FIC/MSC
// handlers).
func New(p dabparams.Params, reader *sdrio.Reader, decoder *ofdm.Decoder) *Processor {
	pr := &Processor{
		p:       p,
		reader:  reader,
		phase:   dabsync.New(p),
		decoder: decoder,
	}
	pr.sm = newStateMachine(func(from, to SyncState) {
		if pr.onStateChange != nil {
			pr.onStateChange(from, to)
		}
	})
	return pr
}

// OnStateChange registers a callback fired on every SyncState transition.
func (pr *Processor) OnStateChange(f func(from, to SyncState)) { pr.onStateChange = f }

// OnNoSignalFound registers a callback fired when scan mode exhausts
// its failure budget (spec.md §4.4, SyncOnNull row).
func (pr *Processor) OnNoSignalFound(f func()) { pr.onNoSignalFound = f }

// OnSynced registers the setSynced(bool) event of spec.md §6: false on
// entering SyncOnNull, true on reaching Block_0.
func (pr *Processor) OnSynced(f func(bool)) { pr.onSynced = f }

// OnSyncLost registers the syncLost() event, fired only when the
// SyncOnPhase step fails while the processor believed it was already
// locked (f2Correction false), per spec.md §4.4/§7.
func (pr *Processor) OnSyncLost(f func()) { pr.onSyncLost = f }

// State returns the processor's current SyncState.
func (pr *Processor) State() SyncState { return pr.sm.get() }

// StateString returns the current SyncState's name, for callers (like
// internal/control) that want the state without importing this package.
func (pr *Processor) StateString() string { return pr.sm.get().String() }

// SetScanMode toggles scan-mode failure reporting and resets the
// attempt counter, mirroring set_scanMode.
func (pr *Processor) SetScanMode(b bool) {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	pr.scanMode = b
	pr.attempts = 0
}

// CoarseCorrectorOn re-enables block-0 coarse frequency estimation and
// clears any accumulated offset.
func (pr *Processor) CoarseCorrectorOn() {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	pr.f2Correction = true
	pr.coarseOffset = 0
}

// CoarseCorrectorOff freezes the coarse offset and pushes it to the
// device as a hardware tuning hint, per spec.md §4.4.
func (pr *Processor) CoarseCorrectorOff() {
	pr.mu.Lock()
	offset := pr.coarseOffset
	pr.f2Correction = false
	pr.mu.Unlock()
	pr.reader.SetOffset(int64(offset))
}

// Start launches the run loop on a dedicated goroutine.
func (pr *Processor) Start() {
	pr.decoder.Start()
	pr.wg.Add(1)
	go func() {
		defer pr.wg.Done()
		pr.run()
	}()
}

// Stop halts the run loop, waits for it to exit, then stops the decoder
// and resets the FIC/MSC handlers in that order (spec.md §5, §7):
// Decoder.Stop() itself shuts down its worker and then the MSC and FIC
// handlers.
func (pr *Processor) Stop() {
	pr.reader.SetRunning(false)
	pr.wg.Wait()
	pr.decoder.Stop()
}

// Reset stops and restarts the loop from Initing, matching the
// reference's reset(): stop, then start fresh.
func (pr *Processor) Reset() {
	pr.Stop()
	pr.Start()
}

// ResetMSC resets only the MSC handler, the resetMsc control-surface
// operation of spec.md §6 — used to switch audio/data channels without
// tearing down frame synchronization.
func (pr *Processor) ResetMSC() {
	pr.decoder.ResetMSC()
}

// run is the direct translation of dabProcessor::run: a goto-based
// state machine rendered as an explicit loop over SyncState values.
// Every threshold, buffer size and formula below matches the reference
// implementation line for line.
func (pr *Processor) run() {
	pr.fineCorrector = 0
	pr.f2Correction = true
	pr.syncBufferIndex = 0
	pr.reader.ResetBuffer()
	pr.coarseOffset = int(pr.reader.Offset())
	pr.reader.SetRunning(true)

	if err := pr.warmUp(); err != nil {
		return
	}

	state := Initing
	for {
		switch state {
		case Initing:
			if _, err := pr.primeEnvelope(); err != nil {
				return
			}
			state = SyncOnNull

		case SyncOnNull:
			pr.sm.set(SyncOnNull)
			if pr.onSynced != nil {
				pr.onSynced(false)
			}
			ok, err := pr.syncOnNull()
			if err != nil {
				return
			}
			if !ok {
				state = Initing
				continue
			}
			state = SyncOnEndNull

		case SyncOnEndNull:
			pr.sm.set(SyncOnEndNull)
			ok, err := pr.syncOnEndNull()
			if err != nil {
				return
			}
			if !ok {
				state = Initing
				continue
			}
			state = SyncOnPhase

		case SyncOnPhase:
			pr.sm.set(SyncOnPhase)
			ok, err := pr.syncOnPhase()
			if err != nil {
				return
			}
			if !ok {
				pr.mu.Lock()
				f2 := pr.f2Correction
				pr.mu.Unlock()
				if !f2 && pr.onSyncLost != nil {
					pr.onSyncLost()
				}
				state = Initing
				continue
			}
			state = Block0

		case Block0:
			pr.sm.set(Block0)
			if pr.onSynced != nil {
				pr.onSynced(true)
			}
			if err := pr.processBlock0(); err != nil {
				return
			}
			state = DataBlocks

		case DataBlocks:
			pr.sm.set(DataBlocks)
			freqCorr, err := pr.processDataBlocks()
			if err != nil {
				return
			}
			pr.integrateFrequency(freqCorr)
			state = NewOffset

		case NewOffset:
			pr.sm.set(NewOffset)
			if err := pr.skipNullPeriod(); err != nil {
				return
			}
			state = SyncOnPhase
		}
	}
}

func (pr *Processor) warmUp() error {
	for i := 0; i < pr.p.TF/5; i++ {
		if _, err := pr.reader.GetSample(0); err != nil {
			return err
		}
	}
	return nil
}

// primeEnvelope seeds cLevel with the envelope sum over the first
// C_LEVEL_SIZE samples, as Initing does before falling into SyncOnNull.
func (pr *Processor) primeEnvelope() (float64, error) {
	pr.syncBufferIndex = 0
	cLevel := 0.0
	for i := 0; i < cLevelSize; i++ {
		sample, err := pr.reader.GetSample(0)
		if err != nil {
			return 0, err
		}
		pr.envBuffer[pr.syncBufferIndex] = cmplx.Abs(sample)
		cLevel += pr.envBuffer[pr.syncBufferIndex]
		pr.syncBufferIndex++
	}
	pr.cLevel = cLevel
	return cLevel, nil
}

func (pr *Processor) syncOnNull() (bool, error) {
	counter := 0
	for pr.cLevel/cLevelSize > 0.40*pr.reader.SLevel() {
		sample, err := pr.reader.GetSample(pr.coarseOffset + int(pr.fineCorrector))
		if err != nil {
			return false, err
		}
		pr.pushEnvelope(cmplx.Abs(sample))
		counter++
		if counter > pr.p.TF {
			pr.mu.Lock()
			if pr.scanMode {
				pr.attempts++
				if pr.attempts >= 5 {
					pr.attempts = 0
					pr.mu.Unlock()
					if pr.onNoSignalFound != nil {
						pr.onNoSignalFound()
					}
					return false, nil
				}
			}
			pr.mu.Unlock()
			return false, nil
		}
	}
	return true, nil
}

func (pr *Processor) syncOnEndNull() (bool, error) {
	counter := 0
	for pr.cLevel/cLevelSize < 0.75*pr.reader.SLevel() {
		sample, err := pr.reader.GetSample(pr.coarseOffset + int(pr.fineCorrector))
		if err != nil {
			return false, err
		}
		pr.pushEnvelope(cmplx.Abs(sample))
		counter++
		if counter > pr.p.TNull+50 {
			return false, nil
		}
	}
	return true, nil
}

func (pr *Processor) pushEnvelope(mag float64) {
	pr.cLevel += mag - pr.envBuffer[(pr.syncBufferIndex-cLevelSize)&syncBufferMask]
	pr.envBuffer[pr.syncBufferIndex] = mag
	pr.syncBufferIndex = (pr.syncBufferIndex + 1) & syncBufferMask
}

func (pr *Processor) syncOnPhase() (bool, error) {
	window := make([]complex128, pr.p.Tu)
	if err := pr.reader.GetSamples(window, pr.p.Tu, pr.coarseOffset+int(pr.fineCorrector)); err != nil {
		return false, err
	}

	startIndex := pr.phase.FindIndex(window)
	if startIndex < 0 {
		return false, nil
	}

	pr.block0 = make([]complex128, pr.p.Tu)
	copy(pr.block0, window[startIndex:])
	pr.block0Filled = pr.p.Tu - startIndex
	return true, nil
}

func (pr *Processor) processBlock0() error {
	if err := pr.reader.GetSamples(pr.block0[pr.block0Filled:], pr.p.Tu-pr.block0Filled, pr.coarseOffset+int(pr.fineCorrector)); err != nil {
		return err
	}

	if err := pr.decoder.ProcessBlock0(pr.block0); err != nil {
		return err
	}

	pr.mu.Lock()
	pr.f2Correction = !pr.decoder.FICSyncReached()
	f2 := pr.f2Correction
	pr.mu.Unlock()
	if !f2 {
		return nil
	}

	correction := pr.phase.EstimateCarrierOffset(pr.block0)
	if correction == 100 {
		return nil
	}

	pr.mu.Lock()
	pr.coarseOffset = clampCoarseOffset(pr.coarseOffset + correction*pr.p.CarrierDiff)
	pr.mu.Unlock()
	return nil
}

// clampCoarseOffset resets the coarse offset to zero once its magnitude
// runs past the Khz(35) ceiling, the runaway guard of spec.md §4.4 and
// testable property §8.2.
func clampCoarseOffset(offset int) int {
	if abs(offset) > khz35 {
		return 0
	}
	return offset
}

func (pr *Processor) processDataBlocks() (complex128, error) {
	var freqCorr complex128
	block := make([]complex128, pr.p.Ts)

	for n := 1; n < 4; n++ {
		if err := pr.reader.GetSamples(block, pr.p.Ts, pr.coarseOffset+int(pr.fineCorrector)); err != nil {
			return 0, err
		}
		accumulateFreqCorr(&freqCorr, block, pr.p.Tu)
		if err := pr.decoder.DecodeFicBlock(block, n); err != nil {
			return 0, err
		}
	}

	for n := 4; n < pr.p.L; n++ {
		if err := pr.reader.GetSamples(block, pr.p.Ts, pr.coarseOffset+int(pr.fineCorrector)); err != nil {
			return 0, err
		}
		accumulateFreqCorr(&freqCorr, block, pr.p.Tu)
		if err := pr.decoder.DecodeMscBlock(block, n); err != nil {
			return 0, err
		}
	}

	return freqCorr, nil
}

func accumulateFreqCorr(freqCorr *complex128, block []complex128, tu int) {
	for i := tu; i < len(block); i++ {
		*freqCorr += block[i] * cmplx.Conj(block[i-tu])
	}
}

// integrateFrequency folds the accumulated cyclic-prefix phase error
// into the fine corrector, the formula reproduced literally from
// spec.md §9: not derived, not "cleaned up".
func (pr *Processor) integrateFrequency(freqCorr complex128) {
	pr.fineCorrector += 0.1 * cmplx.Phase(freqCorr) / (2 * math.Pi) * float64(pr.p.CarrierDiff)
}

func (pr *Processor) skipNullPeriod() error {
	pr.syncBufferIndex = 0
	pr.cLevel = 0

	nullBlock := make([]complex128, pr.p.TNull)
	if err := pr.reader.GetSamples(nullBlock, pr.p.TNull, pr.coarseOffset); err != nil {
		return err
	}

	half := float64(pr.p.CarrierDiff) / 2
	if pr.fineCorrector > half {
		pr.coarseOffset += pr.p.CarrierDiff
		pr.fineCorrector -= float64(pr.p.CarrierDiff)
	} else if pr.fineCorrector < -half {
		pr.coarseOffset -= pr.p.CarrierDiff
		pr.fineCorrector += float64(pr.p.CarrierDiff)
	}
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
