package main

import (
	"log"
	"sync/atomic"
)

// logFIC and logMSC are stand-ins for the real FIC multiplex parser and
// MSC audio/data router spec.md §1 and §6 name as external
// collaborators — out of scope for this module. They satisfy
// ofdm.FICHandler/MSCHandler just enough to let this binary run
// end-to-end against a real front-end; a production deployment wires
// the real handlers in their place.
type logFIC struct {
	synced atomic.Bool
}

func (f *logFIC) ProcessFICBlock(ibits []int8, blockIndex int) {
	log.Printf("fic: block %d, %d soft bits", blockIndex, len(ibits))
}

func (f *logFIC) SyncReached() bool { return f.synced.Load() }

func (f *logFIC) Reset() {
	f.synced.Store(false)
	log.Println("fic: reset")
}

type logMSC struct{}

func (m *logMSC) ProcessMSCBlock(ibits []int8, blockIndex int) {
	log.Printf("msc: block %d, %d soft bits", blockIndex, len(ibits))
}

func (m *logMSC) Reset() { log.Println("msc: reset") }
func (m *logMSC) Stop()  { log.Println("msc: stop") }
