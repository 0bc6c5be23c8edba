package dab

import "sync"

// SyncState names where the receiver sits in the null-symbol /
// cyclic-prefix acquisition cycle described in spec.md §4.4.
type SyncState int

const (
	Initing SyncState = iota
	SyncOnNull
	SyncOnEndNull
	SyncOnPhase
	Block0
	DataBlocks
	NewOffset
)

func (s SyncState) String() string {
	switch s {
	case Initing:
		return "Initing"
	case SyncOnNull:
		return "SyncOnNull"
	case SyncOnEndNull:
		return "SyncOnEndNull"
	case SyncOnPhase:
		return "SyncOnPhase"
	case Block0:
		return "Block0"
	case DataBlocks:
		return "DataBlocks"
	case NewOffset:
		return "NewOffset"
	default:
		return "Unknown"
	}
}

// stateMachine tracks the current SyncState and fires OnStateChange on
// every transition. Grounded on the teacher's TransportState/setState/
// OnStateChange idiom: a mutex-guarded current value plus a callback,
// without the ARQ retry semantics that idiom also carried, which have
// no counterpart in a one-way broadcast receiver.
type stateMachine struct {
	mu            sync.Mutex
	current       SyncState
	onStateChange func(from, to SyncState)
}

func newStateMachine(onStateChange func(from, to SyncState)) *stateMachine {
	return &stateMachine{current: Initing, onStateChange: onStateChange}
}

func (sm *stateMachine) set(s SyncState) {
	sm.mu.Lock()
	prev := sm.current
	sm.current = s
	sm.mu.Unlock()

	if prev != s && sm.onStateChange != nil {
		sm.onStateChange(prev, s)
	}
}

func (sm *stateMachine) get() SyncState {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.current
}
