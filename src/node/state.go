package node

import (
	"sync"
	"sync/atomic"
)

// State captures the state of a swiftnode daemon: Syncing, Running, Suspended
// or Shutdown.
type State uint32

const (
	// Syncing is the initial state. The node answers peers and runs the
	// bootstrap sync, but does not manage the local swiftnode yet.
	Syncing State = iota

	// Running nodes have a synced chain and run the periodic maintenance.
	Running

	// Suspended nodes answer peers but skip maintenance ticks.
	Suspended

	// Shutdown nodes no longer process anything.
	Shutdown
)

// String ...
func (s State) String() string {
	switch s {
	case Syncing:
		return "Syncing"
	case Running:
		return "Running"
	case Suspended:
		return "Suspended"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// WGLIMIT is the maximum number of goroutines that can be launched through
// state.goFunc
const WGLIMIT = 64

type state struct {
	state   State
	wg      sync.WaitGroup
	wgCount int32
}

func (s *state) getState() State {
	stateAddr := (*uint32)(&s.state)
	return State(atomic.LoadUint32(stateAddr))
}

func (s *state) setState(st State) {
	stateAddr := (*uint32)(&s.state)
	atomic.StoreUint32(stateAddr, uint32(st))
}

// goFunc starts f in a goroutine tracked by the waitgroup. It returns false,
// without running f, once WGLIMIT goroutines are in flight.
func (s *state) goFunc(f func()) bool {
	if atomic.AddInt32(&s.wgCount, 1) > WGLIMIT {
		atomic.AddInt32(&s.wgCount, -1)
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer atomic.AddInt32(&s.wgCount, -1)
		f()
	}()
	return true
}

func (s *state) waitRoutines() {
	s.wg.Wait()
}
