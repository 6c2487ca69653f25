// Package runflag provides the shared "is the dispatcher ticking" flag.
//
// Every start/stop decision is a compare-and-swap on a single Flag, so
// concurrent callers cannot both win the same transition:
//   - TrySet: false -> true (start), beginning a new Run
//   - TryClear: true -> false (stop)
//   - TryClearRun: true -> false only if the given Run is still current
//     (completion from the tick loop)
//
// Reads are a single atomic load and never block.
package runflag

import "sync/atomic"

// Run identifies one set/clear cycle of a Flag. Each successful TrySet
// begins a new Run.
type Run uint64

// Flag is an atomic boolean whose transitions are compare-and-swap only.
//
// The zero value is a cleared (not running) flag.
type Flag struct {
	// bit 0: running; remaining bits: Run counter
	state atomic.Uint64
}

// New creates a cleared Flag.
func New() *Flag {
	return &Flag{}
}

// Load reports whether the flag is currently set.
//
// This performs a single atomic load.
func (f *Flag) Load() bool {
	return f.state.Load()&1 != 0
}

// Current returns the latest Run and whether it is still set.
func (f *Flag) Current() (Run, bool) {
	s := f.state.Load()
	return Run(s >> 1), s&1 != 0
}

// TrySet transitions the flag from cleared to set, beginning a new Run.
//
// Returns false if the flag was already set, in which case another caller
// owns the running state.
func (f *Flag) TrySet() bool {
	for {
		s := f.state.Load()
		if s&1 != 0 {
			return false
		}
		// (run+1)<<1 | 1
		if f.state.CompareAndSwap(s, s+3) {
			return true
		}
	}
}

// TryClear transitions the flag from set to cleared, whatever Run is
// current.
//
// Returns false if the flag was already cleared. Safe to call multiple
// times; only one caller observes true per set/clear cycle.
func (f *Flag) TryClear() bool {
	for {
		s := f.state.Load()
		if s&1 == 0 {
			return false
		}
		if f.state.CompareAndSwap(s, s-1) {
			return true
		}
	}
}

// TryClearRun clears the flag only if r is the current Run and still set.
//
// Returns false if r was already cleared or a later Run has begun.
func (f *Flag) TryClearRun(r Run) bool {
	set := uint64(r)<<1 | 1
	return f.state.CompareAndSwap(set, set-1)
}
