// Package signal provides a payload-free rendezvous used to park and unpark
// a single background goroutine.
//
// A Sender marks "work available" and a Receiver blocks until it is marked.
// Both sides share one mutex and one sync.Cond. There is a single pending
// slot: sends made while nobody is waiting collapse into one wake-up, and a
// wake-up is consumed by exactly one Receive.
//
// Send never blocks. It takes the guard with TryLock, retrying for a short
// bounded spin, and reports ErrContended rather than waiting. Receive blocks
// until a send, a Close, or a Poison.
package signal

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
)

var (
	// ErrContended is returned by Send when the guard could not be taken
	// without waiting.
	ErrContended = errors.New("signal: guard contended")

	// ErrPoisoned is wrapped by the error returned from Send and Receive
	// after Poison. It is not recoverable.
	ErrPoisoned = errors.New("signal: guard poisoned")

	// ErrClosed is returned by Send and Receive after Close.
	ErrClosed = errors.New("signal: closed")
)

// sendSpin bounds the TryLock attempts made by Send. The receiver only holds
// the guard for a handful of instructions around cond.Wait.
const sendSpin = 64

type shared struct {
	mu        sync.Mutex
	available *sync.Cond
	pending   bool
	closed    bool
	poison    error
}

// Sender is the waking side of a rendezvous.
type Sender struct {
	shared *shared
}

// Receiver is the parked side of a rendezvous.
//
// Only one goroutine should call Receive.
type Receiver struct {
	shared *shared
}

// New creates a connected Sender and Receiver.
func New() (*Sender, *Receiver) {
	s := &shared{}
	s.available = sync.NewCond(&s.mu)
	return &Sender{shared: s}, &Receiver{shared: s}
}

// Send marks work available and wakes the receiver if it is parked.
//
// Returns nil if the wake-up was recorded. Returns ErrContended if the guard
// stayed busy for the whole spin, in which case nothing was recorded.
func (x *Sender) Send() error {
	s := x.shared
	for i := 0; !s.mu.TryLock(); i++ {
		if i == sendSpin {
			return ErrContended
		}
		runtime.Gosched()
	}
	defer s.mu.Unlock()

	if s.poison != nil {
		return s.poison
	}
	if s.closed {
		return ErrClosed
	}
	s.pending = true
	s.available.Signal()
	return nil
}

// Close wakes the receiver with ErrClosed and rejects further sends.
//
// Unlike Send, Close waits for the guard. Safe to call multiple times.
func (x *Sender) Close() {
	s := x.shared
	s.mu.Lock()
	s.closed = true
	s.available.Broadcast()
	s.mu.Unlock()
}

// Receive blocks until a send is pending, then consumes it.
//
// The loop only re-checks the slot after a wake from the condition variable;
// it does not poll.
func (x *Receiver) Receive() error {
	s := x.shared
	s.mu.Lock()
	defer s.mu.Unlock()

	for !s.pending && !s.closed && s.poison == nil {
		s.available.Wait()
	}
	switch {
	case s.poison != nil:
		return s.poison
	case s.closed:
		return ErrClosed
	}
	s.pending = false
	return nil
}

// TryConsume discards a pending wake-up without blocking and reports whether
// one was discarded. The receiving goroutine calls it when it already knows
// about the work a send announced.
func (x *Receiver) TryConsume() bool {
	s := x.shared
	if !s.mu.TryLock() {
		return false
	}
	defer s.mu.Unlock()

	if !s.pending {
		return false
	}
	s.pending = false
	return true
}

// Poison marks the rendezvous as corrupted by a panicking holder.
//
// All current and future Send and Receive calls fail with an error wrapping
// ErrPoisoned. The first cause wins; the resulting error is returned.
func (x *Receiver) Poison(cause any) error {
	s := x.shared
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poison == nil {
		s.poison = fmt.Errorf("%w: %v", ErrPoisoned, cause)
		s.available.Broadcast()
	}
	return s.poison
}
