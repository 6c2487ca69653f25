// Package dispatch provides the background interval dispatcher behind a
// pausable countdown.
//
// A Dispatcher owns one goroutine that alternates between two states:
//   - Idle: parked in signal.Receiver.Receive, consuming no CPU
//   - Ticking: sleeping for a fixed interval, then evaluating a
//     TickPredicate while the running flag is still set
//
// Start and Stop are compare-and-swap transitions on a runflag.Flag and never
// block the caller. Stop does not wake the goroutine; it observes the cleared
// flag at its next wake-up, at most one interval later.
package dispatch

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"

	"github.com/randomizedcoder/intervaltimer/internal/clock"
	"github.com/randomizedcoder/intervaltimer/internal/runflag"
	"github.com/randomizedcoder/intervaltimer/internal/signal"
)

// DefaultInterval is the tick interval used when none is configured.
const DefaultInterval = 100 * time.Millisecond

var (
	// ErrAlreadyRunning is returned by Start while the dispatcher is ticking.
	ErrAlreadyRunning = errors.New("dispatch: already running")

	// ErrSignalPoisoned is matched by the fatal error recorded when a tick
	// panics. The dispatcher goroutine exits and cannot be restarted.
	ErrSignalPoisoned = signal.ErrPoisoned

	// ErrSignalContended is matched by Start when the wake-up could not be
	// delivered without waiting. The start was rolled back and may be
	// retried.
	ErrSignalContended = signal.ErrContended

	// ErrClosed is matched by Start after Close.
	ErrClosed = signal.ErrClosed
)

// TickPredicate is evaluated once per interval while the dispatcher is
// ticking. Tick runs on the dispatcher goroutine and returns true when the
// work is complete, which ends the run it was evaluated for. A run begun by a
// concurrent Start is left ticking.
type TickPredicate interface {
	Tick() bool
}

// TickFunc adapts a function to TickPredicate.
type TickFunc func() bool

// Tick calls f.
func (f TickFunc) Tick() bool { return f() }

// Option configures a Dispatcher.
type Option func(*options)

type options struct {
	interval time.Duration
	clock    clock.Clock
	logger   *logiface.Logger[logiface.Event]
}

// WithInterval sets the tick interval. Defaults to DefaultInterval.
func WithInterval(interval time.Duration) Option {
	return func(o *options) { o.interval = interval }
}

// WithClock sets the time source used for sleeping. Defaults to clock.Real.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return func(o *options) { o.logger = logger }
}

// Dispatcher drives a TickPredicate from a single background goroutine.
type Dispatcher struct {
	tick     TickPredicate
	interval time.Duration
	clock    clock.Clock
	logger   *logiface.Logger[logiface.Event]

	running  *runflag.Flag
	sender   *signal.Sender
	receiver *signal.Receiver
	fatal    atomic.Pointer[error]

	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// New creates a Dispatcher and parks its goroutine in the Idle state.
//
// The goroutine lives until Close. Call Close when the owner goes away if the
// process is not about to exit.
func New(tick TickPredicate, opts ...Option) (*Dispatcher, error) {
	if tick == nil {
		return nil, errors.New("dispatch: nil tick predicate")
	}
	o := options{interval: DefaultInterval}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.interval <= 0 {
		return nil, fmt.Errorf("dispatch: invalid interval %v", o.interval)
	}
	if o.clock == nil {
		o.clock = clock.Real()
	}

	sender, receiver := signal.New()
	d := &Dispatcher{
		tick:     tick,
		interval: o.interval,
		clock:    o.clock,
		logger:   o.logger,
		running:  runflag.New(),
		sender:   sender,
		receiver: receiver,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go d.run()
	return d, nil
}

// Start moves the dispatcher from Idle to Ticking.
//
// Returns ErrAlreadyRunning if another caller won the transition. If the
// wake-up cannot be delivered the transition is rolled back and the returned
// error matches ErrSignalContended, ErrSignalPoisoned or ErrClosed.
func (d *Dispatcher) Start() error {
	if !d.running.TrySet() {
		return ErrAlreadyRunning
	}
	if err := d.sender.Send(); err != nil {
		d.running.TryClear()
		return fmt.Errorf("dispatch: start: %w", err)
	}
	return nil
}

// Stop clears the running flag and reports whether it was set.
//
// The goroutine notices at its next wake-up and returns to Idle without
// evaluating the predicate.
func (d *Dispatcher) Stop() bool {
	return d.running.TryClear()
}

// Running reports whether the dispatcher is ticking.
func (d *Dispatcher) Running() bool {
	return d.running.Load()
}

// Interval returns the tick interval.
func (d *Dispatcher) Interval() time.Duration {
	return d.interval
}

// Err returns the fatal error that ended the dispatcher goroutine, or nil.
func (d *Dispatcher) Err() error {
	if err := d.fatal.Load(); err != nil {
		return *err
	}
	return nil
}

// Close stops the dispatcher and waits for its goroutine to exit. Returns
// the fatal error recorded by a panicking tick, if any.
//
// Safe to call multiple times.
func (d *Dispatcher) Close() error {
	d.closeOnce.Do(func() {
		d.running.TryClear()
		close(d.done)
		d.sender.Close()
	})
	<-d.stopped
	return d.Err()
}

func (d *Dispatcher) run() {
	defer close(d.stopped)
	for {
		d.logger.Debug().Log(`dispatcher idle`)
		if err := d.receiver.Receive(); err != nil {
			if !errors.Is(err, signal.ErrClosed) {
				d.logger.Err().Err(err).Log(`dispatcher receive failed`)
			}
			return
		}
		d.logger.Debug().
			Dur(`interval`, d.interval).
			Log(`dispatcher ticking`)
		if !d.ticking() {
			return
		}
	}
}

// ticking runs the sleep-tick loop until the flag is cleared or the
// predicate completes. Returns false if the goroutine must exit.
//
// Completion clears only the run that was current when the predicate was
// evaluated. A Start landing while the predicate completes begins a new run,
// which keeps ticking.
func (d *Dispatcher) ticking() bool {
	for {
		select {
		case <-d.done:
			return false
		case <-d.clock.After(d.interval):
		}

		run, ok := d.running.Current()
		if !ok {
			return true
		}

		complete, err := d.evaluate()
		if err != nil {
			d.running.TryClear()
			d.fatal.Store(&err)
			d.logger.Crit().Err(err).Log(`dispatcher tick panicked`)
			return false
		}
		if !complete {
			continue
		}

		d.running.TryClearRun(run)
		if _, ok := d.running.Current(); !ok {
			d.logger.Debug().Log(`dispatcher tick complete`)
			return true
		}
		// The new run's wake-up is already being served by this loop.
		d.receiver.TryConsume()
		d.logger.Debug().Log(`dispatcher run superseded on completion`)
	}
}

func (d *Dispatcher) evaluate() (complete bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = d.receiver.Poison(r)
		}
	}()
	return d.tick.Tick(), nil
}
