// Package timer provides the controller behind a pausable countdown shared
// between a host UI goroutine and a background dispatcher.
//
// Elapsed time is derived from an anchor instant (the moment the countdown
// would have read zero) rather than accumulated, so pausing and resuming is a
// matter of moving the anchor. All controller methods are safe to call from
// the host's UI goroutine on every frame: reads are atomic loads, and the
// only lock taken by the host is a bounded try-lock on the anchor.
//
// Methods report whether they took effect. Transient failures (a contended
// anchor or signal) are logged and left for the next interaction; a fatal
// failure of the dispatcher is reported by Err.
package timer

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"

	"github.com/randomizedcoder/intervaltimer/internal/clock"
	"github.com/randomizedcoder/intervaltimer/internal/dispatch"
	"github.com/randomizedcoder/intervaltimer/internal/feed"
)

// DefaultDuration is the initial countdown target.
const DefaultDuration uint16 = 15000

// anchorSpin bounds the TryLock attempts made on the anchor by the host.
const anchorSpin = 64

var (
	// ErrLockContended is logged when the anchor could not be written
	// without waiting. The caller may retry on the next frame.
	ErrLockContended = errors.New("timer: anchor lock contended")

	// ErrExpired is logged when starting a countdown whose elapsed time has
	// already reached its duration.
	ErrExpired = errors.New("timer: elapsed has reached duration")
)

// Option configures a Controller.
type Option func(*options)

type options struct {
	duration  uint16
	interval  time.Duration
	autoStart bool
	clock     clock.Clock
	feed      feed.Feed
	logger    *logiface.Logger[logiface.Event]
}

// WithDuration sets the initial target in milliseconds.
func WithDuration(ms uint16) Option {
	return func(o *options) { o.duration = ms }
}

// WithInterval sets the dispatcher tick interval.
func WithInterval(interval time.Duration) Option {
	return func(o *options) { o.interval = interval }
}

// WithAutoStart starts the countdown on construction when the duration is
// nonzero.
func WithAutoStart(enabled bool) Option {
	return func(o *options) { o.autoStart = enabled }
}

// WithClock sets the time source for both the anchor and the dispatcher.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithFeed sets the event feed. Defaults to a feed.ShardedFeed.
func WithFeed(f feed.Feed) Option {
	return func(o *options) { o.feed = f }
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return func(o *options) { o.logger = logger }
}

// Controller is a pausable, resumable countdown.
type Controller struct {
	duration *clock.Millis
	elapsed  *clock.Millis
	anchor   struct {
		sync.RWMutex
		at time.Time
	}

	clock   clock.Clock
	disp    *dispatch.Dispatcher
	feed    feed.Feed
	dropped atomic.Uint64
	logger  *logiface.Logger[logiface.Event]
}

// New creates a Controller with elapsed at zero, and its dispatcher
// goroutine. Call Close to release the goroutine.
func New(opts ...Option) (*Controller, error) {
	o := options{
		duration: DefaultDuration,
		interval: dispatch.DefaultInterval,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.clock == nil {
		o.clock = clock.Real()
	}
	if o.feed == nil {
		f, err := feed.NewSharded()
		if err != nil {
			return nil, fmt.Errorf("timer: %w", err)
		}
		o.feed = f
	}

	c := &Controller{
		duration: clock.NewMillis(o.duration),
		elapsed:  clock.NewMillis(0),
		clock:    o.clock,
		feed:     o.feed,
		logger:   o.logger,
	}
	c.anchor.at = o.clock.Now()

	d, err := dispatch.New(countdown{c},
		dispatch.WithInterval(o.interval),
		dispatch.WithClock(o.clock),
		dispatch.WithLogger(o.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("timer: %w", err)
	}
	c.disp = d

	if o.autoStart && o.duration != 0 {
		c.Start()
	}
	return c, nil
}

// Elapsed returns the elapsed milliseconds as of the last tick.
func (c *Controller) Elapsed() uint16 {
	return c.elapsed.Get()
}

// Duration returns the target in milliseconds.
func (c *Controller) Duration() uint16 {
	return c.duration.Get()
}

// Running reports whether the countdown is ticking.
func (c *Controller) Running() bool {
	return c.disp.Running()
}

// InProgress reports whether elapsed is still short of the duration. Hosts
// use it to decide whether to keep requesting redraw frames.
func (c *Controller) InProgress() bool {
	return c.elapsed.Get() < c.duration.Get()
}

// Progress returns elapsed/duration in [0, 1]. A zero duration reads as
// complete. The two values are read separately, so the ratio may lag by up
// to one tick.
func (c *Controller) Progress() float64 {
	duration := c.duration.Get()
	if duration == 0 {
		return 1
	}
	p := float64(c.elapsed.Get()) / float64(duration)
	if p > 1 {
		return 1
	}
	return p
}

// Start resumes the countdown from the current elapsed value.
//
// Returns false if it was already running, has already expired, or the
// anchor or signal was contended.
func (c *Controller) Start() bool {
	return c.try(`start`, c.start())
}

// Restart resumes a paused countdown from where it stopped, not from zero.
// It is a no-op returning false while the countdown is running.
func (c *Controller) Restart() bool {
	return c.try(`restart`, c.start())
}

// Stop pauses the countdown and reports whether it was running.
//
// The dispatcher notices within one interval. Unless a tick is being
// evaluated at that very moment, Elapsed does not change again until the
// next Start or Restart.
func (c *Controller) Stop() bool {
	locked := c.lockAnchor()
	stopped := c.disp.Stop()
	if locked {
		c.anchor.Unlock()
	}
	if !stopped {
		return false
	}
	c.publish(feed.ProducerHost, feed.KindStopped)
	c.logger.Debug().
		Uint64(`elapsed_ms`, uint64(c.elapsed.Get())).
		Log(`timer stopped`)
	return true
}

// Reset sets elapsed to zero and, if the duration is nonzero, starts
// counting again from zero. Reports whether the countdown is running
// afterwards.
//
// If a tick holds the anchor, Reset has no effect and returns false.
func (c *Controller) Reset() bool {
	if !c.lockAnchor() {
		return c.try(`reset`, ErrLockContended)
	}
	defer c.anchor.Unlock()

	c.disp.Stop()
	c.elapsed.Set(0)
	c.publish(feed.ProducerHost, feed.KindReset)
	if c.duration.Get() == 0 {
		c.logger.Debug().Log(`timer reset with zero duration`)
		return false
	}
	return c.try(`reset`, c.startLocked())
}

// SetDuration sets the target. If the new target is at or below elapsed,
// elapsed is clamped to it and the countdown stops. Otherwise a stopped
// countdown resumes toward the new target. Reports whether the countdown is
// running afterwards.
//
// The target is always stored. If a tick holds the anchor, the clamp or
// resume is left to that tick and the next interaction.
func (c *Controller) SetDuration(ms uint16) bool {
	c.duration.Set(ms)
	c.publish(feed.ProducerHost, feed.KindDurationChanged)

	if !c.lockAnchor() {
		c.try(`set_duration`, ErrLockContended)
		return c.disp.Running()
	}
	defer c.anchor.Unlock()

	if elapsed := c.elapsed.Get(); ms <= elapsed {
		wasRunning := c.disp.Stop()
		c.elapsed.Set(ms)
		if wasRunning || elapsed != ms {
			c.publish(feed.ProducerHost, feed.KindExpired)
		}
		return false
	}
	if c.disp.Running() {
		return true
	}
	return c.try(`set_duration`, c.startLocked())
}

// Poll returns the next pending event, without blocking.
func (c *Controller) Poll() (feed.Event, bool) {
	return c.feed.Poll()
}

// Dropped returns the number of events dropped because the feed was full.
func (c *Controller) Dropped() uint64 {
	return c.dropped.Load()
}

// Err returns a fatal dispatcher failure, or nil. Once set, the countdown
// cannot run again.
func (c *Controller) Err() error {
	return c.disp.Err()
}

// Close stops the countdown and joins the dispatcher goroutine. Returns the
// fatal error reported by Err, if any.
func (c *Controller) Close() error {
	return c.disp.Close()
}

// start takes the anchor and begins counting from the current elapsed
// value.
func (c *Controller) start() error {
	if c.disp.Running() {
		return dispatch.ErrAlreadyRunning
	}
	if !c.lockAnchor() {
		return ErrLockContended
	}
	defer c.anchor.Unlock()
	return c.startLocked()
}

// lockAnchor takes the anchor write lock without waiting on it, retrying
// for a short bounded spin. A tick holds the read lock only while it updates
// elapsed.
func (c *Controller) lockAnchor() bool {
	for i := 0; !c.anchor.TryLock(); i++ {
		if i == anchorSpin {
			return false
		}
		runtime.Gosched()
	}
	return true
}

// startLocked anchors the countdown at the current elapsed value and wakes
// the dispatcher. The caller holds the anchor write lock, so no tick runs
// between the flag transition and the anchor write.
func (c *Controller) startLocked() error {
	elapsed := c.elapsed.Get()
	if elapsed >= c.duration.Get() {
		return ErrExpired
	}
	if err := c.disp.Start(); err != nil {
		return err
	}
	c.anchor.at = c.clock.Now().Add(-clock.ToDuration(elapsed))
	c.publish(feed.ProducerHost, feed.KindStarted)
	c.logger.Debug().
		Uint64(`elapsed_ms`, uint64(elapsed)).
		Uint64(`duration_ms`, uint64(c.duration.Get())).
		Log(`timer started`)
	return nil
}

// try absorbs err into a boolean, logging the reason at a level matching
// its severity.
func (c *Controller) try(op string, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, dispatch.ErrAlreadyRunning), errors.Is(err, ErrExpired):
		c.logger.Debug().Str(`op`, op).Err(err).Log(`timer operation skipped`)
	case errors.Is(err, ErrLockContended), errors.Is(err, dispatch.ErrSignalContended):
		c.logger.Warning().Str(`op`, op).Err(err).Log(`timer operation deferred`)
	default:
		c.logger.Err().Str(`op`, op).Err(err).Log(`timer operation failed`)
	}
	return false
}

func (c *Controller) publish(p feed.Producer, kind feed.Kind) {
	ev := feed.Event{
		At:       c.clock.Now(),
		Kind:     kind,
		Elapsed:  c.elapsed.Get(),
		Duration: c.duration.Get(),
	}
	if !c.feed.Publish(p, ev) {
		c.dropped.Add(1)
	}
}

// countdown is the dispatcher's tick predicate.
type countdown struct {
	c *Controller
}

// Tick recomputes elapsed from the anchor. Once elapsed reaches the duration
// it is clamped to exactly the duration and the countdown completes. A
// duration written by the host mid-interval is seen at the next tick.
func (x countdown) Tick() bool {
	duration, expired := x.advance()
	if !expired {
		return false
	}
	x.c.publish(feed.ProducerDispatcher, feed.KindExpired)
	x.c.logger.Debug().
		Uint64(`duration_ms`, uint64(duration)).
		Log(`timer expired`)
	return true
}

// advance updates elapsed under the anchor read lock, which excludes every
// host write of elapsed or the anchor. On expiry the countdown is stopped
// before the lock is released, so a host write that follows sees it stopped.
func (x countdown) advance() (duration uint16, expired bool) {
	c := x.c
	c.anchor.RLock()
	defer c.anchor.RUnlock()

	if !c.disp.Running() {
		return 0, false
	}
	elapsed := clock.FromDuration(c.clock.Since(c.anchor.at))
	duration = c.duration.Get()
	if elapsed < duration {
		c.elapsed.Set(elapsed)
		return duration, false
	}
	c.elapsed.Set(duration)
	c.disp.Stop()
	return duration, true
}
