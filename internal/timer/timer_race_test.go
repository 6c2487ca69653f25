package timer_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/randomizedcoder/intervaltimer/internal/feed"
	"github.com/randomizedcoder/intervaltimer/internal/timer"
)

// TestController_Race_ConcurrentStart verifies at most one of many
// simultaneous Start calls takes effect.
// Run with: go test -race ./internal/timer
func TestController_Race_ConcurrentStart(t *testing.T) {
	c, _ := newController(t)

	var wins atomic.Int32
	var g errgroup.Group
	for i := 0; i < 32; i++ {
		g.Go(func() error {
			if c.Start() {
				wins.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.LessOrEqual(t, wins.Load(), int32(1), "expected at most one Start() to take effect")
	assert.Equal(t, wins.Load() == 1, c.Running())
}

// TestController_Race_HostAndDispatcher drives every operation from several
// goroutines against a dispatcher ticking on a real clock, with readers
// polling the way a render loop does.
func TestController_Race_HostAndDispatcher(t *testing.T) {
	c, err := timer.New(timer.WithDuration(200), timer.WithInterval(time.Millisecond))
	require.NoError(t, err)
	defer c.Close()

	var g errgroup.Group

	// Spawn readers
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			for j := 0; j < 2000; j++ {
				_ = c.Elapsed()
				_ = c.Duration()
				_ = c.InProgress()
				if p := c.Progress(); p < 0 || p > 1 {
					t.Errorf("expected Progress() in [0, 1], got %v", p)
				}
			}
			return nil
		})
	}

	// Spawn host callers
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			for j := 0; j < 200; j++ {
				switch j % 5 {
				case 0:
					c.Start()
				case 1:
					c.SetDuration(uint16(50 + j))
				case 2:
					c.Stop()
				case 3:
					c.Restart()
				case 4:
					c.Reset()
				}
			}
			return nil
		})
	}

	// Single consumer
	g.Go(func() error {
		for j := 0; j < 2000; j++ {
			c.Poll()
		}
		return nil
	})

	require.NoError(t, g.Wait())

	c.Stop()
	assert.NoError(t, c.Err())
}

// expiryGate holds the dispatcher inside its first Expired publish, after
// the tick has clamped elapsed and before the dispatcher finishes the run.
type expiryGate struct {
	feed.Feed
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newExpiryGate() *expiryGate {
	return &expiryGate{
		Feed:    feed.NewChannel(64),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *expiryGate) Publish(p feed.Producer, ev feed.Event) bool {
	if p == feed.ProducerDispatcher && ev.Kind == feed.KindExpired {
		g.once.Do(func() {
			close(g.entered)
			<-g.release
		})
	}
	return g.Feed.Publish(p, ev)
}

// expireGated runs a 200ms countdown to expiry and returns with the
// dispatcher held inside the Expired publish.
func expireGated(t *testing.T) (*timer.Controller, *clockwork.FakeClock, *expiryGate) {
	t.Helper()
	gate := newExpiryGate()
	c, fc := newController(t, timer.WithDuration(200), timer.WithFeed(gate))
	t.Cleanup(func() {
		select {
		case <-gate.release:
		default:
			close(gate.release)
		}
	})

	require.True(t, c.Start())
	ticks(t, c, fc, 1, 100)
	tick(t, fc)

	select {
	case <-gate.entered:
	case <-time.After(waitFor):
		t.Fatal("expected the countdown to expire")
	}
	require.Equal(t, uint16(200), c.Elapsed())
	return c, fc, gate
}

// TestController_Race_ResetDuringExpiry resets while the expiring tick is
// still in flight. The reset run must keep counting.
func TestController_Race_ResetDuringExpiry(t *testing.T) {
	c, fc, gate := expireGated(t)

	require.True(t, c.Reset(), "expected Reset() = true with nonzero duration")
	assert.True(t, c.Running())
	assert.Equal(t, uint16(0), c.Elapsed())

	close(gate.release)

	ticks(t, c, fc, 1, 100)
	assert.True(t, c.Running(), "expected the reset run to survive the expiry")
	assert.True(t, c.InProgress())

	ticks(t, c, fc, 1, 200)
	require.Eventually(t, func() bool { return !c.Running() }, waitFor, time.Millisecond)
	assert.NoError(t, c.Err())
}

// TestController_Race_GrowDuringExpiry raises the target while the expiring
// tick is still in flight. The countdown resumes toward the new target.
func TestController_Race_GrowDuringExpiry(t *testing.T) {
	c, fc, gate := expireGated(t)

	require.True(t, c.SetDuration(500), "expected SetDuration() above elapsed to resume")
	assert.True(t, c.Running())

	close(gate.release)

	ticks(t, c, fc, 1, 300)
	assert.True(t, c.Running(), "expected the resumed run to survive the expiry")
	assert.Equal(t, uint16(500), c.Duration())
}

// TestController_Race_StopDuringTicks stops from the host while the
// dispatcher ticks on a real clock. Once Stop returns, elapsed settles and
// stays put.
func TestController_Race_StopDuringTicks(t *testing.T) {
	c, err := timer.New(timer.WithDuration(60000), timer.WithInterval(time.Millisecond))
	require.NoError(t, err)
	defer c.Close()

	for i := 0; i < 20; i++ {
		if !c.Start() {
			// Contended with a tick; retry on the next pass.
			continue
		}
		time.Sleep(2 * time.Millisecond)
		if !c.Stop() {
			continue
		}
		time.Sleep(3 * time.Millisecond)
		settled := c.Elapsed()
		time.Sleep(3 * time.Millisecond)
		require.Equal(t, settled, c.Elapsed(), "expected elapsed to stay put after Stop()")
	}
	assert.NoError(t, c.Err())
}
