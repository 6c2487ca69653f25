package feed_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/randomizedcoder/intervaltimer/internal/feed"
)

// TestFeed_MPSC_PerProducerFIFO runs the valid pattern: the host and the
// dispatcher each publish from their own goroutine, one consumer polls.
// Sequence numbers travel in Elapsed.
func TestFeed_MPSC_PerProducerFIFO(t *testing.T) {
	testCases := []struct {
		name string
		f    feed.Feed
	}{
		{"ChannelFeed", feed.NewChannel(64)},
		{"ShardedFeed", newSharded(t)},
	}

	const count = 5000

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			producers := []feed.Producer{feed.ProducerHost, feed.ProducerDispatcher}
			for _, p := range producers {
				go func() {
					for i := 1; i <= count; i++ {
						ev := feed.Event{Kind: feed.KindStarted + feed.Kind(p), Elapsed: uint16(i)}
						for !tc.f.Publish(p, ev) {
							// Spin until publish succeeds
						}
					}
				}()
			}

			last := map[feed.Kind]uint16{}
			received := 0
			for received < count*len(producers) {
				ev, ok := tc.f.Poll()
				if !ok {
					continue
				}
				if ev.Elapsed != last[ev.Kind]+1 {
					t.Fatalf("FIFO violation for %s: expected %d, got %d", ev.Kind, last[ev.Kind]+1, ev.Elapsed)
				}
				last[ev.Kind] = ev.Elapsed
				received++
			}

			assert.Equal(t, uint16(count), last[feed.KindStarted])
			assert.Equal(t, uint16(count), last[feed.KindStopped])
		})
	}
}
