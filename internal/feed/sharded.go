package feed

import (
	"fmt"

	ring "github.com/randomizedcoder/go-lock-free-ring"
)

// ShardedFeed is a lock-free Feed backed by a sharded ring, one shard per
// Producer, so the host and the dispatcher never contend on a write.
type ShardedFeed struct {
	r *ring.ShardedRing
}

// NewSharded creates a ShardedFeed.
func NewSharded() (*ShardedFeed, error) {
	r, err := ring.NewShardedRing(DefaultCapacity, numProducers)
	if err != nil {
		return nil, fmt.Errorf("feed: sharded ring: %w", err)
	}
	return &ShardedFeed{r: r}, nil
}

// Publish adds an event to the producer's shard.
// Returns false if the shard is full (non-blocking).
func (f *ShardedFeed) Publish(p Producer, ev Event) bool {
	return f.r.Write(uint64(p), ev)
}

// Poll removes and returns the next event from any shard.
// Returns false if every shard is empty (non-blocking).
func (f *ShardedFeed) Poll() (Event, bool) {
	v, ok := f.r.TryRead()
	if !ok {
		return Event{}, false
	}
	ev, ok := v.(Event)
	return ev, ok
}
