// Package feed provides the timer event feed drained by the host.
//
// The host polls the feed once per frame; producers never block. Two
// producers publish: the host goroutine itself (start, stop, reset, duration
// changes) and the dispatcher goroutine (expiry). This package offers two
// implementations of the Feed interface:
//   - ShardedFeed: lock-free multi-producer ring, one shard per producer
//   - ChannelFeed: buffered channel with non-blocking select
//
// Events are FIFO per producer. Across producers only ChannelFeed keeps
// publish order; with ShardedFeed, order by Event.At.
package feed

import (
	"fmt"
	"time"
)

// Kind identifies a timer event.
type Kind uint8

const (
	KindStarted Kind = iota + 1
	KindStopped
	KindReset
	KindDurationChanged
	KindExpired
)

func (k Kind) String() string {
	switch k {
	case KindStarted:
		return "started"
	case KindStopped:
		return "stopped"
	case KindReset:
		return "reset"
	case KindDurationChanged:
		return "duration_changed"
	case KindExpired:
		return "expired"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Event is a snapshot published on a state change. Elapsed and Duration are
// read separately and may be torn by up to one tick.
type Event struct {
	At       time.Time
	Kind     Kind
	Elapsed  uint16
	Duration uint16
}

// Producer identifies the publishing goroutine.
type Producer uint64

const (
	// ProducerHost is the goroutine calling the controller.
	ProducerHost Producer = iota
	// ProducerDispatcher is the dispatcher goroutine.
	ProducerDispatcher

	numProducers = 2
)

// DefaultCapacity is the number of events a feed buffers, split across
// producer shards for a ShardedFeed.
const DefaultCapacity = 256

// Names accepted by NewNamed.
const (
	NameSharded = "sharded"
	NameChannel = "channel"
)

// NewNamed creates a Feed of DefaultCapacity by name: NameSharded for a
// ShardedFeed, NameChannel for a ChannelFeed.
func NewNamed(name string) (Feed, error) {
	switch name {
	case NameSharded:
		return NewSharded()
	case NameChannel:
		return NewChannel(DefaultCapacity), nil
	}
	return nil, fmt.Errorf("feed: unknown feed %q", name)
}

// Feed is a non-blocking multi-producer, single-consumer event queue.
//
// Producer values select a shard; goroutines sharing a value contend on it.
// Only one goroutine may call Poll.
type Feed interface {
	// Publish adds an event. Returns false if the feed is full and the
	// event was dropped.
	Publish(p Producer, ev Event) bool

	Poller
}

// Poller is the consuming side of a Feed.
type Poller interface {
	// Poll removes and returns the next event.
	// Returns false if the feed is empty.
	Poll() (Event, bool)
}

// Drain polls f until it is empty, calling fn for each event, and returns the
// number of events drained.
func Drain(f Poller, fn func(Event)) int {
	n := 0
	for {
		ev, ok := f.Poll()
		if !ok {
			return n
		}
		n++
		if fn != nil {
			fn(ev)
		}
	}
}
