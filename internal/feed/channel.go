package feed

// ChannelFeed wraps a buffered channel as a Feed.
//
// All producers share one buffer, so events are polled in the order they
// were published across producers, not only per producer as with
// ShardedFeed. The cost is that the host and the dispatcher contend on the
// channel. Each Publish/Poll performs a non-blocking channel operation via
// select with default.
type ChannelFeed struct {
	ch chan Event
}

// NewChannel creates a ChannelFeed buffering up to size events.
func NewChannel(size int) *ChannelFeed {
	return &ChannelFeed{
		ch: make(chan Event, size),
	}
}

// Publish adds an event to the feed.
// Returns false if the feed is full (non-blocking).
func (f *ChannelFeed) Publish(_ Producer, ev Event) bool {
	select {
	case f.ch <- ev:
		return true
	default:
		return false
	}
}

// Poll removes and returns the next event.
// Returns false if the feed is empty (non-blocking).
func (f *ChannelFeed) Poll() (Event, bool) {
	select {
	case ev := <-f.ch:
		return ev, true
	default:
		return Event{}, false
	}
}

// Len returns the current number of buffered events.
func (f *ChannelFeed) Len() int {
	return len(f.ch)
}

// Cap returns the capacity of the feed.
func (f *ChannelFeed) Cap() int {
	return cap(f.ch)
}
