package refract

import (
	"context"
	"sync"
)

// ChannelSource adapts an existing event channel as a Source.
// Useful for testing and custom producers that already emit events.
//
// Each subscription drains the channel on its own goroutine, so a
// ChannelSource is intended for a single subscriber; with multiple
// subscribers the channel's events are split between them, not fanned out.
type ChannelSource struct {
	ch <-chan Event
}

// NewChannelSource creates a ChannelSource over the given channel.
func NewChannelSource(ch <-chan Event) *ChannelSource {
	return &ChannelSource{ch: ch}
}

// Subscribe starts forwarding events from the channel to fn. The cancel
// function stops forwarding; a delivery already in flight when cancel is
// called still completes. Closing the underlying channel also ends the
// subscription.
func (s *ChannelSource) Subscribe(fn Handler) (cancel func()) {
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case e, ok := <-s.ch:
				if !ok {
					return
				}
				fn(context.Background(), e)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}
