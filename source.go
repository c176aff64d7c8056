package refract

import "context"

// Handler receives a setting-change event. The context is the one under
// which the event was produced.
type Handler func(ctx context.Context, e Event)

// Source delivers setting-change events to subscribed handlers.
//
// Subscribe registers a handler and returns a cancel function that removes
// exactly that registration. Subscribing the same handler twice yields two
// independent registrations with independent cancels. Cancel functions are
// idempotent.
//
// Implementations in this package: Dispatcher topics, ChannelSource, and
// FileSource. Applications embedded in other hosts can adapt their own
// event surface by implementing this single method.
type Source interface {
	Subscribe(fn Handler) (cancel func())
}
