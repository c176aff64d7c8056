package refract

import (
	"context"
	"sync"
)

// Dispatcher is an in-process event bus keyed by topic name. It replaces
// the global dispatch surface of a hosting editor with an explicit,
// injectable one: producers call Dispatch, consumers subscribe to a topic
// view via Topic.
//
// Dispatch fans out synchronously on the caller's goroutine, so handlers
// observe events in dispatch order for any single producer goroutine.
// A Dispatcher is safe for concurrent use.
type Dispatcher struct {
	mu     sync.RWMutex
	topics map[string]map[uint64]Handler
	nextID uint64
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{topics: make(map[string]map[uint64]Handler)}
}

// Dispatch delivers an event to every handler currently subscribed to the
// topic. Topics with no subscribers drop the event silently.
func (d *Dispatcher) Dispatch(ctx context.Context, topic string, e Event) {
	d.mu.RLock()
	subs := d.topics[topic]
	handlers := make([]Handler, 0, len(subs))
	for _, fn := range subs {
		handlers = append(handlers, fn)
	}
	d.mu.RUnlock()

	for _, fn := range handlers {
		fn(ctx, e)
	}
}

// Subscribe registers a handler for a topic and returns a cancel function
// removing exactly this registration.
func (d *Dispatcher) Subscribe(topic string, fn Handler) (cancel func()) {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	if d.topics[topic] == nil {
		d.topics[topic] = make(map[uint64]Handler)
	}
	d.topics[topic][id] = fn
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.topics[topic], id)
			d.mu.Unlock()
		})
	}
}

// Topic returns a Source view of a single topic, suitable for handing to
// a Bridge.
func (d *Dispatcher) Topic(name string) Source {
	return topicSource{bus: d, topic: name}
}

type topicSource struct {
	bus   *Dispatcher
	topic string
}

func (t topicSource) Subscribe(fn Handler) (cancel func()) {
	return t.bus.Subscribe(t.topic, fn)
}
