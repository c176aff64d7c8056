package refract

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/pipz"
)

// Callback receives converted options when a relevant setting changes.
// It is the terminal stage of the bridge's pipeline; returning an error
// marks the delivery failed but never wedges the bridge.
type Callback func(ctx context.Context, options map[string]any) error

// Bridge subscribes to a Source of setting-change events and delivers
// converted options to a callback.
//
// A Bridge processes at most one event at a time: events arriving while a
// conversion is in flight are dropped, not queued. The first event of a
// burst wins; there is no coalescing and no last-writer-wins. Relevance is
// decided against the spec's live-key set, which is computed once at
// construction since specs are immutable.
type Bridge struct {
	source   Source
	spec     Spec
	live     KeySet
	pipeline pipz.Chainable[*Request]
	clock    clockz.Clock
	metrics  MetricsProvider
	history  *errorRing
	onDetach func(State)

	state     atomic.Int32
	current   atomic.Pointer[map[string]any]
	lastError atomic.Pointer[error]

	mu     sync.Mutex
	cancel func()
}

// New creates a Bridge over a source and spec.
//
// Pipeline options (With*) configure the delivery pipeline around the
// callback. Instance configuration uses chainable methods before calling
// Attach().
//
// Example:
//
//	bridge := refract.New(
//	    bus.Topic(refract.SettingChanged),
//	    spec,
//	    func(ctx context.Context, options map[string]any) error {
//	        return widget.Apply(options)
//	    },
//	    refract.WithRetry(3),
//	).ErrorHistorySize(10)
func New(source Source, spec Spec, fn Callback, opts ...Option) *Bridge {
	terminal := pipz.Effect("callback", func(ctx context.Context, req *Request) error {
		return fn(ctx, req.Options)
	})

	b := &Bridge{
		source:   source,
		spec:     spec,
		live:     spec.LiveKeys(),
		pipeline: buildPipeline(terminal, opts),
		clock:    clockz.RealClock,
	}
	b.state.Store(int32(StateDetached))

	return b
}

// -----------------------------------------------------------------------------
// Chainable Instance Configuration
// -----------------------------------------------------------------------------

// Clock sets a custom clock for time operations.
// Use this with clockz.FakeClock for deterministic duration testing.
// Must be called before Attach().
func (b *Bridge) Clock(clock clockz.Clock) *Bridge {
	b.clock = clock
	return b
}

// Metrics sets a metrics provider for observability integration.
// The provider receives callbacks on state changes, delivery
// success/failure, and event arrival/drop/ignore. Must be called before
// Attach().
func (b *Bridge) Metrics(provider MetricsProvider) *Bridge {
	b.metrics = provider
	return b
}

// ErrorHistorySize sets the number of recent errors to retain.
// Use 0 (default) to only retain the most recent error via LastError().
// Must be called before Attach().
func (b *Bridge) ErrorHistorySize(n int) *Bridge {
	b.history = newErrorRing(n)
	return b
}

// OnDetach sets a callback invoked when the bridge detaches from its
// source. It receives the state the bridge was in when Detach was called,
// which is StateProcessing when a delivery was still in flight.
// Must be called before Attach().
func (b *Bridge) OnDetach(fn func(State)) *Bridge {
	b.onDetach = fn
	return b
}

// -----------------------------------------------------------------------------
// Accessors
// -----------------------------------------------------------------------------

// State returns the current state of the Bridge.
func (b *Bridge) State() State {
	return State(b.state.Load())
}

// Options returns the most recently delivered options and true, or nil
// and false if no delivery has succeeded yet.
func (b *Bridge) Options() (map[string]any, bool) {
	ptr := b.current.Load()
	if ptr == nil {
		return nil, false
	}
	return *ptr, true
}

// LastError returns the last delivery error, or nil if none occurred or
// the most recent delivery succeeded.
func (b *Bridge) LastError() error {
	ptr := b.lastError.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// ErrorHistory returns recent delivery errors, oldest first.
// Returns nil unless enabled via ErrorHistorySize.
func (b *Bridge) ErrorHistory() []error {
	return b.history.list()
}

// LiveKeys returns the cached live-key set of the bridge's spec.
func (b *Bridge) LiveKeys() KeySet {
	return b.live
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Attach subscribes the bridge to its source and begins handling events.
// Attaching an already-attached bridge returns an error rather than
// double-subscribing.
func (b *Bridge) Attach(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.transition(ctx, StateDetached, StateIdle) {
		return fmt.Errorf("bridge already attached")
	}

	b.cancel = b.source.Subscribe(b.handle)

	capitan.Emit(ctx, BridgeAttached,
		KeyLiveKeyCount.Field(len(b.live)),
	)
	return nil
}

// Detach unsubscribes the bridge from its source. A delivery already in
// flight runs to completion, but the bridge stays detached afterwards.
// Detaching a bridge that was never attached is a no-op.
func (b *Bridge) Detach() {
	b.mu.Lock()
	defer b.mu.Unlock()

	old := State(b.state.Swap(int32(StateDetached)))
	if old == StateDetached {
		return
	}

	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}

	ctx := context.Background()
	capitan.Emit(ctx, BridgeStateChanged,
		KeyOldState.Field(old.String()),
		KeyNewState.Field(StateDetached.String()),
	)
	capitan.Emit(ctx, BridgeDetached,
		KeyState.Field(old.String()),
	)
	if b.metrics != nil {
		b.metrics.OnStateChange(old, StateDetached)
	}
	if b.onDetach != nil {
		b.onDetach(old)
	}
}

// -----------------------------------------------------------------------------
// Event handling
// -----------------------------------------------------------------------------

// handle is the single handler registered at attach time. It validates
// the event shape, claims the processing slot, checks relevance, and runs
// the conversion pipeline. The processing slot is released on every exit
// path, including callback failure.
func (b *Bridge) handle(ctx context.Context, e Event) {
	capitan.Emit(ctx, BridgeEventReceived,
		KeySetting.Field(e.Setting),
	)
	if b.metrics != nil {
		b.metrics.OnEventReceived()
	}

	if !e.valid() {
		capitan.Emit(ctx, BridgeEventMalformed,
			KeySetting.Field(e.Setting),
		)
		return
	}

	if !b.transition(ctx, StateIdle, StateProcessing) {
		// Busy or detached. Busy means a conversion is in flight and
		// this event is lost by policy; a detached bridge only sees
		// stale deliveries from an already-canceled subscription.
		if b.State() == StateProcessing {
			capitan.Emit(ctx, BridgeEventDropped,
				KeySetting.Field(e.Setting),
			)
			if b.metrics != nil {
				b.metrics.OnEventDropped()
			}
		}
		return
	}
	defer b.transition(ctx, StateProcessing, StateIdle)

	if !b.live.Has(e.Setting) {
		capitan.Emit(ctx, BridgeEventIgnored,
			KeySetting.Field(e.Setting),
		)
		if b.metrics != nil {
			b.metrics.OnEventIgnored()
		}
		return
	}

	start := b.clock.Now()

	// A relevant change reconverts the entire spec, not just the entry
	// that depends on the changed key.
	req := &Request{Event: e, Options: b.spec.Convert(e.Settings)}

	processed, err := b.pipeline.Process(ctx, req)
	if err != nil {
		b.setError(err)
		capitan.Emit(ctx, BridgeApplyFailed,
			KeySetting.Field(e.Setting),
			KeyError.Field(err.Error()),
		)
		if b.metrics != nil {
			b.metrics.OnApplyFailure(b.clock.Since(start))
		}
		return
	}

	options := processed.Options
	b.current.Store(&options)
	b.lastError.Store(nil)
	b.history.reset()
	capitan.Emit(ctx, BridgeApplySucceeded,
		KeySetting.Field(e.Setting),
		KeyOptionCount.Field(len(options)),
	)
	if b.metrics != nil {
		b.metrics.OnApplySuccess(b.clock.Since(start))
	}
}

// transition performs a compare-and-swap state change, emitting a signal
// and notifying metrics when it succeeds. A failed swap means another
// transition won, e.g. a detach during processing.
func (b *Bridge) transition(ctx context.Context, from, to State) bool {
	if !b.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	capitan.Emit(ctx, BridgeStateChanged,
		KeyOldState.Field(from.String()),
		KeyNewState.Field(to.String()),
	)
	if b.metrics != nil {
		b.metrics.OnStateChange(from, to)
	}
	return true
}

// setError stores an error atomically and adds it to the error history.
func (b *Bridge) setError(err error) {
	e := err
	b.lastError.Store(&e)
	b.history.record(err)
}
