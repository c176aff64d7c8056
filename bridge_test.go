package refract

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

// previewSpec is the canonical test spec: one direct lookup and one
// conditional scalar.
func previewSpec() Spec {
	return Spec{
		"color": Key("bg_color"),
		"size":  Mapped{Condition: "has_size", Key: "size_px"},
	}
}

// waitFor polls a condition until it returns true or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestBridge_DeliversConvertedOptions(t *testing.T) {
	ctx := context.Background()
	bus := NewDispatcher()

	var delivered map[string]any
	var calls int
	bridge := New(
		bus.Topic(SettingChanged),
		previewSpec(),
		func(_ context.Context, options map[string]any) error {
			delivered = options
			calls++
			return nil
		},
	)

	if err := bridge.Attach(ctx); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer bridge.Detach()

	bus.Dispatch(ctx, SettingChanged, Event{
		Setting: "bg_color",
		Settings: map[string]any{
			"bg_color": "#fff",
			"has_size": true,
			"size_px":  10,
		},
		Value: "#fff",
	})

	if calls != 1 {
		t.Fatalf("expected 1 callback, got %d", calls)
	}
	if delivered["color"] != "#fff" {
		t.Errorf("expected color #fff, got %v", delivered["color"])
	}
	// A single changed key reconverts the whole spec.
	if delivered["size"] != 10 {
		t.Errorf("expected size 10, got %v", delivered["size"])
	}
}

func TestBridge_FullSpecConversionWithFailedGate(t *testing.T) {
	ctx := context.Background()
	bus := NewDispatcher()

	var delivered map[string]any
	bridge := New(
		bus.Topic(SettingChanged),
		previewSpec(),
		func(_ context.Context, options map[string]any) error {
			delivered = options
			return nil
		},
	)

	if err := bridge.Attach(ctx); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer bridge.Detach()

	bus.Dispatch(ctx, SettingChanged, Event{
		Setting: "bg_color",
		Settings: map[string]any{
			"bg_color": "#fff",
			"has_size": false,
			"size_px":  10,
		},
	})

	if delivered["color"] != "#fff" {
		t.Errorf("expected color #fff, got %v", delivered["color"])
	}
	if delivered["size"] != false {
		t.Errorf("expected size false, got %v", delivered["size"])
	}
}

func TestBridge_IgnoresUnmappedSetting(t *testing.T) {
	ctx := context.Background()
	bus := NewDispatcher()

	var calls int
	bridge := New(
		bus.Topic(SettingChanged),
		previewSpec(),
		func(_ context.Context, _ map[string]any) error {
			calls++
			return nil
		},
	)

	if err := bridge.Attach(ctx); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer bridge.Detach()

	bus.Dispatch(ctx, SettingChanged, Event{
		Setting:  "unmapped_key",
		Settings: map[string]any{"unmapped_key": 1},
	})

	if calls != 0 {
		t.Errorf("expected no callback for irrelevant setting, got %d", calls)
	}
	if bridge.State() != StateIdle {
		t.Errorf("expected idle after ignored event, got %s", bridge.State())
	}
}

func TestBridge_DropsMalformedEvents(t *testing.T) {
	ctx := context.Background()
	bus := NewDispatcher()

	var calls int
	bridge := New(
		bus.Topic(SettingChanged),
		previewSpec(),
		func(_ context.Context, _ map[string]any) error {
			calls++
			return nil
		},
	)

	if err := bridge.Attach(ctx); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer bridge.Detach()

	// Missing setting key.
	bus.Dispatch(ctx, SettingChanged, Event{
		Settings: map[string]any{"bg_color": "#fff"},
	})
	// Missing settings payload.
	bus.Dispatch(ctx, SettingChanged, Event{
		Setting: "bg_color",
	})

	if calls != 0 {
		t.Errorf("expected no callbacks for malformed events, got %d", calls)
	}
	if bridge.State() != StateIdle {
		t.Errorf("expected idle, got %s", bridge.State())
	}
}

func TestBridge_DropsEventWhileProcessing(t *testing.T) {
	ctx := context.Background()
	bus := NewDispatcher()

	release := make(chan struct{})
	var calls atomic.Int32
	bridge := New(
		bus.Topic(SettingChanged),
		previewSpec(),
		func(_ context.Context, _ map[string]any) error {
			calls.Add(1)
			<-release
			return nil
		},
	)

	if err := bridge.Attach(ctx); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer bridge.Detach()

	settings := map[string]any{"bg_color": "#fff", "has_size": true, "size_px": 10}

	go bus.Dispatch(ctx, SettingChanged, Event{Setting: "bg_color", Settings: settings})

	if !waitFor(t, time.Second, func() bool { return bridge.State() == StateProcessing }) {
		t.Fatal("bridge never entered processing state")
	}

	// Second event arrives mid-flight: dropped, no relevance check, no queue.
	bus.Dispatch(ctx, SettingChanged, Event{Setting: "bg_color", Settings: settings})

	close(release)

	if !waitFor(t, time.Second, func() bool { return bridge.State() == StateIdle }) {
		t.Fatal("bridge never returned to idle")
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly 1 callback, got %d", calls.Load())
	}
}

func TestBridge_DetachWithoutAttach(t *testing.T) {
	bridge := New(NewDispatcher().Topic(SettingChanged), previewSpec(),
		func(_ context.Context, _ map[string]any) error { return nil },
	)

	bridge.Detach() // must not panic

	if bridge.State() != StateDetached {
		t.Errorf("expected detached, got %s", bridge.State())
	}
}

func TestBridge_AttachTwiceReturnsError(t *testing.T) {
	ctx := context.Background()
	bridge := New(NewDispatcher().Topic(SettingChanged), previewSpec(),
		func(_ context.Context, _ map[string]any) error { return nil },
	)

	if err := bridge.Attach(ctx); err != nil {
		t.Fatalf("first Attach failed: %v", err)
	}
	defer bridge.Detach()

	if err := bridge.Attach(ctx); err == nil {
		t.Error("expected error on second Attach, got nil")
	}
}

func TestBridge_DetachStopsDelivery(t *testing.T) {
	ctx := context.Background()
	bus := NewDispatcher()

	var calls int
	bridge := New(
		bus.Topic(SettingChanged),
		previewSpec(),
		func(_ context.Context, _ map[string]any) error {
			calls++
			return nil
		},
	)

	if err := bridge.Attach(ctx); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	bridge.Detach()

	bus.Dispatch(ctx, SettingChanged, Event{
		Setting:  "bg_color",
		Settings: map[string]any{"bg_color": "#fff"},
	})

	if calls != 0 {
		t.Errorf("expected no callbacks after detach, got %d", calls)
	}
}

func TestBridge_ReattachAfterDetach(t *testing.T) {
	ctx := context.Background()
	bus := NewDispatcher()

	var calls int
	bridge := New(
		bus.Topic(SettingChanged),
		previewSpec(),
		func(_ context.Context, _ map[string]any) error {
			calls++
			return nil
		},
	)

	if err := bridge.Attach(ctx); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	bridge.Detach()

	if err := bridge.Attach(ctx); err != nil {
		t.Fatalf("re-Attach failed: %v", err)
	}
	defer bridge.Detach()

	bus.Dispatch(ctx, SettingChanged, Event{
		Setting:  "bg_color",
		Settings: map[string]any{"bg_color": "#fff"},
	})

	if calls != 1 {
		t.Errorf("expected 1 callback after re-attach, got %d", calls)
	}
}

func TestBridge_CallbackErrorReleasesProcessing(t *testing.T) {
	ctx := context.Background()
	bus := NewDispatcher()

	failNext := true
	var successes int
	bridge := New(
		bus.Topic(SettingChanged),
		previewSpec(),
		func(_ context.Context, _ map[string]any) error {
			if failNext {
				return errors.New("render failed")
			}
			successes++
			return nil
		},
	)

	if err := bridge.Attach(ctx); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer bridge.Detach()

	event := Event{
		Setting:  "bg_color",
		Settings: map[string]any{"bg_color": "#fff"},
	}

	bus.Dispatch(ctx, SettingChanged, event)

	if bridge.State() != StateIdle {
		t.Fatalf("expected idle after failed callback, got %s", bridge.State())
	}
	if bridge.LastError() == nil {
		t.Error("expected LastError after failed callback")
	}
	if _, ok := bridge.Options(); ok {
		t.Error("expected no delivered options after failure")
	}

	// The bridge must remain usable for the next valid event.
	failNext = false
	bus.Dispatch(ctx, SettingChanged, event)

	if successes != 1 {
		t.Errorf("expected 1 successful delivery, got %d", successes)
	}
	if bridge.LastError() != nil {
		t.Errorf("expected LastError cleared after success, got %v", bridge.LastError())
	}
}

func TestBridge_ErrorHistory(t *testing.T) {
	ctx := context.Background()
	bus := NewDispatcher()

	var attempt int
	bridge := New(
		bus.Topic(SettingChanged),
		previewSpec(),
		func(_ context.Context, _ map[string]any) error {
			attempt++
			return errors.New("failure")
		},
	).ErrorHistorySize(2)

	if err := bridge.Attach(ctx); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer bridge.Detach()

	event := Event{Setting: "bg_color", Settings: map[string]any{"bg_color": "#fff"}}
	for i := 0; i < 3; i++ {
		bus.Dispatch(ctx, SettingChanged, event)
	}

	history := bridge.ErrorHistory()
	if len(history) != 2 {
		t.Fatalf("expected 2 retained errors, got %d", len(history))
	}
	if attempt != 3 {
		t.Errorf("expected 3 attempts, got %d", attempt)
	}
}

func TestBridge_OptionsTracksLastDelivery(t *testing.T) {
	ctx := context.Background()
	bus := NewDispatcher()

	bridge := New(
		bus.Topic(SettingChanged),
		previewSpec(),
		func(_ context.Context, _ map[string]any) error { return nil },
	)

	if _, ok := bridge.Options(); ok {
		t.Error("expected no options before first delivery")
	}

	if err := bridge.Attach(ctx); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer bridge.Detach()

	bus.Dispatch(ctx, SettingChanged, Event{
		Setting:  "bg_color",
		Settings: map[string]any{"bg_color": "#abc", "has_size": true, "size_px": 4},
	})

	options, ok := bridge.Options()
	if !ok {
		t.Fatal("expected options after delivery")
	}
	if options["color"] != "#abc" || options["size"] != 4 {
		t.Errorf("unexpected options %v", options)
	}
}

func TestBridge_DetachDuringCallback(t *testing.T) {
	ctx := context.Background()
	bus := NewDispatcher()

	var bridge *Bridge
	bridge = New(
		bus.Topic(SettingChanged),
		previewSpec(),
		func(_ context.Context, _ map[string]any) error {
			bridge.Detach()
			return nil
		},
	)

	if err := bridge.Attach(ctx); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	bus.Dispatch(ctx, SettingChanged, Event{
		Setting:  "bg_color",
		Settings: map[string]any{"bg_color": "#fff"},
	})

	// Detach during processing wins over the deferred release.
	if bridge.State() != StateDetached {
		t.Errorf("expected detached, got %s", bridge.State())
	}
}

func TestBridge_OnDetachReceivesState(t *testing.T) {
	ctx := context.Background()
	bus := NewDispatcher()

	var observed State
	bridge := New(
		bus.Topic(SettingChanged),
		previewSpec(),
		func(_ context.Context, _ map[string]any) error { return nil },
	).OnDetach(func(s State) { observed = s })

	if err := bridge.Attach(ctx); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	bridge.Detach()

	if observed != StateIdle {
		t.Errorf("expected OnDetach to observe idle, got %s", observed)
	}
}

func TestBridge_MetricsProvider(t *testing.T) {
	ctx := context.Background()
	bus := NewDispatcher()
	clock := clockz.NewFakeClock()

	metrics := &recordingMetrics{}
	bridge := New(
		bus.Topic(SettingChanged),
		previewSpec(),
		func(_ context.Context, _ map[string]any) error {
			clock.Advance(50 * time.Millisecond)
			return nil
		},
	).Clock(clock).Metrics(metrics)

	if err := bridge.Attach(ctx); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer bridge.Detach()

	settings := map[string]any{"bg_color": "#fff"}
	bus.Dispatch(ctx, SettingChanged, Event{Setting: "bg_color", Settings: settings})
	bus.Dispatch(ctx, SettingChanged, Event{Setting: "unmapped", Settings: settings})

	if metrics.received.Load() != 2 {
		t.Errorf("expected 2 received events, got %d", metrics.received.Load())
	}
	if metrics.ignored.Load() != 1 {
		t.Errorf("expected 1 ignored event, got %d", metrics.ignored.Load())
	}
	if metrics.successes.Load() != 1 {
		t.Errorf("expected 1 success, got %d", metrics.successes.Load())
	}
	if d := metrics.lastDuration.Load(); d != int64(50*time.Millisecond) {
		t.Errorf("expected 50ms apply duration, got %s", time.Duration(d))
	}
}

type recordingMetrics struct {
	NoOpMetricsProvider
	received     atomic.Int32
	ignored      atomic.Int32
	dropped      atomic.Int32
	successes    atomic.Int32
	failures     atomic.Int32
	lastDuration atomic.Int64
}

func (m *recordingMetrics) OnEventReceived() { m.received.Add(1) }
func (m *recordingMetrics) OnEventIgnored()  { m.ignored.Add(1) }
func (m *recordingMetrics) OnEventDropped()  { m.dropped.Add(1) }
func (m *recordingMetrics) OnApplySuccess(d time.Duration) {
	m.successes.Add(1)
	m.lastDuration.Store(int64(d))
}
func (m *recordingMetrics) OnApplyFailure(time.Duration) { m.failures.Add(1) }

func TestBridge_LiveKeysCached(t *testing.T) {
	bridge := New(NewDispatcher().Topic(SettingChanged), previewSpec(),
		func(_ context.Context, _ map[string]any) error { return nil },
	)

	keys := bridge.LiveKeys()
	for _, want := range []string{"bg_color", "has_size", "size_px"} {
		if !keys.Has(want) {
			t.Errorf("expected live key %q", want)
		}
	}
}
