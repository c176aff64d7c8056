// Package refract provides a reactive bridge from editor setting changes
// to nested component options.
//
// The core type is Bridge, which subscribes to a Source of setting-change
// events, filters out events that no mapped option depends on, converts the
// flat settings payload into nested options via a declarative Spec, and
// delivers the result to application code.
//
// # Spec
//
// A Spec declares how upstream settings map to local option names:
//
//	spec := refract.Spec{
//	    "color": refract.Key("bg_color"),
//	    "size": refract.Mapped{
//	        Condition: "has_size",
//	        Key:       "size_px",
//	        Size:      refract.SizeNumber,
//	    },
//	    "border": refract.Group{
//	        Condition: "show_border",
//	        Fields: refract.Spec{
//	            "width": refract.Mapped{Key: "border_width", Size: refract.SizeWithUnit},
//	        },
//	    },
//	}
//
// Rules come in three variants: Key for verbatim lookups, Mapped for
// gated or size-aware scalar values, and Group for recursive composites.
// Specs may also be parsed from untyped documents via ParseSpec or loaded
// from JSON/YAML with LoadSpec.
//
// # Bridge
//
// A Bridge owns the subscription lifecycle and processes one event at a
// time:
//
//	Event → validate shape → relevance check → Convert → Pipeline → callback
//
// Events arriving while a conversion is in flight are dropped, not queued.
// The processing state is always released when the callback settles, even
// on failure, so a failed callback never wedges the bridge.
//
// # State Machine
//
// Bridge maintains one of three states:
//
//   - Detached: Initial state, not subscribed
//   - Idle: Subscribed, waiting for events
//   - Processing: A conversion and callback are in flight
//
// # Sources
//
// The Source interface abstracts event delivery. The core package provides
// Dispatcher (an in-process topic bus), ChannelSource for testing and
// custom producers, and FileSource, which diffs a settings document on
// disk and emits per-key change events via fsnotify.
//
// # Example
//
//	bus := refract.NewDispatcher()
//
//	bridge := refract.New(
//	    bus.Topic(refract.SettingChanged),
//	    spec,
//	    func(ctx context.Context, options map[string]any) error {
//	        return widget.Apply(options)
//	    },
//	)
//
//	if err := bridge.Attach(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer bridge.Detach()
package refract
