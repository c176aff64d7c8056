package refract

import "github.com/zoobzio/capitan"

// Bridge lifecycle signals.
var (
	// BridgeAttached is emitted when a Bridge subscribes to its source.
	BridgeAttached = capitan.NewSignal(
		"refract.bridge.attached",
		"Bridge subscribed to source",
	)

	// BridgeDetached is emitted when a Bridge unsubscribes from its source.
	BridgeDetached = capitan.NewSignal(
		"refract.bridge.detached",
		"Bridge unsubscribed from source",
	)

	// BridgeStateChanged is emitted when a Bridge transitions between states.
	BridgeStateChanged = capitan.NewSignal(
		"refract.bridge.state.changed",
		"Bridge state transition",
	)
)

// Event processing signals.
var (
	// BridgeEventReceived is emitted when an event arrives from the source.
	BridgeEventReceived = capitan.NewSignal(
		"refract.bridge.event.received",
		"Event received from source",
	)

	// BridgeEventMalformed is emitted when an event lacks the required shape.
	BridgeEventMalformed = capitan.NewSignal(
		"refract.bridge.event.malformed",
		"Event missing setting key or settings payload",
	)

	// BridgeEventDropped is emitted when an event arrives while a
	// conversion is already in flight.
	BridgeEventDropped = capitan.NewSignal(
		"refract.bridge.event.dropped",
		"Event dropped while processing",
	)

	// BridgeEventIgnored is emitted when the changed setting is not a
	// live key of the spec.
	BridgeEventIgnored = capitan.NewSignal(
		"refract.bridge.event.ignored",
		"Changed setting not in live-key set",
	)

	// BridgeApplyFailed is emitted when the callback pipeline fails.
	BridgeApplyFailed = capitan.NewSignal(
		"refract.bridge.apply.failed",
		"Callback pipeline failed",
	)

	// BridgeApplySucceeded is emitted when converted options are delivered.
	BridgeApplySucceeded = capitan.NewSignal(
		"refract.bridge.apply.succeeded",
		"Options delivered successfully",
	)
)
