package refract

import "github.com/zoobzio/capitan"

// Field keys for Bridge events.
var (
	// KeySetting is the upstream key of the changed setting.
	KeySetting = capitan.NewStringKey("setting")

	// KeyState is the current state of the Bridge.
	KeyState = capitan.NewStringKey("state")

	// KeyOldState is the previous state before a transition.
	KeyOldState = capitan.NewStringKey("old_state")

	// KeyNewState is the new state after a transition.
	KeyNewState = capitan.NewStringKey("new_state")

	// KeyError is the error message when an operation fails.
	KeyError = capitan.NewStringKey("error")

	// KeyOptionCount is the number of options in a converted result.
	KeyOptionCount = capitan.NewIntKey("option_count")

	// KeyLiveKeyCount is the size of the spec's live-key set.
	KeyLiveKeyCount = capitan.NewIntKey("live_key_count")
)
