package refract

// State represents the current state of a Bridge.
type State int32

const (
	// StateDetached indicates the Bridge is not subscribed to its source.
	// This is the initial state and the state after Detach().
	StateDetached State = iota

	// StateIdle indicates the Bridge is subscribed and waiting for events.
	StateIdle

	// StateProcessing indicates a conversion and callback are in flight.
	// Events arriving in this state are dropped, not queued.
	StateProcessing
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateDetached:
		return "detached"
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	default:
		return "unknown"
	}
}
