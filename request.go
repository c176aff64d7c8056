package refract

// Request carries a converted result through the callback pipeline.
// Middleware stages see both the originating event and the derived
// options, allowing decisions based on what changed.
type Request struct {
	// Event is the setting-change notification that triggered conversion.
	Event Event

	// Options is the converted result of resolving the full spec against
	// the event's settings payload. Pipeline stages may modify it before
	// the terminal callback runs.
	Options map[string]any
}
