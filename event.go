package refract

// SettingChanged is the well-known dispatcher topic for editor
// setting-change notifications.
const SettingChanged = "refract/editor/setting-changed"

// Event is a single setting-change notification from the hosting editor.
type Event struct {
	// Setting is the key of the setting that just changed.
	Setting string

	// Settings holds the current values of all upstream settings.
	Settings map[string]any

	// Value is the new raw value of the changed setting. It is carried
	// for consumers but plays no part in relevance filtering.
	Value any
}

// valid reports whether the event carries the shape a Bridge requires:
// a changed-setting key and a settings payload. Anything else is treated
// as not applicable rather than as an error.
func (e Event) valid() bool {
	return e.Setting != "" && e.Settings != nil
}
