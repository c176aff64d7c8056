package refract

import "time"

// MetricsProvider allows integration with metrics systems like Prometheus, StatsD, etc.
// Implement this interface to receive callbacks on key bridge events.
type MetricsProvider interface {
	// OnStateChange is called when the bridge transitions between states.
	OnStateChange(from, to State)

	// OnApplySuccess is called when converted options are delivered.
	// Duration covers conversion plus the callback pipeline.
	OnApplySuccess(duration time.Duration)

	// OnApplyFailure is called when the callback pipeline fails.
	OnApplyFailure(duration time.Duration)

	// OnEventReceived is called for every event arriving from the source.
	OnEventReceived()

	// OnEventDropped is called when an event is dropped because a
	// conversion was already in flight.
	OnEventDropped()

	// OnEventIgnored is called when a changed setting is not in the
	// spec's live-key set.
	OnEventIgnored()
}

// NoOpMetricsProvider is a no-op implementation of MetricsProvider.
// Use this as an embedded type to implement only the methods you need.
type NoOpMetricsProvider struct{}

func (NoOpMetricsProvider) OnStateChange(_, _ State)       {}
func (NoOpMetricsProvider) OnApplySuccess(_ time.Duration) {}
func (NoOpMetricsProvider) OnApplyFailure(_ time.Duration) {}
func (NoOpMetricsProvider) OnEventReceived()               {}
func (NoOpMetricsProvider) OnEventDropped()                {}
func (NoOpMetricsProvider) OnEventIgnored()                {}
