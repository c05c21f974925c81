package mqttsource

import "errors"

var (
	// ErrLaunchNotConfigured is returned by Launch when no tracking-service
	// binary is configured.
	ErrLaunchNotConfigured = errors.New("mqttsource: launch not configured")

	// ErrStopped is returned when work is submitted after Run has exited.
	ErrStopped = errors.New("mqttsource: dispatcher stopped")

	// ErrSubscriberRequired is returned by New without a Subscriber.
	ErrSubscriberRequired = errors.New("mqttsource: subscriber is required")
)
