package bridge

import "errors"

var (
	// ErrServiceRequired is returned by New when no tracking service is set.
	ErrServiceRequired = errors.New("bridge: tracking service is required")

	// ErrPoolRequired is returned by New when no device pool is set.
	ErrPoolRequired = errors.New("bridge: device pool is required")

	// ErrConsumerRequired is returned by New when no consumer is set.
	ErrConsumerRequired = errors.New("bridge: consumer is required")
)
