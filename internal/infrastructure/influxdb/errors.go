package influxdb

import "errors"

// Sentinel errors for the telemetry writer.
var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed wraps ping failures during Connect.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrUnhealthy is returned when the server answers a ping but reports
	// itself unhealthy.
	ErrUnhealthy = errors.New("influxdb: server not healthy")

	// ErrClosed is returned by HealthCheck after Close.
	ErrClosed = errors.New("influxdb: client closed")
)
