package bridge

// ConnectionState is the lifecycle state of the bridge.
type ConnectionState string

const (
	// Disconnected is the initial state. No slots are active.
	Disconnected ConnectionState = "disconnected"

	// WaitingForService means the tracking service was launched and the
	// bridge is waiting for its connected event. There is no deadline.
	WaitingForService ConnectionState = "waiting_for_service"

	// Connected means the device pool is live and every poll is published.
	Connected ConnectionState = "connected"

	// Failed means the last connect attempt could not reach the service.
	// Connect may be called again from here.
	Failed ConnectionState = "failed"
)

// String returns the state name.
func (s ConnectionState) String() string {
	return string(s)
}

// acceptsConnect reports whether Connect acts from this state.
func (s ConnectionState) acceptsConnect() bool {
	return s == Disconnected || s == Failed
}
