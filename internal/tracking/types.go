package tracking

// Vector3 is a three-axis reading (position in cm, accelerometer in g,
// gyroscope in rad/s, magnetometer normalised).
type Vector3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Quaternion is a rotation as reported by the tracking service.
type Quaternion struct {
	W float32 `json:"w"`
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// IdentityQuaternion is the "no rotation" orientation.
var IdentityQuaternion = Quaternion{W: 1}

// ControllerID identifies a controller in the device pool.
type ControllerID int

// HMDID identifies a head-mounted display in the device pool.
type HMDID int

// Snapshot is a read-only view of the current device readings.
//
// Getters for an unknown or disconnected device return zero values; they
// never fail.
type Snapshot interface {
	ControllerPosition(id ControllerID) Vector3
	ControllerOrientation(id ControllerID) Quaternion
	ControllerAccelerometer(id ControllerID) Vector3
	ControllerGyroscope(id ControllerID) Vector3
	ControllerMagnetometer(id ControllerID) Vector3
	ControllerButtons(id ControllerID) uint32
	ControllerTrigger(id ControllerID) float32

	HMDPosition(id HMDID) Vector3
	HMDOrientation(id HMDID) Quaternion
	HMDAccelerometer(id HMDID) Vector3
	HMDGyroscope(id HMDID) Vector3
}

// Pool is the live registry of tracked devices.
//
// Init and Cleanup bracket a connected session. The list refresh methods pull
// the latest device lists announced by the service into the pool.
type Pool interface {
	Snapshot

	Init()
	Cleanup()
	RefreshControllerList()
	RefreshHMDList()
}

// Service is a session with the tracking service.
type Service interface {
	// IsConnected reports whether the tracking service is reachable now.
	IsConnected() bool

	// Launch starts the tracking service process. A nil error means the
	// process was started (or is already running); the connected event
	// follows once the service is reachable.
	Launch() error

	// Subscribe registers handler for event and returns the function that
	// removes it.
	Subscribe(event Event, handler func()) Unsubscribe
}
