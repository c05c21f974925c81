// Package tracking describes the tracking service that posebridge reads from.
//
// It defines the read-only device view (Snapshot), the device pool lifecycle
// (Pool), the service session with its change notifications (Service), and the
// orientation extraction helpers used to turn a rotation into single angles.
//
// # Orientation Convention
//
// Roll, Pitch and Yaw decompose a unit quaternion using a right-handed, Y-up
// frame with intrinsic Y-X-Z order:
//
//   - Yaw:   rotation about +Y, range (-π, π]
//   - Pitch: rotation about +X, range [-π/2, π/2]
//   - Roll:  rotation about +Z, range (-π, π]
//
// All angles are radians. Each function is stateless, so values are never
// unwrapped across calls. Near ±90° pitch the pitch term is clamped before
// asin and the remaining atan2 terms degrade to 0 rather than NaN.
//
// # Thread Safety
//
// Hub is safe for concurrent use. Snapshot and Pool implementations are
// expected to be called from the single event-delivery goroutine.
package tracking
