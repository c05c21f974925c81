package slot

import "github.com/nerrad567/posebridge/internal/tracking"

// Fetch reads the value bound by b from a device of the given kind.
//
// Fetch is total: a property that is unset, unknown, or not available on the
// kind returns 0. It has no side effects and never allocates.
func Fetch(kind Kind, b Binding, s tracking.Snapshot) float32 {
	switch kind {
	case KindController:
		return fetchController(tracking.ControllerID(b.Device), b.Property, s)
	case KindHMD:
		return fetchHMD(tracking.HMDID(b.Device), b.Property, s)
	default:
		return 0
	}
}

func fetchController(id tracking.ControllerID, p Property, s tracking.Snapshot) float32 {
	switch p {
	case PositionX:
		return s.ControllerPosition(id).X
	case PositionY:
		return s.ControllerPosition(id).Y
	case PositionZ:
		return s.ControllerPosition(id).Z
	case OrientationRoll:
		return tracking.Roll(s.ControllerOrientation(id))
	case OrientationPitch:
		return tracking.Pitch(s.ControllerOrientation(id))
	case OrientationYaw:
		return tracking.Yaw(s.ControllerOrientation(id))
	case AccelerometerX:
		return s.ControllerAccelerometer(id).X
	case AccelerometerY:
		return s.ControllerAccelerometer(id).Y
	case AccelerometerZ:
		return s.ControllerAccelerometer(id).Z
	case GyroscopeX:
		return s.ControllerGyroscope(id).X
	case GyroscopeY:
		return s.ControllerGyroscope(id).Y
	case GyroscopeZ:
		return s.ControllerGyroscope(id).Z
	case MagnetometerX:
		return s.ControllerMagnetometer(id).X
	case MagnetometerY:
		return s.ControllerMagnetometer(id).Y
	case MagnetometerZ:
		return s.ControllerMagnetometer(id).Z
	case Buttons:
		return float32(s.ControllerButtons(id))
	case Trigger:
		return s.ControllerTrigger(id)
	default:
		return 0
	}
}

func fetchHMD(id tracking.HMDID, p Property, s tracking.Snapshot) float32 {
	switch p {
	case PositionX:
		return s.HMDPosition(id).X
	case PositionY:
		return s.HMDPosition(id).Y
	case PositionZ:
		return s.HMDPosition(id).Z
	case OrientationRoll:
		return tracking.Roll(s.HMDOrientation(id))
	case OrientationPitch:
		return tracking.Pitch(s.HMDOrientation(id))
	case OrientationYaw:
		return tracking.Yaw(s.HMDOrientation(id))
	case AccelerometerX:
		return s.HMDAccelerometer(id).X
	case AccelerometerY:
		return s.HMDAccelerometer(id).Y
	case AccelerometerZ:
		return s.HMDAccelerometer(id).Z
	case GyroscopeX:
		return s.HMDGyroscope(id).X
	case GyroscopeY:
		return s.HMDGyroscope(id).Y
	case GyroscopeZ:
		return s.HMDGyroscope(id).Z
	default:
		return 0
	}
}
