package mqttsource

import "github.com/nerrad567/posebridge/internal/tracking"

// Pool methods run on the dispatcher goroutine.

// Init allocates the live device tables from the most recent device lists.
func (s *Source) Init() {
	s.controllers = make(map[tracking.ControllerID]deviceFrame, len(s.stagedControllers))
	s.hmds = make(map[tracking.HMDID]deviceFrame, len(s.stagedHMDs))
	s.RefreshControllerList()
	s.RefreshHMDList()
}

// Cleanup frees the live device tables. Frames are ignored until Init.
func (s *Source) Cleanup() {
	s.controllers = nil
	s.hmds = nil
}

// RefreshControllerList makes the live controller table match the latest
// announced list. Readings of controllers still present are kept.
func (s *Source) RefreshControllerList() {
	if s.controllers == nil {
		return
	}
	s.controllers = promote(s.controllers, s.stagedControllers, func(id int) tracking.ControllerID {
		return tracking.ControllerID(id)
	})
}

// RefreshHMDList makes the live HMD table match the latest announced list.
func (s *Source) RefreshHMDList() {
	if s.hmds == nil {
		return
	}
	s.hmds = promote(s.hmds, s.stagedHMDs, func(id int) tracking.HMDID {
		return tracking.HMDID(id)
	})
}

func promote[K comparable](live map[K]deviceFrame, ids []int, key func(int) K) map[K]deviceFrame {
	next := make(map[K]deviceFrame, len(ids))
	for _, id := range ids {
		k := key(id)
		if frame, ok := live[k]; ok {
			next[k] = frame
			continue
		}
		next[k] = deviceFrame{Orientation: tracking.IdentityQuaternion}
	}
	return next
}

// ControllerCount returns the number of controllers in the live table.
func (s *Source) ControllerCount() int { return len(s.controllers) }

// HMDCount returns the number of HMDs in the live table.
func (s *Source) HMDCount() int { return len(s.hmds) }

// =============================================================================
// tracking.Snapshot
// =============================================================================

func (s *Source) ControllerPosition(id tracking.ControllerID) tracking.Vector3 {
	return s.controllers[id].Position
}

func (s *Source) ControllerOrientation(id tracking.ControllerID) tracking.Quaternion {
	return s.controllers[id].Orientation
}

func (s *Source) ControllerAccelerometer(id tracking.ControllerID) tracking.Vector3 {
	return s.controllers[id].Accelerometer
}

func (s *Source) ControllerGyroscope(id tracking.ControllerID) tracking.Vector3 {
	return s.controllers[id].Gyroscope
}

func (s *Source) ControllerMagnetometer(id tracking.ControllerID) tracking.Vector3 {
	return s.controllers[id].Magnetometer
}

func (s *Source) ControllerButtons(id tracking.ControllerID) uint32 {
	return s.controllers[id].Buttons
}

func (s *Source) ControllerTrigger(id tracking.ControllerID) float32 {
	return s.controllers[id].Trigger
}

func (s *Source) HMDPosition(id tracking.HMDID) tracking.Vector3 {
	return s.hmds[id].Position
}

func (s *Source) HMDOrientation(id tracking.HMDID) tracking.Quaternion {
	return s.hmds[id].Orientation
}

func (s *Source) HMDAccelerometer(id tracking.HMDID) tracking.Vector3 {
	return s.hmds[id].Accelerometer
}

func (s *Source) HMDGyroscope(id tracking.HMDID) tracking.Vector3 {
	return s.hmds[id].Gyroscope
}
