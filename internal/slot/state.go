package slot

import "github.com/nerrad567/posebridge/internal/tracking"

// Record is the six-float unit written per slot.
type Record struct {
	X     float32 `json:"x"`
	Y     float32 `json:"y"`
	Z     float32 `json:"z"`
	Pitch float32 `json:"pitch"`
	Roll  float32 `json:"roll"`
	Yaw   float32 `json:"yaw"`
}

// Array returns the record in channel order.
func (r Record) Array() [ChannelCount]float32 {
	return [ChannelCount]float32{r.X, r.Y, r.Z, r.Pitch, r.Roll, r.Yaw}
}

// State owns the output record of one slot.
type State struct {
	record Record
}

// Record returns the last refreshed values.
func (s *State) Record() Record {
	return s.record
}

// Refresh recomputes all six channels from def and snap. The device kind is
// resolved once; every channel is written, so no value from a previous refresh
// survives. A definition of unknown kind zeroes the record.
func (s *State) Refresh(def Definition, snap tracking.Snapshot) {
	var fetch func(Binding, tracking.Snapshot) float32
	switch def.Kind {
	case KindController:
		fetch = controllerChannel
	case KindHMD:
		fetch = hmdChannel
	default:
		s.reset()
		return
	}

	b := &def.Bindings
	s.record = Record{
		X:     fetch(b[ChannelX], snap),
		Y:     fetch(b[ChannelY], snap),
		Z:     fetch(b[ChannelZ], snap),
		Pitch: fetch(b[ChannelPitch], snap),
		Roll:  fetch(b[ChannelRoll], snap),
		Yaw:   fetch(b[ChannelYaw], snap),
	}
}

func controllerChannel(b Binding, snap tracking.Snapshot) float32 {
	return fetchController(tracking.ControllerID(b.Device), b.Property, snap)
}

func hmdChannel(b Binding, snap tracking.Snapshot) float32 {
	return fetchHMD(tracking.HMDID(b.Device), b.Property, snap)
}

func (s *State) reset() {
	s.record = Record{}
}
