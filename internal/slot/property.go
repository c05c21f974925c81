package slot

import (
	"fmt"
	"strings"
)

// Kind is the device variant a slot reads from.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindController
	KindHMD
)

var kindNames = map[Kind]string{
	KindController: "controller",
	KindHMD:        "hmd",
}

// String returns the config name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind converts a config name into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "controller":
		return KindController, nil
	case "hmd":
		return KindHMD, nil
	default:
		return KindUnknown, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Property is a readable device signal.
type Property uint8

const (
	PropertyNone Property = iota

	PositionX
	PositionY
	PositionZ

	OrientationRoll
	OrientationPitch
	OrientationYaw

	AccelerometerX
	AccelerometerY
	AccelerometerZ

	GyroscopeX
	GyroscopeY
	GyroscopeZ

	// Controller only.
	MagnetometerX
	MagnetometerY
	MagnetometerZ
	Buttons
	Trigger
)

var propertyNames = map[Property]string{
	PositionX:        "position_x",
	PositionY:        "position_y",
	PositionZ:        "position_z",
	OrientationRoll:  "orientation_roll",
	OrientationPitch: "orientation_pitch",
	OrientationYaw:   "orientation_yaw",
	AccelerometerX:   "accelerometer_x",
	AccelerometerY:   "accelerometer_y",
	AccelerometerZ:   "accelerometer_z",
	GyroscopeX:       "gyroscope_x",
	GyroscopeY:       "gyroscope_y",
	GyroscopeZ:       "gyroscope_z",
	MagnetometerX:    "magnetometer_x",
	MagnetometerY:    "magnetometer_y",
	MagnetometerZ:    "magnetometer_z",
	Buttons:          "buttons",
	Trigger:          "trigger",
}

var propertiesByName = func() map[string]Property {
	m := make(map[string]Property, len(propertyNames))
	for p, name := range propertyNames {
		m[name] = p
	}
	return m
}()

// String returns the config name of the property, or "none".
func (p Property) String() string {
	if name, ok := propertyNames[p]; ok {
		return name
	}
	return "none"
}

// ParseProperty converts a config name into a Property. Unknown names return
// PropertyNone and false.
func ParseProperty(s string) (Property, bool) {
	p, ok := propertiesByName[strings.ToLower(strings.TrimSpace(s))]
	return p, ok
}

// ValidFor reports whether the property can be read from a device of kind.
func (p Property) ValidFor(kind Kind) bool {
	switch kind {
	case KindController:
		return p >= PositionX && p <= Trigger
	case KindHMD:
		return p >= PositionX && p <= GyroscopeZ
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Property) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unrecognised names decode
// to PropertyNone rather than failing, so the channel reads as 0.
func (p *Property) UnmarshalText(text []byte) error {
	parsed, _ := ParseProperty(string(text))
	*p = parsed
	return nil
}
