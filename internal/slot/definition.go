package slot

import (
	"encoding/json"
	"fmt"
)

// Channel indexes the six output channels of a slot.
type Channel int

const (
	ChannelX Channel = iota
	ChannelY
	ChannelZ
	ChannelPitch
	ChannelRoll
	ChannelYaw

	// ChannelCount is the number of channels in a Record.
	ChannelCount = 6
)

var channelNames = [ChannelCount]string{"x", "y", "z", "pitch", "roll", "yaw"}

// String returns the config name of the channel.
func (c Channel) String() string {
	if c < 0 || int(c) >= ChannelCount {
		return fmt.Sprintf("channel(%d)", int(c))
	}
	return channelNames[c]
}

// Binding selects one property of one device.
type Binding struct {
	Device   int      `json:"device" yaml:"device"`
	Property Property `json:"property" yaml:"property"`
}

// Definition describes one output slot. Kind is the discriminant: every
// binding is read from a device of that kind. Definitions are values and are
// replaced wholesale on reconfiguration.
type Definition struct {
	Kind     Kind
	Bindings [ChannelCount]Binding
}

// NewControllerDefinition returns a controller slot with the given bindings in
// channel order x, y, z, pitch, roll, yaw.
func NewControllerDefinition(bindings [ChannelCount]Binding) Definition {
	return Definition{Kind: KindController, Bindings: bindings}
}

// NewHMDDefinition returns an HMD slot with the given bindings in channel
// order x, y, z, pitch, roll, yaw.
func NewHMDDefinition(bindings [ChannelCount]Binding) Definition {
	return Definition{Kind: KindHMD, Bindings: bindings}
}

// PoseDefinition returns the common slot layout for a single device: position
// on x/y/z and orientation on pitch/roll/yaw.
func PoseDefinition(kind Kind, device int) Definition {
	return Definition{
		Kind: kind,
		Bindings: [ChannelCount]Binding{
			{Device: device, Property: PositionX},
			{Device: device, Property: PositionY},
			{Device: device, Property: PositionZ},
			{Device: device, Property: OrientationPitch},
			{Device: device, Property: OrientationRoll},
			{Device: device, Property: OrientationYaw},
		},
	}
}

// Binding returns the binding for channel c.
func (d Definition) Binding(c Channel) Binding {
	return d.Bindings[c]
}

// Validate checks the discriminant. Bindings are not checked: an unusable
// binding reads as 0 and is reported by Unmapped.
func (d Definition) Validate() error {
	if d.Kind != KindController && d.Kind != KindHMD {
		return fmt.Errorf("%w: %d", ErrUnknownKind, d.Kind)
	}
	return nil
}

// Unmapped returns the channels whose binding will always read 0 because the
// property is unset or not available on the definition's kind.
func (d Definition) Unmapped() []Channel {
	var out []Channel
	for i, b := range d.Bindings {
		if !b.Property.ValidFor(d.Kind) {
			out = append(out, Channel(i))
		}
	}
	return out
}

// definitionDoc is the on-disk shape of a Definition.
type definitionDoc struct {
	Kind  Kind    `json:"kind" yaml:"kind"`
	X     Binding `json:"x" yaml:"x"`
	Y     Binding `json:"y" yaml:"y"`
	Z     Binding `json:"z" yaml:"z"`
	Pitch Binding `json:"pitch" yaml:"pitch"`
	Roll  Binding `json:"roll" yaml:"roll"`
	Yaw   Binding `json:"yaw" yaml:"yaw"`
}

func (d Definition) doc() definitionDoc {
	return definitionDoc{
		Kind:  d.Kind,
		X:     d.Bindings[ChannelX],
		Y:     d.Bindings[ChannelY],
		Z:     d.Bindings[ChannelZ],
		Pitch: d.Bindings[ChannelPitch],
		Roll:  d.Bindings[ChannelRoll],
		Yaw:   d.Bindings[ChannelYaw],
	}
}

func (doc definitionDoc) definition() Definition {
	return Definition{
		Kind: doc.Kind,
		Bindings: [ChannelCount]Binding{
			ChannelX:     doc.X,
			ChannelY:     doc.Y,
			ChannelZ:     doc.Z,
			ChannelPitch: doc.Pitch,
			ChannelRoll:  doc.Roll,
			ChannelYaw:   doc.Yaw,
		},
	}
}

// MarshalJSON implements json.Marshaler.
func (d Definition) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.doc())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Definition) UnmarshalJSON(data []byte) error {
	var doc definitionDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("slot definition: %w", err)
	}
	*d = doc.definition()
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Definition) MarshalYAML() (any, error) {
	return d.doc(), nil
}

// UnmarshalYAML implements the yaml.v3 obsolete-style unmarshaler so the
// package does not import yaml directly.
func (d *Definition) UnmarshalYAML(unmarshal func(any) error) error {
	var doc definitionDoc
	if err := unmarshal(&doc); err != nil {
		return fmt.Errorf("slot definition: %w", err)
	}
	*d = doc.definition()
	return nil
}
