package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// Topic roots.
const (
	// DefaultTrackingPrefix is the root of the tracking-service topics.
	DefaultTrackingPrefix = "psmove"

	// TopicPrefixBridge is the root of the topics this bridge publishes.
	TopicPrefixBridge = "posebridge"
)

// Device kinds as they appear in state topics.
const (
	DeviceKindController = "controllers"
	DeviceKindHMD        = "hmds"
)

// Topics builds MQTT topics for one tracking service and one bridge instance.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.NewTopics("psmove", "rig-a")
//	topics.ControllerState(0) // "psmove/controllers/0/state"
//	topics.BridgeStatus()     // "posebridge/rig-a/status"
type Topics struct {
	prefix string
	site   string
}

// NewTopics returns topic builders for the tracking service under prefix and
// the bridge instance site. An empty prefix selects DefaultTrackingPrefix.
func NewTopics(prefix, site string) Topics {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = DefaultTrackingPrefix
	}
	return Topics{prefix: prefix, site: site}
}

// Prefix returns the tracking-service topic root.
func (t Topics) Prefix() string {
	return t.prefix
}

// =============================================================================
// Tracking Service Topics
// =============================================================================

// ServiceStatus returns the retained online/offline topic of the service.
//
// Example: psmove/service/status
func (t Topics) ServiceStatus() string {
	return t.prefix + "/service/status"
}

// ControllerList returns the topic carrying the connected controller ids.
//
// Example: psmove/controllers/list
func (t Topics) ControllerList() string {
	return t.prefix + "/" + DeviceKindController + "/list"
}

// HMDList returns the topic carrying the connected HMD ids.
//
// Example: psmove/hmds/list
func (t Topics) HMDList() string {
	return t.prefix + "/" + DeviceKindHMD + "/list"
}

// ControllerState returns the state frame topic of one controller.
//
// Example: psmove/controllers/0/state
func (t Topics) ControllerState(id int) string {
	return fmt.Sprintf("%s/%s/%d/state", t.prefix, DeviceKindController, id)
}

// HMDState returns the state frame topic of one HMD.
//
// Example: psmove/hmds/0/state
func (t Topics) HMDState(id int) string {
	return fmt.Sprintf("%s/%s/%d/state", t.prefix, DeviceKindHMD, id)
}

// AllControllerStates returns a wildcard for every controller state frame.
//
// Example: psmove/controllers/+/state
func (t Topics) AllControllerStates() string {
	return t.prefix + "/" + DeviceKindController + "/+/state"
}

// AllHMDStates returns a wildcard for every HMD state frame.
//
// Example: psmove/hmds/+/state
func (t Topics) AllHMDStates() string {
	return t.prefix + "/" + DeviceKindHMD + "/+/state"
}

// Poll returns the topic the service publishes after each poll cycle.
//
// Example: psmove/poll
func (t Topics) Poll() string {
	return t.prefix + "/poll"
}

// ParseDeviceState extracts the device kind and id from a state topic.
// It returns ok=false for any topic not of the form {prefix}/{kind}/{id}/state.
func (t Topics) ParseDeviceState(topic string) (kind string, id int, ok bool) {
	rest, found := strings.CutPrefix(topic, t.prefix+"/")
	if !found {
		return "", 0, false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[2] != "state" {
		return "", 0, false
	}
	if parts[0] != DeviceKindController && parts[0] != DeviceKindHMD {
		return "", 0, false
	}
	id, err := strconv.Atoi(parts[1])
	if err != nil || id < 0 {
		return "", 0, false
	}
	return parts[0], id, true
}

// =============================================================================
// Bridge Topics
// =============================================================================

// BridgeStatus returns the retained online/offline topic of this bridge.
// It doubles as the Last Will topic.
//
// Example: posebridge/rig-a/status
func (t Topics) BridgeStatus() string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixBridge, t.site)
}

// BridgeConnection returns the retained topic carrying connection state changes.
//
// Example: posebridge/rig-a/connection
func (t Topics) BridgeConnection() string {
	return fmt.Sprintf("%s/%s/connection", TopicPrefixBridge, t.site)
}
