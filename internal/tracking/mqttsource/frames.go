package mqttsource

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nerrad567/posebridge/internal/tracking"
)

// deviceFrame is one state message for a controller or HMD. HMD frames leave
// the controller-only fields out.
type deviceFrame struct {
	Position      tracking.Vector3    `json:"position"`
	Orientation   tracking.Quaternion `json:"orientation"`
	Accelerometer tracking.Vector3    `json:"accelerometer"`
	Gyroscope     tracking.Vector3    `json:"gyroscope"`
	Magnetometer  tracking.Vector3    `json:"magnetometer"`
	Buttons       uint32              `json:"buttons"`
	Trigger       float32             `json:"trigger"`
}

// decodeFrame parses a state payload. A frame without an orientation reads
// as the identity rotation.
func decodeFrame(payload []byte) (deviceFrame, error) {
	frame := deviceFrame{Orientation: tracking.IdentityQuaternion}
	if err := json.Unmarshal(payload, &frame); err != nil {
		return deviceFrame{}, fmt.Errorf("decoding device frame: %w", err)
	}
	return frame, nil
}

// decodeList parses a device list payload: a JSON array of ids.
func decodeList(payload []byte) ([]int, error) {
	var ids []int
	if err := json.Unmarshal(payload, &ids); err != nil {
		return nil, fmt.Errorf("decoding device list: %w", err)
	}
	out := ids[:0]
	for _, id := range ids {
		if id >= 0 {
			out = append(out, id)
		}
	}
	return out, nil
}

// decodeStatus reports whether a service status payload says online. Both
// {"status":"online"} and a bare "online" are accepted.
func decodeStatus(payload []byte) (online bool, err error) {
	var msg struct {
		Status string `json:"status"`
	}
	status := strings.TrimSpace(string(payload))
	if strings.HasPrefix(status, "{") {
		if err := json.Unmarshal(payload, &msg); err != nil {
			return false, fmt.Errorf("decoding service status: %w", err)
		}
		status = msg.Status
	}

	switch strings.ToLower(strings.Trim(status, `"`)) {
	case "online":
		return true, nil
	case "offline", "":
		return false, nil
	default:
		return false, fmt.Errorf("unknown service status %q", status)
	}
}
