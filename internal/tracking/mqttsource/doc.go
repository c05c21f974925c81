// Package mqttsource feeds the bridge from a tracking service that publishes
// over MQTT.
//
// The service is expected to publish under a topic prefix (default "psmove"):
//
//	{prefix}/service/status          retained {"status":"online"|"offline"}
//	{prefix}/controllers/list        JSON array of controller ids
//	{prefix}/hmds/list               JSON array of HMD ids
//	{prefix}/controllers/{id}/state  controller frame
//	{prefix}/hmds/{id}/state         HMD frame
//	{prefix}/poll                    end of a poll cycle
//
// A controller frame looks like:
//
//	{
//	  "position":      {"x": 1.5, "y": 120.0, "z": -30.2},
//	  "orientation":   {"w": 1, "x": 0, "y": 0, "z": 0},
//	  "accelerometer": {"x": 0, "y": 1, "z": 0},
//	  "gyroscope":     {"x": 0, "y": 0, "z": 0},
//	  "magnetometer":  {"x": 0, "y": 0, "z": 1},
//	  "buttons": 5,
//	  "trigger": 0.75
//	}
//
// HMD frames carry position, orientation, accelerometer and gyroscope only.
//
// # Dispatching
//
// Source is the single serial context of the bridge. MQTT handlers decode on
// the client goroutine and queue a closure; Run executes closures one at a
// time, and every tracking event is raised from there. Hosts use Submit or
// Call to run their own work (connect, disconnect, status reads) on the same
// goroutine.
//
// Status changes and device lists always enter the queue. State frames and
// poll markers are dropped when the queue is full; the next poll supersedes
// them. Dropped returns the count.
//
// # Device tables
//
// Init builds the live tables from the last announced lists, Cleanup frees
// them, and the Refresh methods re-sync them after a list update. Frames for
// devices outside the live tables are ignored, so readings only appear for
// devices the service has announced.
package mqttsource
