// Package bridge connects the tracking service to the slot consumer.
//
// A Controller owns the connection state machine, the slot Registry, and a
// Publisher. It is constructed once by the host with its collaborators
// injected through Options; there is no package-level instance.
//
// # Lifecycle
//
// Init queries the consumer capacity and subscribes to the five tracking
// service events. Each subscription returns an unsubscribe handle, and
// Cleanup releases them in reverse order so no callback outlives the
// controller.
//
// # State Machine
//
//	Disconnected/Failed --Connect--> Connected          (service reachable)
//	Disconnected/Failed --Connect--> WaitingForService  (service launched)
//	Disconnected/Failed --Connect--> Failed             (launch failed)
//	WaitingForService --service connected--> Connected
//	Connected --service disconnected / Disconnect--> Disconnected
//
// Events that do not match the current state are ignored. Entering Connected
// initialises the device pool exactly once; leaving it cleans the pool up
// exactly once. While Connected, the controller-list, hmd-list and
// messages-polled events each refresh every slot and publish.
//
// # Publishing
//
// Publisher writes all active records at offset 0 on every tick. Failures
// (out of bounds, shared data) are logged and counted, never retried and
// never fatal.
//
// # Thread Safety
//
// Controller and Publisher.Publish are not safe for concurrent use. The host
// delivers service events and calls Controller methods from one dispatcher
// goroutine. Publisher.Stats may be called from anywhere.
package bridge
