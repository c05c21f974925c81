// Package slot maps tracked device signals onto fixed six-channel output
// records.
//
// A slot is one virtual output of the bridge. Its Definition binds each of the
// six channels (x, y, z, pitch, roll, yaw) to one property of one device, and
// every binding in a slot reads from the same device kind: controller or HMD.
// The Kind is the discriminant of the definition and is resolved once per
// refresh.
//
// # Mapping
//
// Fetch is the single mapping function. It never fails: a property that is
// unset, unknown, or not available on the kind (magnetometer, buttons, and
// trigger are controller only) reads as 0. One bad binding therefore never
// affects its sibling channels or other slots. Definition.Unmapped lists such
// bindings so callers can warn about them.
//
// # Capacity
//
// Registry enforces 0 <= Len() <= MaxSlots(). The capacity is fixed when the
// registry is created. Requests above capacity are truncated to the first
// MaxSlots definitions by default; OverflowReject turns this into an error.
//
// # Thread Safety
//
// Nothing in this package locks. A Registry and its States must be used from a
// single goroutine, which in the bridge is the event dispatcher.
package slot
