package slot

import "errors"

var (
	// ErrUnknownKind is returned when a slot definition names no known device kind.
	ErrUnknownKind = errors.New("slot: unknown device kind")

	// ErrCapacityExceeded is returned by Reconfigure under OverflowReject when
	// more definitions are requested than the consumer has slots.
	ErrCapacityExceeded = errors.New("slot: requested slots exceed capacity")

	// ErrUnknownOverflowPolicy is returned by ParseOverflowPolicy for names
	// other than "truncate" and "reject".
	ErrUnknownOverflowPolicy = errors.New("slot: unknown overflow policy")
)
