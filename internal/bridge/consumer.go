package bridge

import (
	"github.com/nerrad567/posebridge/internal/slot"
)

// ResultCode is the outcome reported by a Consumer write.
type ResultCode int

const (
	ResultSuccess ResultCode = iota
	ResultOutOfBounds
	ResultSharedData
)

// String returns the result name used in logs and telemetry.
func (r ResultCode) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultOutOfBounds:
		return "out_of_bounds"
	case ResultSharedData:
		return "shared_data"
	default:
		return "unknown"
	}
}

// Consumer is the bounded output buffer the bridge publishes into.
type Consumer interface {
	// MaxSlotCount returns the number of slots the consumer can hold.
	// It is queried once by Init and treated as fixed for the session.
	MaxSlotCount() (int, error)

	// Write stores count records starting at slot offset. It must not block.
	// A non-nil error means the consumer could not be reached at all.
	Write(offset, count int, records []slot.Record) (ResultCode, error)
}

// RecordSource supplies the records to publish, in slot order.
// *slot.Registry satisfies this interface.
type RecordSource interface {
	Records(dst []slot.Record) []slot.Record
}
