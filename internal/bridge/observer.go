package bridge

import (
	"time"

	"github.com/nerrad567/posebridge/internal/slot"
)

// Transition describes one change of ConnectionState.
type Transition struct {
	SessionID string
	From      ConnectionState
	To        ConnectionState
	Reason    string
	SlotCount int
	At        time.Time
}

// Journal receives every state transition. Implementations must return
// without blocking; the controller runs on the event dispatcher.
type Journal interface {
	RecordTransition(t Transition)
}

// Telemetry mirrors bridge activity to a metrics store. Implementations must
// not block.
type Telemetry interface {
	// RecordPublish is called after every publish with its outcome.
	RecordPublish(result ResultCode, slots int)

	// RecordSlot is called with sampled slot values.
	RecordSlot(index int, record slot.Record)

	// RecordConnection is called on every state transition.
	RecordConnection(state ConnectionState)
}
