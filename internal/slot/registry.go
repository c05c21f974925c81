package slot

import (
	"fmt"

	"github.com/nerrad567/posebridge/internal/tracking"
)

// OverflowPolicy decides what Reconfigure does with more definitions than
// the registry can hold.
type OverflowPolicy uint8

const (
	// OverflowTruncate keeps the first MaxSlots definitions and drops the rest.
	OverflowTruncate OverflowPolicy = iota

	// OverflowReject refuses the whole request and leaves the registry as it was.
	OverflowReject
)

// String returns the config name of the policy.
func (p OverflowPolicy) String() string {
	switch p {
	case OverflowTruncate:
		return "truncate"
	case OverflowReject:
		return "reject"
	default:
		return fmt.Sprintf("overflow(%d)", uint8(p))
	}
}

// ParseOverflowPolicy converts a config name into an OverflowPolicy. An empty
// string selects OverflowTruncate.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch s {
	case "", "truncate":
		return OverflowTruncate, nil
	case "reject":
		return OverflowReject, nil
	default:
		return OverflowTruncate, fmt.Errorf("%w: %q", ErrUnknownOverflowPolicy, s)
	}
}

// Registry holds the active slot definitions and their states.
//
// The capacity is fixed at construction and never changes for the session.
// Registry is not safe for concurrent use.
type Registry struct {
	maxSlots int
	policy   OverflowPolicy
	defs     []Definition
	states   []State
}

// NewRegistry creates an empty registry holding at most maxSlots slots.
// A negative capacity is treated as zero.
func NewRegistry(maxSlots int) *Registry {
	if maxSlots < 0 {
		maxSlots = 0
	}
	return &Registry{maxSlots: maxSlots}
}

// SetOverflowPolicy sets how Reconfigure treats requests above capacity.
func (r *Registry) SetOverflowPolicy(p OverflowPolicy) {
	r.policy = p
}

// OverflowPolicy returns the active overflow policy.
func (r *Registry) OverflowPolicy() OverflowPolicy {
	return r.policy
}

// Reconfigure replaces the active definitions with defs.
//
// Under OverflowTruncate, a request longer than MaxSlots keeps its first
// MaxSlots entries in order and the number dropped is returned. Under
// OverflowReject the registry is left unchanged and ErrCapacityExceeded is
// returned.
//
// State storage is reallocated only when the slot count changes. Records are
// not refreshed here; callers refresh before reading.
func (r *Registry) Reconfigure(defs []Definition) (dropped int, err error) {
	n := len(defs)
	if n > r.maxSlots {
		if r.policy == OverflowReject {
			return 0, fmt.Errorf("%w: requested %d, capacity %d", ErrCapacityExceeded, n, r.maxSlots)
		}
		dropped = n - r.maxSlots
		n = r.maxSlots
	}

	if n != len(r.states) {
		r.defs = make([]Definition, n)
		r.states = make([]State, n)
	} else {
		for i := range r.states {
			r.states[i].reset()
		}
	}
	copy(r.defs, defs[:n])

	return dropped, nil
}

// RefreshAll refreshes every slot in index order.
func (r *Registry) RefreshAll(snap tracking.Snapshot) {
	for i := range r.states {
		r.states[i].Refresh(r.defs[i], snap)
	}
}

// Records appends the current record of every slot, in index order, to
// dst[:0] and returns the result. Passing the previous result back in avoids
// allocation once the slot count is stable.
func (r *Registry) Records(dst []Record) []Record {
	dst = dst[:0]
	for i := range r.states {
		dst = append(dst, r.states[i].record)
	}
	return dst
}

// Clear drops all slots.
func (r *Registry) Clear() {
	r.defs = nil
	r.states = nil
}

// Len returns the number of active slots.
func (r *Registry) Len() int {
	return len(r.states)
}

// MaxSlots returns the fixed capacity.
func (r *Registry) MaxSlots() int {
	return r.maxSlots
}

// Definitions returns a copy of the active definitions.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}
