package bridge

import "github.com/nerrad567/posebridge/internal/tracking"

type listener[F any] struct {
	id int
	fn F
}

// listeners is an ordered set of callbacks. It does not lock: like the rest
// of the controller it is only touched from the event dispatcher.
type listeners[F any] struct {
	nextID  int
	entries []listener[F]
}

func (l *listeners[F]) add(fn F) tracking.Unsubscribe {
	id := l.nextID
	l.nextID++
	l.entries = append(l.entries, listener[F]{id: id, fn: fn})

	return func() {
		for i, e := range l.entries {
			if e.id == id {
				l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
				return
			}
		}
	}
}

// each calls visit for every callback registered when each was entered.
func (l *listeners[F]) each(visit func(F)) {
	if len(l.entries) == 0 {
		return
	}
	snapshot := make([]listener[F], len(l.entries))
	copy(snapshot, l.entries)
	for _, e := range snapshot {
		visit(e.fn)
	}
}

func (l *listeners[F]) count() int {
	return len(l.entries)
}
