package bridge

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/posebridge/internal/slot"
	"github.com/nerrad567/posebridge/internal/tracking"
)

// fakeService is a tracking.Service backed by a real event hub.
type fakeService struct {
	*tracking.Hub
	connected bool
	launchErr error
	launches  int
}

func newFakeService() *fakeService {
	return &fakeService{Hub: tracking.NewHub()}
}

func (s *fakeService) IsConnected() bool { return s.connected }

func (s *fakeService) Launch() error {
	s.launches++
	return s.launchErr
}

// fakePool counts lifecycle calls and serves one controller and one HMD.
type fakePool struct {
	inits, cleanups           int
	controllerLists, hmdLists int
	controllerPos, hmdPos     tracking.Vector3
}

func (p *fakePool) Init()                  { p.inits++ }
func (p *fakePool) Cleanup()               { p.cleanups++ }
func (p *fakePool) RefreshControllerList() { p.controllerLists++ }
func (p *fakePool) RefreshHMDList()        { p.hmdLists++ }

func (p *fakePool) ControllerPosition(id tracking.ControllerID) tracking.Vector3 {
	if id != 0 {
		return tracking.Vector3{}
	}
	return p.controllerPos
}
func (p *fakePool) ControllerOrientation(tracking.ControllerID) tracking.Quaternion {
	return tracking.IdentityQuaternion
}
func (p *fakePool) ControllerAccelerometer(tracking.ControllerID) tracking.Vector3 {
	return tracking.Vector3{}
}
func (p *fakePool) ControllerGyroscope(tracking.ControllerID) tracking.Vector3 {
	return tracking.Vector3{}
}
func (p *fakePool) ControllerMagnetometer(tracking.ControllerID) tracking.Vector3 {
	return tracking.Vector3{}
}
func (p *fakePool) ControllerButtons(tracking.ControllerID) uint32  { return 0 }
func (p *fakePool) ControllerTrigger(tracking.ControllerID) float32 { return 0 }
func (p *fakePool) HMDPosition(id tracking.HMDID) tracking.Vector3 {
	if id != 0 {
		return tracking.Vector3{}
	}
	return p.hmdPos
}
func (p *fakePool) HMDOrientation(tracking.HMDID) tracking.Quaternion {
	return tracking.IdentityQuaternion
}
func (p *fakePool) HMDAccelerometer(tracking.HMDID) tracking.Vector3 { return tracking.Vector3{} }
func (p *fakePool) HMDGyroscope(tracking.HMDID) tracking.Vector3     { return tracking.Vector3{} }

// fakeConsumer records every write.
type fakeConsumer struct {
	maxSlots int
	maxErr   error
	result   ResultCode
	writeErr error
	writes   [][]slot.Record
	offsets  []int
}

func (c *fakeConsumer) MaxSlotCount() (int, error) { return c.maxSlots, c.maxErr }

func (c *fakeConsumer) Write(offset, count int, records []slot.Record) (ResultCode, error) {
	c.offsets = append(c.offsets, offset)
	c.writes = append(c.writes, append([]slot.Record(nil), records[:count]...))
	return c.result, c.writeErr
}

// logEntry is one captured log call.
type logEntry struct {
	level string
	msg   string
	args  []any
}

// captureLogger records log calls.
type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *captureLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *captureLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level {
			n++
		}
	}
	return n
}

func (l *captureLogger) messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.entries {
		if e.level == level {
			out = append(out, e.msg)
		}
	}
	return out
}

// fakeJournal collects transitions.
type fakeJournal struct {
	transitions []Transition
}

func (j *fakeJournal) RecordTransition(t Transition) {
	j.transitions = append(j.transitions, t)
}

// fakeTelemetry collects telemetry calls.
type fakeTelemetry struct {
	publishes   []ResultCode
	slotSamples []int
	states      []ConnectionState
}

func (f *fakeTelemetry) RecordPublish(result ResultCode, _ int) {
	f.publishes = append(f.publishes, result)
}
func (f *fakeTelemetry) RecordSlot(index int, _ slot.Record) {
	f.slotSamples = append(f.slotSamples, index)
}
func (f *fakeTelemetry) RecordConnection(state ConnectionState) {
	f.states = append(f.states, state)
}

// staticSource serves fixed records.
type staticSource []slot.Record

func (s staticSource) Records(dst []slot.Record) []slot.Record {
	return append(dst[:0], s...)
}

var errLaunch = errors.New("exec: psmoveservice: not found")

func controllerDefs(n int) []slot.Definition {
	defs := make([]slot.Definition, n)
	for i := range defs {
		defs[i] = slot.PoseDefinition(slot.KindController, i)
	}
	return defs
}

func sessionCounter() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("session-%d", n)
	}
}
