package bridge

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/posebridge/internal/slot"
	"github.com/nerrad567/posebridge/internal/tracking"
)

// launchFailedReason is the connection-failed reason when the tracking
// service could not be started.
const launchFailedReason = "can't launch tracking service"

// Options holds the collaborators of a Controller.
type Options struct {
	// Service is the tracking-service session. Required.
	Service tracking.Service

	// Pool is the device pool read on every refresh. Required.
	Pool tracking.Pool

	// Consumer receives published records. Required.
	Consumer Consumer

	// Logger is optional.
	Logger Logger

	// Journal is optional. It receives every state transition.
	Journal Journal

	// Telemetry is optional. It mirrors publishes and transitions.
	Telemetry Telemetry

	// Overflow decides what happens when Connect asks for more slots than
	// the consumer holds. The zero value truncates.
	Overflow slot.OverflowPolicy

	// SampleEvery is passed to the Publisher; see PublisherOptions.
	SampleEvery int

	// NewSessionID generates the id attached to each connect attempt.
	// Defaults to a random UUID.
	NewSessionID func() string

	// Now defaults to time.Now.
	Now func() time.Time
}

// Controller runs the connection state machine between the tracking service
// and the consumer.
//
// Thread Safety: Controller does not lock. Every method and every service
// event must be delivered from the same goroutine.
type Controller struct {
	service   tracking.Service
	pool      tracking.Pool
	consumer  Consumer
	publisher *Publisher
	journal   Journal
	telemetry Telemetry
	logger    Logger

	overflow     slot.OverflowPolicy
	newSessionID func() string
	now          func() time.Time

	initialized bool
	state       ConnectionState
	registry    *slot.Registry
	sessionID   string
	unsubs      []tracking.Unsubscribe

	onConnected        listeners[func()]
	onDisconnected     listeners[func()]
	onConnectionFailed listeners[func(reason string)]
}

// New creates a controller in the Disconnected state. Call Init before
// Connect.
func New(opts Options) (*Controller, error) {
	if opts.Service == nil {
		return nil, ErrServiceRequired
	}
	if opts.Pool == nil {
		return nil, ErrPoolRequired
	}
	if opts.Consumer == nil {
		return nil, ErrConsumerRequired
	}

	c := &Controller{
		service:      opts.Service,
		pool:         opts.Pool,
		consumer:     opts.Consumer,
		journal:      opts.Journal,
		telemetry:    opts.Telemetry,
		logger:       opts.Logger,
		overflow:     opts.Overflow,
		newSessionID: opts.NewSessionID,
		now:          opts.Now,
		state:        Disconnected,
	}
	if c.logger == nil {
		c.logger = noopLogger{}
	}
	if c.newSessionID == nil {
		c.newSessionID = uuid.NewString
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.publisher = NewPublisher(opts.Consumer, PublisherOptions{
		Logger:      c.logger,
		Telemetry:   opts.Telemetry,
		SampleEvery: opts.SampleEvery,
	})

	return c, nil
}

// Init queries the consumer capacity and subscribes to the service events.
// It returns false if the consumer could not be reached; Init may then be
// called again. Calling Init on an initialised controller returns true.
func (c *Controller) Init() bool {
	if c.initialized {
		return true
	}

	maxSlots, err := c.consumer.MaxSlotCount()
	if err != nil {
		c.logger.Warn("consumer unavailable, bridge not initialized", "error", err)
		return false
	}
	if maxSlots < 0 {
		c.logger.Warn("consumer reported negative capacity, using 0", "max_slots", maxSlots)
	}

	c.registry = slot.NewRegistry(maxSlots)
	c.registry.SetOverflowPolicy(c.overflow)

	c.unsubs = []tracking.Unsubscribe{
		c.service.Subscribe(tracking.EventConnected, c.handleServiceConnected),
		c.service.Subscribe(tracking.EventDisconnected, c.handleServiceDisconnected),
		c.service.Subscribe(tracking.EventControllerListUpdated, c.handleControllerListUpdated),
		c.service.Subscribe(tracking.EventHMDListUpdated, c.handleHMDListUpdated),
		c.service.Subscribe(tracking.EventMessagesPolled, c.handleMessagesPolled),
	}
	c.initialized = true

	c.logger.Info("bridge initialized",
		"max_slots", c.registry.MaxSlots(),
		"overflow", c.overflow.String())
	return true
}

// Cleanup disconnects, drops every service subscription in reverse order,
// and marks the controller uninitialised. A launch still waiting for the
// service is abandoned. Calling Cleanup twice is a no-op.
func (c *Controller) Cleanup() {
	if !c.initialized {
		return
	}

	c.Disconnect()
	if c.state == WaitingForService || c.state == Failed {
		c.registry.Clear()
		c.transition(Disconnected, "bridge cleanup", 0)
	}

	for i := len(c.unsubs) - 1; i >= 0; i-- {
		c.unsubs[i]()
	}
	c.unsubs = nil
	c.initialized = false

	c.logger.Info("bridge cleaned up")
}

// Connect configures the slots and starts a session.
//
// It acts only from Disconnected or Failed. If the tracking service is
// already reachable the bridge goes straight to Connected; otherwise the
// service is launched and the bridge waits for its connected event.
func (c *Controller) Connect(defs []slot.Definition) {
	if !c.initialized {
		c.logger.Warn("connect ignored, bridge not initialized")
		return
	}
	if !c.state.acceptsConnect() {
		c.logger.Debug("connect ignored", "state", c.state)
		return
	}

	c.warnUnusableBindings(defs)

	c.sessionID = c.newSessionID()

	dropped, err := c.registry.Reconfigure(defs)
	if err != nil {
		c.fail(fmt.Sprintf("slot request rejected: %v", err))
		return
	}
	if dropped > 0 {
		c.logger.Warn("slot request exceeds consumer capacity, extra slots dropped",
			"requested", len(defs),
			"max_slots", c.registry.MaxSlots(),
			"dropped", dropped)
	}

	if c.service.IsConnected() {
		c.enterConnected("tracking service already connected")
		return
	}

	if err := c.service.Launch(); err != nil {
		c.fail(launchFailedReason + ": " + err.Error())
		return
	}
	c.transition(WaitingForService, "tracking service launched", c.registry.Len())
}

// Disconnect tears down an active session. It is a no-op unless Connected.
func (c *Controller) Disconnect() {
	if c.state != Connected {
		return
	}
	c.teardown("disconnect requested")
}

// State returns the current connection state.
func (c *Controller) State() ConnectionState {
	return c.state
}

// IsInitialized reports whether Init has succeeded.
func (c *Controller) IsInitialized() bool {
	return c.initialized
}

// IsConnected reports whether the bridge is Connected.
func (c *Controller) IsConnected() bool {
	return c.state == Connected
}

// MaxSlotCount returns the consumer capacity, or 0 before Init.
func (c *Controller) MaxSlotCount() int {
	if c.registry == nil {
		return 0
	}
	return c.registry.MaxSlots()
}

// Definitions returns a copy of the active slot definitions.
func (c *Controller) Definitions() []slot.Definition {
	if c.registry == nil {
		return nil
	}
	return c.registry.Definitions()
}

// SessionID returns the id of the most recent connect attempt.
func (c *Controller) SessionID() string {
	return c.sessionID
}

// Stats returns the publisher counters.
func (c *Controller) Stats() Stats {
	return c.publisher.Stats()
}

// OnConnected registers fn to run each time the bridge becomes Connected.
func (c *Controller) OnConnected(fn func()) tracking.Unsubscribe {
	return c.onConnected.add(fn)
}

// OnDisconnected registers fn to run each time a session is torn down.
func (c *Controller) OnDisconnected(fn func()) tracking.Unsubscribe {
	return c.onDisconnected.add(fn)
}

// OnConnectionFailed registers fn to run when a connect attempt fails.
func (c *Controller) OnConnectionFailed(fn func(reason string)) tracking.Unsubscribe {
	return c.onConnectionFailed.add(fn)
}

func (c *Controller) handleServiceConnected() {
	if c.state != WaitingForService {
		return
	}
	c.enterConnected("tracking service connected")
}

func (c *Controller) handleServiceDisconnected() {
	if c.state != Connected {
		return
	}
	c.teardown("tracking service disconnected")
}

func (c *Controller) handleControllerListUpdated() {
	if c.state != Connected {
		return
	}
	c.pool.RefreshControllerList()
	c.refreshAndPublish()
}

func (c *Controller) handleHMDListUpdated() {
	if c.state != Connected {
		return
	}
	c.pool.RefreshHMDList()
	c.refreshAndPublish()
}

func (c *Controller) handleMessagesPolled() {
	if c.state != Connected {
		return
	}
	c.refreshAndPublish()
}

func (c *Controller) refreshAndPublish() {
	c.registry.RefreshAll(c.pool)
	c.publisher.Publish(c.registry)
}

func (c *Controller) enterConnected(reason string) {
	c.pool.Init()
	c.transition(Connected, reason, c.registry.Len())
	c.onConnected.each(func(fn func()) { fn() })
}

func (c *Controller) teardown(reason string) {
	slots := c.registry.Len()
	c.pool.Cleanup()
	c.registry.Clear()
	c.transition(Disconnected, reason, slots)
	c.onDisconnected.each(func(fn func()) { fn() })
}

func (c *Controller) fail(reason string) {
	c.transition(Failed, reason, c.registry.Len())
	c.logger.Error("connection failed", "reason", reason)
	c.onConnectionFailed.each(func(fn func(string)) { fn(reason) })
}

func (c *Controller) transition(to ConnectionState, reason string, slots int) {
	from := c.state
	c.state = to

	c.logger.Info("connection state changed",
		"from", from.String(),
		"to", to.String(),
		"reason", reason,
		"slots", slots,
		"session_id", c.sessionID)

	if c.journal != nil {
		c.journal.RecordTransition(Transition{
			SessionID: c.sessionID,
			From:      from,
			To:        to,
			Reason:    reason,
			SlotCount: slots,
			At:        c.now(),
		})
	}
	if c.telemetry != nil {
		c.telemetry.RecordConnection(to)
	}
}

func (c *Controller) warnUnusableBindings(defs []slot.Definition) {
	for i, def := range defs {
		if err := def.Validate(); err != nil {
			c.logger.Warn("slot definition invalid, slot will read zero", "slot", i, "error", err)
			continue
		}
		unmapped := def.Unmapped()
		if len(unmapped) == 0 {
			continue
		}
		names := make([]string, len(unmapped))
		for j, ch := range unmapped {
			names[j] = ch.String()
		}
		c.logger.Warn("slot has unmapped channels, they will read zero",
			"slot", i,
			"kind", def.Kind.String(),
			"channels", names)
	}
}
