package mqttsource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/posebridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/posebridge/internal/process"
	"github.com/nerrad567/posebridge/internal/tracking"
)

// defaultQueueSize bounds the dispatcher queue when Options.QueueSize is unset.
const defaultQueueSize = 256

// Subscriber is the part of the MQTT client the source needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Launcher starts the tracking-service process.
type Launcher interface {
	Start(ctx context.Context) error
	IsRunning() bool
}

// Logger defines the logging interface for the source.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Source.
type Options struct {
	// Subscriber delivers tracking-service messages. Required.
	Subscriber Subscriber

	// Topics names the tracking-service topics.
	Topics mqtt.Topics

	// QoS is the subscription QoS.
	QoS byte

	// QueueSize bounds the dispatcher queue. Defaults to 256.
	QueueSize int

	// Launcher starts the service process. Nil disables Launch.
	Launcher Launcher

	// LaunchContext bounds the lifetime of a launched process. Defaults to
	// context.Background().
	LaunchContext context.Context

	// Logger receives source diagnostics. Defaults to a no-op logger.
	Logger Logger
}

// Source implements tracking.Service and tracking.Pool over MQTT.
//
// Messages arrive on the MQTT client's goroutine, are decoded there and
// queued as closures. Run executes the queue one closure at a time; every
// event handler, pool read and Submit call runs on that goroutine.
type Source struct {
	subscriber Subscriber
	topics     mqtt.Topics
	qos        byte
	launcher   Launcher
	launchCtx  context.Context
	logger     Logger

	hub      *tracking.Hub
	queue    chan func()
	stopped  chan struct{}
	stopOnce sync.Once

	online  atomic.Bool
	dropped atomic.Uint64

	// Owned by the Run goroutine.
	stagedControllers []int
	stagedHMDs        []int
	controllers       map[tracking.ControllerID]deviceFrame
	hmds              map[tracking.HMDID]deviceFrame
}

// Compile-time interface checks.
var (
	_ tracking.Service = (*Source)(nil)
	_ tracking.Pool    = (*Source)(nil)
)

// New creates a Source. Call Start to subscribe and Run to dispatch.
func New(opts Options) (*Source, error) {
	if opts.Subscriber == nil {
		return nil, ErrSubscriberRequired
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.LaunchContext == nil {
		opts.LaunchContext = context.Background()
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	return &Source{
		subscriber: opts.Subscriber,
		topics:     opts.Topics,
		qos:        opts.QoS,
		launcher:   opts.Launcher,
		launchCtx:  opts.LaunchContext,
		logger:     opts.Logger,
		hub:        tracking.NewHub(),
		queue:      make(chan func(), opts.QueueSize),
		stopped:    make(chan struct{}),
	}, nil
}

// =============================================================================
// Lifecycle
// =============================================================================

// Start subscribes to the tracking-service topics.
func (s *Source) Start() error {
	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{s.topics.ControllerList(), s.listHandler(tracking.EventControllerListUpdated)},
		{s.topics.HMDList(), s.listHandler(tracking.EventHMDListUpdated)},
		{s.topics.AllControllerStates(), s.handleState},
		{s.topics.AllHMDStates(), s.handleState},
		{s.topics.Poll(), s.handlePoll},
		{s.topics.ServiceStatus(), s.handleStatus},
	}

	for _, sub := range subs {
		if err := s.subscriber.Subscribe(sub.topic, s.qos, sub.handler); err != nil {
			return fmt.Errorf("subscribing to %s: %w", sub.topic, err)
		}
	}
	return nil
}

// Stop removes the subscriptions made by Start.
func (s *Source) Stop() {
	for _, topic := range s.subscribedTopics() {
		if err := s.subscriber.Unsubscribe(topic); err != nil {
			s.logger.Debug("unsubscribe failed", "topic", topic, "error", err)
		}
	}
}

func (s *Source) subscribedTopics() []string {
	return []string{
		s.topics.ControllerList(),
		s.topics.HMDList(),
		s.topics.AllControllerStates(),
		s.topics.AllHMDStates(),
		s.topics.Poll(),
		s.topics.ServiceStatus(),
	}
}

// Run executes queued work until ctx is cancelled. Work submitted after Run
// returns fails with ErrStopped.
func (s *Source) Run(ctx context.Context) error {
	defer s.stopOnce.Do(func() { close(s.stopped) })

	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-s.queue:
			s.runTask(fn)
		}
	}
}

func (s *Source) runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("dispatcher task panic recovered", "panic", r)
		}
	}()
	fn()
}

// Submit queues fn for the dispatcher, blocking while the queue is full.
func (s *Source) Submit(fn func()) error {
	select {
	case <-s.stopped:
		return ErrStopped
	default:
	}

	select {
	case s.queue <- fn:
		return nil
	case <-s.stopped:
		return ErrStopped
	}
}

// Call runs fn on the dispatcher and waits for it to finish.
func (s *Source) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := s.Submit(func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		// Run may have drained fn before stopping.
		select {
		case <-done:
			return nil
		default:
			return ErrStopped
		}
	}
}

// offer queues fn without blocking. It reports false when the queue is full.
func (s *Source) offer(fn func()) bool {
	select {
	case s.queue <- fn:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Dropped returns how many state frames and poll markers were discarded
// because the dispatcher queue was full.
func (s *Source) Dropped() uint64 {
	return s.dropped.Load()
}

// =============================================================================
// tracking.Service
// =============================================================================

// IsConnected reports whether the service last announced itself online.
func (s *Source) IsConnected() bool {
	return s.online.Load()
}

// Launch starts the tracking-service process.
func (s *Source) Launch() error {
	if s.launcher == nil {
		return ErrLaunchNotConfigured
	}
	if s.launcher.IsRunning() {
		return nil
	}
	if err := s.launcher.Start(s.launchCtx); err != nil && !errors.Is(err, process.ErrAlreadyRunning) {
		return err
	}
	return nil
}

// Subscribe registers handler for event. Handlers run on the Run goroutine.
func (s *Source) Subscribe(event tracking.Event, handler func()) tracking.Unsubscribe {
	return s.hub.Subscribe(event, handler)
}

// HandleBrokerLost marks the service unreachable after the MQTT connection
// drops. The retained status restores it once the broker is back.
func (s *Source) HandleBrokerLost(err error) {
	_ = s.Submit(func() {
		s.logger.Warn("broker connection lost", "error", err)
		s.setOnline(false)
	})
}

// setOnline records the service status and raises the matching event on
// change. It runs on the dispatcher.
func (s *Source) setOnline(online bool) {
	if s.online.Swap(online) == online {
		return
	}
	if online {
		s.logger.Info("tracking service online")
		s.hub.Emit(tracking.EventConnected)
		return
	}
	s.logger.Info("tracking service offline")
	s.hub.Emit(tracking.EventDisconnected)
}

// =============================================================================
// MQTT handlers (client goroutine)
// =============================================================================

func (s *Source) handleStatus(_ string, payload []byte) error {
	online, err := decodeStatus(payload)
	if err != nil {
		return err
	}
	return s.Submit(func() { s.setOnline(online) })
}

func (s *Source) listHandler(event tracking.Event) mqtt.MessageHandler {
	return func(_ string, payload []byte) error {
		ids, err := decodeList(payload)
		if err != nil {
			return err
		}
		return s.Submit(func() {
			if event == tracking.EventControllerListUpdated {
				s.stagedControllers = ids
			} else {
				s.stagedHMDs = ids
			}
			s.hub.Emit(event)
		})
	}
}

func (s *Source) handleState(topic string, payload []byte) error {
	kind, id, ok := s.topics.ParseDeviceState(topic)
	if !ok {
		return fmt.Errorf("unexpected state topic %q", topic)
	}
	frame, err := decodeFrame(payload)
	if err != nil {
		return err
	}

	if !s.offer(func() { s.applyFrame(kind, id, frame) }) {
		s.logger.Debug("dispatcher queue full, state frame dropped", "topic", topic)
	}
	return nil
}

// handlePoll queues a poll marker only while something listens for it.
func (s *Source) handlePoll(_ string, _ []byte) error {
	if s.hub.Count(tracking.EventMessagesPolled) == 0 {
		return nil
	}
	if !s.offer(func() { s.hub.Emit(tracking.EventMessagesPolled) }) {
		s.logger.Debug("dispatcher queue full, poll marker dropped")
	}
	return nil
}

// applyFrame stores a frame for a device present in the live tables.
func (s *Source) applyFrame(kind string, id int, frame deviceFrame) {
	switch kind {
	case mqtt.DeviceKindController:
		if _, ok := s.controllers[tracking.ControllerID(id)]; ok {
			s.controllers[tracking.ControllerID(id)] = frame
		}
	case mqtt.DeviceKindHMD:
		if _, ok := s.hmds[tracking.HMDID(id)]; ok {
			s.hmds[tracking.HMDID(id)] = frame
		}
	}
}
