package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/posebridge/internal/infrastructure/config"
)

const (
	defaultPingTimeout = 5 * time.Second

	// Slot samples arrive at poll rate, so batches are larger than usual.
	defaultBatchSize     = 1000
	defaultFlushInterval = 1 // seconds

	millisecondsPerSecond = 1000

	// queueSize bounds the points waiting for the write API.
	queueSize = 4096
)

// Client is the batched InfluxDB writer behind bridge telemetry.
// WritePoint only queues; a drain goroutine hands points to the write API,
// which can block while a batch is in flight. A full queue drops the point.
//
// All methods are safe for concurrent use.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	// queue carries points to drain; a nil entry requests a flush.
	queue chan *write.Point
	stop  chan struct{}
	done  chan struct{}

	closed      atomic.Bool
	dropped     atomic.Uint64
	writeErrors atomic.Uint64

	mu      sync.RWMutex
	onError func(err error)
}

// Connect creates the client and verifies the server answers a ping.
//
// Parameters:
//   - ctx: Bounds the initial ping
//   - cfg: The influxdb section of config.yaml
//
// Returns:
//   - *Client: Ready for writes
//   - error: ErrDisabled, or ErrConnectionFailed/ErrUnhealthy when the
//     server cannot be used
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	// #nosec G115 -- values defaulted above to be positive
	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(batchSize)).
		SetFlushInterval(uint(flushInterval) * millisecondsPerSecond).
		SetPrecision(time.Millisecond)

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, ErrUnhealthy)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		queue:    make(chan *write.Point, queueSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.watchErrors(c.writeAPI.Errors())
	go c.drain()

	return c, nil
}

// watchErrors counts asynchronous write failures and forwards them to the
// error callback. It ends when the client is closed.
func (c *Client) watchErrors(errs <-chan error) {
	for err := range errs {
		c.writeErrors.Add(1)

		c.mu.RLock()
		callback := c.onError
		c.mu.RUnlock()

		if callback != nil {
			callback(err)
		}
	}
}

// drain feeds queued points to the write API until Close, then hands over
// whatever is still queued.
func (c *Client) drain() {
	defer close(c.done)
	for {
		select {
		case p := <-c.queue:
			c.forward(p)
		case <-c.stop:
			for {
				select {
				case p := <-c.queue:
					c.forward(p)
				default:
					return
				}
			}
		}
	}
}

func (c *Client) forward(p *write.Point) {
	if p == nil {
		c.writeAPI.Flush()
		return
	}
	c.writeAPI.WritePoint(p)
}

// WritePoint queues p without blocking. Points that find the queue full, or
// arrive after Close, are counted as dropped.
func (c *Client) WritePoint(p *write.Point) {
	if p == nil || c.closed.Load() {
		c.dropped.Add(1)
		return
	}
	select {
	case c.queue <- p:
	default:
		c.dropped.Add(1)
	}
}

// SetOnError sets the callback for asynchronous write failures.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// Flush asks the drain goroutine to send everything queued so far. It waits
// for queue room, so the dispatcher must not call it. It is a no-op after
// Close.
func (c *Client) Flush() {
	if c.closed.Load() {
		return
	}
	select {
	case c.queue <- nil:
	case <-c.stop:
	}
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(pingCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return ErrUnhealthy
	}
	return nil
}

// IsConnected reports whether the client is still open.
func (c *Client) IsConnected() bool {
	return !c.closed.Load()
}

// WriteErrors returns how many batches the server rejected or never received.
func (c *Client) WriteErrors() uint64 {
	return c.writeErrors.Load()
}

// Dropped returns how many points were discarded on a full queue or after
// Close.
func (c *Client) Dropped() uint64 {
	return c.dropped.Load()
}

// Close stops the drain goroutine, flushes what it handed over and closes
// the client. A second call is a no-op.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.stop)
	<-c.done
	c.writeAPI.Flush()
	c.client.Close()
	return nil
}
