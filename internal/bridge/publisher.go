package bridge

import (
	"sync/atomic"

	"github.com/nerrad567/posebridge/internal/slot"
)

// PublisherOptions configures a Publisher.
type PublisherOptions struct {
	// Logger is optional. Publish failures are logged at error level.
	Logger Logger

	// Telemetry is optional. Every outcome is reported through it.
	Telemetry Telemetry

	// SampleEvery sets how often slot values are sent to Telemetry, in
	// publishes. Zero or negative disables slot sampling.
	SampleEvery int
}

// Stats counts publish outcomes since the publisher was created.
type Stats struct {
	Published   uint64 `json:"published"`
	OutOfBounds uint64 `json:"out_of_bounds"`
	SharedData  uint64 `json:"shared_data"`
	Errors      uint64 `json:"errors"`
}

// Publisher copies slot records into a reusable output buffer and writes it
// to the consumer.
//
// Publishing is best effort. A failed write is logged and counted; there is
// no retry, the next tick simply writes again.
//
// Publish must be called from a single goroutine. Stats may be read from any
// goroutine.
type Publisher struct {
	consumer    Consumer
	logger      Logger
	telemetry   Telemetry
	sampleEvery int

	buf   []slot.Record
	ticks int

	published   atomic.Uint64
	outOfBounds atomic.Uint64
	sharedData  atomic.Uint64
	writeErrors atomic.Uint64
}

// NewPublisher creates a publisher writing to consumer.
func NewPublisher(consumer Consumer, opts PublisherOptions) *Publisher {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Publisher{
		consumer:    consumer,
		logger:      logger,
		telemetry:   opts.Telemetry,
		sampleEvery: opts.SampleEvery,
	}
}

// Publish writes the current records of src to slots [0, n) of the consumer.
// An empty source still issues a zero-count write.
func (p *Publisher) Publish(src RecordSource) {
	p.buf = src.Records(p.buf)
	count := len(p.buf)

	result, err := p.consumer.Write(0, count, p.buf)
	switch {
	case err != nil:
		p.writeErrors.Add(1)
		p.logger.Error("could not write slots to consumer", "slots", count, "error", err)
	case result == ResultSuccess:
		p.published.Add(1)
	case result == ResultOutOfBounds:
		p.outOfBounds.Add(1)
		p.logger.Error("could not write slots to consumer: out of bounds", "slots", count)
	case result == ResultSharedData:
		p.sharedData.Add(1)
		p.logger.Error("could not write slots to consumer: shared data error", "slots", count)
	default:
		p.writeErrors.Add(1)
		p.logger.Error("could not write slots to consumer: unknown result",
			"slots", count, "result", int(result))
	}

	if p.telemetry == nil || err != nil {
		return
	}
	p.telemetry.RecordPublish(result, count)

	if p.sampleEvery <= 0 {
		return
	}
	p.ticks++
	if p.ticks < p.sampleEvery {
		return
	}
	p.ticks = 0
	for i, rec := range p.buf {
		p.telemetry.RecordSlot(i, rec)
	}
}

// Stats returns the outcome counters.
func (p *Publisher) Stats() Stats {
	return Stats{
		Published:   p.published.Load(),
		OutOfBounds: p.outOfBounds.Load(),
		SharedData:  p.sharedData.Load(),
		Errors:      p.writeErrors.Load(),
	}
}
