package bridge

import (
	"errors"
	"testing"

	"github.com/nerrad567/posebridge/internal/slot"
)

func TestPublisher_WritesAllRecordsInOrder(t *testing.T) {
	consumer := &fakeConsumer{}
	p := NewPublisher(consumer, PublisherOptions{})

	src := staticSource{{X: 1}, {X: 2}, {X: 3}}
	p.Publish(src)

	if len(consumer.writes) != 1 {
		t.Fatalf("writes = %d, want 1", len(consumer.writes))
	}
	got := consumer.writes[0]
	for i := range src {
		if got[i] != src[i] {
			t.Errorf("record %d = %+v, want %+v", i, got[i], src[i])
		}
	}
	if consumer.offsets[0] != 0 {
		t.Errorf("offset = %d, want 0", consumer.offsets[0])
	}
}

func TestPublisher_EmptySourceWritesZero(t *testing.T) {
	consumer := &fakeConsumer{}
	p := NewPublisher(consumer, PublisherOptions{})

	p.Publish(staticSource(nil))

	if len(consumer.writes) != 1 || len(consumer.writes[0]) != 0 {
		t.Errorf("writes = %+v, want one empty write", consumer.writes)
	}
}

func TestPublisher_ReusesBuffer(t *testing.T) {
	consumer := &fakeConsumer{}
	p := NewPublisher(consumer, PublisherOptions{})
	src := staticSource{{X: 1}, {X: 2}}

	p.Publish(src)
	first := &p.buf[0]
	p.Publish(src)

	if &p.buf[0] != first {
		t.Error("output buffer reallocated for a stable slot count")
	}
}

func TestPublisher_Results(t *testing.T) {
	tests := []struct {
		name      string
		result    ResultCode
		err       error
		wantStats Stats
		wantLogs  int
	}{
		{"success", ResultSuccess, nil, Stats{Published: 1}, 0},
		{"out of bounds", ResultOutOfBounds, nil, Stats{OutOfBounds: 1}, 1},
		{"shared data", ResultSharedData, nil, Stats{SharedData: 1}, 1},
		{"transport error", ResultSuccess, errors.New("shm: closed"), Stats{Errors: 1}, 1},
		{"unknown code", ResultCode(42), nil, Stats{Errors: 1}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &captureLogger{}
			consumer := &fakeConsumer{result: tt.result, writeErr: tt.err}
			p := NewPublisher(consumer, PublisherOptions{Logger: logger})

			p.Publish(staticSource{{X: 1}})

			if got := p.Stats(); got != tt.wantStats {
				t.Errorf("Stats() = %+v, want %+v", got, tt.wantStats)
			}
			if got := logger.count("error"); got != tt.wantLogs {
				t.Errorf("error logs = %d, want %d", got, tt.wantLogs)
			}
		})
	}
}

func TestPublisher_DistinctFailureMessages(t *testing.T) {
	logger := &captureLogger{}
	consumer := &fakeConsumer{}
	p := NewPublisher(consumer, PublisherOptions{Logger: logger})

	consumer.result = ResultOutOfBounds
	p.Publish(staticSource{{}})
	consumer.result = ResultSharedData
	p.Publish(staticSource{{}})

	msgs := logger.messages("error")
	if len(msgs) != 2 || msgs[0] == msgs[1] {
		t.Errorf("error messages = %q, want two distinct", msgs)
	}
}

func TestPublisher_Telemetry(t *testing.T) {
	tel := &fakeTelemetry{}
	consumer := &fakeConsumer{}
	p := NewPublisher(consumer, PublisherOptions{Telemetry: tel, SampleEvery: 3})
	src := staticSource{{X: 1}, {X: 2}}

	for range 7 {
		p.Publish(src)
	}

	if len(tel.publishes) != 7 {
		t.Errorf("publish reports = %d, want 7", len(tel.publishes))
	}
	// Ticks 3 and 6 sample both slots.
	want := []int{0, 1, 0, 1}
	if len(tel.slotSamples) != len(want) {
		t.Fatalf("slot samples = %v, want %v", tel.slotSamples, want)
	}
	for i := range want {
		if tel.slotSamples[i] != want[i] {
			t.Errorf("slot samples = %v, want %v", tel.slotSamples, want)
			break
		}
	}
}

func TestPublisher_TelemetrySkippedOnTransportError(t *testing.T) {
	tel := &fakeTelemetry{}
	consumer := &fakeConsumer{writeErr: errors.New("shm: closed")}
	p := NewPublisher(consumer, PublisherOptions{Telemetry: tel, SampleEvery: 1})

	p.Publish(staticSource{{}})

	if len(tel.publishes) != 0 || len(tel.slotSamples) != 0 {
		t.Errorf("telemetry recorded on transport error: %+v", tel)
	}
}

func TestPublisher_ZeroAllocWithoutTelemetry(t *testing.T) {
	consumer := &countingConsumer{}
	p := NewPublisher(consumer, PublisherOptions{})
	r := slot.NewRegistry(4)
	if _, err := r.Reconfigure(controllerDefs(4)); err != nil {
		t.Fatal(err)
	}
	p.Publish(r)

	allocs := testing.AllocsPerRun(100, func() { p.Publish(r) })
	if allocs != 0 {
		t.Errorf("Publish allocated %v times per run, want 0", allocs)
	}
}

// countingConsumer accepts writes without copying them.
type countingConsumer struct{ n int }

func (c *countingConsumer) MaxSlotCount() (int, error) { return 4, nil }

func (c *countingConsumer) Write(_, _ int, _ []slot.Record) (ResultCode, error) {
	c.n++
	return ResultSuccess, nil
}
