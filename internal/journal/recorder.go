package journal

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nerrad567/posebridge/internal/bridge"
)

const (
	defaultBuffer = 64
	writeTimeout  = 5 * time.Second
	pruneInterval = time.Hour
)

// Logger defines the logging interface for the recorder.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Writer is the part of Repository the recorder needs.
type Writer interface {
	Create(ctx context.Context, e *Entry) error
}

// Pruner deletes old entries. *SQLiteRepository implements it.
type Pruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Recorder implements bridge.Journal by queueing transitions for a
// background writer. RecordTransition never blocks; when the queue is full
// the transition is dropped and counted.
type Recorder struct {
	w       Writer
	logger  Logger
	entries chan Entry
	dropped atomic.Uint64

	pruner    Pruner
	retention time.Duration
	interval  time.Duration
}

var _ bridge.Journal = (*Recorder)(nil)

// NewRecorder creates a recorder with room for buffer pending entries.
// A non-positive buffer selects the default. A nil logger discards output.
func NewRecorder(w Writer, buffer int, logger Logger) *Recorder {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{
		w:       w,
		logger:  logger,
		entries: make(chan Entry, buffer),
	}
}

// SetRetention makes Run delete entries older than retention, once at start
// and then hourly. A non-positive retention keeps everything. Call it before
// Run.
func (r *Recorder) SetRetention(p Pruner, retention time.Duration) {
	if retention <= 0 {
		r.pruner = nil
		return
	}
	r.pruner = p
	r.retention = retention
	r.interval = pruneInterval
}

// RecordTransition queues t for writing.
func (r *Recorder) RecordTransition(t bridge.Transition) {
	select {
	case r.entries <- EntryFromTransition(t):
	default:
		r.dropped.Add(1)
		r.logger.Warn("journal queue full, transition dropped",
			"from", t.From, "to", t.To, "session_id", t.SessionID)
	}
}

// Dropped returns how many transitions were discarded.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Run writes queued entries until ctx is cancelled, then writes whatever is
// still queued before returning.
func (r *Recorder) Run(ctx context.Context) {
	var prune <-chan time.Time
	if r.pruner != nil {
		r.prune()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		prune = ticker.C
	}

	for {
		select {
		case e := <-r.entries:
			r.write(e)
		case <-prune:
			r.prune()
		case <-ctx.Done():
			for {
				select {
				case e := <-r.entries:
					r.write(e)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.w.Create(ctx, &e); err != nil {
		r.logger.Error("writing journal entry", "error", err, "to", e.To)
	}
}

func (r *Recorder) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	deleted, err := r.pruner.Prune(ctx, r.retention)
	if err != nil {
		r.logger.Error("pruning journal", "error", err)
		return
	}
	if deleted > 0 {
		r.logger.Info("journal pruned", "deleted", deleted, "retention", r.retention)
	}
}
