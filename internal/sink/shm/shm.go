//go:build darwin || linux

package shm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/nerrad567/posebridge/internal/bridge"
	"github.com/nerrad567/posebridge/internal/slot"
)

// Region layout. All integers and floats are little-endian.
const (
	// Magic identifies a posebridge slot region ("PBSL").
	Magic uint32 = 0x4c534250

	// Version is the layout version written to the header.
	Version uint32 = 1

	// HeaderSize is the byte size of the header: magic, version, capacity,
	// sequence, each a uint32.
	HeaderSize = 16

	// RecordSize is the byte size of one slot: six float32 values in
	// x, y, z, pitch, roll, yaw order.
	RecordSize = slot.ChannelCount * 4
)

const (
	offMagic    = 0
	offVersion  = 4
	offCapacity = 8
	offSequence = 12
)

var (
	// ErrClosed is returned by operations on a closed sink.
	ErrClosed = errors.New("shm: sink closed")

	// ErrInvalidCapacity is returned by Open for a non-positive slot count.
	ErrInvalidCapacity = errors.New("shm: slot capacity must be positive")
)

// Config configures a shared-memory sink.
type Config struct {
	// Path is the backing file, usually under /dev/shm.
	Path string

	// Slots is the capacity of the region.
	Slots int

	// Lock takes an exclusive non-blocking flock around every write. A
	// reader holding the lock makes the write report shared-data.
	Lock bool
}

// Sink is a file-backed MAP_SHARED region that external consumers map to
// read slot records.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Sink struct {
	mu       sync.Mutex
	fd       int
	data     []byte
	capacity int
	lock     bool
	closed   bool
}

var _ bridge.Consumer = (*Sink)(nil)

// Open creates or resizes the backing file, maps it and writes a fresh
// header. Existing record contents are zeroed when the size changes.
func Open(cfg Config) (*Sink, error) {
	if cfg.Slots <= 0 {
		return nil, ErrInvalidCapacity
	}
	size := HeaderSize + cfg.Slots*RecordSize

	fd, err := unix.Open(cfg.Path, unix.O_CREAT|unix.O_RDWR|unix.O_CLOEXEC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening slot region %s: %w", cfg.Path, err)
	}

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("stat slot region %s: %w", cfg.Path, err)
	}
	if stat.Size != int64(size) {
		if err := unix.Ftruncate(fd, int64(size)); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("sizing slot region %s to %d bytes: %w", cfg.Path, size, err)
		}
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mapping slot region %s: %w", cfg.Path, err)
	}

	binary.LittleEndian.PutUint32(data[offMagic:], Magic)
	binary.LittleEndian.PutUint32(data[offVersion:], Version)
	binary.LittleEndian.PutUint32(data[offCapacity:], uint32(cfg.Slots))

	return &Sink{
		fd:       fd,
		data:     data,
		capacity: cfg.Slots,
		lock:     cfg.Lock,
	}, nil
}

// MaxSlotCount returns the region capacity.
func (s *Sink) MaxSlotCount() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.capacity, nil
}

// Write copies count records into slots [offset, offset+count) and bumps
// the header sequence.
//
// Returns:
//   - ResultOutOfBounds: the range falls outside the region or records is short
//   - ResultSharedData: Lock is set and another holder has the file locked
//   - ResultSuccess: the records were written
//   - error: the sink is closed or the lock call failed
func (s *Sink) Write(offset, count int, records []slot.Record) (bridge.ResultCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	if !s.inRange(offset, count) || len(records) < count {
		return bridge.ResultOutOfBounds, nil
	}

	if s.lock {
		if err := unix.Flock(s.fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
			if errors.Is(err, unix.EWOULDBLOCK) {
				return bridge.ResultSharedData, nil
			}
			return 0, fmt.Errorf("locking slot region: %w", err)
		}
		defer unix.Flock(s.fd, unix.LOCK_UN) //nolint:errcheck // released on close regardless
	}

	for i := range count {
		putRecord(s.data[HeaderSize+(offset+i)*RecordSize:], records[i])
	}
	seq := binary.LittleEndian.Uint32(s.data[offSequence:])
	binary.LittleEndian.PutUint32(s.data[offSequence:], seq+1)

	return bridge.ResultSuccess, nil
}

// inRange reports whether [offset, offset+count) lies inside the region
// without computing a sum that could overflow.
func (s *Sink) inRange(offset, count int) bool {
	return offset >= 0 && count >= 0 && offset <= s.capacity && count <= s.capacity-offset
}

// ReadSlots returns a copy of count records starting at offset.
func (s *Sink) ReadSlots(offset, count int) ([]slot.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if !s.inRange(offset, count) {
		return nil, fmt.Errorf("shm: %d slots at offset %d outside capacity %d", count, offset, s.capacity)
	}

	out := make([]slot.Record, count)
	for i := range out {
		out[i] = getRecord(s.data[HeaderSize+(offset+i)*RecordSize:])
	}
	return out, nil
}

// Sequence returns the write counter from the header.
func (s *Sink) Sequence() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	return binary.LittleEndian.Uint32(s.data[offSequence:])
}

// Close unmaps the region and closes the file. The file itself is left in
// place for consumers.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	if err := unix.Munmap(s.data); err != nil {
		firstErr = fmt.Errorf("unmapping slot region: %w", err)
	}
	if err := unix.Close(s.fd); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing slot region: %w", err)
	}
	s.data = nil
	return firstErr
}

func putRecord(b []byte, r slot.Record) {
	for i, v := range r.Array() {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
}

func getRecord(b []byte) slot.Record {
	f := func(i int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:])) }
	return slot.Record{X: f(0), Y: f(1), Z: f(2), Pitch: f(3), Roll: f(4), Yaw: f(5)}
}
