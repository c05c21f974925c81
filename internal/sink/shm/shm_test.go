//go:build darwin || linux

package shm

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/nerrad567/posebridge/internal/bridge"
	"github.com/nerrad567/posebridge/internal/slot"
)

func openTestSink(t *testing.T, slots int, lock bool) (*Sink, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slots")
	s, err := Open(Config{Path: path, Slots: slots, Lock: lock})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func records(n int) []slot.Record {
	out := make([]slot.Record, n)
	for i := range out {
		base := float32(i * 10)
		out[i] = slot.Record{X: base, Y: base + 1, Z: base + 2, Pitch: base + 3, Roll: base + 4, Yaw: base + 5}
	}
	return out
}

func TestOpen_Header(t *testing.T) {
	_, path := openTestSink(t, 4, false)

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != HeaderSize+4*RecordSize {
		t.Fatalf("file size = %d, want %d", len(raw), HeaderSize+4*RecordSize)
	}
	if got := binary.LittleEndian.Uint32(raw[0:]); got != Magic {
		t.Errorf("magic = %#x, want %#x", got, Magic)
	}
	if got := binary.LittleEndian.Uint32(raw[4:]); got != Version {
		t.Errorf("version = %d, want %d", got, Version)
	}
	if got := binary.LittleEndian.Uint32(raw[8:]); got != 4 {
		t.Errorf("capacity = %d, want 4", got)
	}
}

func TestOpen_InvalidCapacity(t *testing.T) {
	_, err := Open(Config{Path: filepath.Join(t.TempDir(), "slots"), Slots: 0})
	if !errors.Is(err, ErrInvalidCapacity) {
		t.Errorf("Open() error = %v, want ErrInvalidCapacity", err)
	}
}

func TestOpen_Resizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slots")
	if err := os.WriteFile(path, make([]byte, 1000), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := Open(Config{Path: path, Slots: 2})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != HeaderSize+2*RecordSize {
		t.Errorf("size = %d, want %d", info.Size(), HeaderSize+2*RecordSize)
	}
}

func TestMaxSlotCount(t *testing.T) {
	s, _ := openTestSink(t, 6, false)

	n, err := s.MaxSlotCount()
	if err != nil || n != 6 {
		t.Errorf("MaxSlotCount() = (%d, %v), want (6, nil)", n, err)
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	s, path := openTestSink(t, 4, true)
	in := records(3)

	code, err := s.Write(0, 3, in)
	if err != nil || code != bridge.ResultSuccess {
		t.Fatalf("Write() = (%v, %v), want success", code, err)
	}

	out, err := s.ReadSlots(0, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("slot %d = %+v, want %+v", i, out[i], in[i])
		}
	}
	if s.Sequence() != 1 {
		t.Errorf("Sequence() = %d, want 1", s.Sequence())
	}

	// Another process mapping the file sees the same floats.
	raw, _ := os.ReadFile(path)
	yaw := binary.LittleEndian.Uint32(raw[HeaderSize+2*RecordSize+5*4:])
	if got := math.Float32frombits(yaw); got != 25 {
		t.Errorf("slot 2 yaw in file = %v, want 25", got)
	}
}

func TestWrite_Offset(t *testing.T) {
	s, _ := openTestSink(t, 4, false)

	if code, _ := s.Write(2, 2, records(2)); code != bridge.ResultSuccess {
		t.Fatalf("Write() = %v", code)
	}

	out, _ := s.ReadSlots(0, 4)
	if out[0] != (slot.Record{}) || out[1] != (slot.Record{}) {
		t.Errorf("slots before offset were written: %+v", out[:2])
	}
	if out[2].X != 0 || out[3].X != 10 {
		t.Errorf("offset slots = %+v", out[2:])
	}
}

func TestWrite_Bounds(t *testing.T) {
	s, _ := openTestSink(t, 4, false)

	tests := []struct {
		name          string
		offset, count int
		records       []slot.Record
		want          bridge.ResultCode
	}{
		{"fits", 0, 4, records(4), bridge.ResultSuccess},
		{"empty", 0, 0, nil, bridge.ResultSuccess},
		{"empty at end", 4, 0, nil, bridge.ResultSuccess},
		{"past end", 1, 4, records(4), bridge.ResultOutOfBounds},
		{"too many", 0, 5, records(5), bridge.ResultOutOfBounds},
		{"negative offset", -1, 1, records(1), bridge.ResultOutOfBounds},
		{"negative count", 0, -1, nil, bridge.ResultOutOfBounds},
		{"short records", 0, 3, records(2), bridge.ResultOutOfBounds},
		{"offset near MaxInt", math.MaxInt, 1, records(1), bridge.ResultOutOfBounds},
		{"count near MaxInt", 1, math.MaxInt, records(1), bridge.ResultOutOfBounds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := s.Sequence()
			code, err := s.Write(tt.offset, tt.count, tt.records)
			if err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			if code != tt.want {
				t.Errorf("Write() = %v, want %v", code, tt.want)
			}
			if tt.want != bridge.ResultSuccess && s.Sequence() != before {
				t.Error("rejected write bumped the sequence")
			}
		})
	}
}

func TestWrite_SharedData(t *testing.T) {
	s, path := openTestSink(t, 2, true)

	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer unix.Close(fd)
	if err := unix.Flock(fd, unix.LOCK_SH); err != nil {
		t.Fatal(err)
	}

	code, err := s.Write(0, 2, records(2))
	if err != nil || code != bridge.ResultSharedData {
		t.Errorf("Write() while locked = (%v, %v), want shared_data", code, err)
	}
	if s.Sequence() != 0 {
		t.Error("contended write bumped the sequence")
	}

	if err := unix.Flock(fd, unix.LOCK_UN); err != nil {
		t.Fatal(err)
	}
	if code, _ := s.Write(0, 2, records(2)); code != bridge.ResultSuccess {
		t.Errorf("Write() after unlock = %v, want success", code)
	}
}

func TestWrite_NoLockIgnoresReaders(t *testing.T) {
	s, path := openTestSink(t, 1, false)

	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer unix.Close(fd)
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		t.Fatal(err)
	}

	if code, _ := s.Write(0, 1, records(1)); code != bridge.ResultSuccess {
		t.Errorf("Write() = %v, want success with locking disabled", code)
	}
}

func TestReadSlots_RejectsOverflowingRange(t *testing.T) {
	s, _ := openTestSink(t, 4, false)

	for _, r := range [][2]int{{math.MaxInt, 1}, {1, math.MaxInt}, {4, 1}} {
		if _, err := s.ReadSlots(r[0], r[1]); err == nil {
			t.Errorf("ReadSlots(%d, %d) succeeded, want range error", r[0], r[1])
		}
	}
}

func TestClose(t *testing.T) {
	s, _ := openTestSink(t, 1, false)

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := s.MaxSlotCount(); !errors.Is(err, ErrClosed) {
		t.Errorf("MaxSlotCount() after Close error = %v", err)
	}
	if _, err := s.Write(0, 0, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Write() after Close error = %v", err)
	}
	if _, err := s.ReadSlots(0, 0); !errors.Is(err, ErrClosed) {
		t.Errorf("ReadSlots() after Close error = %v", err)
	}
}
