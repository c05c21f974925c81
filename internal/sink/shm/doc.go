//go:build darwin || linux

// Package shm is the shared-memory consumer the bridge publishes slot
// records into.
//
// The region is a regular file (normally under /dev/shm) mapped MAP_SHARED.
// Consumers map the same file read-only:
//
//	offset  size  field
//	0       4     magic    0x4c534250 ("PBSL")
//	4       4     version  1
//	8       4     capacity slot count
//	12      4     sequence incremented after every successful write
//	16      24×N  records  6 × float32 per slot: x, y, z, pitch, roll, yaw
//
// All values are little-endian. A reader that needs a consistent frame reads
// the sequence, copies the records, and re-reads the sequence; or it takes a
// shared flock on the file while copying. With Config.Lock set the writer
// never waits for that lock: a write that finds it held reports
// bridge.ResultSharedData and is skipped.
package shm
