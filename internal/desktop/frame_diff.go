package desktop

import (
	"hash/crc32"
	"sync"
	"sync/atomic"
)

// frameDiffer skips re-encoding frames whose pixel content hasn't
// changed since the last capture, tracked by a cheap CRC32 checksum
// rather than a full byte comparison.
type frameDiffer struct {
	mu          sync.Mutex
	lastHash    uint32
	hasLastHash bool

	total   atomic.Uint64
	skipped atomic.Uint64
}

func newFrameDiffer() *frameDiffer {
	return &frameDiffer{}
}

// HasChanged reports whether pix differs from the last frame seen,
// and records pix as the new baseline.
func (d *frameDiffer) HasChanged(pix []byte) bool {
	d.total.Add(1)

	sum := crc32.ChecksumIEEE(pix)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.hasLastHash && sum == d.lastHash {
		d.skipped.Add(1)
		return false
	}
	d.lastHash = sum
	d.hasLastHash = true
	return true
}

// Reset forgets the last-seen frame, forcing the next HasChanged call
// to report a change (used after a keyframe request or monitor switch).
func (d *frameDiffer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hasLastHash = false
}

// Stats returns the total frames considered and how many were skipped
// as unchanged, for diagnostics.
func (d *frameDiffer) Stats() (total, skipped uint64) {
	return d.total.Load(), d.skipped.Load()
}
