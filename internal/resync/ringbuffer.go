// Package resync implements the stream resynchronizer (C2): a fixed
// capacity ring buffer that extracts complete, checksum-valid frames
// from a noisy byte stream that may contain partial frames, inter-frame
// garbage, or a preamble crossing an arrival boundary.
//
// Grounded on the teacher's npiPhyReader inline resync loop
// (spirilis-smacbase/npi_phy.go), lifted into its own arena type with
// an explicit TryTakeFrame surface and counters, per spec.
package resync

import "github.com/spirilis/intellichem2mqtt/internal/protocol"

// Capacity is the ring buffer's fixed byte capacity.
const Capacity = 512

// overflowKeep is how many trailing bytes survive an overflow drop.
const overflowKeep = 64

// frameCap bounds the total frame length (11+N) a single try_take_frame
// pass will ever attempt to assemble; larger declared lengths are
// treated as noise and discarded one byte at a time.
const frameCap = 64

// Stats holds the monotonic counters exposed by the resynchronizer.
type Stats struct {
	FramesOK    uint64
	BytesIn     uint64
	BadChecksum uint64
	Overflow    uint64
	Resync      uint64
}

// RingBuffer is a fixed-capacity byte arena fed by Push and drained by
// TryTakeFrame. It is not safe for concurrent use; callers (C4) own it
// exclusively from their single I/O goroutine.
type RingBuffer struct {
	buf   []byte
	stats Stats
}

// New allocates a ring buffer at its fixed capacity.
func New() *RingBuffer {
	return &RingBuffer{buf: make([]byte, 0, Capacity)}
}

// Push appends newly arrived bytes. If capacity would be exceeded, all
// but the most recent overflowKeep bytes are dropped before accepting,
// and the Overflow counter increments. This bounds memory at the cost
// of losing data; acceptable because the sender (the bus poller) will
// retry on the next poll.
func (r *RingBuffer) Push(data []byte) {
	r.stats.BytesIn += uint64(len(data))

	if len(r.buf)+len(data) > Capacity {
		keep := overflowKeep
		if keep > len(r.buf) {
			keep = len(r.buf)
		}
		r.buf = append(r.buf[:0], r.buf[len(r.buf)-keep:]...)
		r.stats.Overflow++
	}
	r.buf = append(r.buf, data...)
}

// TryTakeFrame attempts to extract one complete, checksum-valid frame
// into out, per the algorithm in spec.md §4.2. It returns the number of
// bytes written to out and true on success. out must be at least
// frameCap bytes; callers typically pass a reusable scratch buffer.
//
// The function may consume (discard) bytes from the ring even when it
// returns false, as it resynchronizes past garbage and bad-checksum
// frames along the way.
func (r *RingBuffer) TryTakeFrame(out []byte) (int, bool) {
	resynced := false
	for {
		if len(r.buf) < protocol.MinFrameLen {
			return 0, false
		}

		idx := r.findPreamble()
		if idx < 0 {
			// No preamble found; keep only the trailing two bytes, as
			// they might be the start of a preamble split across the
			// next arrival.
			if len(r.buf) > 2 {
				r.buf = append(r.buf[:0], r.buf[len(r.buf)-2:]...)
			}
			return 0, false
		}

		if idx > 0 {
			r.buf = append(r.buf[:0], r.buf[idx:]...)
			// One resync per call: bytes skipped after rejecting a false
			// preamble belong to the same recovery.
			if !resynced {
				r.stats.Resync++
				resynced = true
			}
		}

		if len(r.buf) < 4 {
			return 0, false
		}
		if r.buf[3] != 0xA5 {
			r.buf = r.buf[1:]
			continue
		}

		if len(r.buf) < protocol.PreambleLen+protocol.HeaderLen {
			return 0, false // wait for the length byte to arrive
		}
		n := int(r.buf[protocol.PreambleLen+5])
		required := protocol.MinFrameLen + n
		if required > frameCap {
			r.buf = r.buf[1:]
			continue
		}
		if len(r.buf) < required {
			return 0, false
		}

		copy(out, r.buf[:required])
		if _, err := protocol.ValidateChecksum(out[:required]); err != nil {
			r.buf = r.buf[1:]
			r.stats.BadChecksum++
			continue
		}

		r.buf = r.buf[required:]
		r.stats.FramesOK++
		return required, true
	}
}

// findPreamble scans for the three-byte preamble within the first
// len-2 positions, mirroring the spec's requirement that the scan not
// claim a preamble that could still be completed by more incoming
// data.
func (r *RingBuffer) findPreamble() int {
	limit := len(r.buf) - 2
	for i := 0; i < limit; i++ {
		if r.buf[i] == 0xFF && r.buf[i+1] == 0x00 && r.buf[i+2] == 0xFF {
			return i
		}
	}
	return -1
}

// Stats returns a snapshot of the monotonic counters.
func (r *RingBuffer) Stats() Stats {
	return r.stats
}

// Reset discards all buffered bytes without touching counters. Used by
// the bus poller whenever a transport Read fails; the serial transport
// does not distinguish FIFO-overflow/buffer-full events from other read
// errors, so every read error flushes the ring.
func (r *RingBuffer) Reset() {
	r.buf = r.buf[:0]
}
