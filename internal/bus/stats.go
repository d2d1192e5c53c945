package bus

import "sync/atomic"

// Stats is a snapshot of the bus poller's monotonic counters, per
// spec.md §6. Counters live as individual atomics (the teacher keeps
// per-owner plain fields protected by goroutine-confinement instead;
// here the counters are read from another goroutine via Poller.Stats, so
// atomics are the idiomatic choice — see Yobol-go-iec104's use of
// atomic send-sequence counters for the same reasoning).
type Stats struct {
	Polls       uint64
	Responses   uint64
	Errors      uint64
	BytesIn     uint64
	FramesOK    uint64
	BadChecksum uint64
	Overflow    uint64
	Resync      uint64
	Stale       bool
}

// statCounters holds the poller-owned counters; the byte/frame/resync
// counters live in resync.RingBuffer.Stats instead and are merged in by
// Poller.Stats, so they are not duplicated here.
type statCounters struct {
	polls     atomic.Uint64
	responses atomic.Uint64
	errors    atomic.Uint64
}
