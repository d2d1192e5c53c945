// Package transport provides test doubles for the io.ReadWriteCloser
// the bus poller (C4) talks to, grounded on the teacher's TestLink type
// (spirilis-smacbase/npi_test.go) which plays canned bytes back to a
// PHY reader goroutine and captures writes for inspection.
package transport

import (
	"bytes"
	"errors"
	"sync"
)

// Fake is an io.ReadWriteCloser test double. Reads block until either
// canned data is queued via Feed or the fake is closed. Writes are
// captured and can be drained with TakeWrites.
type Fake struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending bytes.Buffer
	writes  [][]byte
	closed  bool
}

// NewFake returns a ready-to-use fake transport.
func NewFake() *Fake {
	f := &Fake{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Feed makes additional bytes available to the next Read calls, as if
// they had just arrived on the wire.
func (f *Fake) Feed(data []byte) {
	f.mu.Lock()
	f.pending.Write(data)
	f.cond.Broadcast()
	f.mu.Unlock()
}

// Read implements io.Reader, blocking until data is fed or the fake is
// closed.
func (f *Fake) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.pending.Len() == 0 && !f.closed {
		f.cond.Wait()
	}
	if f.closed && f.pending.Len() == 0 {
		return 0, errors.New("transport: fake closed")
	}
	return f.pending.Read(p)
}

// Write implements io.Writer, recording the written bytes for
// inspection by TakeWrites.
func (f *Fake) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, errors.New("transport: fake closed")
	}
	cp := append([]byte(nil), p...)
	f.writes = append(f.writes, cp)
	return len(p), nil
}

// Close implements io.Closer and wakes any blocked Read.
func (f *Fake) Close() error {
	f.mu.Lock()
	f.closed = true
	f.cond.Broadcast()
	f.mu.Unlock()
	return nil
}

// TakeWrites drains and returns all writes captured so far.
func (f *Fake) TakeWrites() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := f.writes
	f.writes = nil
	return w
}
