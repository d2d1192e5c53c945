package resync

import (
	"bytes"
	"testing"

	"github.com/spirilis/intellichem2mqtt/internal/protocol"
)

func mustBuild(t *testing.T, dest, src, action byte, payload []byte) []byte {
	t.Helper()
	buf, err := protocol.Build(dest, src, action, payload)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	return buf
}

// P7 / scenario 3: resync after garbage.
func TestResyncFromGarbage(t *testing.T) {
	valid := mustBuild(t, 144, protocol.SourceController, protocol.ActionStatusRequest, nil)

	r := New()
	r.Push([]byte{0xAA, 0xBB, 0xFF, 0x00, 0xFF})
	r.Push(valid)

	out := make([]byte, 128)
	n, ok := r.TryTakeFrame(out)
	if !ok {
		t.Fatalf("TryTakeFrame did not yield a frame")
	}
	if !bytes.Equal(out[:n], valid) {
		t.Errorf("TryTakeFrame() = % X, want % X", out[:n], valid)
	}

	if got := r.Stats().Resync; got != 1 {
		t.Errorf("Resync counter = %d, want 1", got)
	}

	if _, ok := r.TryTakeFrame(out); ok {
		t.Errorf("expected no second frame, got one")
	}
}

// Scenario 4: bad checksum discards one byte and does not yield a
// second frame from the remaining bytes.
func TestBadChecksumDiscardsOneByte(t *testing.T) {
	valid := mustBuild(t, 144, protocol.SourceController, protocol.ActionStatusRequest, nil)
	corrupt := append([]byte(nil), valid...)
	corrupt[len(corrupt)-1]++

	r := New()
	r.Push(corrupt)

	out := make([]byte, 128)
	if _, ok := r.TryTakeFrame(out); ok {
		t.Errorf("expected no frame from corrupted input")
	}
	if got := r.Stats().BadChecksum; got != 1 {
		t.Errorf("BadChecksum counter = %d, want 1", got)
	}
	if _, ok := r.TryTakeFrame(out); ok {
		t.Errorf("expected no second frame after discarding corrupted frame's first byte")
	}
}

func TestTryTakeFrameWaitsForMoreBytes(t *testing.T) {
	valid := mustBuild(t, 144, protocol.SourceController, protocol.ActionStatusResponse, make([]byte, 41))

	r := New()
	r.Push(valid[:20]) // partial frame

	out := make([]byte, 128)
	if _, ok := r.TryTakeFrame(out); ok {
		t.Fatalf("expected no frame from partial input")
	}

	r.Push(valid[20:])
	n, ok := r.TryTakeFrame(out)
	if !ok {
		t.Fatalf("TryTakeFrame did not yield a frame after remainder arrived")
	}
	if !bytes.Equal(out[:n], valid) {
		t.Errorf("TryTakeFrame() = % X, want % X", out[:n], valid)
	}
}

func TestTryTakeFrameRejectsOversizeDeclaredLength(t *testing.T) {
	r := New()
	// Preamble + header declaring a payload length beyond frameCap.
	r.Push([]byte{0xFF, 0x00, 0xFF, 0xA5, 0x00, 0x90, 0x10, 0x12, 0xFF})
	r.Push(make([]byte, 64))

	out := make([]byte, 256)
	if _, ok := r.TryTakeFrame(out); ok {
		t.Errorf("expected oversize declared length to be discarded as noise")
	}
}

func TestOverflowDropsOldestBytes(t *testing.T) {
	r := New()
	r.Push(make([]byte, Capacity))
	r.Push([]byte{1, 2, 3})

	if got := r.Stats().Overflow; got != 1 {
		t.Errorf("Overflow counter = %d, want 1", got)
	}
	if len(r.buf) != overflowKeep+3 {
		t.Errorf("buffer length after overflow = %d, want %d", len(r.buf), overflowKeep+3)
	}
}

func TestPreambleSplitAcrossPush(t *testing.T) {
	valid := mustBuild(t, 144, protocol.SourceController, protocol.ActionStatusRequest, nil)

	r := New()
	// 11 bytes of garbage, with no FF 00 FF run anywhere, ending in the
	// first two preamble bytes (0xFF, 0x00) so the "keep trailing two"
	// rule has something to preserve across the push boundary.
	r.Push([]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xFF, 0x00})
	out := make([]byte, 128)
	if _, ok := r.TryTakeFrame(out); ok {
		t.Fatalf("expected no frame before preamble completes")
	}

	r.Push([]byte{0xFF}) // completes 0xFF 0x00 0xFF using the retained trailing bytes
	r.Push(valid[3:])    // rest of the header+checksum

	n, ok := r.TryTakeFrame(out)
	if !ok {
		t.Fatalf("TryTakeFrame did not recover the split preamble")
	}
	if !bytes.Equal(out[:n], valid) {
		t.Errorf("TryTakeFrame() = % X, want % X", out[:n], valid)
	}
	if got := r.Stats().Resync; got != 0 {
		t.Errorf("Resync counter = %d, want 0 (preamble was at offset 0 after trim)", got)
	}
}
