// Package protocol implements the IntelliChem RS-485 frame codec (C1).
//
// A Frame is the on-wire unit: a fixed 3-byte preamble, a 6-byte header,
// 0-57 bytes of payload, and a big-endian 16-bit checksum over the
// header+payload. The codec is pure — it never touches the wire and
// never logs — so the stream resynchronizer (C2) and the decoder/
// encoder (C3) can call it at high frequency and so tests can round-trip
// arbitrary frames without a serial port.
package protocol

import "bytes"

const (
	// PreambleLen is the length in bytes of the fixed preamble.
	PreambleLen = 3
	// HeaderLen is the length in bytes of the fixed header (including
	// the preamble's following start/sub bytes through payload-length).
	HeaderLen = 6
	// ChecksumLen is the length in bytes of the trailing checksum.
	ChecksumLen = 2
	// MinFrameLen is the smallest legal frame: preamble+header+checksum
	// with a zero-length payload.
	MinFrameLen = PreambleLen + HeaderLen + ChecksumLen
	// MaxPayloadLen bounds payload length as observed in practice on
	// the IntelliChem bus.
	MaxPayloadLen = 57

	preambleByte0 = 0xFF
	preambleByte1 = 0x00
	preambleByte2 = 0xFF
	startByte     = 0xA5
	subByte       = 0x00
)

// Controller-side source address, fixed by the bus master.
const SourceController = 16

// IntelliChem addresses occupy this inclusive range; DefaultAddress is
// the factory default.
const (
	AddressMin     = 144
	AddressMax     = 158
	DefaultAddress = 144
)

// Recognized action codes.
const (
	ActionStatusRequest  = 210 // empty payload
	ActionStatusResponse = 18  // 41-byte payload
	ActionConfigCommand  = 146 // 21-byte payload
	ActionBroadcast      = 147 // observed, silently ignored
)

// Build assembles a complete frame from its fields. The returned slice
// is newly allocated and always has length HeaderLen+PreambleLen+
// len(payload)+ChecksumLen.
func Build(dest, src, action byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLen {
		return nil, ErrBufferTooSmall
	}

	var buf bytes.Buffer
	buf.Grow(MinFrameLen + len(payload))
	buf.WriteByte(preambleByte0)
	buf.WriteByte(preambleByte1)
	buf.WriteByte(preambleByte2)
	buf.WriteByte(startByte)
	buf.WriteByte(subByte)
	buf.WriteByte(dest)
	buf.WriteByte(src)
	buf.WriteByte(action)
	buf.WriteByte(byte(len(payload)))
	buf.Write(payload)

	sum := checksum(buf.Bytes()[PreambleLen:])
	buf.WriteByte(byte(sum >> 8))
	buf.WriteByte(byte(sum))

	return buf.Bytes(), nil
}

// checksum computes the unsigned 16-bit sum (natural overflow) of the
// header+payload bytes, i.e. everything after the preamble.
func checksum(headerAndPayload []byte) uint16 {
	var sum uint16
	for _, b := range headerAndPayload {
		sum += uint16(b)
	}
	return sum
}

// ValidateStructure reports whether buf begins with the fixed preamble
// and start byte. It does not check length beyond that or the checksum;
// callers that need a fully validated frame should call ValidateChecksum.
func ValidateStructure(buf []byte) error {
	if len(buf) < PreambleLen+1 {
		return ErrInvalidStructure
	}
	if buf[0] != preambleByte0 || buf[1] != preambleByte1 || buf[2] != preambleByte2 {
		return ErrInvalidStructure
	}
	if buf[3] != startByte {
		return ErrInvalidStructure
	}
	return nil
}

// ValidateChecksum validates structure, declared length, and checksum
// of buf. It returns the total frame length (PreambleLen+HeaderLen+N+
// ChecksumLen) on success.
func ValidateChecksum(buf []byte) (int, error) {
	if err := ValidateStructure(buf); err != nil {
		return 0, err
	}
	if len(buf) < MinFrameLen {
		return 0, ErrShortBuffer
	}
	n := int(buf[PreambleLen+5]) // payload-length byte, offset 8 from frame start
	total := PreambleLen + HeaderLen + n + ChecksumLen
	if len(buf) < total {
		return 0, ErrShortBuffer
	}

	sum := checksum(buf[PreambleLen : total-ChecksumLen])
	stored := uint16(buf[total-2])<<8 | uint16(buf[total-1])
	if sum != stored {
		return 0, ErrBadChecksum
	}
	return total, nil
}

// Destination returns the destination address field of a structurally
// valid frame. Callers must validate first.
func Destination(buf []byte) byte { return buf[PreambleLen+2] }

// Source returns the source address field of a structurally valid frame.
func Source(buf []byte) byte { return buf[PreambleLen+3] }

// Action returns the action code of a structurally valid frame.
func Action(buf []byte) byte { return buf[PreambleLen+4] }

// PayloadLen returns the declared payload length of a structurally
// valid frame.
func PayloadLen(buf []byte) int { return int(buf[PreambleLen+5]) }

// Payload returns the payload slice of a fully validated frame (as
// returned by ValidateChecksum's length). The slice aliases buf.
func Payload(buf []byte) []byte {
	n := PayloadLen(buf)
	start := PreambleLen + HeaderLen
	return buf[start : start+n]
}
