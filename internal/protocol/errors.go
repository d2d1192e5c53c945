package protocol

import "errors"

// Sentinel errors returned by the frame codec (C1). They are pure value
// errors with no I/O or logging attached, so callers in C2/C3 can test
// with errors.Is without depending on formatted text.
var (
	// ErrBufferTooSmall is returned by Build when the caller's desired
	// payload would not fit the wire format (more than 57 payload
	// bytes).
	ErrBufferTooSmall = errors.New("protocol: buffer too small for frame")

	// ErrInvalidStructure is returned by ValidateStructure when the
	// preamble or start byte does not match the fixed header shape.
	ErrInvalidStructure = errors.New("protocol: invalid frame structure")

	// ErrShortBuffer is returned by ValidateChecksum when fewer bytes
	// are present than the header's declared payload length requires.
	ErrShortBuffer = errors.New("protocol: buffer shorter than declared frame length")

	// ErrBadChecksum is returned by ValidateChecksum when the stored
	// checksum does not match the computed one.
	ErrBadChecksum = errors.New("protocol: checksum mismatch")
)
