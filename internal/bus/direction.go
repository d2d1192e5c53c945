package bus

import "time"

// DirectionController drives the RS-485 transceiver's direction-control
// GPIO, per spec.md §6: a nonnegative pin enables direction toggling
// (driven high during TX, low during RX); a negative pin indicates an
// auto-direction transceiver, which suppresses toggling entirely.
//
// Kept as a small interface at the C4/collaborator boundary (per
// spec.md §1, GPIO control is the kind of platform-API wrapper this
// specification does not itself describe) so tests can supply
// FuncDirectionController instead of real hardware. RPIODirectionController
// in gpio.go is the production implementation.
type DirectionController interface {
	// SetTransmit asserts the direction line for transmit (true) or
	// releases it back to receive (false).
	SetTransmit(assertTransmit bool) error
}

// NoopDirectionController is used when the wired transceiver handles
// direction switching automatically (negative pin number).
type NoopDirectionController struct{}

// SetTransmit implements DirectionController.
func (NoopDirectionController) SetTransmit(bool) error { return nil }

// FuncDirectionController adapts a plain function, used by tests and by
// thin platform wrappers that already have a GPIO "set line" primitive.
type FuncDirectionController func(assertTransmit bool) error

// SetTransmit implements DirectionController.
func (f FuncDirectionController) SetTransmit(assertTransmit bool) error { return f(assertTransmit) }

// Direction timing constants from spec.md §4.4.
const (
	directionSettle     = 1 * time.Millisecond
	directionTxGuard    = 100 * time.Millisecond
	awaitResponseWindow = 5 * time.Second
)

// txState is the four-state direction state machine: Rx (receiver
// enabled), TxPre (direction asserted, waiting for transceiver settle),
// Tx (actively writing), TxPost (waiting for the final bit to clock
// out before releasing the direction line).
type txState int

const (
	stateRx txState = iota
	stateTxPre
	stateTx
	stateTxPost
)

func (s txState) String() string {
	switch s {
	case stateRx:
		return "Rx"
	case stateTxPre:
		return "TxPre"
	case stateTx:
		return "Tx"
	case stateTxPost:
		return "TxPost"
	default:
		return "Unknown"
	}
}

// transmit drives the full Rx->TxPre->Tx->TxPost->Rx cycle around a
// single frame write. sleep is injected so tests can skip real
// wall-clock delay; production callers pass time.Sleep.
func transmit(dir DirectionController, w writeFunc, frame []byte, sleep func(time.Duration)) error {
	if err := dir.SetTransmit(true); err != nil {
		return err
	}
	sleep(directionSettle) // TxPre -> Tx settle

	_, err := w(frame)
	// Tx -> TxPost regardless of write error, so we always attempt to
	// release the direction line (TxPost -> Rx) rather than leaving
	// the bus permanently asserted for transmit. w is synchronous, so
	// TX is already complete here; the guard just bounds how long the
	// line stays asserted before release.
	sleep(directionTxGuard)

	if relErr := dir.SetTransmit(false); relErr != nil && err == nil {
		err = relErr
	}
	return err
}

type writeFunc func([]byte) (int, error)
