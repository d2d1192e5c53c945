package bus

import "github.com/jacobsa/go-serial/serial"

// OpenSerial opens the RS-485 UART at 9600 8N1, per spec.md §6.
//
// Grounded directly on the teacher's NewSerialPHY (npi_phy.go), with
// the hardcoded baud/frame parameters generalized to this bus's fixed
// wire format (the teacher takes baud as a caller-supplied parameter
// since its radio's NPI link runs at whatever rate the MCU firmware
// configures; IntelliChem's RS-485 rate is fixed by spec, so it is not
// parameterized here).
func OpenSerial(path string) (ReadWriteCloser, error) {
	opts := serial.OpenOptions{
		PortName:              path,
		BaudRate:              9600,
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
		MinimumReadSize:       1,
	}
	return serial.Open(opts)
}
