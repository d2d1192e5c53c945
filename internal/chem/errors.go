package chem

import (
	"errors"
	"fmt"
)

// Sentinel errors for the decoder (Daedaluz-goserial-style: wrap with
// fmt.Errorf("...: %w", ...) when extra context helps, return the bare
// sentinel otherwise).
var (
	ErrBadSource    = errors.New("chem: source address out of range 144-158")
	ErrBadAction    = errors.New("chem: frame action is not a status response")
	ErrShortPayload = errors.New("chem: status payload shorter than 41 bytes")
)

// InvalidSettingsError is returned by Encode when a settings field is
// outside its declared closed range.
type InvalidSettingsError struct {
	Field string
	Value float64
}

func (e *InvalidSettingsError) Error() string {
	return fmt.Sprintf("chem: setting %q value %v out of range", e.Field, e.Value)
}
