package chem

import (
	"github.com/spirilis/intellichem2mqtt/internal/protocol"
)

// SettingsPayloadLen is the fixed length of the config command payload
// built by Encode.
const SettingsPayloadLen = 21

// Settings mirrors the writable subset of Status (C3 encode input). It
// must be constructed by cloning the most recent Status and overwriting
// only the field(s) a caller actually wants to change — Encode never
// merges with prior state; that is the caller's duty (see
// internal/bus, which keeps a last-settings projection for exactly
// this purpose).
type Settings struct {
	PHSetpoint      float64 // 7.0-7.6
	ORPSetpoint     int     // 400-800
	PHTankLevel     int     // 0-7
	ORPTankLevel    int     // 0-7
	CalciumHardness int     // 25-800
	CyanuricAcid    int     // 0-210
	Alkalinity      int     // 25-800
}

// SettingsFromStatus projects the writable subset of a decoded Status
// into a Settings record, so a single-field command can start from the
// controller's last reported state rather than zeroing everything else.
//
// The projection re-derives the tank-level raw encoding (0 meaning "no
// tank", 1-7 meaning quantized levels 0-6) from Status's already
// decoded 0-6 value, since Settings.PHTankLevel/ORPTankLevel are in
// raw 0-7 wire units while Status.PH.TankLevel/ORP.TankLevel are the
// decoded 0-6 semantic units. A decoded 0 always projects to raw 1: the
// decoder maps both raw 0 and raw 1 to 0, so raw 0 ("no tank") is not
// reproduced.
func SettingsFromStatus(s Status) Settings {
	return Settings{
		PHSetpoint:      s.PH.Setpoint,
		ORPSetpoint:     int(s.ORP.Setpoint),
		PHTankLevel:     int(s.PH.TankLevel) + 1,
		ORPTankLevel:    int(s.ORP.TankLevel) + 1,
		CalciumHardness: int(s.CalciumHardness),
		CyanuricAcid:    int(s.CyanuricAcid),
		Alkalinity:      int(s.Alkalinity),
	}
}

// Encode validates every field of s against its declared closed range
// and, if all pass, builds the 21-byte config payload and wraps it in a
// complete action-146 frame via protocol.Build.
func Encode(destination byte, s Settings) ([]byte, error) {
	if s.PHSetpoint < 7.0 || s.PHSetpoint > 7.6 {
		return nil, &InvalidSettingsError{Field: "ph_setpoint", Value: s.PHSetpoint}
	}
	if s.ORPSetpoint < 400 || s.ORPSetpoint > 800 {
		return nil, &InvalidSettingsError{Field: "orp_setpoint", Value: float64(s.ORPSetpoint)}
	}
	if s.PHTankLevel < 0 || s.PHTankLevel > 7 {
		return nil, &InvalidSettingsError{Field: "ph_tank_level", Value: float64(s.PHTankLevel)}
	}
	if s.ORPTankLevel < 0 || s.ORPTankLevel > 7 {
		return nil, &InvalidSettingsError{Field: "orp_tank_level", Value: float64(s.ORPTankLevel)}
	}
	if s.CalciumHardness < 25 || s.CalciumHardness > 800 {
		return nil, &InvalidSettingsError{Field: "calcium_hardness", Value: float64(s.CalciumHardness)}
	}
	if s.CyanuricAcid < 0 || s.CyanuricAcid > 210 {
		return nil, &InvalidSettingsError{Field: "cyanuric_acid", Value: float64(s.CyanuricAcid)}
	}
	if s.Alkalinity < 25 || s.Alkalinity > 800 {
		return nil, &InvalidSettingsError{Field: "alkalinity", Value: float64(s.Alkalinity)}
	}

	payload := make([]byte, SettingsPayloadLen)

	phSetpoint := uint16(s.PHSetpoint*100 + 0.5)
	payload[0] = byte(phSetpoint >> 8)
	payload[1] = byte(phSetpoint)

	orpSetpoint := uint16(s.ORPSetpoint)
	payload[2] = byte(orpSetpoint >> 8)
	payload[3] = byte(orpSetpoint)

	payload[4] = byte(s.PHTankLevel)
	payload[5] = byte(s.ORPTankLevel)

	calcium := uint16(s.CalciumHardness)
	payload[6] = byte(calcium >> 8)
	payload[7] = byte(calcium)

	// byte 8 reserved, zero

	payload[9] = byte(s.CyanuricAcid)

	alkalinity := uint16(s.Alkalinity)
	payload[10] = byte(alkalinity >> 8)
	// byte 11 reserved, zero
	payload[12] = byte(alkalinity)

	// bytes 13-20 reserved, zero

	return protocol.Build(destination, protocol.SourceController, protocol.ActionConfigCommand, payload)
}
