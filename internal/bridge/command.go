package bridge

import (
	"strconv"
	"strings"

	"github.com/spirilis/intellichem2mqtt/internal/bus"
)

// parseCommand implements the per-command-name grammar table from
// spec.md §4.5. ok is false for any parse or range failure, in which
// case the caller must discard the message rather than forward it.
func parseCommand(name, payload string) (bus.Command, bool) {
	payload = strings.TrimSpace(payload)
	switch name {
	case "ph_setpoint":
		v, err := strconv.ParseFloat(payload, 64)
		if err != nil || v < 7.0 || v > 7.6 {
			return bus.Command{}, false
		}
		return bus.Command{Kind: bus.CommandSetPHSetpoint, Float: v}, true

	case "orp_setpoint":
		v, err := strconv.Atoi(payload)
		if err != nil || v < 400 || v > 800 {
			return bus.Command{}, false
		}
		return bus.Command{Kind: bus.CommandSetORPSetpoint, Int: v}, true

	case "ph_dosing_enabled":
		enabled, ok := parseBool(payload)
		if !ok {
			return bus.Command{}, false
		}
		return bus.Command{Kind: bus.CommandSetPHDosingEnabled, Bool: enabled}, true

	case "orp_dosing_enabled":
		enabled, ok := parseBool(payload)
		if !ok {
			return bus.Command{}, false
		}
		return bus.Command{Kind: bus.CommandSetORPDosingEnabled, Bool: enabled}, true

	case "calcium_hardness":
		v, err := strconv.Atoi(payload)
		if err != nil || v < 25 || v > 800 {
			return bus.Command{}, false
		}
		return bus.Command{Kind: bus.CommandSetCalciumHardness, Int: v}, true

	case "cyanuric_acid":
		v, err := strconv.Atoi(payload)
		if err != nil || v < 0 || v > 210 {
			return bus.Command{}, false
		}
		return bus.Command{Kind: bus.CommandSetCyanuricAcid, Int: v}, true

	case "alkalinity":
		v, err := strconv.Atoi(payload)
		if err != nil || v < 25 || v > 800 {
			return bus.Command{}, false
		}
		return bus.Command{Kind: bus.CommandSetAlkalinity, Int: v}, true

	default:
		return bus.Command{}, false
	}
}

// parseBool accepts ON/OFF/true/false/1/0, case-insensitive, per
// spec.md §4.5's dosing-enabled grammar.
func parseBool(payload string) (bool, bool) {
	switch strings.ToLower(payload) {
	case "on", "true", "1":
		return true, true
	case "off", "false", "0":
		return false, true
	default:
		return false, false
	}
}
