package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/spirilis/intellichem2mqtt/internal/chem"
)

// leaf is one per-field publication: a topic path segment, its textual
// encoding, a Home-Assistant unit/device-class hint for discovery, and
// whether it is boolean (drives the discovery component and the
// true/false encoding rule from spec.md §4.5).
type leaf struct {
	path       string
	value      string
	isBoolean  bool
	unit       string
	deviceCls  string
}

// leaves flattens a decoded status into the ordered set of per-field
// publications spec.md §4.5 describes: floats with %.2f for pH, %.0f
// for ORP, integers plain, booleans as true/false, enums as their
// human-readable string.
func leaves(s chem.Status) []leaf {
	return []leaf{
		{path: "ph/level", value: fmt.Sprintf("%.2f", s.PH.Level), unit: "pH"},
		{path: "ph/setpoint", value: fmt.Sprintf("%.2f", s.PH.Setpoint), unit: "pH"},
		{path: "ph/dose_time", value: fmt.Sprintf("%d", s.PH.DoseTime), unit: "s"},
		{path: "ph/dose_volume", value: fmt.Sprintf("%d", s.PH.DoseVolume), unit: "mL"},
		{path: "ph/tank_level", value: fmt.Sprintf("%d", s.PH.TankLevel)},
		{path: "ph/dosing_status", value: s.PH.Status.String()},
		{path: "ph/is_dosing", value: boolStr(s.PH.IsDosing), isBoolean: true},
		{path: "ph/doser_type", value: fmt.Sprintf("%d", s.PH.DoserType)},

		{path: "orp/level", value: fmt.Sprintf("%.0f", s.ORP.Level), unit: "mV"},
		{path: "orp/setpoint", value: fmt.Sprintf("%.0f", s.ORP.Setpoint), unit: "mV"},
		{path: "orp/dose_time", value: fmt.Sprintf("%d", s.ORP.DoseTime), unit: "s"},
		{path: "orp/dose_volume", value: fmt.Sprintf("%d", s.ORP.DoseVolume), unit: "mL"},
		{path: "orp/tank_level", value: fmt.Sprintf("%d", s.ORP.TankLevel)},
		{path: "orp/dosing_status", value: s.ORP.Status.String()},
		{path: "orp/is_dosing", value: boolStr(s.ORP.IsDosing), isBoolean: true},
		{path: "orp/doser_type", value: fmt.Sprintf("%d", s.ORP.DoserType)},

		{path: "lsi", value: fmt.Sprintf("%.2f", s.LSI)},
		{path: "calcium_hardness", value: fmt.Sprintf("%d", s.CalciumHardness), unit: "ppm"},
		{path: "cyanuric_acid", value: fmt.Sprintf("%d", s.CyanuricAcid), unit: "ppm"},
		{path: "alkalinity", value: fmt.Sprintf("%d", s.Alkalinity), unit: "ppm"},
		{path: "salt_level", value: fmt.Sprintf("%d", s.SaltLevel), unit: "ppm"},
		{path: "temperature", value: fmt.Sprintf("%d", s.Temperature), unit: "°F", deviceCls: "temperature"},
		{path: "firmware", value: s.Firmware},
		{path: "water_chemistry", value: s.WaterChemistry.String()},

		{path: "alarms/flow", value: boolStr(s.Alarms.Flow), isBoolean: true, deviceCls: "problem"},
		{path: "alarms/ph_tank_empty", value: boolStr(s.Alarms.PHTankEmpty), isBoolean: true, deviceCls: "problem"},
		{path: "alarms/orp_tank_empty", value: boolStr(s.Alarms.ORPTankEmpty), isBoolean: true, deviceCls: "problem"},
		{path: "alarms/probe_fault", value: boolStr(s.Alarms.ProbeFault), isBoolean: true, deviceCls: "problem"},

		{path: "warnings/ph_lockout", value: boolStr(s.Warnings.PHLockout), isBoolean: true},
		{path: "warnings/ph_daily_limit", value: boolStr(s.Warnings.PHDailyLimit), isBoolean: true},
		{path: "warnings/orp_daily_limit", value: boolStr(s.Warnings.ORPDailyLimit), isBoolean: true},
		{path: "warnings/invalid_setup", value: boolStr(s.Warnings.InvalidSetup), isBoolean: true},
		{path: "warnings/chlorinator_comm", value: boolStr(s.Warnings.ChlorinatorComm), isBoolean: true},

		{path: "flow_detected", value: boolStr(s.FlowDetected), isBoolean: true},
		{path: "comms_lost", value: boolStr(s.CommsLost), isBoolean: true, deviceCls: "connectivity"},
	}
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// channelDTO and statusDTO mirror chem.Status for the aggregate JSON
// topic, independent of chem's domain types so that the wire shape
// (snake_case, flattened dosing fields) doesn't leak back into the
// decoder's own field names.
type channelDTO struct {
	Level        float64 `json:"level"`
	Setpoint     float64 `json:"setpoint"`
	DoseTimeSec  uint16  `json:"dose_time"`
	DoseVolumeML uint16  `json:"dose_volume"`
	TankLevel    uint8   `json:"tank_level"`
	DosingStatus string  `json:"dosing_status"`
	IsDosing     bool    `json:"is_dosing"`
	DoserType    uint8   `json:"doser_type"`
}

type alarmsDTO struct {
	Flow         bool `json:"flow"`
	PHTankEmpty  bool `json:"ph_tank_empty"`
	ORPTankEmpty bool `json:"orp_tank_empty"`
	ProbeFault   bool `json:"probe_fault"`
}

type warningsDTO struct {
	PHLockout       bool `json:"ph_lockout"`
	PHDailyLimit    bool `json:"ph_daily_limit"`
	ORPDailyLimit   bool `json:"orp_daily_limit"`
	InvalidSetup    bool `json:"invalid_setup"`
	ChlorinatorComm bool `json:"chlorinator_comm"`
}

type statusDTO struct {
	Address         int         `json:"address"`
	PH              channelDTO  `json:"ph"`
	ORP             channelDTO  `json:"orp"`
	LSI             float64     `json:"lsi"`
	CalciumHardness uint16      `json:"calcium_hardness"`
	CyanuricAcid    uint8       `json:"cyanuric_acid"`
	Alkalinity      uint16      `json:"alkalinity"`
	SaltLevel       uint16      `json:"salt_level"`
	Temperature     uint8       `json:"temperature"`
	Firmware        string      `json:"firmware"`
	Alarms          alarmsDTO   `json:"alarms"`
	Warnings        warningsDTO `json:"warnings"`
	WaterChemistry  string      `json:"water_chemistry"`
	FlowDetected    bool        `json:"flow_detected"`
	CommsLost       bool        `json:"comms_lost"`
	LastUpdateMs    int64       `json:"last_update_ms"`
}

func newStatusDTO(s chem.Status) statusDTO {
	toChannel := func(c chem.Channel) channelDTO {
		return channelDTO{
			Level:        c.Level,
			Setpoint:     c.Setpoint,
			DoseTimeSec:  c.DoseTime,
			DoseVolumeML: c.DoseVolume,
			TankLevel:    c.TankLevel,
			DosingStatus: c.Status.String(),
			IsDosing:     c.IsDosing,
			DoserType:    c.DoserType,
		}
	}
	return statusDTO{
		Address:         s.Address,
		PH:              toChannel(s.PH),
		ORP:             toChannel(s.ORP),
		LSI:             s.LSI,
		CalciumHardness: s.CalciumHardness,
		CyanuricAcid:    s.CyanuricAcid,
		Alkalinity:      s.Alkalinity,
		SaltLevel:       s.SaltLevel,
		Temperature:     s.Temperature,
		Firmware:        s.Firmware,
		Alarms: alarmsDTO{
			Flow:         s.Alarms.Flow,
			PHTankEmpty:  s.Alarms.PHTankEmpty,
			ORPTankEmpty: s.Alarms.ORPTankEmpty,
			ProbeFault:   s.Alarms.ProbeFault,
		},
		Warnings: warningsDTO{
			PHLockout:       s.Warnings.PHLockout,
			PHDailyLimit:    s.Warnings.PHDailyLimit,
			ORPDailyLimit:   s.Warnings.ORPDailyLimit,
			InvalidSetup:    s.Warnings.InvalidSetup,
			ChlorinatorComm: s.Warnings.ChlorinatorComm,
		},
		WaterChemistry: s.WaterChemistry.String(),
		FlowDetected:   s.FlowDetected,
		CommsLost:      s.CommsLost,
		LastUpdateMs:   s.LastUpdateMillis,
	}
}

func marshalStatus(s chem.Status) ([]byte, error) {
	return json.Marshal(newStatusDTO(s))
}
