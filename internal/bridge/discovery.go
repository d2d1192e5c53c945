package bridge

import (
	"encoding/json"

	"github.com/spirilis/intellichem2mqtt/internal/chem"
)

// discoveryConfig is a minimal Home Assistant MQTT discovery payload:
// enough for a sensor or binary_sensor entity to self-register, naming
// its state topic, unit, and device class. Generalized from
// original_source/mqtt/discovery.c's presence (module name only; the
// retrieval pipeline filtered out its body) per SPEC_FULL.md §4.5.
type discoveryConfig struct {
	Name              string          `json:"name"`
	StateTopic        string          `json:"state_topic"`
	AvailabilityTopic string          `json:"availability_topic"`
	UniqueID          string          `json:"unique_id"`
	UnitOfMeasurement string          `json:"unit_of_measurement,omitempty"`
	DeviceClass       string          `json:"device_class,omitempty"`
	PayloadOn         string          `json:"payload_on,omitempty"`
	PayloadOff        string          `json:"payload_off,omitempty"`
	Device            discoveryDevice `json:"device"`
}

type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

// discoveryPayloads returns one (topic, JSON payload) pair per leaf
// field, built from a fixed field list rather than a live status record
// since discovery only needs to be (re)published once per broker
// connect, not per status snapshot.
func discoveryPayloads(prefix string) ([][2]string, error) {
	objectID := func(path string) string {
		out := make([]byte, 0, len(path))
		for _, r := range path {
			if r == '/' {
				out = append(out, '_')
				continue
			}
			out = append(out, byte(r))
		}
		return string(out)
	}

	device := discoveryDevice{
		Identifiers:  []string{prefix},
		Name:         "IntelliChem",
		Manufacturer: "Pentair",
		Model:        "IntelliChem",
	}

	var out [][2]string
	for _, l := range leaves(chem.Status{}) {
		id := objectID(l.path)
		cfg := discoveryConfig{
			Name:              l.path,
			StateTopic:        leafTopic(prefix, l.path),
			AvailabilityTopic: availabilityTopic(prefix),
			UniqueID:          prefix + "_" + id,
			UnitOfMeasurement: l.unit,
			DeviceClass:       l.deviceCls,
			Device:            device,
		}
		if l.isBoolean {
			cfg.PayloadOn = "true"
			cfg.PayloadOff = "false"
		}
		body, err := json.Marshal(cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, [2]string{discoveryTopic(prefix, id, l.isBoolean), string(body)})
	}
	return out, nil
}
