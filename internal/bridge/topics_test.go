package bridge

import (
	"testing"

	"github.com/spirilis/intellichem2mqtt/internal/chem"
)

func TestCommandNameExtractsTrailingSegment(t *testing.T) {
	got := commandName("intellichem2mqtt/intellichem/set/ph_setpoint")
	if got != "ph_setpoint" {
		t.Fatalf("commandName() = %q, want %q", got, "ph_setpoint")
	}
}

func TestLeafAndDiscoveryTopicShapes(t *testing.T) {
	if got, want := leafTopic("pfx", "ph/level"), "pfx/intellichem/ph/level"; got != want {
		t.Fatalf("leafTopic() = %q, want %q", got, want)
	}
	if got, want := statusTopic("pfx"), "pfx/intellichem/status"; got != want {
		t.Fatalf("statusTopic() = %q, want %q", got, want)
	}
	if got, want := setGlob("pfx"), "pfx/intellichem/set/#"; got != want {
		t.Fatalf("setGlob() = %q, want %q", got, want)
	}
	if got, want := discoveryTopic("pfx", "ph_level", false), "homeassistant/sensor/pfx_ph_level/config"; got != want {
		t.Fatalf("discoveryTopic(sensor) = %q, want %q", got, want)
	}
	if got, want := discoveryTopic("pfx", "comms_lost", true), "homeassistant/binary_sensor/pfx_comms_lost/config"; got != want {
		t.Fatalf("discoveryTopic(binary_sensor) = %q, want %q", got, want)
	}
}

func TestDiscoveryPayloadsCoverEveryLeaf(t *testing.T) {
	payloads, err := discoveryPayloads("pfx")
	if err != nil {
		t.Fatalf("discoveryPayloads returned error: %v", err)
	}
	want := len(leaves(chem.Status{}))
	if len(payloads) != want {
		t.Fatalf("discoveryPayloads returned %d entries, want %d", len(payloads), want)
	}
}
