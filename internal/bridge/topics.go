// Package bridge implements the publisher/consumer (C5): it fans a bus
// poller's status snapshots out to MQTT topics and turns inbound
// command-topic messages into typed bus.Command values.
//
// Grounded on the teacher's LinkMgr handler-registry dispatch idiom
// (spirilis-smacbase/npi_linkmgr.go): a map keyed by a small identifier
// dispatching to a handler function. Here the same idea takes two
// plainer forms — an ordered leaf list keyed by status leaf path for
// publication (leaves), and a switch keyed by command name for the
// subscribe side (parseCommand) — in place of LinkMgr's
// program-ID/address keys.
package bridge

import "strings"

const (
	statusSuffix       = "intellichem/status"
	availabilitySuffix = "intellichem/availability"
	setGlobSuffix      = "intellichem/set/#"
	setPrefixSuffix    = "intellichem/set/"

	discoverySensorPrefix       = "homeassistant/sensor/"
	discoveryBinarySensorPrefix = "homeassistant/binary_sensor/"
)

// statusTopic is the single aggregate-JSON status topic.
func statusTopic(prefix string) string { return prefix + "/" + statusSuffix }

// availabilityTopic carries the retained online/offline last-will payload.
func availabilityTopic(prefix string) string { return prefix + "/" + availabilitySuffix }

// setGlob is the subscribe-side wildcard for inbound commands.
func setGlob(prefix string) string { return prefix + "/" + setGlobSuffix }

// leafTopic builds the per-field publish topic for a status leaf path
// such as "ph/level" or "alarms/flow".
func leafTopic(prefix, path string) string {
	return prefix + "/intellichem/" + path
}

// discoveryTopic builds the Home Assistant discovery config topic for a
// leaf path, using the binary_sensor component for boolean leaves.
func discoveryTopic(prefix, objectIDSuffix string, isBoolean bool) string {
	component := discoverySensorPrefix
	if isBoolean {
		component = discoveryBinarySensorPrefix
	}
	return component + prefix + "_" + objectIDSuffix + "/config"
}

// commandName extracts the trailing path segment of an inbound command
// topic, e.g. "intellichem2mqtt/intellichem/set/ph_setpoint" -> "ph_setpoint".
func commandName(topic string) string {
	idx := strings.LastIndex(topic, "/")
	if idx < 0 {
		return topic
	}
	return topic[idx+1:]
}
