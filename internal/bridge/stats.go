package bridge

import "sync/atomic"

// ConnectionState mirrors spec.md §6's stats() connection_state enum.
// NetConnecting/NetConnected are Wi-Fi-level states owned by a
// collaborator out of scope here (SPEC_FULL.md §4.5's added
// connection-state supplement). This bridge reports Disconnected until
// its first connect, BrokerConnected on each (re)connect, and Error on
// connection loss. It never reports BrokerConnecting, NetConnecting or
// NetConnected, and has no setter through which a caller could supply
// them.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	NetConnecting
	NetConnected
	BrokerConnecting
	BrokerConnected
	ConnectionError
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case NetConnecting:
		return "NetConnecting"
	case NetConnected:
		return "NetConnected"
	case BrokerConnecting:
		return "BrokerConnecting"
	case BrokerConnected:
		return "BrokerConnected"
	case ConnectionError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Stats is a snapshot of the publisher/consumer's counters.
//
// CommandsRejected counts parse/range failures (spec.md §8 scenario
// 6's "parse-error counter"); CommandsDropped counts otherwise-valid
// commands discarded because the bounded command queue was full.
type Stats struct {
	Published        uint64
	Reconnections    uint64
	DiscoverySent    uint64
	CommandsAccepted uint64
	CommandsRejected uint64
	CommandsDropped  uint64
	ConnectionState  ConnectionState
}

type statCounters struct {
	published        atomic.Uint64
	reconnections    atomic.Uint64
	discoverySent    atomic.Uint64
	commandsAccepted atomic.Uint64
	commandsRejected atomic.Uint64
	commandsDropped  atomic.Uint64
	connectionState  atomic.Int32
}
