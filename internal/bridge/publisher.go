package bridge

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/spirilis/intellichem2mqtt/internal/bus"
	"github.com/spirilis/intellichem2mqtt/internal/chem"
)

// brokerClient is the subset of mqtt.Client the bridge needs, narrowed
// so tests can supply a fake without standing up a real broker
// connection. *paho's concrete client satisfies this automatically.
type brokerClient interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	IsConnectionOpen() bool
}

// Bridge is C5: it fans bus poller status snapshots out to MQTT topics
// and turns inbound command-topic messages into bus.Command values.
//
// Grounded on the teacher's LinkMgr being the single owner of its
// channels and dispatch table (npi_linkmgr.go); here the broker client
// callback plays the role of LinkMgr's RX dispatch goroutine, and
// Bridge.Run's loop plays the role of its TX drain loop.
type Bridge struct {
	client        brokerClient
	prefix        string
	stateIn       <-chan chem.Status
	commandsOut   chan<- bus.Command
	log           logrus.FieldLogger
	counters      statCounters
	everConnected atomic.Bool
}

// New wires the availability last-will, auto-reconnect, and connection
// handlers onto opts and constructs the underlying paho client. Callers
// own broker address/credential/client-ID configuration on opts before
// calling New.
func New(opts *mqtt.ClientOptions, prefix string, stateIn <-chan chem.Status, commandsOut chan<- bus.Command, log logrus.FieldLogger) *Bridge {
	if log == nil {
		log = logrus.StandardLogger()
	}
	b := &Bridge{prefix: prefix, stateIn: stateIn, commandsOut: commandsOut, log: log}

	opts.SetWill(availabilityTopic(prefix), "offline", 1, true)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(b.onConnect)
	opts.SetConnectionLostHandler(b.onConnectionLost)

	b.client = mqtt.NewClient(opts)
	return b
}

// Connect blocks until the initial broker connection succeeds or fails.
// Subsequent reconnects are handled by paho's AutoReconnect and
// reported through Stats().ConnectionState.
func (b *Bridge) Connect() error {
	token := b.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("bridge: connect timed out")
	}
	return token.Error()
}

func (b *Bridge) onConnect(_ mqtt.Client) {
	b.counters.connectionState.Store(int32(BrokerConnected))
	if b.everConnected.Swap(true) {
		b.counters.reconnections.Add(1)
	}

	if token := b.client.Publish(availabilityTopic(b.prefix), 1, true, "online"); token.Wait() && token.Error() != nil {
		b.log.WithError(token.Error()).Warn("bridge: availability publish failed")
	}
	if token := b.client.Subscribe(setGlob(b.prefix), 1, b.handleCommandMessage); token.Wait() && token.Error() != nil {
		b.log.WithError(token.Error()).Error("bridge: command subscribe failed")
	}
	b.publishDiscovery()
}

func (b *Bridge) onConnectionLost(_ mqtt.Client, err error) {
	b.counters.connectionState.Store(int32(ConnectionError))
	b.log.WithError(err).Warn("bridge: broker connection lost")
}

func (b *Bridge) publishDiscovery() {
	payloads, err := discoveryPayloads(b.prefix)
	if err != nil {
		b.log.WithError(err).Error("bridge: discovery payload generation failed")
		return
	}
	for _, p := range payloads {
		token := b.client.Publish(p[0], 0, true, p[1])
		if token.Wait() && token.Error() != nil {
			b.log.WithError(token.Error()).WithField("topic", p[0]).Warn("bridge: discovery publish failed")
			continue
		}
		b.counters.discoverySent.Add(1)
	}
}

// handleCommandMessage is the broker-client callback. Per spec.md §5 it
// must not block, must not invoke C3 directly, and must only enqueue a
// parsed command — enforced here by bounding the enqueue wait at 100ms
// and doing nothing beyond parseCommand's pure grammar check.
func (b *Bridge) handleCommandMessage(_ mqtt.Client, msg mqtt.Message) {
	name := commandName(msg.Topic())
	cmd, ok := parseCommand(name, string(msg.Payload()))
	if !ok {
		b.counters.commandsRejected.Add(1)
		b.log.WithField("command", name).Warn("bridge: command rejected")
		return
	}

	select {
	case b.commandsOut <- cmd:
		b.counters.commandsAccepted.Add(1)
	case <-time.After(100 * time.Millisecond):
		b.counters.commandsDropped.Add(1)
		b.log.WithField("command", name).Warn("bridge: command dropped, queue full")
	}
}

// Run drives the publish loop until ctx is cancelled. On cancellation
// it best-effort publishes the offline availability payload (bounded to
// 100ms) and disconnects, per spec.md §5's cancellation protocol.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.shutdown()
			return
		case status, ok := <-b.stateIn:
			if !ok {
				b.shutdown()
				return
			}
			b.publish(status)
		}
	}
}

func (b *Bridge) publish(status chem.Status) {
	if !b.client.IsConnectionOpen() {
		return // suppressed per spec.md §4.5: skip, next snapshot carries fresh values
	}

	body, err := marshalStatus(status)
	if err != nil {
		b.log.WithError(err).Error("bridge: status JSON marshal failed")
		return
	}
	if token := b.client.Publish(statusTopic(b.prefix), 0, false, body); token.Wait() && token.Error() != nil {
		b.log.WithError(token.Error()).Warn("bridge: aggregate status publish failed")
	} else {
		b.counters.published.Add(1)
	}

	for _, l := range leaves(status) {
		token := b.client.Publish(leafTopic(b.prefix, l.path), 0, false, l.value)
		if token.Wait() && token.Error() != nil {
			b.log.WithError(token.Error()).WithField("topic", l.path).Warn("bridge: leaf publish failed")
			continue
		}
		b.counters.published.Add(1)
	}
}

func (b *Bridge) shutdown() {
	done := make(chan struct{})
	go func() {
		token := b.client.Publish(availabilityTopic(b.prefix), 1, true, "offline")
		token.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
	}
	b.client.Disconnect(250)
}

// Stats returns a snapshot of the bridge's counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Published:        b.counters.published.Load(),
		Reconnections:    b.counters.reconnections.Load(),
		DiscoverySent:    b.counters.discoverySent.Load(),
		CommandsAccepted: b.counters.commandsAccepted.Load(),
		CommandsRejected: b.counters.commandsRejected.Load(),
		CommandsDropped:  b.counters.commandsDropped.Load(),
		ConnectionState:  ConnectionState(b.counters.connectionState.Load()),
	}
}
