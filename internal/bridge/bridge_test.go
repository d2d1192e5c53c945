package bridge

import (
	"io"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/spirilis/intellichem2mqtt/internal/bus"
	"github.com/spirilis/intellichem2mqtt/internal/chem"
)

// fakeToken is a trivially-resolved mqtt.Token.
type fakeToken struct{ err error }

func (f *fakeToken) Wait() bool                     { return true }
func (f *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (f *fakeToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (f *fakeToken) Error() error                   { return f.err }

type publishedMessage struct {
	topic    string
	payload  interface{}
	retained bool
}

// fakeBrokerClient implements brokerClient without a real connection.
type fakeBrokerClient struct {
	connected   bool
	published   []publishedMessage
	subscribed  []string
}

func (f *fakeBrokerClient) Connect() mqtt.Token {
	f.connected = true
	return &fakeToken{}
}
func (f *fakeBrokerClient) Disconnect(quiesce uint) { f.connected = false }
func (f *fakeBrokerClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.published = append(f.published, publishedMessage{topic: topic, payload: payload, retained: retained})
	return &fakeToken{}
}
func (f *fakeBrokerClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	f.subscribed = append(f.subscribed, topic)
	return &fakeToken{}
}
func (f *fakeBrokerClient) IsConnectionOpen() bool { return f.connected }

// fakeMessage implements mqtt.Message for feeding handleCommandMessage
// directly in tests, bypassing an actual subscription.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func testBridge(t *testing.T, queueSize int) (*Bridge, *fakeBrokerClient, chan bus.Command) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	stateIn := make(chan chem.Status, 1)
	commandsOut := make(chan bus.Command, queueSize)

	fc := &fakeBrokerClient{connected: true}
	b := &Bridge{client: fc, prefix: "intellichem2mqtt", stateIn: stateIn, commandsOut: commandsOut, log: log}
	return b, fc, commandsOut
}

func TestHandleCommandMessageEnqueuesValidCommand(t *testing.T) {
	b, _, commandsOut := testBridge(t, 4)

	b.handleCommandMessage(nil, &fakeMessage{
		topic:   "intellichem2mqtt/intellichem/set/ph_setpoint",
		payload: []byte("7.4"),
	})

	select {
	case cmd := <-commandsOut:
		require.Equal(t, bus.CommandSetPHSetpoint, cmd.Kind)
		require.InDelta(t, 7.4, cmd.Float, 1e-9)
	default:
		t.Fatal("expected command to be enqueued")
	}
	require.EqualValues(t, 1, b.Stats().CommandsAccepted)
}

// Scenario 6 from the spec.
func TestHandleCommandMessageRejectsOutOfRangePayload(t *testing.T) {
	b, _, commandsOut := testBridge(t, 4)

	b.handleCommandMessage(nil, &fakeMessage{
		topic:   "intellichem2mqtt/intellichem/set/ph_setpoint",
		payload: []byte("9.9"),
	})

	require.Len(t, commandsOut, 0)
	require.EqualValues(t, 1, b.Stats().CommandsRejected)
	require.EqualValues(t, 0, b.Stats().CommandsAccepted)
}

func TestHandleCommandMessageDropsOnFullQueue(t *testing.T) {
	b, _, commandsOut := testBridge(t, 1)
	commandsOut <- bus.Command{} // fill the queue

	start := time.Now()
	b.handleCommandMessage(nil, &fakeMessage{
		topic:   "intellichem2mqtt/intellichem/set/orp_setpoint",
		payload: []byte("650"),
	})
	require.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	require.EqualValues(t, 1, b.Stats().CommandsDropped)
}

func TestPublishEmitsAggregateAndLeafTopics(t *testing.T) {
	b, fc, _ := testBridge(t, 4)

	status := chem.Status{Address: 144}
	b.publish(status)

	require.NotEmpty(t, fc.published)
	require.Equal(t, statusTopic("intellichem2mqtt"), fc.published[0].topic)

	found := false
	for _, m := range fc.published {
		if m.topic == leafTopic("intellichem2mqtt", "ph/level") {
			found = true
			require.Equal(t, "0.00", m.payload)
		}
	}
	require.True(t, found, "expected a ph/level leaf publish")
	require.EqualValues(t, len(leaves(status))+1, b.Stats().Published)
}

func TestPublishSkippedWhenDisconnected(t *testing.T) {
	b, fc, _ := testBridge(t, 4)
	fc.connected = false

	b.publish(chem.Status{})

	require.Empty(t, fc.published)
	require.EqualValues(t, 0, b.Stats().Published)
}

func TestOnConnectPublishesAvailabilitySubscribesAndSendsDiscovery(t *testing.T) {
	b, fc, _ := testBridge(t, 4)

	b.onConnect(nil)

	require.Contains(t, fc.subscribed, setGlob("intellichem2mqtt"))
	foundAvailability := false
	for _, m := range fc.published {
		if m.topic == availabilityTopic("intellichem2mqtt") && m.payload == "online" {
			foundAvailability = true
		}
	}
	require.True(t, foundAvailability)
	require.Greater(t, b.Stats().DiscoverySent, uint64(0))
	require.Equal(t, BrokerConnected, b.Stats().ConnectionState)
	require.EqualValues(t, 0, b.Stats().Reconnections, "first connect is not a reconnection")

	b.onConnect(nil)
	require.EqualValues(t, 1, b.Stats().Reconnections)
}

func TestOnConnectionLostSetsErrorState(t *testing.T) {
	b, _, _ := testBridge(t, 4)
	b.onConnectionLost(nil, io.ErrClosedPipe)
	require.Equal(t, ConnectionError, b.Stats().ConnectionState)
}
