// Package bus implements the bus poller (C4): owns the RS-485 serial
// device and its direction-control line, schedules periodic status
// polls, drains the receiver through the stream resynchronizer (C2)
// and status decoder (C3), dispatches outbound commands, and exposes a
// last-known-state snapshot plus statistics to the publisher/consumer
// (C5).
//
// Grounded on the teacher's RunNPI main select-loop
// (spirilis-smacbase/npi_phy.go): a dedicated reader goroutine feeding
// a channel, a single owning goroutine driving a select over ticks,
// inbound commands, and received bytes, and LinkMgr's PendChan/
// time.After timeout idiom reused here for inter-byte response gaps.
package bus

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/spirilis/intellichem2mqtt/internal/chem"
	"github.com/spirilis/intellichem2mqtt/internal/protocol"
	"github.com/spirilis/intellichem2mqtt/internal/resync"
)

// ReadWriteCloser is the minimal transport contract the poller needs;
// satisfied both by the io.ReadWriteCloser that jacobsa/go-serial's
// serial.Open returns (see OpenSerial) and by internal/transport.Fake in
// tests.
type ReadWriteCloser interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Config holds the poller's tunables, defaulted per spec.md §4.4/§6.
type Config struct {
	Address           byte // controller's IntelliChem address, 144-158
	PollInterval      time.Duration
	LivenessThreshold time.Duration
	StateQueueSize    int
	CommandQueueSize  int
}

// DefaultConfig returns the spec's defaults: address 144, 30s poll
// interval, 30s liveness threshold.
func DefaultConfig() Config {
	return Config{
		Address:           protocol.DefaultAddress,
		PollInterval:      30 * time.Second,
		LivenessThreshold: 30 * time.Second,
		StateQueueSize:    4,
		CommandQueueSize:  8,
	}
}

// Poller is C4. Exactly one goroutine should call Run; ForcePoll,
// LastStatus, Stats, and Commands/StateUpdates are safe to call from
// any goroutine.
type Poller struct {
	phy ReadWriteCloser
	dir DirectionController
	cfg Config
	log logrus.FieldLogger

	ring *resync.RingBuffer

	mu           sync.Mutex
	lastStatus   *chem.Status
	lastSettings chem.Settings
	haveSettings bool
	lastUpdateAt time.Time

	counters statCounters

	commands chan Command
	stateOut chan chem.Status

	// responseTimer and awaitingResponse implement the AwaitResponse
	// state from spec.md §4.4: armed after every poll/command transmit,
	// re-armed on each received chunk while pending, and disarmed once a
	// status frame decodes. Both are owned exclusively
	// by the Run goroutine, mirroring LinkMgr's PendChan/time.After
	// idiom for a single pending-response slot.
	responseTimer    *time.Timer
	awaitingResponse bool

	sleep func(time.Duration)
	now   func() time.Time
}

// New constructs a Poller. dir may be nil, in which case direction
// toggling is a no-op (auto-direction transceiver, per spec.md §6's
// negative-pin convention).
func New(phy ReadWriteCloser, dir DirectionController, cfg Config, log logrus.FieldLogger) *Poller {
	if dir == nil {
		dir = NoopDirectionController{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Poller{
		phy:           phy,
		dir:           dir,
		cfg:           cfg,
		log:           log,
		ring:          resync.New(),
		commands:      make(chan Command, cfg.CommandQueueSize),
		stateOut:      make(chan chem.Status, cfg.StateQueueSize),
		responseTimer: newStoppedTimer(),
		sleep:         time.Sleep,
		now:           time.Now,
	}
}

// newStoppedTimer returns a timer that has already fired and been
// drained, ready for Reset by armResponseWindow.
func newStoppedTimer() *time.Timer {
	t := time.NewTimer(0)
	if !t.Stop() {
		<-t.C
	}
	return t
}

// Commands returns the send-only handle C5 enqueues commands onto.
func (p *Poller) Commands() chan<- Command { return p.commands }

// StateUpdates returns the receive-only handle C5 drains status
// snapshots from.
func (p *Poller) StateUpdates() <-chan chem.Status { return p.stateOut }

// ForcePoll enqueues an immediate-poll marker on the same FIFO as
// settings commands. It never blocks; if the command queue is full the
// request is dropped and logged, matching the "never block the caller"
// discipline applied to every producer-side enqueue in this system.
func (p *Poller) ForcePoll() {
	select {
	case p.commands <- Command{Kind: CommandForcePoll}:
	default:
		p.log.Warn("bus: force_poll dropped, command queue full")
	}
}

// LastStatus returns the most recently decoded status and whether one
// has ever been received.
func (p *Poller) LastStatus() (chem.Status, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastStatus == nil {
		return chem.Status{}, false
	}
	return *p.lastStatus, true
}

// Stats returns a snapshot of the poller's counters, including the
// ring buffer's own counters and the staleness flag derived from the
// liveness threshold.
func (p *Poller) Stats() Stats {
	rs := p.ring.Stats()
	p.mu.Lock()
	stale := p.isStaleLocked()
	p.mu.Unlock()
	return Stats{
		Polls:       p.counters.polls.Load(),
		Responses:   p.counters.responses.Load(),
		Errors:      p.counters.errors.Load(),
		BytesIn:     rs.BytesIn,
		FramesOK:    rs.FramesOK,
		BadChecksum: rs.BadChecksum,
		Overflow:    rs.Overflow,
		Resync:      rs.Resync,
		Stale:       stale,
	}
}

func (p *Poller) isStaleLocked() bool {
	if p.lastStatus == nil {
		return true
	}
	return p.now().Sub(p.lastUpdateAt) > p.cfg.LivenessThreshold
}

// Run drives the poller's main loop until ctx is cancelled. On
// cancellation it releases the direction line back to Rx and closes
// the serial device, per spec.md §5's cancellation protocol.
func (p *Poller) Run(ctx context.Context) {
	rxChan := make(chan []byte, 8)
	errChan := make(chan error, 1)
	go p.readLoop(ctx, rxChan, errChan)

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	frameBuf := make([]byte, protocol.MinFrameLen+protocol.MaxPayloadLen)

	for {
		select {
		case <-ctx.Done():
			p.responseTimer.Stop()
			_ = p.dir.SetTransmit(false)
			_ = p.phy.Close()
			return

		case <-ticker.C:
			p.poll()

		case cmd := <-p.commands:
			if cmd.Kind == CommandForcePoll {
				p.poll()
				continue
			}
			p.handleCommand(cmd)

		case data, ok := <-rxChan:
			if !ok {
				continue
			}
			if p.awaitingResponse {
				p.armResponseWindow() // restart the inter-byte gap window
			}
			p.ring.Push(data)
			p.drainFrames(frameBuf)

		case err := <-errChan:
			p.log.WithError(err).Warn("bus: uart read error, flushing receiver")
			p.counters.errors.Add(1)
			p.ring.Reset()

		case <-p.responseTimer.C:
			if p.awaitingResponse {
				p.awaitingResponse = false
				p.log.Warn("bus: await-response window elapsed, abandoning pending response")
				p.counters.errors.Add(1)
			}
		}
	}
}

// readLoop runs for the lifetime of ctx. A Read error is reported on
// errs but never terminates the loop (per spec.md §7: nothing in the
// core is fatal, the poller never terminates on individual errors) —
// only ctx cancellation stops it. A short backoff avoids spinning the
// CPU if the transport fails every Read outright (e.g. device unplugged).
func (p *Poller) readLoop(ctx context.Context, out chan<- []byte, errs chan<- error) {
	buf := make([]byte, 256)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := p.phy.Read(buf)
		if err != nil {
			select {
			case errs <- err:
			default:
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		if n == 0 {
			continue
		}
		cp := make([]byte, n)
		copy(cp, buf[:n])
		select {
		case out <- cp:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) drainFrames(buf []byte) {
	for {
		n, ok := p.ring.TryTakeFrame(buf)
		if !ok {
			return
		}
		p.handleFrame(buf[:n])
	}
}

func (p *Poller) handleFrame(frame []byte) {
	action := protocol.Action(frame)
	if action == protocol.ActionBroadcast {
		return // observed on the bus, silently ignored per spec.md §3
	}
	if action != protocol.ActionStatusResponse {
		return
	}

	status, err := chem.Decode(frame, p.now().UnixMilli())
	if err != nil {
		p.log.WithError(err).Warn("bus: status decode rejected frame")
		return
	}

	p.counters.responses.Add(1)
	p.disarmResponseWindow()

	p.mu.Lock()
	snapshot := status
	p.lastStatus = &snapshot
	p.lastSettings = chem.SettingsFromStatus(status)
	p.haveSettings = true
	p.lastUpdateAt = p.now()
	p.mu.Unlock()

	p.offerState(status)
}

// offerState implements the state queue's drop-oldest backpressure
// policy: never block the bus loop waiting for a consumer. If the
// queue is full, the oldest entry is evicted to make room for the
// newest snapshot.
func (p *Poller) offerState(status chem.Status) {
	select {
	case p.stateOut <- status:
		return
	default:
	}
	select {
	case <-p.stateOut:
	default:
	}
	select {
	case p.stateOut <- status:
	default:
	}
}

// armResponseWindow arms the AwaitResponse timeout (spec.md §4.4). Run
// re-arms it on every received chunk while a response is pending, so
// the window measures the gap since the transmit or the last received
// byte; if it elapses before a status frame decodes, the pending
// response is abandoned by Run's responseTimer.C case.
func (p *Poller) armResponseWindow() {
	p.disarmResponseWindow()
	p.responseTimer.Reset(awaitResponseWindow)
	p.awaitingResponse = true
}

// disarmResponseWindow stops and drains the timer so a stale fire can't
// leak into a later armResponseWindow cycle.
func (p *Poller) disarmResponseWindow() {
	if !p.responseTimer.Stop() {
		select {
		case <-p.responseTimer.C:
		default:
		}
	}
	p.awaitingResponse = false
}

func (p *Poller) poll() {
	p.counters.polls.Add(1)

	frame, err := protocol.Build(p.cfg.Address, protocol.SourceController, protocol.ActionStatusRequest, nil)
	if err != nil {
		p.log.WithError(err).Error("bus: failed to build status request")
		p.counters.errors.Add(1)
		return
	}

	if err := transmit(p.dir, p.phy.Write, frame, p.sleep); err != nil {
		p.log.WithError(err).Warn("bus: status request transmit failed")
		p.counters.errors.Add(1)
		return
	}
	p.armResponseWindow()
}

func (p *Poller) handleCommand(cmd Command) {
	p.mu.Lock()
	settings := p.lastSettings
	haveSettings := p.haveSettings
	p.mu.Unlock()

	if !haveSettings {
		p.log.Warn("bus: command dropped, no baseline status decoded yet")
		p.counters.errors.Add(1)
		return
	}

	updated := apply(settings, cmd)
	frame, err := chem.Encode(p.cfg.Address, updated)
	if err != nil {
		p.log.WithError(err).Warn("bus: command dropped, settings encode failed")
		p.counters.errors.Add(1)
		return
	}

	if err := transmit(p.dir, p.phy.Write, frame, p.sleep); err != nil {
		p.log.WithError(err).Warn("bus: command transmit failed")
		p.counters.errors.Add(1)
		return
	}
	p.armResponseWindow()

	p.mu.Lock()
	p.lastSettings = updated
	p.mu.Unlock()
}
