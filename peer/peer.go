package peer

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/opd-ai/rtpmidi/limits"
	"github.com/sirupsen/logrus"
)

// Options configures a Peer. The zero value is usable.
type Options struct {
	// Logger receives all peer logging. Defaults to the logrus standard
	// logger.
	Logger *logrus.Logger

	// TimeProvider supplies the clock for protocol timestamps.
	TimeProvider TimeProvider

	// OnLatency is called with the measured latency, in 100µs ticks, each
	// time a clock synchronization exchange completes.
	OnLatency func(ticks uint64)
}

// Peer is the AppleMIDI session engine for one remote endpoint.
type Peer struct {
	status      Status
	initiatorID uint32
	localSSRC   uint32
	localName   string
	remoteSSRC  uint32
	remoteName  string

	// Outbound sequencing. The ack is kept for a future journal and is
	// never advanced.
	sendSequenceNr  uint16
	sendSequenceAck uint16

	// Last sequence number seen from the remote, valid once remoteSeqSeen.
	remoteSequenceNr uint16
	remoteSeqSeen    bool

	sessionStart time.Time
	latency      uint64

	packetsReceived uint64
	packetsLost     uint64

	timeProvider TimeProvider
	onLatency    func(ticks uint64)
	log          *logrus.Entry

	buffer [limits.MTU]byte
}

// Stats is a snapshot of a Peer's session state.
type Stats struct {
	Status           Status
	InitiatorID      uint32
	LocalSSRC        uint32
	RemoteSSRC       uint32
	RemoteName       string
	Latency          time.Duration
	SendSequenceNr   uint16
	SendSequenceAck  uint16
	RemoteSequenceNr uint16
	PacketsReceived  uint64
	PacketsLost      uint64
}

// New creates a Peer advertising name, with a random local SSRC.
func New(name string, opts *Options) (*Peer, error) {
	if err := limits.ValidateName(name); err != nil {
		return nil, fmt.Errorf("invalid local name: %w", err)
	}
	if opts == nil {
		opts = &Options{}
	}

	var ssrcBytes [4]byte
	if _, err := rand.Read(ssrcBytes[:]); err != nil {
		return nil, fmt.Errorf("failed to generate SSRC: %w", err)
	}
	ssrc := binary.BigEndian.Uint32(ssrcBytes[:])

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	tp := getTimeProvider(opts.TimeProvider)

	p := &Peer{
		status:       StatusInitial,
		localSSRC:    ssrc,
		localName:    name,
		sessionStart: tp.Now(),
		timeProvider: tp,
		onLatency:    opts.OnLatency,
		log: logger.WithFields(logrus.Fields{
			"package":    "peer",
			"local_name": name,
			"local_ssrc": ssrcField(ssrc),
		}),
	}

	p.log.WithField("function", "New").Debug("Peer created")
	return p, nil
}

// Event feeds one event to the peer and returns the single resulting
// Response. Any Data in the Response is only valid until the next call.
func (p *Peer) Event(ev Event) Response {
	switch ev.Kind {
	case EventControlData:
		return p.handlePacket(ChannelControl, ev.Data)
	case EventMidiData:
		return p.handlePacket(ChannelMidi, ev.Data)
	case EventSendMidi:
		return p.frameMidi(ev.Data)
	case EventBye:
		return p.bye()
	case EventSendCk:
		return unsupported("initiator clock synchronization")
	default:
		p.log.WithFields(logrus.Fields{
			"function":   "Event",
			"event_kind": ev.Kind.String(),
		}).Error("Unknown event kind")
		return unsupported("event kind %s", ev.Kind)
	}
}

// handlePacket classifies data and dispatches it through the transition
// table.
func (p *Peer) handlePacket(channel Channel, data []byte) Response {
	if len(data) < limits.MinPacketSize {
		p.log.WithFields(logrus.Fields{
			"function":    "handlePacket",
			"channel":     channel.String(),
			"packet_size": len(data),
		}).Error("Packet too small")
		return disconnect(DisconnectBadPacket, "packet too small, need %d bytes, have %d",
			limits.MinPacketSize, len(data))
	}

	kind := Classify([4]byte(data[:4]))
	p.log.WithFields(packetFields(channel, kind, data)).WithField("status", p.status.String()).
		Debug("Got packet")

	return lookupRoute(p.status, channel, kind)(p, data)
}

// timestamp returns the time since session start in 100µs ticks.
func (p *Peer) timestamp() uint64 {
	elapsed := p.timeProvider.Now().Sub(p.sessionStart)
	if elapsed < 0 {
		return 0
	}
	return uint64(elapsed / tick)
}

// Status returns the current session status.
func (p *Peer) Status() Status {
	return p.status
}

// LocalSSRC returns this endpoint's SSRC.
func (p *Peer) LocalSSRC() uint32 {
	return p.localSSRC
}

// LocalName returns the name advertised in handshake replies.
func (p *Peer) LocalName() string {
	return p.localName
}

// RemoteSSRC returns the remote SSRC, 0 before the control handshake.
func (p *Peer) RemoteSSRC() uint32 {
	return p.remoteSSRC
}

// RemoteName returns the name the remote announced in its invitation.
func (p *Peer) RemoteName() string {
	return p.remoteName
}

// InitiatorID returns the initiator token of the session.
func (p *Peer) InitiatorID() uint32 {
	return p.initiatorID
}

// Latency returns the last measured latency in 100µs ticks, 0 before the
// first completed clock synchronization.
func (p *Peer) Latency() uint64 {
	return p.latency
}

// Stats returns a snapshot of the session.
func (p *Peer) Stats() Stats {
	return Stats{
		Status:           p.status,
		InitiatorID:      p.initiatorID,
		LocalSSRC:        p.localSSRC,
		RemoteSSRC:       p.remoteSSRC,
		RemoteName:       p.remoteName,
		Latency:          TicksToDuration(p.latency),
		SendSequenceNr:   p.sendSequenceNr,
		SendSequenceAck:  p.sendSequenceAck,
		RemoteSequenceNr: p.remoteSequenceNr,
		PacketsReceived:  p.packetsReceived,
		PacketsLost:      p.packetsLost,
	}
}

// String describes the peer for logs.
func (p *Peer) String() string {
	return fmt.Sprintf("peer %q [%08X] <-> %q [%08X] (%s)",
		p.localName, p.localSSRC, p.remoteName, p.remoteSSRC, p.status)
}
