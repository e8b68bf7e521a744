package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"

	"github.com/opd-ai/rtpmidi/limits"
	"github.com/opd-ai/rtpmidi/metrics"
	"github.com/opd-ai/rtpmidi/peer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// pairAttempts bounds the search for two consecutive free ports when
// ControlPort is zero.
const pairAttempts = 32

// Drop causes reported on the datagrams_dropped_total metric.
const (
	dropInvalid     = "invalid"
	dropUnroutable  = "unroutable"
	dropUnknownSSRC = "unknown_ssrc"
	dropPeerLimit   = "peer_limit"
)

var (
	// ErrUnknownPeer is returned when no session exists for an SSRC.
	ErrUnknownPeer = errors.New("transport: unknown peer")
	// ErrPeerLimit is returned when MaxPeers sessions already exist.
	ErrPeerLimit = errors.New("transport: peer limit reached")
	// ErrClosed is returned by operations on a closed Server.
	ErrClosed = errors.New("transport: server closed")
)

// Options configures a Server.
type Options struct {
	// Name is advertised to remotes in handshake replies.
	Name string
	// BindAddress is the local IP both sockets listen on.
	BindAddress string
	// ControlPort is the control socket port. The MIDI socket uses
	// ControlPort+1. Zero picks a free consecutive pair.
	ControlPort int
	// MaxPeers bounds the number of concurrent sessions.
	MaxPeers int

	Logger       *logrus.Logger
	Metrics      *metrics.Metrics
	TimeProvider peer.TimeProvider
}

// MidiMessage is one MIDI command section received from a remote.
type MidiMessage struct {
	SSRC       uint32
	RemoteName string
	Payload    []byte
}

// MidiHandler consumes received MIDI. It runs on the MIDI receive
// goroutine, so a slow handler delays subsequent datagrams.
type MidiHandler func(msg MidiMessage)

// session pairs a Peer with the remote addresses it was last heard from.
type session struct {
	mu          sync.Mutex
	peer        *peer.Peer
	controlAddr net.Addr
	midiAddr    net.Addr
	lost        uint64
}

// outcome is a Response detached from the peer's scratch buffer.
type outcome struct {
	resp       peer.Response
	addr       net.Addr
	remoteName string
	lostDelta  uint64
}

// Server runs AppleMIDI sessions on a control and a MIDI UDP socket.
type Server struct {
	opts    Options
	log     *logrus.Entry
	metrics *metrics.Metrics

	control net.PacketConn
	midi    net.PacketConn

	mu       sync.RWMutex
	sessions map[uint32]*session
	handler  MidiHandler

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewServer binds the control and MIDI sockets and starts receiving.
func NewServer(opts *Options) (*Server, error) {
	if opts == nil {
		return nil, errors.New("options cannot be nil")
	}
	if err := limits.ValidateName(opts.Name); err != nil {
		return nil, fmt.Errorf("invalid name: %w", err)
	}
	if opts.MaxPeers < 1 {
		return nil, fmt.Errorf("max peers must be at least 1, got %d", opts.MaxPeers)
	}

	o := *opts
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NewMetrics(prometheus.NewRegistry())
	}

	control, midi, err := listenPair(o.BindAddress, o.ControlPort)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		opts:     o,
		metrics:  o.Metrics,
		control:  control,
		midi:     midi,
		sessions: make(map[uint32]*session),
		ctx:      ctx,
		cancel:   cancel,
		log: o.Logger.WithFields(logrus.Fields{
			"package": "transport",
			"name":    o.Name,
		}),
	}

	s.wg.Add(2)
	go s.receiveLoop(peer.ChannelControl, control)
	go s.receiveLoop(peer.ChannelMidi, midi)

	s.log.WithFields(logrus.Fields{
		"function":     "NewServer",
		"control_addr": control.LocalAddr().String(),
		"midi_addr":    midi.LocalAddr().String(),
		"max_peers":    o.MaxPeers,
	}).Info("RTP-MIDI server listening")

	return s, nil
}

// listenPair binds the control socket on port and the MIDI socket on
// port+1.
func listenPair(bindAddress string, port int) (control, midi net.PacketConn, err error) {
	if port != 0 {
		return listenAt(bindAddress, port)
	}

	for attempt := 0; attempt < pairAttempts; attempt++ {
		control, err = net.ListenPacket("udp", net.JoinHostPort(bindAddress, "0"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to listen on control socket: %w", err)
		}
		next := control.LocalAddr().(*net.UDPAddr).Port + 1
		if next <= 65535 {
			midi, err = net.ListenPacket("udp", net.JoinHostPort(bindAddress, strconv.Itoa(next)))
			if err == nil {
				return control, midi, nil
			}
		}
		control.Close()
	}
	return nil, nil, fmt.Errorf("no free consecutive UDP port pair after %d attempts", pairAttempts)
}

func listenAt(bindAddress string, port int) (control, midi net.PacketConn, err error) {
	control, err = net.ListenPacket("udp", net.JoinHostPort(bindAddress, strconv.Itoa(port)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on control port %d: %w", port, err)
	}
	midi, err = net.ListenPacket("udp", net.JoinHostPort(bindAddress, strconv.Itoa(port+1)))
	if err != nil {
		control.Close()
		return nil, nil, fmt.Errorf("failed to listen on MIDI port %d: %w", port+1, err)
	}
	return control, midi, nil
}

// OnMidi registers the consumer of received MIDI command sections.
func (s *Server) OnMidi(handler MidiHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// ControlAddr returns the local address of the control socket.
func (s *Server) ControlAddr() net.Addr {
	return s.control.LocalAddr()
}

// MidiAddr returns the local address of the MIDI socket.
func (s *Server) MidiAddr() net.Addr {
	return s.midi.LocalAddr()
}

// Peers returns a snapshot of every session, ordered by remote SSRC.
func (s *Server) Peers() []peer.Stats {
	s.mu.RLock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	stats := make([]peer.Stats, 0, len(sessions))
	for _, sess := range sessions {
		sess.mu.Lock()
		stats = append(stats, sess.peer.Stats())
		sess.mu.Unlock()
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].RemoteSSRC < stats[j].RemoteSSRC })
	return stats
}

// SendMidi sends one MIDI command section to the remote with the given
// SSRC.
func (s *Server) SendMidi(ssrc uint32, commands []byte) error {
	if s.ctx.Err() != nil {
		return ErrClosed
	}
	sess := s.lookup(ssrc)
	if sess == nil {
		return fmt.Errorf("%w: %08X", ErrUnknownPeer, ssrc)
	}

	out := s.apply(sess, peer.SendMidi(commands), nil)
	s.act(ssrc, sess, out)

	switch out.resp.Kind {
	case peer.ResponseDisconnect, peer.ResponseUnsupported:
		return out.resp.Err
	}
	return nil
}

// Broadcast sends one MIDI command section to every connected remote and
// returns how many it was sent to.
func (s *Server) Broadcast(commands []byte) int {
	sent := 0
	for _, st := range s.Peers() {
		if st.Status != peer.StatusConnected {
			continue
		}
		if err := s.SendMidi(st.RemoteSSRC, commands); err != nil {
			s.log.WithFields(logrus.Fields{
				"function":    "Broadcast",
				"remote_ssrc": fmt.Sprintf("%08X", st.RemoteSSRC),
				"error":       err.Error(),
			}).Warn("Failed to send MIDI")
			continue
		}
		sent++
	}
	return sent
}

// RemovePeer ends the session with the remote with the given SSRC, sending
// it a BY when the session got far enough to have a control address.
func (s *Server) RemovePeer(ssrc uint32) error {
	if s.ctx.Err() != nil {
		return ErrClosed
	}
	sess := s.lookup(ssrc)
	if sess == nil {
		return fmt.Errorf("%w: %08X", ErrUnknownPeer, ssrc)
	}

	out := s.apply(sess, peer.Bye(), nil)
	if out.resp.Kind == peer.ResponseNetworkControlData {
		s.write(s.control, peer.ChannelControl, out.resp.Data, out.addr)
	}
	s.removeSession(ssrc, sess, peer.Response{
		Kind:   peer.ResponseDisconnect,
		Reason: peer.DisconnectRequested,
	})
	return nil
}

// Close says goodbye to every remote, closes both sockets and waits for the
// receive goroutines until ctx expires.
func (s *Server) Close(ctx context.Context) error {
	var closeErr error
	s.closeOnce.Do(func() {
		s.cancel()

		s.mu.Lock()
		sessions := s.sessions
		s.sessions = make(map[uint32]*session)
		s.mu.Unlock()

		for ssrc, sess := range sessions {
			out := s.apply(sess, peer.Bye(), nil)
			if out.resp.Kind == peer.ResponseNetworkControlData {
				s.write(s.control, peer.ChannelControl, out.resp.Data, out.addr)
			}
			s.metrics.ActivePeers.Dec()
			s.metrics.Disconnects.WithLabelValues(peer.DisconnectRequested.String()).Inc()
			s.log.WithFields(logrus.Fields{
				"function":    "Close",
				"remote_ssrc": fmt.Sprintf("%08X", ssrc),
			}).Debug("Session closed")
		}

		closeErr = errors.Join(s.control.Close(), s.midi.Close())

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			closeErr = errors.Join(closeErr, ctx.Err())
		}

		s.log.WithField("function", "Close").Info("RTP-MIDI server stopped")
	})
	return closeErr
}

// receiveLoop reads datagrams from one socket until it is closed.
func (s *Server) receiveLoop(channel peer.Channel, conn net.PacketConn) {
	defer s.wg.Done()

	// One byte over the MTU so oversized datagrams are detected rather than
	// silently truncated to a valid length.
	buffer := make([]byte, limits.MTU+1)
	for {
		n, addr, err := conn.ReadFrom(buffer)
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.WithFields(logrus.Fields{
				"function": "receiveLoop",
				"channel":  channel.String(),
				"error":    err.Error(),
			}).Warn("Failed to read datagram")
			continue
		}
		s.handleDatagram(channel, buffer[:n], addr)
	}
}

// handleDatagram routes one datagram to its session, creating a session
// for a control channel invitation from a new SSRC.
func (s *Server) handleDatagram(channel peer.Channel, data []byte, addr net.Addr) {
	s.metrics.DatagramsReceived.WithLabelValues(channel.String()).Inc()

	if err := limits.ValidateDatagram(data); err != nil {
		s.drop(dropInvalid, channel, addr, err.Error())
		return
	}

	kind := classify(data)
	ssrc, ok := senderSSRC(kind, data)
	if !ok {
		s.drop(dropUnroutable, channel, addr, kind.String())
		return
	}

	sess := s.lookup(ssrc)
	if sess == nil {
		if kind != peer.PacketIN || channel != peer.ChannelControl {
			s.drop(dropUnknownSSRC, channel, addr, kind.String())
			return
		}
		var err error
		if sess, err = s.createSession(ssrc); err != nil {
			s.drop(dropPeerLimit, channel, addr, err.Error())
			return
		}
	}

	var ev peer.Event
	if channel == peer.ChannelControl {
		ev = peer.ControlData(data)
	} else {
		ev = peer.MidiData(data)
	}
	s.act(ssrc, sess, s.apply(sess, ev, &remote{channel: channel, addr: addr}))
}

// remote is where a datagram came from.
type remote struct {
	channel peer.Channel
	addr    net.Addr
}

// apply runs one event under the session lock and detaches the result from
// the peer's buffer.
func (s *Server) apply(sess *session, ev peer.Event, from *remote) outcome {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if from != nil {
		if from.channel == peer.ChannelControl {
			sess.controlAddr = from.addr
		} else {
			sess.midiAddr = from.addr
		}
	}

	resp := sess.peer.Event(ev)
	if resp.Data != nil {
		resp.Data = append([]byte(nil), resp.Data...)
	}

	out := outcome{resp: resp, remoteName: sess.peer.RemoteName()}
	switch resp.Kind {
	case peer.ResponseNetworkControlData:
		out.addr = sess.controlAddr
	case peer.ResponseNetworkMidiData:
		out.addr = sess.midiAddr
	}

	if lost := sess.peer.Stats().PacketsLost; lost > sess.lost {
		out.lostDelta = lost - sess.lost
		sess.lost = lost
	}
	return out
}

// act carries out a detached Response for sess, keyed by ssrc.
func (s *Server) act(ssrc uint32, sess *session, out outcome) {
	resp := out.resp
	s.metrics.Responses.WithLabelValues(resp.Kind.String()).Inc()
	if out.lostDelta > 0 {
		s.metrics.PacketsLost.Add(float64(out.lostDelta))
	}

	switch resp.Kind {
	case peer.ResponseDoNothing:
	case peer.ResponseNetworkControlData:
		s.write(s.control, peer.ChannelControl, resp.Data, out.addr)
	case peer.ResponseNetworkMidiData:
		s.write(s.midi, peer.ChannelMidi, resp.Data, out.addr)
	case peer.ResponseMidiData:
		s.mu.RLock()
		handler := s.handler
		s.mu.RUnlock()
		if handler != nil {
			handler(MidiMessage{SSRC: ssrc, RemoteName: out.remoteName, Payload: resp.Data})
		}
	case peer.ResponseDisconnect:
		s.removeSession(ssrc, sess, resp)
	case peer.ResponseUnsupported:
		s.log.WithFields(logrus.Fields{
			"function":    "act",
			"remote_ssrc": fmt.Sprintf("%08X", ssrc),
			"error":       fmt.Sprint(resp.Err),
		}).Debug("Unsupported request ignored")
	}
}

func (s *Server) write(conn net.PacketConn, channel peer.Channel, data []byte, addr net.Addr) {
	logger := s.log.WithFields(logrus.Fields{
		"function": "write",
		"channel":  channel.String(),
		"size":     len(data),
	})
	if addr == nil {
		logger.Warn("No remote address known for channel, dropping reply")
		return
	}
	if _, err := conn.WriteTo(data, addr); err != nil {
		logger.WithFields(logrus.Fields{
			"remote_addr": addr.String(),
			"error":       err.Error(),
		}).Warn("Failed to send datagram")
		return
	}
	s.metrics.DatagramsSent.WithLabelValues(channel.String()).Inc()
}

func (s *Server) lookup(ssrc uint32) *session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[ssrc]
}

func (s *Server) createSession(ssrc uint32) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return nil, ErrClosed
	}
	if sess, ok := s.sessions[ssrc]; ok {
		return sess, nil
	}
	if len(s.sessions) >= s.opts.MaxPeers {
		return nil, fmt.Errorf("%w: %d", ErrPeerLimit, s.opts.MaxPeers)
	}

	p, err := peer.New(s.opts.Name, &peer.Options{
		Logger:       s.opts.Logger,
		TimeProvider: s.opts.TimeProvider,
		OnLatency: func(ticks uint64) {
			s.metrics.ObserveLatency(peer.TicksToDuration(ticks))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer: %w", err)
	}

	sess := &session{peer: p}
	s.sessions[ssrc] = sess
	s.metrics.PeersCreated.Inc()
	s.metrics.ActivePeers.Inc()
	return sess, nil
}

// removeSession deletes sess from the table. A newer session registered
// under the same SSRC is left alone.
func (s *Server) removeSession(ssrc uint32, sess *session, resp peer.Response) {
	s.mu.Lock()
	current, ok := s.sessions[ssrc]
	ok = ok && current == sess
	if ok {
		delete(s.sessions, ssrc)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	s.metrics.ActivePeers.Dec()
	s.metrics.Disconnects.WithLabelValues(resp.Reason.String()).Inc()

	logger := s.log.WithFields(logrus.Fields{
		"function":    "removeSession",
		"remote_ssrc": fmt.Sprintf("%08X", ssrc),
		"reason":      resp.Reason.String(),
	})
	if resp.Reason == peer.DisconnectRequested {
		logger.Info("Session ended")
		return
	}
	logger.WithField("error", fmt.Sprint(resp.Err)).Warn("Session disconnected")
}

func (s *Server) drop(cause string, channel peer.Channel, addr net.Addr, detail string) {
	s.metrics.DatagramsDropped.WithLabelValues(cause).Inc()
	s.log.WithFields(logrus.Fields{
		"function":    "handleDatagram",
		"channel":     channel.String(),
		"remote_addr": addr.String(),
		"cause":       cause,
		"detail":      detail,
	}).Debug("Dropping datagram")
}
