package peer

import (
	"github.com/opd-ai/rtpmidi/limits"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

// frameMidi wraps a raw MIDI command section into an RTP-MIDI packet for
// the MIDI channel. Only the short section header is produced, so the
// section is limited to 15 bytes; no journal is appended.
func (p *Peer) frameMidi(commands []byte) Response {
	log := p.log.WithFields(logrus.Fields{
		"function":  "frameMidi",
		"midi_size": len(commands),
	})

	if p.status != StatusConnected && p.status != StatusWaitingCk {
		log.WithField("status", p.status.String()).Warn("Send before session established")
		return notConnected("cannot send MIDI in status %s", p.status)
	}
	if len(commands) == 0 {
		return doNothing()
	}
	if len(commands) > limits.MaxShortHeaderPayload {
		log.Warn("MIDI section too long for short header")
		return unsupported("MIDI section of %d bytes needs a long header", len(commands))
	}

	header := rtp.Header{
		Version:        2,
		PayloadType:    midiPayloadType,
		SequenceNumber: p.sendSequenceNr,
		// RTP-MIDI runs its media clock at the same 10kHz as the session.
		Timestamp: uint32(p.timestamp()),
		SSRC:      p.localSSRC,
	}
	n, err := header.MarshalTo(p.buffer[:])
	if err != nil {
		log.WithError(err).Error("Failed to marshal RTP header")
		return disconnect(DisconnectBadPacket, "marshal RTP header: %v", err)
	}
	if n+1+len(commands) > len(p.buffer) {
		return disconnect(DisconnectBadPacket, "framed MIDI packet exceeds %d bytes", limits.MTU)
	}

	// Short section header: B, J, Z and P flags clear, 4 bit length.
	p.buffer[n] = byte(len(commands))
	n++
	n += copy(p.buffer[n:], commands)

	log.WithField("sequence", p.sendSequenceNr).Debug("Framed MIDI packet")
	p.sendSequenceNr++

	return sendMidi(p.buffer[:n])
}
