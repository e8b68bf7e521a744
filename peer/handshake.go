package peer

import (
	"encoding/binary"
	"strings"
	"unicode/utf8"

	"github.com/opd-ai/rtpmidi/limits"
	"github.com/sirupsen/logrus"
)

// invitation is the decoded fixed part of an IN or BY packet.
type invitation struct {
	version     uint32
	initiatorID uint32
	ssrc        uint32
	name        string
}

// decodeInvitation parses an IN packet. On failure it returns the
// disconnect response to hand back to the caller.
func (p *Peer) decodeInvitation(data []byte) (invitation, *Response) {
	log := p.log.WithField("function", "decodeInvitation")

	inv, resp := p.decodeSessionHeader(data)
	if resp != nil {
		return inv, resp
	}

	raw := data[limits.MinInvitationSize:]
	if !utf8.Valid(raw) {
		log.WithField("name_size", len(raw)).Error("Can not parse peer name")
		r := disconnect(DisconnectBadPacket, "peer name is not valid UTF-8")
		return inv, &r
	}
	inv.name = strings.TrimRight(string(raw), "\x00")
	return inv, nil
}

// decodeSessionHeader parses the 16 byte header shared by IN and BY.
func (p *Peer) decodeSessionHeader(data []byte) (invitation, *Response) {
	log := p.log.WithField("function", "decodeSessionHeader")

	if len(data) < limits.MinInvitationSize {
		log.WithField("packet_size", len(data)).Error("Session packet too small")
		r := disconnect(DisconnectBadPacket, "session packet too small, need %d bytes, have %d",
			limits.MinInvitationSize, len(data))
		return invitation{}, &r
	}

	inv := invitation{
		version:     binary.BigEndian.Uint32(data[4:8]),
		initiatorID: binary.BigEndian.Uint32(data[8:12]),
		ssrc:        binary.BigEndian.Uint32(data[12:16]),
	}
	if inv.version != protocolVersion {
		log.WithField("version", inv.version).Error("Invalid protocol version (must be 2)")
		r := disconnect(DisconnectBadVersion, "protocol version %d", inv.version)
		return inv, &r
	}
	return inv, nil
}

// acceptControlInvitation handles the first handshake leg.
func (p *Peer) acceptControlInvitation(data []byte) Response {
	inv, resp := p.decodeInvitation(data)
	if resp != nil {
		return *resp
	}

	p.initiatorID = inv.initiatorID
	p.remoteSSRC = inv.ssrc
	p.remoteName = inv.name
	p.status = StatusControlConnected

	p.log.WithFields(logrus.Fields{
		"function":     "acceptControlInvitation",
		"initiator_id": ssrcField(inv.initiatorID),
		"remote_ssrc":  ssrcField(inv.ssrc),
		"remote_name":  inv.name,
	}).Debug("Connect request on control channel")

	return sendControl(p.writeSessionPacket(commandOK, true))
}

// acceptMidiInvitation handles the second handshake leg. The invitation
// must repeat the initiator token and SSRC of the first leg.
func (p *Peer) acceptMidiInvitation(data []byte) Response {
	inv, resp := p.decodeInvitation(data)
	if resp != nil {
		return *resp
	}

	if inv.initiatorID != p.initiatorID || inv.ssrc != p.remoteSSRC {
		p.log.WithFields(logrus.Fields{
			"function":              "acceptMidiInvitation",
			"initiator_id":          ssrcField(inv.initiatorID),
			"expected_initiator_id": ssrcField(p.initiatorID),
			"ssrc":                  ssrcField(inv.ssrc),
			"expected_ssrc":         ssrcField(p.remoteSSRC),
		}).Warn("Invitation for the wrong peer")
		return disconnect(DisconnectBadPeer, "invitation initiator %08X ssrc %08X does not match session",
			inv.initiatorID, inv.ssrc)
	}

	reply := p.writeSessionPacket(commandOK, true)
	p.status = StatusConnected

	p.log.WithFields(logrus.Fields{
		"function":    "acceptMidiInvitation",
		"remote_name": p.remoteName,
		"remote_ssrc": ssrcField(p.remoteSSRC),
	}).Info("Peer connected")

	return sendMidi(reply)
}

// rejectInvitation answers an invitation arriving in the wrong status or on
// the wrong channel. Malformed invitations are reported as such first.
func (p *Peer) rejectInvitation(data []byte) Response {
	if _, resp := p.decodeInvitation(data); resp != nil {
		return *resp
	}
	p.log.WithFields(logrus.Fields{
		"function": "rejectInvitation",
		"status":   p.status.String(),
	}).Error("Bad status, channel combo for invitation")
	return disconnect(DisconnectBadPacket, "invitation out of order in status %s", p.status)
}

// handleBye ends the session on a BY from the remote.
func (p *Peer) handleBye(data []byte) Response {
	inv, resp := p.decodeSessionHeader(data)
	if resp != nil {
		return *resp
	}
	if inv.initiatorID != p.initiatorID || inv.ssrc != p.remoteSSRC {
		p.log.WithFields(logrus.Fields{
			"function":     "handleBye",
			"initiator_id": ssrcField(inv.initiatorID),
			"ssrc":         ssrcField(inv.ssrc),
		}).Warn("BY for the wrong peer")
		return disconnect(DisconnectBadPeer, "BY initiator %08X ssrc %08X does not match session",
			inv.initiatorID, inv.ssrc)
	}

	p.status = StatusDisconnected
	p.log.WithFields(logrus.Fields{
		"function":    "handleBye",
		"remote_name": p.remoteName,
	}).Info("Peer disconnected")
	return Response{Kind: ResponseDisconnect, Reason: DisconnectRequested}
}

// bye ends the session locally. Once the remote is known a BY packet is
// produced for the control channel; the caller tears down after sending it.
func (p *Peer) bye() Response {
	log := p.log.WithFields(logrus.Fields{
		"function": "bye",
		"status":   p.status.String(),
	})

	switch p.status {
	case StatusInitial:
		p.status = StatusDisconnected
		log.Debug("Bye before handshake")
		return Response{Kind: ResponseDisconnect, Reason: DisconnectRequested}
	case StatusDisconnected:
		return doNothing()
	default:
		packet := p.writeSessionPacket(commandBY, false)
		p.status = StatusDisconnected
		log.Info("Sending BY")
		return sendControl(packet)
	}
}

// writeSessionPacket writes an IN/OK/NO/BY style packet into the scratch
// buffer and returns the written prefix.
func (p *Peer) writeSessionPacket(command [2]byte, withName bool) []byte {
	buf := p.buffer[:]
	binary.BigEndian.PutUint16(buf[0:2], signature)
	buf[2], buf[3] = command[0], command[1]
	binary.BigEndian.PutUint32(buf[4:8], protocolVersion)
	binary.BigEndian.PutUint32(buf[8:12], p.initiatorID)
	binary.BigEndian.PutUint32(buf[12:16], p.localSSRC)
	n := limits.MinInvitationSize
	if withName {
		n += copy(buf[n:], p.localName)
		buf[n] = 0
		n++
	}
	return buf[:n]
}
