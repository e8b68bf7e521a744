package peer

import (
	"encoding/binary"
	"fmt"

	"github.com/opd-ai/rtpmidi/limits"
	"github.com/sirupsen/logrus"
)

// RTP-MIDI header offsets.
const (
	rtpOffsetSequence  = 2
	rtpOffsetTimestamp = 4
	rtpOffsetSSRC      = 8
	rtpOffsetMidiLen   = 12
)

// extractMidi validates an RTP-MIDI data packet and copies its MIDI command
// section into the scratch buffer. No state is touched until every check has
// passed.
func (p *Peer) extractMidi(data []byte) Response {
	log := p.log.WithField("function", "extractMidi")

	if len(data) < limits.MinMidiPacketSize {
		log.WithField("packet_size", len(data)).Error("MIDI packet too small")
		return disconnect(DisconnectBadPacket, "MIDI packet too small, need %d bytes, have %d",
			limits.MinMidiPacketSize, len(data))
	}

	seq := binary.BigEndian.Uint16(data[rtpOffsetSequence:rtpOffsetTimestamp])
	// The wire value is 32 bits; widen before scaling so it cannot overflow.
	timestampUs := uint64(binary.BigEndian.Uint32(data[rtpOffsetTimestamp:rtpOffsetSSRC])) * 100
	ssrc := binary.BigEndian.Uint32(data[rtpOffsetSSRC:rtpOffsetMidiLen])

	if p.status == StatusInitial || ssrc != p.remoteSSRC {
		log.WithFields(logrus.Fields{
			"ssrc":        ssrcField(ssrc),
			"local_ssrc":  ssrcField(p.localSSRC),
			"remote_ssrc": ssrcField(p.remoteSSRC),
			"status":      p.status.String(),
		}).Warn("MIDI packet from unexpected SSRC")
		return disconnect(DisconnectBadPeer, "MIDI packet ssrc %08X does not match session", ssrc)
	}
	if p.status == StatusDisconnected {
		log.Error("MIDI packet after session end")
		return disconnect(DisconnectBadPacket, "MIDI packet after session end")
	}

	length := int(data[rtpOffsetMidiLen])
	if length > limits.MaxShortHeaderPayload {
		log.WithField("header", fmt.Sprintf("%02X", length)).
			Error("Long MIDI command section headers are not implemented")
		return Response{
			Kind:   ResponseDisconnect,
			Reason: DisconnectBadPacket,
			Err: fmt.Errorf("%w: %w: MIDI section header %02X (long header or journal)",
				ErrBadPacket, ErrUnsupported, length),
		}
	}
	if len(data) < limits.MinMidiPacketSize+length {
		log.WithFields(logrus.Fields{
			"declared": length,
			"present":  len(data) - limits.MinMidiPacketSize,
		}).Error("Packet promised more data than it has")
		return disconnect(DisconnectBadPacket, "MIDI section declares %d bytes, packet has %d",
			length, len(data)-limits.MinMidiPacketSize)
	}

	p.trackSequence(seq)
	p.packetsReceived++

	log.WithFields(logrus.Fields{
		"sequence":     seq,
		"timestamp_us": timestampUs,
		"midi_size":    length,
	}).Debug("MIDI packet accepted")

	n := copy(p.buffer[:length], data[limits.MinMidiPacketSize:limits.MinMidiPacketSize+length])
	return midiPayload(p.buffer[:n])
}

// trackSequence records seq and reports a gap against the previous value.
// Loss is never fatal: there is no journal to recover from.
func (p *Peer) trackSequence(seq uint16) {
	if p.remoteSeqSeen {
		// uint16 arithmetic wraps 0xFFFF to 0x0000.
		expected := p.remoteSequenceNr + 1
		if seq != expected {
			gap := seq - expected
			if gap < 0x8000 {
				p.packetsLost += uint64(gap)
			}
			p.log.WithFields(logrus.Fields{
				"function":          "trackSequence",
				"previous_sequence": p.remoteSequenceNr,
				"sequence":          seq,
			}).Warn("Lost packet! No journal, so something has been lost")
		}
	}
	p.remoteSequenceNr = seq
	p.remoteSeqSeen = true
}
