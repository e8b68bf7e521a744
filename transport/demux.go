package transport

import (
	"encoding/binary"

	"github.com/opd-ai/rtpmidi/peer"
)

// Byte offsets of the sender SSRC in each packet kind.
const (
	sessionSSRCOffset = 12 // IN, OK, NO, BY
	clockSSRCOffset   = 4  // CK
	midiSSRCOffset    = 8  // RTP-MIDI
)

// classify returns the packet kind of a datagram, or PacketUnknown when it
// is too short to carry a header.
func classify(data []byte) peer.PacketKind {
	if len(data) < 4 {
		return peer.PacketUnknown
	}
	return peer.Classify([4]byte(data[:4]))
}

// senderSSRC extracts the SSRC of the remote that sent data. ok is false
// when the kind carries no SSRC or the datagram is too short to hold it.
func senderSSRC(kind peer.PacketKind, data []byte) (ssrc uint32, ok bool) {
	var offset int
	switch kind {
	case peer.PacketIN, peer.PacketOK, peer.PacketNO, peer.PacketBY:
		offset = sessionSSRCOffset
	case peer.PacketCK:
		offset = clockSSRCOffset
	case peer.PacketMidi:
		offset = midiSSRCOffset
	default:
		return 0, false
	}
	if len(data) < offset+4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(data[offset : offset+4]), true
}
