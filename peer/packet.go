package peer

import "fmt"

// PacketKind is the classification of a datagram by its first four bytes.
type PacketKind uint8

const (
	// PacketUnknown is anything not recognised below.
	PacketUnknown PacketKind = iota
	// PacketIN is a session invitation.
	PacketIN
	// PacketOK is an invitation accept.
	PacketOK
	// PacketNO is an invitation reject.
	PacketNO
	// PacketCK is a clock synchronization packet.
	PacketCK
	// PacketBY ends a session.
	PacketBY
	// PacketMidi is an RTP-MIDI data packet.
	PacketMidi
)

var packetKinds = [...]PacketKind{
	PacketUnknown,
	PacketIN,
	PacketOK,
	PacketNO,
	PacketCK,
	PacketBY,
	PacketMidi,
}

func (k PacketKind) String() string {
	switch k {
	case PacketUnknown:
		return "Unknown"
	case PacketIN:
		return "IN"
	case PacketOK:
		return "OK"
	case PacketNO:
		return "NO"
	case PacketCK:
		return "CK"
	case PacketBY:
		return "BY"
	case PacketMidi:
		return "Midi"
	default:
		return fmt.Sprintf("PacketKind(%d)", uint8(k))
	}
}

const (
	// signature is the two leading bytes of every AppleMIDI command packet.
	signature = 0xFFFF

	// midiPayloadType is the RTP payload type registered for RTP-MIDI.
	midiPayloadType = 0x61

	protocolVersion = 2
)

var (
	commandIN = [2]byte{'I', 'N'}
	commandOK = [2]byte{'O', 'K'}
	commandNO = [2]byte{'N', 'O'}
	commandCK = [2]byte{'C', 'K'}
	commandBY = [2]byte{'B', 'Y'}
)

// Classify returns the kind of a packet given its first four bytes.
func Classify(head [4]byte) PacketKind {
	if head[0] == 0xFF && head[1] == 0xFF {
		switch [2]byte{head[2], head[3]} {
		case commandIN:
			return PacketIN
		case commandOK:
			return PacketOK
		case commandNO:
			return PacketNO
		case commandCK:
			return PacketCK
		case commandBY:
			return PacketBY
		}
	}
	// RTP version 2 in the top two bits, payload type in the low seven bits
	// of the second byte (the high bit is the marker).
	if head[0]&0xC0 == 0x80 && head[1]&0x7F == midiPayloadType {
		return PacketMidi
	}
	return PacketUnknown
}
