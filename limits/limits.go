// Package limits provides centralized packet size limits for the RTP-MIDI protocol.
package limits

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

const (
	// MTU is the largest datagram handled anywhere in the stack.
	// It matches a typical Ethernet UDP payload budget.
	MTU = 1500

	// MinPacketSize is the shortest datagram that can be classified.
	MinPacketSize = 12

	// MinInvitationSize is the fixed part of IN, OK, NO and BY packets.
	MinInvitationSize = 16

	// ClockSyncSize is the length of a CK packet.
	ClockSyncSize = 36

	// MinMidiPacketSize is the RTP header plus the MIDI section length byte.
	MinMidiPacketSize = 13

	// MaxShortHeaderPayload is the largest MIDI command section expressible
	// with the one-byte (short) section header.
	MaxShortHeaderPayload = 15

	// MaxNameLength leaves room for the fixed invitation part and the
	// trailing NUL inside one MTU.
	MaxNameLength = MTU - MinInvitationSize - 1
)

var (
	// ErrPacketEmpty indicates an empty or nil datagram.
	ErrPacketEmpty = errors.New("packet cannot be empty")

	// ErrPacketTooLarge indicates a datagram exceeding MTU.
	ErrPacketTooLarge = errors.New("packet exceeds maximum size")

	// ErrNameEmpty indicates an empty endpoint name.
	ErrNameEmpty = errors.New("name cannot be empty")

	// ErrNameTooLong indicates a name that cannot fit in an OK reply.
	ErrNameTooLong = errors.New("name exceeds maximum length")

	// ErrNameEncoding indicates a name that is not valid UTF-8.
	ErrNameEncoding = errors.New("name is not valid UTF-8")
)

// ValidateDatagram checks a datagram read from the network against MTU.
// Short datagrams are not rejected here; the session engine answers them
// with a protocol-level disconnect.
func ValidateDatagram(data []byte) error {
	if len(data) == 0 {
		return ErrPacketEmpty
	}
	if len(data) > MTU {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrPacketTooLarge, len(data), MTU)
	}
	return nil
}

// ValidateName checks a local endpoint name before it is advertised in
// handshake replies.
func ValidateName(name string) error {
	if name == "" {
		return ErrNameEmpty
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: length %d exceeds limit %d", ErrNameTooLong, len(name), MaxNameLength)
	}
	if !utf8.ValidString(name) {
		return ErrNameEncoding
	}
	return nil
}
