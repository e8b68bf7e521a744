package peer

import "errors"

var (
	// ErrBadPacket indicates a packet that is too short, unparseable or
	// arrived out of order.
	ErrBadPacket = errors.New("peer: bad packet")

	// ErrBadVersion indicates an AppleMIDI protocol version other than 2.
	ErrBadVersion = errors.New("peer: unsupported protocol version")

	// ErrBadPeer indicates a packet attributable to a different session.
	ErrBadPeer = errors.New("peer: packet from unexpected peer")

	// ErrUnsupported indicates a well-formed request for a feature this
	// engine does not implement.
	ErrUnsupported = errors.New("peer: unsupported operation")

	// ErrNotConnected indicates a local request that needs an established
	// session.
	ErrNotConnected = errors.New("peer: session not connected")
)

// reasonError maps a disconnect reason to its sentinel error.
func reasonError(reason DisconnectReason) error {
	switch reason {
	case DisconnectBadPacket:
		return ErrBadPacket
	case DisconnectBadVersion:
		return ErrBadVersion
	case DisconnectBadPeer:
		return ErrBadPeer
	default:
		return nil
	}
}
