package peer

import "fmt"

// Status is the session state of a Peer.
type Status uint8

const (
	// StatusInitial is the state of a freshly created peer.
	StatusInitial Status = iota
	// StatusControlConnected means the control channel handshake completed.
	StatusControlConnected
	// StatusConnected means both channels completed the handshake.
	StatusConnected
	// StatusWaitingCk is reserved for initiator-side clock synchronization.
	// No transition currently reaches it.
	StatusWaitingCk
	// StatusDisconnected is terminal.
	StatusDisconnected
)

var statuses = [...]Status{
	StatusInitial,
	StatusControlConnected,
	StatusConnected,
	StatusWaitingCk,
	StatusDisconnected,
}

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusInitial:
		return "Initial"
	case StatusControlConnected:
		return "ControlConnected"
	case StatusConnected:
		return "Connected"
	case StatusWaitingCk:
		return "WaitingCk"
	case StatusDisconnected:
		return "Disconnected"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Channel identifies the UDP socket a datagram arrived on or must be sent on.
type Channel uint8

const (
	// ChannelControl is the session control port.
	ChannelControl Channel = iota
	// ChannelMidi is the MIDI data port, control port + 1.
	ChannelMidi
)

var channels = [...]Channel{ChannelControl, ChannelMidi}

func (c Channel) String() string {
	switch c {
	case ChannelControl:
		return "control"
	case ChannelMidi:
		return "midi"
	default:
		return fmt.Sprintf("Channel(%d)", uint8(c))
	}
}
