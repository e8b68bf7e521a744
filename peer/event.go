package peer

import "fmt"

// EventKind selects what a Peer is asked to do.
type EventKind uint8

const (
	// EventControlData delivers a datagram received on the control channel.
	EventControlData EventKind = iota
	// EventMidiData delivers a datagram received on the MIDI channel.
	EventMidiData
	// EventSendCk asks the peer to start a clock synchronization exchange
	// as initiator. Not implemented; answered with ResponseUnsupported.
	EventSendCk
	// EventSendMidi asks the peer to frame a MIDI command section for
	// sending on the MIDI channel.
	EventSendMidi
	// EventBye asks the peer to end the session.
	EventBye
)

func (k EventKind) String() string {
	switch k {
	case EventControlData:
		return "ControlData"
	case EventMidiData:
		return "MidiData"
	case EventSendCk:
		return "SendCk"
	case EventSendMidi:
		return "SendMidi"
	case EventBye:
		return "Bye"
	default:
		return fmt.Sprintf("EventKind(%d)", uint8(k))
	}
}

// Event is one input to Peer.Event.
type Event struct {
	Kind EventKind
	Data []byte
}

// ControlData wraps a datagram received on the control channel.
func ControlData(data []byte) Event {
	return Event{Kind: EventControlData, Data: data}
}

// MidiData wraps a datagram received on the MIDI channel.
func MidiData(data []byte) Event {
	return Event{Kind: EventMidiData, Data: data}
}

// SendCk requests an initiator clock synchronization ping.
func SendCk() Event {
	return Event{Kind: EventSendCk}
}

// SendMidi requests framing of a raw MIDI command section.
func SendMidi(commands []byte) Event {
	return Event{Kind: EventSendMidi, Data: commands}
}

// Bye requests a local session teardown.
func Bye() Event {
	return Event{Kind: EventBye}
}

// ResponseKind tells the caller what to do with a Response.
type ResponseKind uint8

const (
	// ResponseDoNothing requires no action.
	ResponseDoNothing ResponseKind = iota
	// ResponseNetworkControlData must be sent on the control channel.
	ResponseNetworkControlData
	// ResponseNetworkMidiData must be sent on the MIDI channel.
	ResponseNetworkMidiData
	// ResponseMidiData is a decoded MIDI command section for the consumer.
	ResponseMidiData
	// ResponseDisconnect mandates tearing the session down.
	ResponseDisconnect
	// ResponseUnsupported reports a request the peer cannot serve: a
	// recognised but unimplemented feature (ErrUnsupported) or a local
	// request made in the wrong status (ErrNotConnected). The session state
	// is unchanged and the caller decides what to do.
	ResponseUnsupported
)

func (k ResponseKind) String() string {
	switch k {
	case ResponseDoNothing:
		return "DoNothing"
	case ResponseNetworkControlData:
		return "NetworkControlData"
	case ResponseNetworkMidiData:
		return "NetworkMidiData"
	case ResponseMidiData:
		return "MidiData"
	case ResponseDisconnect:
		return "Disconnect"
	case ResponseUnsupported:
		return "Unsupported"
	default:
		return fmt.Sprintf("ResponseKind(%d)", uint8(k))
	}
}

// DisconnectReason explains a ResponseDisconnect.
type DisconnectReason uint8

const (
	// DisconnectNone is the zero value, carried by non-disconnect responses.
	DisconnectNone DisconnectReason = iota
	// DisconnectBadPacket: too short, unparseable, unsupported or out of order.
	DisconnectBadPacket
	// DisconnectBadVersion: protocol version other than 2.
	DisconnectBadVersion
	// DisconnectBadPeer: initiator or SSRC mismatch.
	DisconnectBadPeer
	// DisconnectRequested: a BY was received or a Bye event was issued.
	DisconnectRequested
)

func (r DisconnectReason) String() string {
	switch r {
	case DisconnectNone:
		return "None"
	case DisconnectBadPacket:
		return "BadPacket"
	case DisconnectBadVersion:
		return "BadVersion"
	case DisconnectBadPeer:
		return "BadPeer"
	case DisconnectRequested:
		return "Requested"
	default:
		return fmt.Sprintf("DisconnectReason(%d)", uint8(r))
	}
}

// Response is the single outcome of Peer.Event.
//
// Data aliases the peer's scratch buffer and is only valid until the next
// call to Event.
type Response struct {
	Kind   ResponseKind
	Data   []byte
	Reason DisconnectReason
	Err    error
}

func (r Response) String() string {
	switch r.Kind {
	case ResponseDisconnect:
		return fmt.Sprintf("Disconnect(%s)", r.Reason)
	case ResponseNetworkControlData, ResponseNetworkMidiData, ResponseMidiData:
		return fmt.Sprintf("%s(%d bytes)", r.Kind, len(r.Data))
	default:
		return r.Kind.String()
	}
}

func doNothing() Response {
	return Response{Kind: ResponseDoNothing}
}

func sendControl(data []byte) Response {
	return Response{Kind: ResponseNetworkControlData, Data: data}
}

func sendMidi(data []byte) Response {
	return Response{Kind: ResponseNetworkMidiData, Data: data}
}

func midiPayload(data []byte) Response {
	return Response{Kind: ResponseMidiData, Data: data}
}

// disconnect builds a protocol-violation response whose Err wraps the
// sentinel for reason. Not for DisconnectRequested, which carries no error.
func disconnect(reason DisconnectReason, format string, args ...interface{}) Response {
	err := fmt.Errorf("%w: "+format, append([]interface{}{reasonError(reason)}, args...)...)
	return Response{Kind: ResponseDisconnect, Reason: reason, Err: err}
}

// notConnected refuses a local request without touching the session.
func notConnected(format string, args ...interface{}) Response {
	err := fmt.Errorf("%w: "+format, append([]interface{}{ErrNotConnected}, args...)...)
	return Response{Kind: ResponseUnsupported, Err: err}
}

func unsupported(format string, args ...interface{}) Response {
	err := fmt.Errorf("%w: "+format, append([]interface{}{ErrUnsupported}, args...)...)
	return Response{Kind: ResponseUnsupported, Err: err}
}
