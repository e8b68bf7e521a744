// Package peer implements the AppleMIDI session engine for a single remote
// peer.
//
// A Peer is a pure protocol state machine: it never touches the network. The
// caller demultiplexes datagrams by the socket they arrived on (control or
// MIDI), feeds them to Peer.Event and acts on the single Response returned:
//
//	p, err := peer.New("Studio", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp := p.Event(peer.ControlData(datagram))
//	switch resp.Kind {
//	case peer.ResponseNetworkControlData:
//	    controlConn.WriteTo(resp.Data, addr)
//	case peer.ResponseNetworkMidiData:
//	    midiConn.WriteTo(resp.Data, addr)
//	case peer.ResponseMidiData:
//	    consume(resp.Data)
//	case peer.ResponseDisconnect:
//	    teardown(resp.Reason, resp.Err)
//	}
//
// # Session Lifecycle
//
// A session is established in two legs. The remote initiator first sends an
// IN invitation on the control channel, then repeats it on the MIDI channel.
// Each leg is answered with an OK carrying this endpoint's SSRC and name:
//
//	Initial --IN/control--> ControlConnected --IN/midi--> Connected
//
// Once connected, the peer answers CK clock synchronization pings, measures
// latency on the final CK leg and extracts MIDI command sections from RTP-MIDI
// data packets. A BY packet from the remote, or a Bye event from the caller,
// ends the session.
//
// # Buffer Ownership
//
// Every byte slice returned in a Response aliases a fixed 1500 byte buffer
// owned by the Peer. It is valid until the next call to Event; callers that
// need to keep it must copy it first.
//
// # Errors
//
// Protocol violations produce a ResponseDisconnect whose Err wraps one of
// ErrBadPacket, ErrBadVersion or ErrBadPeer. Features that are recognised but
// not implemented (initiator-side clock sync, long MIDI section headers) wrap
// ErrUnsupported so they can be told apart from malformed input:
//
//	if errors.Is(resp.Err, peer.ErrUnsupported) {
//	    // valid packet, feature not available
//	}
//
// Packet loss on the MIDI channel is never an error. It is logged as a
// warning and counted in Stats.
//
// # Concurrency
//
// Peer is not safe for concurrent use. Callers must serialize Event calls
// for a given Peer.
package peer
