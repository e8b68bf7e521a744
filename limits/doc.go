// Package limits provides centralized packet size constants and validation
// functions for the AppleMIDI / RTP-MIDI wire protocol. Every component that
// touches raw datagrams (the session engine and the UDP transport) validates
// against these values so that size enforcement stays consistent.
//
// # Packet Size Hierarchy
//
//   - MinPacketSize (12 bytes): the smallest datagram the engine will classify.
//     Anything shorter cannot hold a command header or an RTP header.
//
//   - MinInvitationSize (16 bytes): fixed part of IN/OK/NO/BY session packets
//     (signature, command, version, initiator token, SSRC).
//
//   - ClockSyncSize (36 bytes): the fixed CK packet, three 64-bit timestamps.
//
//   - MinMidiPacketSize (13 bytes): RTP header plus the one-byte MIDI command
//     section header.
//
//   - MTU (1500 bytes): the largest datagram accepted from the network and the
//     size of the engine's scratch buffer.
//
// # Validation Functions
//
//	if err := limits.ValidateDatagram(data); err != nil {
//	    // ErrPacketEmpty or ErrPacketTooLarge
//	}
//
//	if err := limits.ValidateName(name); err != nil {
//	    // ErrNameEmpty or ErrNameTooLong
//	}
package limits
