package peer

import "github.com/sirupsen/logrus"

// handler processes one classified packet. It must either apply a full
// state transition and return its response, or leave the peer untouched
// and return a disconnect.
type handler func(p *Peer, data []byte) Response

type routeKey struct {
	status  Status
	channel Channel
	kind    PacketKind
}

// routes holds an entry for every (status, channel, kind) combination.
var routes = buildRoutes()

func buildRoutes() map[routeKey]handler {
	table := make(map[routeKey]handler, len(statuses)*len(channels)*len(packetKinds))

	// Start with everything rejected, then open up the valid transitions.
	for _, s := range statuses {
		for _, c := range channels {
			for _, k := range packetKinds {
				table[routeKey{s, c, k}] = rejectFor(k, c)
			}
		}
	}

	table[routeKey{StatusInitial, ChannelControl, PacketIN}] = (*Peer).acceptControlInvitation
	table[routeKey{StatusControlConnected, ChannelMidi, PacketIN}] = (*Peer).acceptMidiInvitation

	// MIDI data is routed in every status so that a foreign SSRC is always
	// reported as BadPeer. extractMidi itself refuses unestablished or ended
	// sessions.
	for _, s := range statuses {
		table[routeKey{s, ChannelMidi, PacketMidi}] = (*Peer).extractMidi
	}

	for _, s := range []Status{StatusConnected, StatusWaitingCk} {
		table[routeKey{s, ChannelMidi, PacketCK}] = (*Peer).clockSync
	}

	for _, s := range []Status{StatusControlConnected, StatusConnected, StatusWaitingCk} {
		for _, c := range channels {
			table[routeKey{s, c, PacketBY}] = (*Peer).handleBye
		}
	}

	return table
}

func lookupRoute(status Status, channel Channel, kind PacketKind) handler {
	if h, ok := routes[routeKey{status, channel, kind}]; ok {
		return h
	}
	return rejectPacket("unroutable packet")
}

// rejectFor picks the rejection handler for a packet kind that is not
// valid in the current status or on the current channel.
func rejectFor(kind PacketKind, channel Channel) handler {
	switch kind {
	case PacketIN:
		// Invitation errors (length, version, name) take precedence over
		// ordering errors.
		return (*Peer).rejectInvitation
	case PacketCK:
		if channel == ChannelControl {
			return rejectPacket("CK packets are only valid on the MIDI channel")
		}
		return rejectPacket("CK packet before session established")
	case PacketMidi:
		return rejectPacket("received MIDI data on control channel")
	case PacketBY:
		return rejectPacket("BY packet without session")
	case PacketOK, PacketNO:
		return rejectPacket("unexpected handshake reply, this peer never invites")
	default:
		return rejectPacket("unknown packet type")
	}
}

func rejectPacket(reason string) handler {
	return func(p *Peer, data []byte) Response {
		head := [4]byte(data[:4])
		p.log.WithFields(logrus.Fields{
			"function":    "rejectPacket",
			"status":      p.status.String(),
			"packet_type": Classify(head).String(),
			"reason":      reason,
		}).Error("Rejected packet")
		return disconnect(DisconnectBadPacket, "%s", reason)
	}
}
