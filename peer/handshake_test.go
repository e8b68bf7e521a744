package peer

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlInvitation(t *testing.T) {
	p, _ := newTestPeer(t)

	data := []byte{
		0xFF, 0xFF, 'I', 'N',
		0x00, 0x00, 0x00, 0x02,
		0x12, 0x34, 0x56, 0x78,
		0xAA, 0xBB, 0xCC, 0xDD,
		't', 'e', 's', 't', 'i', 'n', 'g', 0x00,
	}
	resp := p.Event(ControlData(data))
	require.Equal(t, ResponseNetworkControlData, resp.Kind, "err: %v", resp.Err)

	reply := resp.Data
	require.Len(t, reply, 21)
	assert.Equal(t, []byte{0xFF, 0xFF, 'O', 'K'}, reply[0:4])
	assert.Equal(t, uint32(2), binary.BigEndian.Uint32(reply[4:8]))
	assert.Equal(t, testInitiator, binary.BigEndian.Uint32(reply[8:12]))
	assert.Equal(t, p.LocalSSRC(), binary.BigEndian.Uint32(reply[12:16]))
	assert.Equal(t, []byte("test\x00"), reply[16:21])

	assert.Equal(t, StatusControlConnected, p.Status())
	assert.Equal(t, testRemoteSSRC, p.RemoteSSRC())
	assert.Equal(t, "testing", p.RemoteName())
	assert.Equal(t, testInitiator, p.InitiatorID())
}

func TestMidiInvitationCompletesHandshake(t *testing.T) {
	p, _ := newTestPeer(t)

	resp := p.Event(ControlData(invitationPacket(testInitiator, testRemoteSSRC)))
	require.Equal(t, ResponseNetworkControlData, resp.Kind)
	controlSSRC := binary.BigEndian.Uint32(resp.Data[12:16])

	resp = p.Event(MidiData(invitationPacket(testInitiator, testRemoteSSRC)))
	require.Equal(t, ResponseNetworkMidiData, resp.Kind, "err: %v", resp.Err)
	require.Len(t, resp.Data, 21)
	assert.Equal(t, []byte{0xFF, 0xFF, 'O', 'K'}, resp.Data[0:4])
	assert.Equal(t, controlSSRC, binary.BigEndian.Uint32(resp.Data[12:16]))
	assert.Equal(t, StatusConnected, p.Status())
}

func TestMidiInvitationMismatch(t *testing.T) {
	tests := []struct {
		name      string
		initiator uint32
		ssrc      uint32
	}{
		{"wrong ssrc", testInitiator, 0x01020304},
		{"wrong initiator", 0x87654321, testRemoteSSRC},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPeer(t)
			resp := p.Event(ControlData(invitationPacket(testInitiator, testRemoteSSRC)))
			require.Equal(t, ResponseNetworkControlData, resp.Kind)

			resp = p.Event(MidiData(invitationPacket(tt.initiator, tt.ssrc)))
			assert.Equal(t, ResponseDisconnect, resp.Kind)
			assert.Equal(t, DisconnectBadPeer, resp.Reason)
			assert.ErrorIs(t, resp.Err, ErrBadPeer)
			assert.Equal(t, StatusControlConnected, p.Status())
			assert.Equal(t, testRemoteSSRC, p.RemoteSSRC())
		})
	}
}

func TestInvitationErrors(t *testing.T) {
	badName := sessionPacket("IN", 2, testInitiator, testRemoteSSRC, "")
	badName = append(badName, 0xC3, 0x28)

	tests := []struct {
		name   string
		data   []byte
		reason DisconnectReason
		err    error
	}{
		{"truncated header", invitationPacket(testInitiator, testRemoteSSRC)[:14], DisconnectBadPacket, ErrBadPacket},
		{"version 1", sessionPacket("IN", 1, testInitiator, testRemoteSSRC, "x"), DisconnectBadVersion, ErrBadVersion},
		{"version 3", sessionPacket("IN", 3, testInitiator, testRemoteSSRC, "x"), DisconnectBadVersion, ErrBadVersion},
		{"invalid utf-8 name", badName, DisconnectBadPacket, ErrBadPacket},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPeer(t)
			resp := p.Event(ControlData(tt.data))
			assert.Equal(t, ResponseDisconnect, resp.Kind)
			assert.Equal(t, tt.reason, resp.Reason)
			assert.ErrorIs(t, resp.Err, tt.err)
			assert.Equal(t, StatusInitial, p.Status())
			assert.Zero(t, p.RemoteSSRC())
			assert.Empty(t, p.RemoteName())
		})
	}
}

func TestInvitationWithoutName(t *testing.T) {
	p, _ := newTestPeer(t)
	resp := p.Event(ControlData(sessionPacket("IN", 2, testInitiator, testRemoteSSRC, "")))
	require.Equal(t, ResponseNetworkControlData, resp.Kind)
	assert.Empty(t, p.RemoteName())
}

func TestInvitationOutOfOrder(t *testing.T) {
	t.Run("midi leg first", func(t *testing.T) {
		p, _ := newTestPeer(t)
		resp := p.Event(MidiData(invitationPacket(testInitiator, testRemoteSSRC)))
		assert.Equal(t, ResponseDisconnect, resp.Kind)
		assert.Equal(t, DisconnectBadPacket, resp.Reason)
		assert.Equal(t, StatusInitial, p.Status())
	})

	t.Run("control leg repeated", func(t *testing.T) {
		p, _ := newTestPeer(t)
		require.Equal(t, ResponseNetworkControlData, p.Event(ControlData(invitationPacket(testInitiator, testRemoteSSRC))).Kind)
		resp := p.Event(ControlData(invitationPacket(testInitiator, testRemoteSSRC)))
		assert.Equal(t, DisconnectBadPacket, resp.Reason)
		assert.Equal(t, StatusControlConnected, p.Status())
	})

	t.Run("invitation after connect", func(t *testing.T) {
		p, _ := newTestPeer(t)
		connect(t, p)
		for _, ev := range []Event{
			ControlData(invitationPacket(testInitiator, testRemoteSSRC)),
			MidiData(invitationPacket(testInitiator, testRemoteSSRC)),
		} {
			resp := p.Event(ev)
			assert.Equal(t, DisconnectBadPacket, resp.Reason)
			assert.Equal(t, StatusConnected, p.Status())
		}
	})

	t.Run("bad version wins over ordering", func(t *testing.T) {
		p, _ := newTestPeer(t)
		resp := p.Event(MidiData(sessionPacket("IN", 7, testInitiator, testRemoteSSRC, "x")))
		assert.Equal(t, DisconnectBadVersion, resp.Reason)
	})
}

func TestUnexpectedHandshakeReplies(t *testing.T) {
	for _, cmd := range []string{"OK", "NO"} {
		t.Run(cmd, func(t *testing.T) {
			p, _ := newTestPeer(t)
			resp := p.Event(ControlData(sessionPacket(cmd, 2, testInitiator, testRemoteSSRC, "x")))
			assert.Equal(t, ResponseDisconnect, resp.Kind)
			assert.Equal(t, DisconnectBadPacket, resp.Reason)
		})
	}
}

func TestRemoteBye(t *testing.T) {
	t.Run("matching peer", func(t *testing.T) {
		p, _ := newTestPeer(t)
		connect(t, p)
		resp := p.Event(ControlData(sessionPacket("BY", 2, testInitiator, testRemoteSSRC, "")))
		assert.Equal(t, ResponseDisconnect, resp.Kind)
		assert.Equal(t, DisconnectRequested, resp.Reason)
		assert.NoError(t, resp.Err)
		assert.Equal(t, StatusDisconnected, p.Status())

		// Nothing is accepted after the session ended.
		resp = p.Event(MidiData(midiPacket(1, testRemoteSSRC, []byte{0xF8})))
		assert.Equal(t, DisconnectBadPacket, resp.Reason)
	})

	t.Run("foreign peer", func(t *testing.T) {
		p, _ := newTestPeer(t)
		connect(t, p)
		resp := p.Event(MidiData(sessionPacket("BY", 2, testInitiator, 0x01010101, "")))
		assert.Equal(t, DisconnectBadPeer, resp.Reason)
		assert.Equal(t, StatusConnected, p.Status())
	})

	t.Run("before handshake", func(t *testing.T) {
		p, _ := newTestPeer(t)
		resp := p.Event(ControlData(sessionPacket("BY", 2, testInitiator, testRemoteSSRC, "")))
		assert.Equal(t, DisconnectBadPacket, resp.Reason)
		assert.Equal(t, StatusInitial, p.Status())
	})
}

func TestLocalBye(t *testing.T) {
	t.Run("connected", func(t *testing.T) {
		p, _ := newTestPeer(t)
		connect(t, p)

		resp := p.Event(Bye())
		require.Equal(t, ResponseNetworkControlData, resp.Kind)
		require.Len(t, resp.Data, 16)
		assert.Equal(t, PacketBY, Classify([4]byte(resp.Data[:4])))
		assert.Equal(t, testInitiator, binary.BigEndian.Uint32(resp.Data[8:12]))
		assert.Equal(t, p.LocalSSRC(), binary.BigEndian.Uint32(resp.Data[12:16]))
		assert.Equal(t, StatusDisconnected, p.Status())

		assert.Equal(t, ResponseDoNothing, p.Event(Bye()).Kind)
	})

	t.Run("initial", func(t *testing.T) {
		p, _ := newTestPeer(t)
		resp := p.Event(Bye())
		assert.Equal(t, ResponseDisconnect, resp.Kind)
		assert.Equal(t, DisconnectRequested, resp.Reason)
		assert.Equal(t, StatusDisconnected, p.Status())
	})
}
