package peer

import (
	"encoding/binary"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testInitiator  uint32 = 0x12345678
	testRemoteSSRC uint32 = 0xAABBCCDD
)

// stepClock advances by step on every call to Now.
type stepClock struct {
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func newTestPeer(t *testing.T) (*Peer, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	p, err := New("test", &Options{
		Logger:       logger,
		TimeProvider: &stepClock{now: time.Unix(1700000000, 0), step: time.Millisecond},
	})
	require.NoError(t, err)
	return p, hook
}

func sessionPacket(command string, version, initiator, ssrc uint32, name string) []byte {
	buf := make([]byte, 16, 16+len(name)+1)
	buf[0], buf[1] = 0xFF, 0xFF
	copy(buf[2:4], command)
	binary.BigEndian.PutUint32(buf[4:8], version)
	binary.BigEndian.PutUint32(buf[8:12], initiator)
	binary.BigEndian.PutUint32(buf[12:16], ssrc)
	if name != "" {
		buf = append(buf, name...)
		buf = append(buf, 0)
	}
	return buf
}

func invitationPacket(initiator, ssrc uint32) []byte {
	return sessionPacket("IN", 2, initiator, ssrc, "testing")
}

func clockPacket(ssrc uint32, step byte, ts1, ts2, ts3 uint64) []byte {
	buf := make([]byte, 36)
	buf[0], buf[1], buf[2], buf[3] = 0xFF, 0xFF, 'C', 'K'
	binary.BigEndian.PutUint32(buf[4:8], ssrc)
	buf[8] = step
	binary.BigEndian.PutUint64(buf[12:20], ts1)
	binary.BigEndian.PutUint64(buf[20:28], ts2)
	binary.BigEndian.PutUint64(buf[28:36], ts3)
	return buf
}

func midiPacket(seq uint16, ssrc uint32, commands []byte) []byte {
	buf := make([]byte, 13, 13+len(commands))
	buf[0] = 0x80
	buf[1] = 0x61
	binary.BigEndian.PutUint16(buf[2:4], seq)
	binary.BigEndian.PutUint32(buf[4:8], 1000)
	binary.BigEndian.PutUint32(buf[8:12], ssrc)
	buf[12] = byte(len(commands))
	return append(buf, commands...)
}

// connect runs both handshake legs.
func connect(t *testing.T, p *Peer) {
	t.Helper()
	resp := p.Event(ControlData(invitationPacket(testInitiator, testRemoteSSRC)))
	require.Equal(t, ResponseNetworkControlData, resp.Kind, "control leg: %v", resp.Err)
	resp = p.Event(MidiData(invitationPacket(testInitiator, testRemoteSSRC)))
	require.Equal(t, ResponseNetworkMidiData, resp.Kind, "midi leg: %v", resp.Err)
	require.Equal(t, StatusConnected, p.Status())
}

func warnings(hook *test.Hook, substr string) int {
	n := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && strings.Contains(e.Message, substr) {
			n++
		}
	}
	return n
}

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		localName   string
		expectError bool
	}{
		{name: "Valid name", localName: "Studio", expectError: false},
		{name: "Empty name", localName: "", expectError: true},
		{name: "Name too long", localName: strings.Repeat("x", 1500), expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.localName, nil)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusInitial, p.Status())
			assert.Equal(t, tt.localName, p.LocalName())
			assert.Zero(t, p.RemoteSSRC())
			assert.Zero(t, p.Latency())
		})
	}
}

func TestShortPacketsDisconnect(t *testing.T) {
	for size := 0; size < 12; size++ {
		for _, mk := range []func([]byte) Event{ControlData, MidiData} {
			p, _ := newTestPeer(t)
			data := make([]byte, size)
			if size >= 4 {
				copy(data, []byte{0xFF, 0xFF, 'I', 'N'})
			}
			resp := p.Event(mk(data))
			assert.Equal(t, ResponseDisconnect, resp.Kind, "size %d", size)
			assert.Equal(t, DisconnectBadPacket, resp.Reason, "size %d", size)
			assert.ErrorIs(t, resp.Err, ErrBadPacket)
			assert.Equal(t, StatusInitial, p.Status())
		}
	}
}

func TestUnknownPacketDisconnects(t *testing.T) {
	p, _ := newTestPeer(t)
	resp := p.Event(ControlData([]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}))
	assert.Equal(t, ResponseDisconnect, resp.Kind)
	assert.Equal(t, DisconnectBadPacket, resp.Reason)
}

func TestSendCkUnsupported(t *testing.T) {
	p, _ := newTestPeer(t)
	connect(t, p)

	resp := p.Event(SendCk())
	assert.Equal(t, ResponseUnsupported, resp.Kind)
	assert.ErrorIs(t, resp.Err, ErrUnsupported)
	assert.Equal(t, StatusConnected, p.Status())
}

func TestUnknownEventKind(t *testing.T) {
	p, _ := newTestPeer(t)
	resp := p.Event(Event{Kind: EventKind(200)})
	assert.Equal(t, ResponseUnsupported, resp.Kind)
	assert.ErrorIs(t, resp.Err, ErrUnsupported)
	assert.Equal(t, StatusInitial, p.Status())
}

func TestStats(t *testing.T) {
	p, _ := newTestPeer(t)
	connect(t, p)

	resp := p.Event(MidiData(midiPacket(7, testRemoteSSRC, []byte{0x90, 0x40, 0x7F})))
	require.Equal(t, ResponseMidiData, resp.Kind)
	resp = p.Event(MidiData(midiPacket(10, testRemoteSSRC, []byte{0x80, 0x40, 0x00})))
	require.Equal(t, ResponseMidiData, resp.Kind)

	stats := p.Stats()
	assert.Equal(t, StatusConnected, stats.Status)
	assert.Equal(t, testInitiator, stats.InitiatorID)
	assert.Equal(t, testRemoteSSRC, stats.RemoteSSRC)
	assert.Equal(t, "testing", stats.RemoteName)
	assert.Equal(t, uint16(10), stats.RemoteSequenceNr)
	assert.Equal(t, uint64(2), stats.PacketsReceived)
	assert.Equal(t, uint64(2), stats.PacketsLost)
	assert.Contains(t, p.String(), "Connected")
}

func TestRoutesCoverEveryCombination(t *testing.T) {
	for _, s := range statuses {
		for _, c := range channels {
			for _, k := range packetKinds {
				_, ok := routes[routeKey{s, c, k}]
				assert.True(t, ok, "missing route for %s/%s/%s", s, c, k)
			}
		}
	}
}
