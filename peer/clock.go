package peer

import (
	"encoding/binary"

	"github.com/opd-ai/rtpmidi/limits"
	"github.com/sirupsen/logrus"
)

// Clock synchronization step counters.
const (
	ckStepPing  = 0
	ckStepReply = 1
	ckStepFinal = 2
)

// CK packet layout offsets.
const (
	ckOffsetSSRC  = 4
	ckOffsetCount = 8
	ckOffsetTS1   = 12
	ckOffsetTS2   = 20
	ckOffsetTS3   = 28
)

// clockSync answers the responder side of a CK exchange.
//
// Step 0 is a ping from the remote; it is answered with step 1 echoing the
// remote timestamp and adding ours. Step 2 carries our timestamp back and
// completes the latency measurement.
func (p *Peer) clockSync(data []byte) Response {
	log := p.log.WithField("function", "clockSync")

	if len(data) < limits.ClockSyncSize {
		log.WithField("packet_size", len(data)).Error("CK packet too small")
		return disconnect(DisconnectBadPacket, "CK packet too small, need %d bytes, have %d",
			limits.ClockSyncSize, len(data))
	}

	if ssrc := binary.BigEndian.Uint32(data[ckOffsetSSRC:ckOffsetCount]); ssrc != p.remoteSSRC {
		log.WithFields(logrus.Fields{
			"ssrc":        ssrcField(ssrc),
			"remote_ssrc": ssrcField(p.remoteSSRC),
		}).Debug("CK sender SSRC differs from session")
	}

	switch step := data[ckOffsetCount]; step {
	case ckStepPing:
		now := p.timestamp()
		buf := p.buffer[:limits.ClockSyncSize]
		binary.BigEndian.PutUint16(buf[0:2], signature)
		buf[2], buf[3] = commandCK[0], commandCK[1]
		binary.BigEndian.PutUint32(buf[ckOffsetSSRC:ckOffsetCount], p.localSSRC)
		buf[ckOffsetCount] = ckStepReply
		buf[9], buf[10], buf[11] = 0, 0, 0
		copy(buf[ckOffsetTS1:ckOffsetTS2], data[ckOffsetTS1:ckOffsetTS2])
		binary.BigEndian.PutUint64(buf[ckOffsetTS2:ckOffsetTS3], now)
		binary.BigEndian.PutUint64(buf[ckOffsetTS3:limits.ClockSyncSize], 0)

		log.WithField("timestamp", now).Debug("Answering CK ping")
		return sendMidi(buf)

	case ckStepReply:
		log.Warn("CK step 1 received, initiator clock synchronization is not implemented")
		return unsupported("CK step 1, initiator clock synchronization")

	case ckStepFinal:
		t1 := binary.BigEndian.Uint64(data[ckOffsetTS2:ckOffsetTS3])
		t2 := p.timestamp()
		if t1 > t2 {
			log.WithFields(logrus.Fields{
				"t1": t1,
				"t2": t2,
			}).Error("CK timestamp is in the future")
			return disconnect(DisconnectBadPacket, "CK timestamp %d is after local time %d", t1, t2)
		}

		p.latency = t2 - t1
		log.WithFields(logrus.Fields{
			"t1":         t1,
			"t2":         t2,
			"latency_ms": float64(p.latency) / 10.0,
		}).Info("Latency measured")
		if p.onLatency != nil {
			p.onLatency(p.latency)
		}
		return doNothing()

	default:
		log.WithField("step", step).Error("Invalid CK count")
		return disconnect(DisconnectBadPacket, "invalid CK count %d", step)
	}
}
