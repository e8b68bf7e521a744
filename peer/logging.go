package peer

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// previewLen bounds the number of packet bytes rendered into a log field.
const previewLen = 16

// packetFields creates standardized fields describing an incoming packet.
func packetFields(channel Channel, kind PacketKind, data []byte) logrus.Fields {
	preview := "nil"
	if len(data) > 0 {
		n := len(data)
		if n > previewLen {
			n = previewLen
		}
		preview = fmt.Sprintf("% X", data[:n])
		if len(data) > n {
			preview += " ..."
		}
	}
	return logrus.Fields{
		"channel":        channel.String(),
		"packet_type":    kind.String(),
		"packet_size":    len(data),
		"packet_preview": preview,
	}
}

func ssrcField(ssrc uint32) string {
	return fmt.Sprintf("%08X", ssrc)
}
