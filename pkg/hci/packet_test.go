package hci

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommand(t *testing.T) {
	require.Equal(t, uint16(0x0c03), OpcodeReset)
	require.Equal(t, []byte{0x03, 0x0c, 0x00}, ResetCommand())

	pkt, err := Command(Opcode(0x04, 0x0001), []byte{1, 2})
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x10, 0x02, 1, 2}, pkt)

	_, err = Command(OpcodeReset, make([]byte, 256))
	require.Error(t, err)
}

func TestTransportPacketSent(t *testing.T) {
	require.True(t, IsTransportPacketSent(EventPacket, TransportPacketSent()))
	require.False(t, IsTransportPacketSent(ACLDataPacket, TransportPacketSent()))
	require.False(t, IsTransportPacketSent(EventPacket, []byte{EventCommandComplete}))
	require.False(t, IsTransportPacketSent(EventPacket, nil))
}

func TestPacketTypeString(t *testing.T) {
	require.Equal(t, "EVT", EventPacket.String())
	require.Equal(t, "0x7f", PacketType(0x7f).String())
}
