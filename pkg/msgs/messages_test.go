package msgs

import (
	"testing"

	"github.com/golang/protobuf/proto"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/hci.go/pkg/hci"
)

func TestPacketWireFormat(t *testing.T) {
	payload, err := Encode(NewPacket(hci.CommandPacket, []byte{0x03, 0x0c, 0x00}, 1))
	require.NoError(t, err)
	require.Equal(t, []byte{0x08, 0x01, 0x12, 0x03, 0x03, 0x0c, 0x00, 0x18, 0x01}, payload)

	pkt, err := DecodePacket(payload)
	require.NoError(t, err)
	require.Equal(t, hci.CommandPacket, pkt.PacketType())
	require.Equal(t, []byte{0x03, 0x0c, 0x00}, pkt.Data)
	require.Equal(t, uint64(1), pkt.Seq)
}

func TestDecodePacketInvalid(t *testing.T) {
	payload, err := Encode(&Packet{Type: uint32(hci.ACLDataPacket)})
	require.NoError(t, err)
	_, err = DecodePacket(payload)
	require.Equal(t, ErrEmptyPacket, err)

	payload, err = Encode(&Packet{Type: 0x100, Data: []byte{1}})
	require.NoError(t, err)
	_, err = DecodePacket(payload)
	require.Error(t, err)

	_, err = DecodePacket([]byte{0x12, 0x05, 0x01})
	require.Error(t, err)
}

func TestDeviceInfo(t *testing.T) {
	info := &DeviceInfo{
		ID:     "esp32-1",
		Mode:   "ble",
		Labels: map[string]string{"site": "lab"},
	}
	payload, err := Encode(info)
	require.NoError(t, err)
	decoded, err := DecodeDeviceInfo(payload)
	require.NoError(t, err)
	require.True(t, proto.Equal(info, decoded))
}

func TestStatsReport(t *testing.T) {
	payload, err := Encode(&StatsReport{Received: 3, TxDropped: 1})
	require.NoError(t, err)
	report, err := DecodeStatsReport(payload)
	require.NoError(t, err)
	require.Equal(t, uint64(3), report.Received)
	require.Equal(t, uint64(1), report.TxDropped)
}
