package stream

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type bufferRW struct {
	bytes.Buffer
	closed bool
}

func (b *bufferRW) Close() error {
	b.closed = true
	return nil
}

func TestReadWritePackets(t *testing.T) {
	var buf bufferRW
	rw := New(&buf)
	require.NoError(t, rw.WritePacket([]byte{0x01, 0x03, 0x0c, 0x00}))
	require.NoError(t, rw.WritePacket(nil))
	require.Equal(t, []byte{4, 0, 0, 0, 0x01, 0x03, 0x0c, 0x00, 0, 0, 0, 0}, buf.Bytes())

	pkt, err := rw.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x03, 0x0c, 0x00}, pkt)
	pkt, err = rw.ReadPacket()
	require.NoError(t, err)
	require.Empty(t, pkt)
	_, err = rw.ReadPacket()
	require.Equal(t, io.EOF, err)

	require.NoError(t, rw.Close())
	require.True(t, buf.closed)
}

func TestReadTruncated(t *testing.T) {
	var buf bufferRW
	buf.Write([]byte{4, 0, 0, 0, 0x04})
	_, err := New(&buf).ReadPacket()
	require.Equal(t, io.ErrUnexpectedEOF, err)
}

func TestReadTooLarge(t *testing.T) {
	var buf bufferRW
	buf.Write([]byte{0, 0, 0, 1})
	rw := New(&buf)
	_, err := rw.ReadPacket()
	require.Equal(t, ErrPacketTooLarge, err)

	buf.Reset()
	buf.Write([]byte{3, 0, 0, 0, 1, 2, 3})
	rw.MaxPacketSize = 2
	_, err = rw.ReadPacket()
	require.Equal(t, ErrPacketTooLarge, err)
}
