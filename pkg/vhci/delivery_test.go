package vhci

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/hci.go/pkg/framework"
	"github.com/robotalks/hci.go/pkg/hci"
)

func TestDeliverSinglePacket(t *testing.T) {
	tctx := newTestTransport(t, smallConfig())
	require.Equal(t, 100, tctx.tr.ring.Capacity())

	pkt := []byte{0x04, 0x0e, 0x04, 0x01, 0x03, 0x0c, 0x00, 0xaa, 0xbb, 0xcc}
	require.True(t, tctx.tr.NotifyHostRecv(pkt))
	require.Equal(t, int32(1), tctx.scheduler.triggers.Load())

	tctx.poll().expectPackets(receivedPacket{Type: hci.EventPacket, Data: pkt[1:]})
	require.Len(t, tctx.recorder.packets, 0)
	require.Equal(t, 0, tctx.tr.ring.BytesAvailable())

	// a wake without work is a no-op.
	tctx.poll().expectPackets()
}

func TestDeliverFillRejects(t *testing.T) {
	tctx := newTestTransport(t, smallConfig())
	for i := 0; i < 5; i++ {
		pkt := make([]byte, 17)
		pkt[0], pkt[1] = byte(hci.ACLDataPacket), byte(i)
		require.True(t, tctx.tr.NotifyHostRecv(pkt))
	}
	require.Equal(t, 95, tctx.tr.ring.BytesAvailable())

	require.False(t, tctx.tr.NotifyHostRecv(make([]byte, 8)))
	require.Equal(t, 95, tctx.tr.ring.BytesAvailable())
	require.Equal(t, 5, tctx.tr.ring.BytesFree())
	stats := tctx.tr.Stats()
	require.Equal(t, uint64(1), stats.DroppedFull)
	require.Equal(t, uint64(5), stats.Received)

	tctx.poll()
	require.Len(t, tctx.recorder.packets, 5)
	for i, pkt := range tctx.recorder.packets {
		require.Equal(t, hci.ACLDataPacket, pkt.Type)
		require.Equal(t, byte(i), pkt.Data[0])
	}
	require.Equal(t, uint64(5), tctx.tr.Stats().Delivered)
}

func TestDeliverSendReadyFirst(t *testing.T) {
	tctx := newTestTransport(t, smallConfig())
	tctx.tr.NotifyHostSendAvailable()
	require.True(t, tctx.tr.NotifyHostRecv([]byte{0x02, 0x01, 0x20, 0x00, 0x00}))
	tctx.poll().expectPackets(
		packetSent(),
		receivedPacket{Type: hci.ACLDataPacket, Data: []byte{0x01, 0x20, 0x00, 0x00}},
	)
	tctx.poll().expectPackets()
}

func TestDropWhenFullDoesNotBlock(t *testing.T) {
	tctx := newTestTransport(t, smallConfig())
	require.True(t, tctx.tr.NotifyHostRecv(make([]byte, 98)))
	require.Equal(t, 0, tctx.tr.ring.BytesFree())

	done := make(chan bool, 1)
	go func() { done <- tctx.tr.NotifyHostRecv([]byte{0x04}) }()
	select {
	case accepted := <-done:
		require.False(t, accepted)
	case <-time.After(time.Second):
		t.Fatal("NotifyHostRecv blocked on full ring")
	}
}

func TestDropInvalidLength(t *testing.T) {
	tctx := newTestTransport(t, smallConfig())
	require.False(t, tctx.tr.NotifyHostRecv(nil))
	require.False(t, tctx.tr.NotifyHostRecv(make([]byte, 99)))
	require.Equal(t, uint64(2), tctx.tr.Stats().DroppedInvalid)
	require.Equal(t, 0, tctx.tr.ring.BytesAvailable())
	require.Equal(t, int32(2), tctx.scheduler.triggers.Load())
	require.False(t, tctx.tr.packetsToDeliver.Load())

	tctx.poll().expectPackets()
	require.Equal(t, uint64(2), tctx.tr.reported.DroppedInvalid)
}

func TestDropWhenFullRequestsWake(t *testing.T) {
	tctx := newTestTransport(t, smallConfig())
	require.True(t, tctx.tr.NotifyHostRecv(make([]byte, 98)))
	require.Equal(t, int32(1), tctx.scheduler.triggers.Load())

	require.False(t, tctx.tr.NotifyHostRecv(make([]byte, 98)))
	require.Equal(t, int32(2), tctx.scheduler.triggers.Load())
	require.Equal(t, uint64(0), tctx.tr.reported.DroppedFull)

	tctx.poll()
	require.Equal(t, uint64(1), tctx.tr.reported.DroppedFull)
	require.Len(t, tctx.recorder.packets, 1)
}

func TestForbiddenContext(t *testing.T) {
	tctx := newTestTransport(t, smallConfig())
	tctx.tr.InterruptContext = func() bool { return true }

	require.False(t, tctx.tr.NotifyHostRecv([]byte{0x04, 0x0e}))
	tctx.tr.NotifyHostSendAvailable()
	require.Equal(t, 0, tctx.tr.ring.BytesAvailable())
	require.False(t, tctx.tr.sendReady.Load())
	require.False(t, tctx.tr.packetsToDeliver.Load())
	require.Equal(t, int32(0), tctx.scheduler.triggers.Load())
	require.Equal(t, uint64(2), tctx.tr.Stats().ForbiddenContext)

	tctx.poll().expectPackets()

	tctx.tr.InterruptContext = func() bool { return false }
	require.True(t, tctx.tr.NotifyHostRecv([]byte{0x04, 0x0e}))
	tctx.poll().expectPackets(receivedPacket{Type: hci.EventPacket, Data: []byte{0x0e}})
}

func TestHandlerUnsetKeepsPending(t *testing.T) {
	tctx := newTestTransport(t, smallConfig())
	tctx.tr.RegisterPacketHandler(nil)
	tctx.tr.NotifyHostSendAvailable()
	require.True(t, tctx.tr.NotifyHostRecv([]byte{0x04, 0x01}))
	triggers := tctx.scheduler.triggers.Load()

	tctx.poll()
	require.Equal(t, uint64(1), tctx.tr.Stats().HandlerUnset)
	require.Equal(t, 4, tctx.tr.ring.BytesAvailable())
	require.True(t, tctx.tr.unsetReported)
	// every wake is counted, only the first one is logged.
	tctx.poll().poll()
	require.Equal(t, uint64(3), tctx.tr.Stats().HandlerUnset)
	require.True(t, tctx.tr.unsetReported)

	tctx.tr.RegisterPacketHandler(tctx.recorder)
	require.False(t, tctx.tr.unsetReported)
	require.Equal(t, triggers+1, tctx.scheduler.triggers.Load())
	tctx.poll().expectPackets(packetSent(), receivedPacket{Type: hci.EventPacket, Data: []byte{0x01}})
}

func TestHandlerReplaced(t *testing.T) {
	tctx := newTestTransport(t, smallConfig())
	var other packetRecorder
	tctx.tr.RegisterPacketHandler(&other)
	require.True(t, tctx.tr.NotifyHostRecv([]byte{0x04, 0x01}))
	tctx.poll().expectPackets()
	require.Len(t, other.packets, 1)
}

func TestHandlerUnregistersDuringDrain(t *testing.T) {
	tctx := newTestTransport(t, smallConfig())
	var count int
	tctx.tr.RegisterPacketHandler(HandlePacketFunc(func(ctx context.Context, pt hci.PacketType, pkt []byte) {
		count++
		tctx.tr.RegisterPacketHandler(nil)
	}))
	require.True(t, tctx.tr.NotifyHostRecv([]byte{0x04, 0x01}))
	require.True(t, tctx.tr.NotifyHostRecv([]byte{0x04, 0x02}))
	tctx.poll()
	require.Equal(t, 1, count)
	require.True(t, tctx.tr.packetsToDeliver.Load())

	tctx.tr.RegisterPacketHandler(tctx.recorder)
	tctx.poll().expectPackets(receivedPacket{Type: hci.EventPacket, Data: []byte{0x02}})
}

func TestDeliverIncomingPreBuffer(t *testing.T) {
	conf := smallConfig()
	conf.IncomingPreBufferSize = 8
	tctx := newTestTransport(t, conf)
	var addr *byte
	tctx.tr.RegisterPacketHandler(HandlePacketFunc(func(ctx context.Context, pt hci.PacketType, pkt []byte) {
		addr = &pkt[0]
	}))
	require.True(t, tctx.tr.NotifyHostRecv([]byte{0x04, 0x0e, 0x00}))
	tctx.poll()
	require.Equal(t, &tctx.tr.scratch[conf.IncomingPreBufferSize+1], addr)
}

func seqPacket(seq uint32) []byte {
	pkt := make([]byte, 5)
	pkt[0] = byte(hci.ACLDataPacket)
	binary.LittleEndian.PutUint32(pkt[1:], seq)
	return pkt
}

func TestConcurrentFIFO(t *testing.T) {
	const total = 2000
	ctl := &fakeController{}
	loop := fx.NewLoop()
	loop.Interval = time.Millisecond
	tr := New(smallConfig(), NewResource(ctl))
	require.NoError(t, tr.Init(loop))
	require.NoError(t, tr.Open())

	seqCh := make(chan uint32, total)
	tr.RegisterPacketHandler(HandlePacketFunc(func(ctx context.Context, pt hci.PacketType, pkt []byte) {
		if pt == hci.ACLDataPacket {
			seqCh <- binary.LittleEndian.Uint32(pkt)
		}
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	go func() {
		for seq := uint32(0); seq < total; {
			if ctl.callbacks.NotifyHostRecv(seqPacket(seq)) {
				seq++
			} else {
				time.Sleep(10 * time.Microsecond)
			}
		}
	}()

	for expect := uint32(0); expect < total; expect++ {
		select {
		case seq := <-seqCh:
			require.Equal(t, expect, seq)
		case <-time.After(5 * time.Second):
			t.Fatalf("timeout waiting for packet %d", expect)
		}
	}
}

func TestWakeFlagNotLost(t *testing.T) {
	for round := 0; round < 50; round++ {
		tctx := newTestTransport(t, smallConfig())
		var accepted, sendReady int
		var wg sync.WaitGroup
		done := make(chan struct{})
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(done)
			for i := 0; i < 200; i++ {
				if tctx.tr.NotifyHostRecv(seqPacket(uint32(i))) {
					accepted++
				}
				if i%10 == 0 {
					tctx.tr.NotifyHostSendAvailable()
					sendReady++
				}
			}
		}()

		var delivered, notified int
		tctx.tr.RegisterPacketHandler(HandlePacketFunc(func(ctx context.Context, pt hci.PacketType, pkt []byte) {
			if hci.IsTransportPacketSent(pt, pkt) {
				notified++
			} else {
				delivered++
			}
		}))
	drain:
		for {
			select {
			case <-done:
				break drain
			default:
				tctx.poll()
			}
		}
		wg.Wait()
		tctx.poll()

		require.Equal(t, accepted, delivered)
		require.True(t, notified >= 1 && notified <= sendReady)
		require.Equal(t, 0, tctx.tr.ring.BytesAvailable())
		require.False(t, tctx.tr.sendReady.Load())
		require.False(t, tctx.tr.packetsToDeliver.Load())
	}
}

func TestProcessIgnoresOtherCallbacks(t *testing.T) {
	tctx := newTestTransport(t, smallConfig())
	require.True(t, tctx.tr.NotifyHostRecv([]byte{0x04, 0x01}))
	tctx.tr.Process(context.Background(), fx.CallbackType(0x80))
	tctx.expectPackets()
}
