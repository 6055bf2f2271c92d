package vhci

import (
	"context"

	"github.com/golang/glog"

	fx "github.com/robotalks/hci.go/pkg/framework"
	"github.com/robotalks/hci.go/pkg/hci"
	"github.com/robotalks/hci.go/pkg/ringbuf"
)

// Process implements framework.DataSource. The send readiness notification
// is always delivered before buffered packets.
func (t *Transport) Process(ctx context.Context, callbackType fx.CallbackType) {
	if callbackType != fx.CallbackPoll {
		return
	}
	t.reportProducerErrors()

	if t.handler == nil {
		// flags are left set so nothing is lost once a handler registers.
		if t.sendReady.Load() || t.packetsToDeliver.Load() {
			t.counters.handlerUnset.Add(1)
			if !t.unsetReported {
				t.unsetReported = true
				glog.Errorf("vhci: %v, %d bytes pending", ErrHandlerUnset, t.ring.BytesAvailable())
			}
		}
		return
	}
	if t.sendReady.Swap(false) {
		t.notifyPacketSent(ctx)
	}
	if t.packetsToDeliver.Swap(false) {
		t.deliverPackets(ctx)
	}
}

func (t *Transport) notifyPacketSent(ctx context.Context) {
	var event [2]byte
	copy(event[:], hci.TransportPacketSent())
	t.handler.HandlePacket(ctx, hci.EventPacket, event[:])
}

func (t *Transport) deliverPackets(ctx context.Context) {
	for {
		if t.handler == nil {
			// unregistered by the handler itself.
			t.packetsToDeliver.Store(true)
			return
		}
		n, err := t.ring.ReadRecord(t.recvBuf)
		switch err {
		case nil:
		case ringbuf.ErrEmpty:
			return
		default:
			// NotifyHostRecv never buffers records larger than recvBuf.
			glog.Errorf("vhci: ring corrupted (%v), reset", err)
			t.ring.Reset()
			return
		}
		t.counters.delivered.Add(1)
		if glog.V(2) {
			glog.Infof("vhci: RX %s %d bytes", hci.PacketType(t.recvBuf[0]), n-1)
		}
		t.handler.HandlePacket(ctx, hci.PacketType(t.recvBuf[0]), t.recvBuf[1:n])
	}
}
