// Package bridge exposes a vhci transport as an upper stack endpoint
// reachable over a publish/subscribe broker.
package bridge

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/hci.go/pkg/bridge/mqtt"
	fx "github.com/robotalks/hci.go/pkg/framework"
	"github.com/robotalks/hci.go/pkg/hci"
	"github.com/robotalks/hci.go/pkg/msgs"
	"github.com/robotalks/hci.go/pkg/vhci"
)

// DefaultMaxPending is the default number of outgoing packets queued while
// the controller isn't ready.
const DefaultMaxPending = 64

// PubSub is the broker used by the Bridge, implemented by mqtt.Queue.
type PubSub interface {
	Publish(topic string, payload []byte, retain bool) error
	PublishAsync(topic string, payload []byte, done func(error))
	Subscribe(topic string, handler func(topic string, payload []byte)) (io.Closer, error)
}

// Transport is the part of vhci.Transport used by the Bridge.
type Transport interface {
	RegisterPacketHandler(vhci.PacketHandler)
	CanSendPacketNow(hci.PacketType) bool
	NewPacketBuffer(size int) []byte
	PacketPayload(buf []byte) []byte
	SendPacket(hci.PacketType, []byte) error
	Stats() vhci.Stats
}

// Bridge publishes every packet received from the controller and sends
// packets from clients to the controller. Outgoing packets are queued on
// the loop and flushed whenever the transport reports it's ready to send.
type Bridge struct {
	Info          msgs.DeviceInfo
	Topics        mqtt.Topics
	MaxPending    int
	StatsInterval time.Duration

	transport Transport
	pubsub    PubSub
	scheduler fx.Scheduler

	pending []*msgs.Packet
	rxSeq   uint64

	queued      atomic.Uint64
	dropped     atomic.Uint64
	rxPubErrors atomic.Uint64
}

// New creates a Bridge and registers it as the packet handler of tr.
func New(info msgs.DeviceInfo, tr Transport, pubsub PubSub) *Bridge {
	b := &Bridge{
		Info:       info,
		Topics:     mqtt.DeviceTopics(info.ID),
		MaxPending: DefaultMaxPending,
		transport:  tr,
		pubsub:     pubsub,
	}
	tr.RegisterPacketHandler(b)
	return b
}

// Name implements framework.Named.
func (b *Bridge) Name() string {
	return "bridge"
}

// AddToLoop implements LoopAdder.
func (b *Bridge) AddToLoop(loop *fx.Loop) {
	b.scheduler = loop
	loop.AddRunnable(b)
}

// HandlePacket implements vhci.PacketHandler.
func (b *Bridge) HandlePacket(ctx context.Context, packetType hci.PacketType, packet []byte) {
	if hci.IsTransportPacketSent(packetType, packet) {
		b.flush()
		return
	}
	b.rxSeq++
	payload, err := msgs.Encode(msgs.NewPacket(packetType, packet, b.rxSeq))
	if err != nil {
		glog.Errorf("bridge: encode %s: %v", packetType, err)
		return
	}
	// runs on the loop, never wait for the broker here.
	b.pubsub.PublishAsync(b.Topics.RX, payload, func(err error) {
		if err != nil {
			b.rxPubErrors.Add(1)
			glog.Errorf("bridge: publish %s: %v", packetType, err)
		}
	})
}

// PublishErrors returns the number of received packets failed to publish.
func (b *Bridge) PublishErrors() uint64 {
	return b.rxPubErrors.Load()
}

// Run implements Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	sub, err := b.pubsub.Subscribe(b.Topics.TX, b.handleTX)
	if err != nil {
		return err
	}
	if err := b.publishMeta(&b.Info); err != nil {
		sub.Close()
		return err
	}

	var ticker <-chan time.Time
	if b.StatsInterval > 0 {
		t := time.NewTicker(b.StatsInterval)
		defer t.Stop()
		ticker = t.C
	}
	for {
		select {
		case <-ctx.Done():
			var errs fx.AggregatedError
			errs.Add(sub.Close())
			errs.Add(b.publishMeta(nil))
			if err := errs.Aggregate(); err != nil {
				glog.Warningf("bridge: shutdown: %v", err)
			}
			return ctx.Err()
		case <-ticker:
			b.publishStats()
		}
	}
}

// Stats returns the transport counters with the bridge TX counters.
func (b *Bridge) Stats() *msgs.StatsReport {
	s := b.transport.Stats()
	return &msgs.StatsReport{
		Received:         s.Received,
		Delivered:        s.Delivered,
		DroppedFull:      s.DroppedFull,
		DroppedInvalid:   s.DroppedInvalid,
		ForbiddenContext: s.ForbiddenContext,
		HandlerUnset:     s.HandlerUnset,
		SendReady:        s.SendReady,
		Sent:             s.Sent,
		TxQueued:         b.queued.Load(),
		TxDropped:        b.dropped.Load(),
	}
}

func (b *Bridge) publishMeta(info *msgs.DeviceInfo) error {
	var payload []byte
	if info != nil {
		var err error
		if payload, err = msgs.Encode(info); err != nil {
			return err
		}
	}
	return b.pubsub.Publish(b.Topics.Meta, payload, true)
}

func (b *Bridge) publishStats() {
	report := b.Stats()
	glog.Infof("bridge: stats %s", report.String())
	payload, err := msgs.Encode(report)
	if err == nil {
		err = b.pubsub.Publish(b.Topics.Stats, payload, false)
	}
	if err != nil {
		glog.Warningf("bridge: publish stats: %v", err)
	}
}

// handleTX runs on the broker goroutine.
func (b *Bridge) handleTX(topic string, payload []byte) {
	pkt, err := msgs.DecodePacket(payload)
	if err != nil {
		glog.Warningf("bridge: %s: bad packet: %v", topic, err)
		return
	}
	b.scheduler.Post(func(ctx context.Context) {
		b.enqueue(pkt)
		b.flush()
	})
}

func (b *Bridge) enqueue(pkt *msgs.Packet) {
	max := b.MaxPending
	if max <= 0 {
		max = DefaultMaxPending
	}
	if len(b.pending) >= max {
		b.dropped.Add(1)
		glog.Warningf("bridge: TX queue full, %s seq %d dropped", pkt.PacketType(), pkt.Seq)
		return
	}
	b.queued.Add(1)
	b.pending = append(b.pending, pkt)
}

// flush sends queued packets in order while the controller accepts them.
func (b *Bridge) flush() {
	for len(b.pending) > 0 {
		pkt := b.pending[0]
		if !b.transport.CanSendPacketNow(pkt.PacketType()) {
			return
		}
		buf := b.transport.NewPacketBuffer(len(pkt.Data))
		copy(b.transport.PacketPayload(buf), pkt.Data)
		if err := b.transport.SendPacket(pkt.PacketType(), buf); err != nil {
			glog.Errorf("bridge: send %s seq %d: %v", pkt.PacketType(), pkt.Seq, err)
			return
		}
		b.pending[0] = nil
		b.pending = b.pending[1:]
	}
}

// Pending returns the number of queued outgoing packets. Loop goroutine only.
func (b *Bridge) Pending() int {
	return len(b.pending)
}
