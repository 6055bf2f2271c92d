package vhci

import (
	"context"
	"sync/atomic"

	"github.com/golang/glog"

	fx "github.com/robotalks/hci.go/pkg/framework"
	"github.com/robotalks/hci.go/pkg/hci"
	"github.com/robotalks/hci.go/pkg/ringbuf"
)

// PacketHandler is called on the loop goroutine for each received packet and
// for the transport-packet-sent notification. packet is only valid during
// the call.
type PacketHandler interface {
	HandlePacket(ctx context.Context, packetType hci.PacketType, packet []byte)
}

// HandlePacketFunc is func type of PacketHandler.
type HandlePacketFunc func(context.Context, hci.PacketType, []byte)

// HandlePacket implements PacketHandler.
func (f HandlePacketFunc) HandlePacket(ctx context.Context, packetType hci.PacketType, packet []byte) {
	f(ctx, packetType, packet)
}

// Transport moves packets between a Controller and a run loop.
// Except for the HostCallbacks, all methods must be called on the loop
// goroutine (or before the loop starts / after it stops).
type Transport struct {
	Config Config
	// InterruptContext reports whether the caller of a host callback runs
	// in a context where blocking is forbidden. nil means never.
	InterruptContext func() bool

	resource  *Resource
	scheduler fx.Scheduler
	ring      *ringbuf.Locked
	scratch   []byte
	recvBuf   []byte
	handler   PacketHandler
	open      bool

	sendReady        atomic.Bool
	packetsToDeliver atomic.Bool

	counters counters
	reported Stats
	// logged once until a handler registers.
	unsetReported bool
}

// New creates a Transport driving the controller resource.
func New(conf Config, res *Resource) *Transport {
	return &Transport{Config: conf, resource: res}
}

// Name implements framework.Named.
func (t *Transport) Name() string {
	return "vhci"
}

// Init sizes the ring and the receive buffer from Config and registers the
// transport as a polled data source.
func (t *Transport) Init(s fx.Scheduler) error {
	if t.ring != nil {
		return ErrAlreadyInitialized
	}
	if err := t.Config.Validate(); err != nil {
		return err
	}
	t.ring = ringbuf.NewLocked(t.Config.RingSize())
	t.scratch = make([]byte, t.Config.IncomingPreBufferSize+t.Config.MaxRecordLen())
	t.recvBuf = t.scratch[t.Config.IncomingPreBufferSize:]
	t.scheduler = s
	s.AddDataSource(t, fx.CallbackPoll)
	glog.Infof("vhci: init ring %d bytes, max packet %d bytes", t.ring.Capacity(), len(t.recvBuf))
	return nil
}

// Open resets the ring, brings up the controller and registers the host
// callbacks. It doesn't retry on failure.
func (t *Transport) Open() error {
	if t.ring == nil {
		return ErrNotInitialized
	}
	if t.open {
		return ErrAlreadyOpen
	}
	t.ring.Reset()
	t.sendReady.Store(false)
	t.packetsToDeliver.Store(false)

	mode := t.Config.Mode
	if err := t.resource.InitOnce(mode); err != nil {
		return err
	}
	if err := t.resource.Controller.Enable(mode); err != nil {
		err = &ControllerError{Op: OpEnable, Mode: mode, Err: err}
		glog.Errorf("vhci: %v", err)
		return err
	}
	t.resource.Controller.RegisterHostCallbacks(t)
	t.open = true
	glog.Infof("vhci: open, mode %s", mode)
	return nil
}

// Close disables the controller. Packets still in the ring are discarded by
// the next Open.
func (t *Transport) Close() error {
	if !t.open {
		return ErrNotOpen
	}
	t.open = false
	if err := t.resource.Controller.Disable(); err != nil {
		err = &ControllerError{Op: OpDisable, Mode: t.Config.Mode, Err: err}
		glog.Errorf("vhci: %v", err)
		return err
	}
	glog.Info("vhci: closed")
	return nil
}

// IsOpen reports whether the transport is open.
func (t *Transport) IsOpen() bool {
	return t.open
}

// RegisterPacketHandler replaces the packet handler.
func (t *Transport) RegisterPacketHandler(h PacketHandler) {
	t.handler = h
	if h != nil {
		t.unsetReported = false
	}
	if h != nil && t.scheduler != nil && (t.sendReady.Load() || t.packetsToDeliver.Load()) {
		t.scheduler.Trigger()
	}
}

// CanSendPacketNow asks the controller if a packet can be sent.
func (t *Transport) CanSendPacketNow(packetType hci.PacketType) bool {
	return t.open && t.resource.Controller.CheckSendAvailable()
}

// NewPacketBuffer allocates an outgoing buffer for a payload of size bytes,
// with the margin SendPacket requires in front of it.
func (t *Transport) NewPacketBuffer(size int) []byte {
	return make([]byte, t.Config.OutgoingPreBufferSize+size)
}

// PacketPayload returns the payload part of a buffer from NewPacketBuffer.
func (t *Transport) PacketPayload(buf []byte) []byte {
	return buf[t.Config.OutgoingPreBufferSize:]
}

// SendPacket sends the payload in buf after the first
// Config.OutgoingPreBufferSize bytes. The margin is owned by the transport:
// the packet type is stored right before the payload so the packet is
// handed to the controller without copying.
//
// A controller side failure isn't reported here, the controller signals
// readiness again through NotifyHostSendAvailable.
func (t *Transport) SendPacket(packetType hci.PacketType, buf []byte) error {
	if !t.open {
		return ErrNotOpen
	}
	margin := t.Config.OutgoingPreBufferSize
	if margin < 1 || len(buf) < margin {
		return ErrNoPreBuffer
	}
	pkt := buf[margin-1:]
	pkt[0] = byte(packetType)
	t.counters.sent.Add(1)
	if glog.V(2) {
		glog.Infof("vhci: TX %s %d bytes", packetType, len(pkt)-1)
	}
	t.resource.Controller.SendPacket(pkt)
	return nil
}
