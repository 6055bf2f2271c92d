// Package controller provides vhci.Controller implementations.
package controller

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/hci.go/pkg/comm"
	fx "github.com/robotalks/hci.go/pkg/framework"
	"github.com/robotalks/hci.go/pkg/hci"
	"github.com/robotalks/hci.go/pkg/vhci"
)

// DefaultQueueSize is the default number of outgoing packets buffered.
const DefaultQueueSize = 8

var (
	// ErrNoConnection indicates Init is called without a packet connection.
	ErrNoConnection = errors.New("no controller connection")
	// ErrNotEnabled indicates the link isn't enabled.
	ErrNotEnabled = errors.New("controller not enabled")
	// ErrModeReleased indicates the memory of the requested mode was released.
	ErrModeReleased = errors.New("controller mode released")
)

// Link is a vhci.Controller reached over a packet connection, where each
// packet is H4 framed. Received packets are handed to the host from the
// reader goroutine, the way a vendor task would do it.
type Link struct {
	Conn comm.PacketReadWriter
	// ResetOnInit sends HCI_Reset once during Init.
	ResetOnInit bool

	txCh      chan []byte
	lock      sync.RWMutex
	enabled   bool
	mode      vhci.Mode
	released  map[vhci.Mode]bool
	callbacks vhci.HostCallbacks

	received atomic.Uint64
	rejected atomic.Uint64
	ignored  atomic.Uint64
	sent     atomic.Uint64
	overflow atomic.Uint64
}

// LinkStats are the counters of a Link.
type LinkStats struct {
	Received uint64 `json:"received"`
	Rejected uint64 `json:"rejected"`
	Ignored  uint64 `json:"ignored"`
	Sent     uint64 `json:"sent"`
	Overflow uint64 `json:"overflow"`
}

// NewLink creates a Link over conn buffering up to queueSize outgoing
// packets.
func NewLink(conn comm.PacketReadWriter, queueSize int) *Link {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Link{Conn: conn, txCh: make(chan []byte, queueSize)}
}

// Name implements framework.Named.
func (l *Link) Name() string {
	return "controller-link"
}

// Init implements vhci.Controller.
func (l *Link) Init() error {
	if l.Conn == nil {
		return ErrNoConnection
	}
	if l.ResetOnInit {
		pkt := append([]byte{byte(hci.CommandPacket)}, hci.ResetCommand()...)
		if err := l.Conn.WritePacket(pkt); err != nil {
			return err
		}
	}
	return nil
}

// MemRelease implements vhci.MemReleaser. A released mode can't be enabled
// afterwards, neither can dual mode.
func (l *Link) MemRelease(mode vhci.Mode) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.released == nil {
		l.released = make(map[vhci.Mode]bool)
	}
	l.released[mode] = true
	glog.V(2).Infof("controller: %s memory released", mode)
	return nil
}

// Enable implements vhci.Controller.
func (l *Link) Enable(mode vhci.Mode) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.released[mode] || (mode == vhci.ModeDual && len(l.released) > 0) {
		return ErrModeReleased
	}
	l.enabled, l.mode = true, mode
	glog.Infof("controller: enabled, mode %s", mode)
	return nil
}

// Mode returns the enabled mode.
func (l *Link) Mode() (vhci.Mode, bool) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.mode, l.enabled
}

// Disable implements vhci.Controller.
func (l *Link) Disable() error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if !l.enabled {
		return ErrNotEnabled
	}
	l.enabled = false
	glog.Info("controller: disabled")
	return nil
}

// RegisterHostCallbacks implements vhci.Controller.
func (l *Link) RegisterHostCallbacks(cb vhci.HostCallbacks) {
	l.lock.Lock()
	l.callbacks = cb
	l.lock.Unlock()
}

// CheckSendAvailable implements vhci.Controller.
func (l *Link) CheckSendAvailable() bool {
	return l.isEnabled() && len(l.txCh) < cap(l.txCh)
}

// SendPacket implements vhci.Controller. The packet is copied, an overflow
// is counted and the packet dropped.
func (l *Link) SendPacket(pkt []byte) {
	if !l.isEnabled() {
		l.overflow.Add(1)
		return
	}
	select {
	case l.txCh <- append([]byte(nil), pkt...):
	default:
		l.overflow.Add(1)
		glog.Warningf("controller: TX queue full, %s dropped", hci.PacketType(pkt[0]))
	}
}

// Stats returns the counters.
func (l *Link) Stats() LinkStats {
	return LinkStats{
		Received: l.received.Load(),
		Rejected: l.rejected.Load(),
		Ignored:  l.ignored.Load(),
		Sent:     l.sent.Load(),
		Overflow: l.overflow.Load(),
	}
}

func (l *Link) isEnabled() bool {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.enabled
}

func (l *Link) hostCallbacks() vhci.HostCallbacks {
	l.lock.RLock()
	defer l.lock.RUnlock()
	if !l.enabled {
		return nil
	}
	return l.callbacks
}

// Run implements Runnable. It reads packets until the connection fails or
// ctx is canceled, and writes queued packets in the background.
func (l *Link) Run(ctx context.Context) error {
	closer, ok := l.Conn.(io.Closer)
	if !ok {
		closer = io.NopCloser(nil)
	}
	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go l.writeLoop(writeCtx)
	err := fx.RunWithContextCloser(ctx, closer, l.readLoop)
	if errors.Is(err, io.EOF) {
		err = nil
	}
	return err
}

func (l *Link) readLoop() error {
	for {
		pkt, err := l.Conn.ReadPacket()
		if err != nil {
			return err
		}
		if len(pkt) == 0 {
			continue
		}
		cb := l.hostCallbacks()
		if cb == nil {
			l.ignored.Add(1)
			glog.V(4).Infof("controller: %s ignored, not enabled", hci.PacketType(pkt[0]))
			continue
		}
		if cb.NotifyHostRecv(pkt) {
			l.received.Add(1)
		} else {
			l.rejected.Add(1)
		}
	}
}

func (l *Link) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case pkt := <-l.txCh:
			if err := l.Conn.WritePacket(pkt); err != nil {
				glog.Errorf("controller: write %s: %v", hci.PacketType(pkt[0]), err)
				continue
			}
			l.sent.Add(1)
			if cb := l.hostCallbacks(); cb != nil {
				cb.NotifyHostSendAvailable()
			}
		}
	}
}
