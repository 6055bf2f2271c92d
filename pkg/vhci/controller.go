package vhci

import (
	"sync"

	"github.com/golang/glog"
)

// HostCallbacks are invoked by the controller, possibly from a restricted
// context. Implementations must return promptly.
type HostCallbacks interface {
	// NotifyHostSendAvailable signals the controller can accept the next packet.
	NotifyHostSendAvailable()
	// NotifyHostRecv hands a received packet (packet type first) to the host.
	// data is only valid during the call.
	NotifyHostRecv(data []byte) bool
}

// Controller is the virtual HCI controller driven by the transport.
type Controller interface {
	// Init performs the one-time hardware initialization.
	Init() error
	// Enable enables the controller in the given mode.
	Enable(Mode) error
	// Disable disables the controller.
	Disable() error
	// RegisterHostCallbacks installs the callbacks for received packets and
	// send readiness.
	RegisterHostCallbacks(HostCallbacks)
	// CheckSendAvailable reports if a packet can be sent now.
	CheckSendAvailable() bool
	// SendPacket sends a packet with the packet type as the first byte.
	SendPacket(pkt []byte)
}

// MemReleaser is implemented by controllers able to release the memory of
// an unused mode before Init.
type MemReleaser interface {
	MemRelease(Mode) error
}

// Resource wraps the process-wide Controller and guards its one-time init,
// which must not be repeated across multiple transport opens.
type Resource struct {
	Controller Controller

	lock        sync.Mutex
	initialized bool
	initErr     error
}

// NewResource creates a Resource for the controller.
func NewResource(ctl Controller) *Resource {
	return &Resource{Controller: ctl}
}

// InitOnce runs the controller init at most once. Init is never retried:
// if it failed, the same error is returned on every later call.
func (r *Resource) InitOnce(mode Mode) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.initialized {
		return r.initErr
	}
	r.initialized = true

	if mode == ModeBLE {
		if releaser, ok := r.Controller.(MemReleaser); ok {
			if err := releaser.MemRelease(ModeClassic); err != nil {
				r.initErr = &ControllerError{Op: OpMemRelease, Mode: ModeClassic, Err: err}
				glog.Errorf("vhci: %v", r.initErr)
				return r.initErr
			}
		}
	}
	if err := r.Controller.Init(); err != nil {
		r.initErr = &ControllerError{Op: OpInit, Mode: mode, Err: err}
		glog.Errorf("vhci: %v", r.initErr)
	}
	return r.initErr
}

// Initialized reports whether InitOnce has been attempted.
func (r *Resource) Initialized() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.initialized
}
