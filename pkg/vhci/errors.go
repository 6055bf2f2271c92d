package vhci

import (
	"errors"
	"fmt"

	"github.com/robotalks/hci.go/pkg/ringbuf"
)

var (
	// ErrBufferFull indicates a received packet was dropped for lack of ring space.
	ErrBufferFull = ringbuf.ErrBufferFull
	// ErrForbiddenContext indicates a callback was invoked from interrupt context.
	ErrForbiddenContext = errors.New("called from forbidden context")
	// ErrControllerInitFailed indicates the one-time controller init failed.
	ErrControllerInitFailed = errors.New("controller init failed")
	// ErrControllerEnableFailed indicates the controller can't be enabled.
	ErrControllerEnableFailed = errors.New("controller enable failed")
	// ErrControllerDisableFailed indicates the controller can't be disabled.
	ErrControllerDisableFailed = errors.New("controller disable failed")
	// ErrHandlerUnset indicates packets are pending without a registered handler.
	ErrHandlerUnset = errors.New("packet handler not registered")
	// ErrNotInitialized indicates Init hasn't been called.
	ErrNotInitialized = errors.New("transport not initialized")
	// ErrAlreadyInitialized indicates Init is called more than once.
	ErrAlreadyInitialized = errors.New("transport already initialized")
	// ErrNotOpen indicates the transport is closed.
	ErrNotOpen = errors.New("transport not open")
	// ErrAlreadyOpen indicates Open is called on an open transport.
	ErrAlreadyOpen = errors.New("transport already open")
	// ErrNoPreBuffer indicates an outgoing buffer lacks the reserved margin.
	ErrNoPreBuffer = errors.New("outgoing packet without pre-buffer")
	// ErrInvalidConfig indicates the configuration can't size the transport.
	ErrInvalidConfig = errors.New("invalid config")
)

// ControllerOp names a controller operation.
type ControllerOp string

// Controller operations.
const (
	OpMemRelease ControllerOp = "mem-release"
	OpInit       ControllerOp = "init"
	OpEnable     ControllerOp = "enable"
	OpDisable    ControllerOp = "disable"
)

// ControllerError wraps errors from the controller.
type ControllerError struct {
	Op   ControllerOp
	Mode Mode
	Err  error
}

// Error implements error.
func (e *ControllerError) Error() string {
	return fmt.Sprintf("controller %s (mode %s): %v", e.Op, e.Mode, e.Err)
}

// Unwrap returns the error reported by the controller.
func (e *ControllerError) Unwrap() error {
	return e.Err
}

// Is maps the failed operation to the matching sentinel error.
func (e *ControllerError) Is(target error) bool {
	switch e.Op {
	case OpMemRelease, OpInit:
		return target == ErrControllerInitFailed
	case OpEnable:
		return target == ErrControllerEnableFailed
	case OpDisable:
		return target == ErrControllerDisableFailed
	}
	return false
}
