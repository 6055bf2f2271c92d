// Package vhci bridges a virtual HCI controller to a cooperative run loop.
package vhci

// The controller (firmware, vendor task or a driver goroutine) pushes
// received packets through NotifyHostRecv and signals outbound capacity with
// NotifyHostSendAvailable. Both only write into a guarded ring of
// length-prefixed records, raise a wake flag and trigger the loop.
//
// All stack processing happens in Transport.Process, polled on the loop
// goroutine: first the transport-packet-sent notification, then every
// buffered record in FIFO order. The ring lock is never held while the
// registered PacketHandler runs.
//
// Producer: controller
// Consumer: framework.Loop
