package vhci

import (
	"sync/atomic"

	"github.com/golang/glog"
)

// Stats is a snapshot of transport counters.
type Stats struct {
	Received         uint64 `json:"received"`
	Delivered        uint64 `json:"delivered"`
	DroppedFull      uint64 `json:"dropped_full"`
	DroppedInvalid   uint64 `json:"dropped_invalid"`
	ForbiddenContext uint64 `json:"forbidden_context"`
	HandlerUnset     uint64 `json:"handler_unset"`
	SendReady        uint64 `json:"send_ready"`
	Sent             uint64 `json:"sent"`
}

// Dropped returns the number of received packets which weren't buffered.
func (s Stats) Dropped() uint64 {
	return s.DroppedFull + s.DroppedInvalid
}

// counters are updated from both contexts, the producer only increments.
type counters struct {
	received         atomic.Uint64
	delivered        atomic.Uint64
	droppedFull      atomic.Uint64
	droppedInvalid   atomic.Uint64
	forbiddenContext atomic.Uint64
	handlerUnset     atomic.Uint64
	sendReady        atomic.Uint64
	sent             atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Received:         c.received.Load(),
		Delivered:        c.delivered.Load(),
		DroppedFull:      c.droppedFull.Load(),
		DroppedInvalid:   c.droppedInvalid.Load(),
		ForbiddenContext: c.forbiddenContext.Load(),
		HandlerUnset:     c.handlerUnset.Load(),
		SendReady:        c.sendReady.Load(),
		Sent:             c.sent.Load(),
	}
}

// Stats returns current counters.
func (t *Transport) Stats() Stats {
	return t.counters.snapshot()
}

// reportProducerErrors logs errors counted by the producer since the last
// report. The producer never logs by itself.
func (t *Transport) reportProducerErrors() {
	cur := t.counters.snapshot()
	last := t.reported
	if n := cur.DroppedFull - last.DroppedFull; n > 0 {
		glog.Warningf("vhci: %d packets dropped: %v", n, ErrBufferFull)
	}
	if n := cur.DroppedInvalid - last.DroppedInvalid; n > 0 {
		glog.Warningf("vhci: %d packets dropped: invalid length", n)
	}
	if n := cur.ForbiddenContext - last.ForbiddenContext; n > 0 {
		glog.Errorf("vhci: %d host callbacks %v", n, ErrForbiddenContext)
	}
	t.reported = cur
}
