package vhci

// Host callbacks, run by the controller. They never log, allocate or run
// handler code: drops are counted and a wake is requested so Process
// reports them. Calls from a forbidden context only count.

func (t *Transport) inInterrupt() bool {
	return t.InterruptContext != nil && t.InterruptContext()
}

// NotifyHostSendAvailable implements HostCallbacks.
func (t *Transport) NotifyHostSendAvailable() {
	if t.inInterrupt() {
		t.counters.forbiddenContext.Add(1)
		return
	}
	t.counters.sendReady.Add(1)
	t.sendReady.Store(true)
	t.scheduler.Trigger()
}

// NotifyHostRecv implements HostCallbacks. It returns false if the packet
// is dropped, which happens when the ring is full: there's no backpressure
// toward the controller.
func (t *Transport) NotifyHostRecv(data []byte) bool {
	if t.inInterrupt() {
		t.counters.forbiddenContext.Add(1)
		return false
	}
	if len(data) == 0 || len(data) > len(t.recvBuf) {
		t.counters.droppedInvalid.Add(1)
		t.scheduler.Trigger()
		return false
	}
	if err := t.ring.WriteRecord(data); err != nil {
		t.counters.droppedFull.Add(1)
		t.scheduler.Trigger()
		return false
	}
	t.counters.received.Add(1)
	t.packetsToDeliver.Store(true)
	t.scheduler.Trigger()
	return true
}
