package ringbuf

import "sync"

// Locked guards a Ring with a mutex held for exactly one record operation,
// so a producer and a consumer never observe a torn record.
type Locked struct {
	ring *Ring
	lock sync.Mutex
}

// NewLocked creates a Locked ring of capacity bytes.
func NewLocked(capacity int) *Locked {
	return &Locked{ring: NewRing(capacity)}
}

// Capacity returns the ring capacity.
func (l *Locked) Capacity() int {
	return l.ring.Capacity()
}

// BytesAvailable returns the number of buffered bytes.
func (l *Locked) BytesAvailable() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.ring.BytesAvailable()
}

// BytesFree returns the number of free bytes.
func (l *Locked) BytesFree() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.ring.BytesFree()
}

// Reset discards all records.
func (l *Locked) Reset() {
	l.lock.Lock()
	l.ring.Reset()
	l.lock.Unlock()
}

// WriteRecord writes p as one record.
func (l *Locked) WriteRecord(p []byte) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.ring.WriteRecord(p)
}

// ReadRecord reads the next record (tag and payload) into dst.
func (l *Locked) ReadRecord(dst []byte) (int, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.ring.ReadRecord(dst)
}
