// Package ringbuf provides a fixed-capacity byte ring holding
// length-prefixed records.
package ringbuf

import "errors"

var (
	// ErrBufferFull indicates the ring doesn't have enough free space.
	ErrBufferFull = errors.New("buffer full")
	// ErrEmpty indicates there's no complete record to read.
	ErrEmpty = errors.New("buffer empty")
	// ErrInvalidRecord indicates the record length can't be encoded.
	ErrInvalidRecord = errors.New("invalid record length")
	// ErrShortBuffer indicates the destination can't hold the next record.
	ErrShortBuffer = errors.New("short buffer")
)

// Ring is a circular byte buffer of fixed capacity.
// It does no locking, see Locked for concurrent use.
type Ring struct {
	buf   []byte
	read  int
	count int
}

// NewRing creates a Ring of capacity bytes.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		panic("ringbuf: capacity must be positive")
	}
	return &Ring{buf: make([]byte, capacity)}
}

// Capacity returns the total number of bytes the ring can hold.
func (r *Ring) Capacity() int {
	return len(r.buf)
}

// BytesAvailable returns the number of bytes ready to read.
func (r *Ring) BytesAvailable() int {
	return r.count
}

// BytesFree returns the number of bytes which can be written.
func (r *Ring) BytesFree() int {
	return len(r.buf) - r.count
}

// Reset discards all buffered bytes.
func (r *Ring) Reset() {
	r.read, r.count = 0, 0
}

// Write appends all of p, or nothing if p doesn't fit.
func (r *Ring) Write(p []byte) error {
	if len(p) > r.BytesFree() {
		return ErrBufferFull
	}
	w := (r.read + r.count) % len(r.buf)
	n := copy(r.buf[w:], p)
	copy(r.buf, p[n:])
	r.count += len(p)
	return nil
}

// Read consumes up to len(p) bytes into p and returns the number of bytes read.
func (r *Ring) Read(p []byte) int {
	n := r.peek(p)
	r.discard(n)
	return n
}

func (r *Ring) peek(p []byte) int {
	n := len(p)
	if n > r.count {
		n = r.count
	}
	c := copy(p[:n], r.buf[r.read:])
	copy(p[c:n], r.buf)
	return n
}

func (r *Ring) discard(n int) {
	r.read = (r.read + n) % len(r.buf)
	r.count -= n
}
