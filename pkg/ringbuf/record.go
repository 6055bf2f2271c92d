package ringbuf

import "encoding/binary"

// Each record is stored as a 2-byte little-endian length tag followed by
// that many bytes.
const (
	// TagSize is the size of the length tag.
	TagSize = 2
	// MaxRecordLen is the largest length a tag can encode.
	MaxRecordLen = 0xffff
)

// RecordSize returns the ring space consumed by a record of n bytes.
func RecordSize(n int) int {
	return TagSize + n
}

// WriteRecord stores p as a single record. Either the whole record is
// written or the ring is left untouched.
func (r *Ring) WriteRecord(p []byte) error {
	if len(p) == 0 || len(p) > MaxRecordLen {
		return ErrInvalidRecord
	}
	if RecordSize(len(p)) > r.BytesFree() {
		return ErrBufferFull
	}
	var tag [TagSize]byte
	binary.LittleEndian.PutUint16(tag[:], uint16(len(p)))
	r.Write(tag[:])
	r.Write(p)
	return nil
}

// NextRecordLen returns the length of the next record without consuming it.
func (r *Ring) NextRecordLen() (int, bool) {
	if r.count < TagSize {
		return 0, false
	}
	var tag [TagSize]byte
	r.peek(tag[:])
	return int(binary.LittleEndian.Uint16(tag[:])), true
}

// ReadRecord consumes the next record into dst and returns its length.
// If dst is too small, the record stays in the ring and ErrShortBuffer is
// returned together with the required length.
func (r *Ring) ReadRecord(dst []byte) (int, error) {
	n, ok := r.NextRecordLen()
	if !ok {
		return 0, ErrEmpty
	}
	if n > len(dst) {
		return n, ErrShortBuffer
	}
	if r.count < RecordSize(n) {
		// only reachable if the ring was written with plain Write.
		return 0, ErrEmpty
	}
	r.discard(TagSize)
	r.Read(dst[:n])
	return n, nil
}
