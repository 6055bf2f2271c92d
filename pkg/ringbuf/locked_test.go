package ringbuf

import (
	"encoding/binary"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLockedConcurrentFIFO(t *testing.T) {
	const total = 10000
	l := NewLocked(64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var p [4]byte
		for seq := uint32(0); seq < total; {
			binary.LittleEndian.PutUint32(p[:], seq)
			if l.WriteRecord(p[:]) == nil {
				seq++
			} else {
				runtime.Gosched()
			}
		}
	}()

	dst := make([]byte, 8)
	for expect := uint32(0); expect < total; {
		n, err := l.ReadRecord(dst)
		if err == ErrEmpty {
			runtime.Gosched()
			continue
		}
		require.NoError(t, err)
		require.Equal(t, 4, n)
		require.Equal(t, expect, binary.LittleEndian.Uint32(dst))
		expect++
	}
	wg.Wait()
	require.Equal(t, 0, l.BytesAvailable())
	require.Equal(t, l.Capacity(), l.BytesFree())
}

func TestLockedReset(t *testing.T) {
	l := NewLocked(16)
	require.NoError(t, l.WriteRecord([]byte{1}))
	l.Reset()
	require.Equal(t, 0, l.BytesAvailable())
}
