package mqtt

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/hci.go/pkg/hci"
	"github.com/robotalks/hci.go/pkg/msgs"
)

// ReadWriter implements comm.PacketReadWriter for upper stack clients:
// H4 framed packets are read from the device rx topic and written to the
// device tx topic.
type ReadWriter struct {
	Queue  *Queue
	Topics Topics

	seq      uint64
	seqLock  sync.Mutex
	packetCh chan []byte
	closed   chan struct{}
	once     sync.Once
}

// NewPacketReadWriter creates the ReadWriter for device id.
func NewPacketReadWriter(q *Queue, id string) *ReadWriter {
	return &ReadWriter{
		Queue:    q,
		Topics:   DeviceTopics(id),
		packetCh: make(chan []byte, 16),
		closed:   make(chan struct{}),
	}
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.packetCh:
		return pkt, nil
	case <-p.closed:
		return nil, io.EOF
	}
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	if len(pkt) < 2 {
		return msgs.ErrEmptyPacket
	}
	p.seqLock.Lock()
	p.seq++
	seq := p.seq
	p.seqLock.Unlock()
	payload, err := msgs.Encode(msgs.NewPacket(hci.PacketType(pkt[0]), pkt[1:], seq))
	if err != nil {
		return err
	}
	return p.Queue.Publish(p.Topics.TX, payload, false)
}

// Close implements io.Closer.
func (p *ReadWriter) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

// Run implements Runnable.
func (p *ReadWriter) Run(ctx context.Context) error {
	sub, err := p.Queue.Subscribe(p.Topics.RX, p.handleMsg)
	if err != nil {
		return err
	}
	defer sub.Close()
	defer p.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.closed:
		return nil
	}
}

func (p *ReadWriter) handleMsg(topic string, payload []byte) {
	pkt, err := msgs.DecodePacket(payload)
	if err != nil {
		glog.Warningf("mqtt: %s: bad packet: %v", topic, err)
		return
	}
	h4 := append([]byte{byte(pkt.Type)}, pkt.Data...)
	select {
	case p.packetCh <- h4:
	case <-p.closed:
	}
}
