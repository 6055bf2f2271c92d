package msgs

import (
	"errors"
	"fmt"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/hci.go/pkg/hci"
)

// ErrEmptyPacket indicates a Packet without data.
var ErrEmptyPacket = errors.New("empty packet")

// Packet is an HCI packet with its H4 packet type.
type Packet struct {
	Type uint32 `protobuf:"varint,1,opt,name=type,proto3" json:"type,omitempty"`
	Data []byte `protobuf:"bytes,2,opt,name=data,proto3" json:"data,omitempty"`
	Seq  uint64 `protobuf:"varint,3,opt,name=seq,proto3" json:"seq,omitempty"`
}

// NewPacket creates a Packet, data is not copied.
func NewPacket(packetType hci.PacketType, data []byte, seq uint64) *Packet {
	return &Packet{Type: uint32(packetType), Data: data, Seq: seq}
}

// ProtoMessage implements proto.Message.
func (m *Packet) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Packet) Reset() { *m = Packet{} }

// String implements proto.Message.
func (m *Packet) String() string { return proto.CompactTextString(m) }

// PacketType returns the H4 packet type.
func (m *Packet) PacketType() hci.PacketType { return hci.PacketType(m.Type) }

// Validate checks the packet can be sent to a controller.
func (m *Packet) Validate() error {
	if m.Type == 0 || m.Type > 0xff {
		return fmt.Errorf("invalid packet type %d", m.Type)
	}
	if len(m.Data) == 0 {
		return ErrEmptyPacket
	}
	return nil
}

// DeviceInfo describes a bridged controller.
type DeviceInfo struct {
	ID          string            `protobuf:"bytes,1,opt,name=id,proto3" json:"id,omitempty"`
	Mode        string            `protobuf:"bytes,2,opt,name=mode,proto3" json:"mode,omitempty"`
	Description string            `protobuf:"bytes,3,opt,name=description,proto3" json:"description,omitempty"`
	Labels      map[string]string `protobuf:"bytes,4,rep,name=labels,proto3" json:"labels,omitempty" protobuf_key:"bytes,1,opt,name=key,proto3" protobuf_val:"bytes,2,opt,name=value,proto3"`
}

// ProtoMessage implements proto.Message.
func (m *DeviceInfo) ProtoMessage() {}

// Reset implements proto.Message.
func (m *DeviceInfo) Reset() { *m = DeviceInfo{} }

// String implements proto.Message.
func (m *DeviceInfo) String() string { return proto.CompactTextString(m) }

// StatsReport carries transport counters.
type StatsReport struct {
	Received         uint64 `protobuf:"varint,1,opt,name=received,proto3" json:"received,omitempty"`
	Delivered        uint64 `protobuf:"varint,2,opt,name=delivered,proto3" json:"delivered,omitempty"`
	DroppedFull      uint64 `protobuf:"varint,3,opt,name=dropped_full,proto3" json:"dropped_full,omitempty"`
	DroppedInvalid   uint64 `protobuf:"varint,4,opt,name=dropped_invalid,proto3" json:"dropped_invalid,omitempty"`
	ForbiddenContext uint64 `protobuf:"varint,5,opt,name=forbidden_context,proto3" json:"forbidden_context,omitempty"`
	HandlerUnset     uint64 `protobuf:"varint,6,opt,name=handler_unset,proto3" json:"handler_unset,omitempty"`
	SendReady        uint64 `protobuf:"varint,7,opt,name=send_ready,proto3" json:"send_ready,omitempty"`
	Sent             uint64 `protobuf:"varint,8,opt,name=sent,proto3" json:"sent,omitempty"`
	TxQueued         uint64 `protobuf:"varint,9,opt,name=tx_queued,proto3" json:"tx_queued,omitempty"`
	TxDropped        uint64 `protobuf:"varint,10,opt,name=tx_dropped,proto3" json:"tx_dropped,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *StatsReport) ProtoMessage() {}

// Reset implements proto.Message.
func (m *StatsReport) Reset() { *m = StatsReport{} }

// String implements proto.Message.
func (m *StatsReport) String() string { return proto.CompactTextString(m) }

// Encode serializes a message.
func Encode(msg proto.Message) ([]byte, error) {
	return proto.Marshal(msg)
}

// DecodePacket parses and validates a Packet.
func DecodePacket(payload []byte) (*Packet, error) {
	var pkt Packet
	if err := proto.Unmarshal(payload, &pkt); err != nil {
		return nil, err
	}
	if err := pkt.Validate(); err != nil {
		return nil, err
	}
	return &pkt, nil
}

// DecodeDeviceInfo parses a DeviceInfo.
func DecodeDeviceInfo(payload []byte) (*DeviceInfo, error) {
	var info DeviceInfo
	if err := proto.Unmarshal(payload, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// DecodeStatsReport parses a StatsReport.
func DecodeStatsReport(payload []byte) (*StatsReport, error) {
	var report StatsReport
	if err := proto.Unmarshal(payload, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
