// Package hci defines the HCI packet vocabulary used by the transport.
package hci

import (
	"encoding/binary"
	"fmt"
)

// PacketType is the H4 packet indicator preceding every HCI packet.
type PacketType byte

// H4 packet types.
const (
	CommandPacket PacketType = 0x01
	ACLDataPacket PacketType = 0x02
	SCODataPacket PacketType = 0x03
	EventPacket   PacketType = 0x04
	ISODataPacket PacketType = 0x05
)

// String implements fmt.Stringer.
func (t PacketType) String() string {
	switch t {
	case CommandPacket:
		return "CMD"
	case ACLDataPacket:
		return "ACL"
	case SCODataPacket:
		return "SCO"
	case EventPacket:
		return "EVT"
	case ISODataPacket:
		return "ISO"
	}
	return fmt.Sprintf("0x%02x", byte(t))
}

// Header sizes in bytes.
const (
	CommandHeaderSize = 3
	ACLHeaderSize     = 4
	SCOHeaderSize     = 3
	EventHeaderSize   = 2
)

// EventBufferSize is the largest possible event: header plus 255 bytes.
const EventBufferSize = EventHeaderSize + 255

// Event codes.
const (
	// EventCommandComplete is the HCI Command Complete event.
	EventCommandComplete byte = 0x0e
	// EventCommandStatus is the HCI Command Status event.
	EventCommandStatus byte = 0x0f
	// EventTransportPacketSent is a stack-internal event notifying that the
	// transport may accept the next outgoing packet.
	EventTransportPacketSent byte = 0x6e
)

// TransportPacketSent returns the synthetic event delivered when the
// controller is ready to accept outgoing data.
func TransportPacketSent() []byte {
	return []byte{EventTransportPacketSent, 0}
}

// IsTransportPacketSent checks if the packet is the synthetic
// transport-packet-sent event.
func IsTransportPacketSent(packetType PacketType, packet []byte) bool {
	return packetType == EventPacket && len(packet) > 0 && packet[0] == EventTransportPacketSent
}

// Opcode builds a command opcode from group and command fields.
func Opcode(ogf byte, ocf uint16) uint16 {
	return uint16(ogf)<<10 | (ocf & 0x03ff)
}

// Command encodes an HCI command packet (without the H4 type).
func Command(opcode uint16, params []byte) ([]byte, error) {
	if len(params) > 0xff {
		return nil, fmt.Errorf("command parameters too long: %d", len(params))
	}
	pkt := make([]byte, CommandHeaderSize+len(params))
	binary.LittleEndian.PutUint16(pkt, opcode)
	pkt[2] = byte(len(params))
	copy(pkt[CommandHeaderSize:], params)
	return pkt, nil
}

// OpcodeReset is HCI_Reset (OGF 0x03, OCF 0x0003).
var OpcodeReset = Opcode(0x03, 0x0003)

// ResetCommand returns the HCI_Reset command packet.
func ResetCommand() []byte {
	pkt, _ := Command(OpcodeReset, nil)
	return pkt
}
