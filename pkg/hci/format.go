package hci

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// ParsePacketType parses a packet type name (cmd, acl, sco, evt, iso) or
// a number.
func ParsePacketType(s string) (PacketType, error) {
	switch strings.ToLower(s) {
	case "cmd", "command":
		return CommandPacket, nil
	case "acl":
		return ACLDataPacket, nil
	case "sco":
		return SCODataPacket, nil
	case "evt", "event":
		return EventPacket, nil
	case "iso":
		return ISODataPacket, nil
	}
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid packet type %q", s)
	}
	return PacketType(n), nil
}

// ParseHex parses bytes written as hex, separated or not: "03 0c 00",
// "030c00", "0x03,0x0c,0x00".
func ParseHex(args ...string) ([]byte, error) {
	var out []byte
	for _, arg := range args {
		for _, field := range strings.FieldsFunc(arg, func(r rune) bool { return r == ',' || r == ':' || r == ' ' }) {
			field = strings.TrimPrefix(strings.ToLower(field), "0x")
			if len(field)%2 != 0 {
				field = "0" + field
			}
			b, err := hex.DecodeString(field)
			if err != nil {
				return nil, fmt.Errorf("invalid hex %q", field)
			}
			out = append(out, b...)
		}
	}
	return out, nil
}

// CommandComplete describes an HCI Command Complete event.
type CommandComplete struct {
	NumPackets byte
	Opcode     uint16
	Return     []byte
}

// ParseCommandComplete parses an event packet (without the H4 type).
func ParseCommandComplete(evt []byte) (*CommandComplete, bool) {
	if len(evt) < EventHeaderSize+3 || evt[0] != EventCommandComplete {
		return nil, false
	}
	return &CommandComplete{
		NumPackets: evt[2],
		Opcode:     binary.LittleEndian.Uint16(evt[3:]),
		Return:     evt[5:],
	}, true
}

// Format prints a packet for humans.
func Format(packetType PacketType, packet []byte) string {
	var desc string
	switch {
	case IsTransportPacketSent(packetType, packet):
		desc = " (packet sent)"
	case packetType == EventPacket:
		if cc, ok := ParseCommandComplete(packet); ok {
			desc = fmt.Sprintf(" (command complete 0x%04x)", cc.Opcode)
		}
	case packetType == CommandPacket && len(packet) >= 2:
		desc = fmt.Sprintf(" (opcode 0x%04x)", binary.LittleEndian.Uint16(packet))
	}
	return fmt.Sprintf("%s [%d] % x%s", packetType, len(packet), packet, desc)
}
