package vhci

import (
	"fmt"
	"strings"

	"github.com/robotalks/hci.go/pkg/hci"
	"github.com/robotalks/hci.go/pkg/ringbuf"
)

// Mode selects the radio mode enabled on the controller.
type Mode int

// Controller modes.
const (
	ModeBLE Mode = iota
	ModeClassic
	ModeDual
)

var modeNames = map[Mode]string{
	ModeBLE:     "ble",
	ModeClassic: "classic",
	ModeDual:    "dual",
}

// String implements fmt.Stringer.
func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "ble", "le":
		return ModeBLE, nil
	case "classic", "bredr", "br/edr":
		return ModeClassic, nil
	case "dual", "btdm":
		return ModeDual, nil
	}
	return ModeBLE, fmt.Errorf("unknown controller mode %q", s)
}

// Set implements flag.Value.
func (m *Mode) Set(s string) error {
	mode, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	return m.Set(string(text))
}

// Config sizes the transport buffers and selects the controller mode.
type Config struct {
	// Maximum number of in-flight packets per class and their sizes.
	ACLPacketNum    int `yaml:"acl_packet_num"`
	ACLPacketLen    int `yaml:"acl_packet_len"`
	SCOPacketNum    int `yaml:"sco_packet_num"`
	SCOPacketLen    int `yaml:"sco_packet_len"`
	EventPacketNum  int `yaml:"event_packet_num"`
	EventBufferSize int `yaml:"event_buffer_size"`

	// IncomingPreBufferSize is the margin reserved in front of each
	// delivered packet.
	IncomingPreBufferSize int `yaml:"incoming_pre_buffer_size"`
	// OutgoingPreBufferSize is the margin callers must reserve in front of
	// the payload passed to SendPacket, at least 1 byte for the packet type.
	OutgoingPreBufferSize int `yaml:"outgoing_pre_buffer_size"`

	Mode Mode `yaml:"mode"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ACLPacketNum:          20,
		ACLPacketLen:          1024,
		SCOPacketNum:          10,
		SCOPacketLen:          60,
		EventPacketNum:        4,
		EventBufferSize:       hci.EventBufferSize,
		IncomingPreBufferSize: 14,
		OutgoingPreBufferSize: 4,
		Mode:                  ModeBLE,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch {
	case c.OutgoingPreBufferSize < 1:
		return fmt.Errorf("%w: outgoing pre-buffer must be at least 1 byte", ErrInvalidConfig)
	case c.IncomingPreBufferSize < 0:
		return fmt.Errorf("%w: negative incoming pre-buffer", ErrInvalidConfig)
	case c.ACLPacketNum < 0 || c.SCOPacketNum < 0 || c.EventPacketNum < 0:
		return fmt.Errorf("%w: negative packet count", ErrInvalidConfig)
	case c.ACLPacketLen < 0 || c.SCOPacketLen < 0 || c.EventBufferSize < 0:
		return fmt.Errorf("%w: negative packet length", ErrInvalidConfig)
	case c.MaxRecordLen() > ringbuf.MaxRecordLen:
		return fmt.Errorf("%w: packet length %d exceeds record limit", ErrInvalidConfig, c.MaxRecordLen())
	case c.RingSize() < ringbuf.RecordSize(c.MaxRecordLen()):
		return fmt.Errorf("%w: ring of %d bytes can't hold the largest packet", ErrInvalidConfig, c.RingSize())
	}
	return nil
}

func (c *Config) aclRecordLen() int {
	return 1 + hci.ACLHeaderSize + c.ACLPacketLen
}

func (c *Config) scoRecordLen() int {
	return 1 + hci.SCOHeaderSize + c.SCOPacketLen
}

func (c *Config) eventRecordLen() int {
	return 1 + c.EventBufferSize
}

// MaxRecordLen returns the largest packet (type included) accepted from the
// controller.
func (c *Config) MaxRecordLen() int {
	n := c.eventRecordLen()
	if c.ACLPacketNum > 0 && c.aclRecordLen() > n {
		n = c.aclRecordLen()
	}
	if c.SCOPacketNum > 0 && c.scoRecordLen() > n {
		n = c.scoRecordLen()
	}
	return n
}

// RingSize returns the ring capacity holding the configured worst case of
// in-flight packets of every class.
func (c *Config) RingSize() int {
	return c.ACLPacketNum*ringbuf.RecordSize(c.aclRecordLen()) +
		c.SCOPacketNum*ringbuf.RecordSize(c.scoRecordLen()) +
		c.EventPacketNum*ringbuf.RecordSize(c.eventRecordLen())
}
