package hci

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/hci.go/pkg/cli/sh"
	"github.com/robotalks/hci.go/pkg/hci"
)

var (
	// SendCmd sends a raw packet.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "TYPE HEX...",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("TYPE and data expected"))
				return
			}
			pt, err := hci.ParsePacketType(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			data, err := hci.ParseHex(c.Args[1:]...)
			if err != nil {
				c.Err(err)
				return
			}
			if err = sh.ShellFrom(c).SendPacket(pt, data); err != nil {
				c.Err(err)
			}
		}),
	}

	// CommandCmd sends an HCI command and waits for Command Complete.
	CommandCmd = ishell.Cmd{
		Name: "cmd",
		Help: "OGF OCF [PARAMS_HEX...]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			opcode, params, err := parseCommand(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			doCommand(c, opcode, params)
		}),
	}

	// ResetCmd sends HCI_Reset.
	ResetCmd = ishell.Cmd{
		Name: "reset",
		Help: "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			doCommand(c, hci.OpcodeReset, nil)
		}),
	}
)

// MonitorCmd toggles printing of unsolicited packets.
var MonitorCmd = ishell.Cmd{
	Name:    "monitor",
	Aliases: []string{"m"},
	Help:    "[on|off]",
	Func: func(c *ishell.Context) {
		s := sh.ShellFrom(c)
		if len(c.Args) > 0 {
			switch c.Args[0] {
			case "on":
				s.Monitor = true
			case "off":
				s.Monitor = false
			default:
				c.Err(fmt.Errorf("on or off expected"))
				return
			}
		}
		c.Printf("monitor %v\n", s.Monitor)
	},
}

func parseCommand(args []string) (uint16, []byte, error) {
	if len(args) < 2 {
		return 0, nil, fmt.Errorf("OGF and OCF expected")
	}
	ogf, err := strconv.ParseUint(args[0], 0, 6)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid OGF %q: %w", args[0], err)
	}
	ocf, err := strconv.ParseUint(args[1], 0, 10)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid OCF %q: %w", args[1], err)
	}
	params, err := hci.ParseHex(args[2:]...)
	if err != nil {
		return 0, nil, err
	}
	return hci.Opcode(byte(ogf), uint16(ocf)), params, nil
}

func doCommand(c *ishell.Context, opcode uint16, params []byte) {
	s := sh.ShellFrom(c)
	cc, err := s.DoCommand(opcode, params)
	if err != nil {
		c.Err(fmt.Errorf("command 0x%04x: %w", opcode, err))
		return
	}
	if s.OutputJSON {
		out, err := json.Marshal(cc)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Printf("0x%04x complete: % x\n", opcode, cc.Return)
}

func init() {
	sh.AddCmds(
		&SendCmd,
		&CommandCmd,
		&ResetCmd,
		&MonitorCmd,
	)
}
