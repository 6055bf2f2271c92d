// Package sh provides the interactive shell talking to bridged devices.
package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/hci.go/pkg/bridge/mqtt"
	"github.com/robotalks/hci.go/pkg/env/client"
	"github.com/robotalks/hci.go/pkg/hci"
	"github.com/robotalks/hci.go/pkg/msgs"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool
	Monitor     bool
	Timeout     time.Duration

	Shell  *ishell.Shell
	Config *client.Config
	Queue  *mqtt.Queue
	Conn   *DeviceConn
}

// Packet is a packet received from the device.
type Packet struct {
	Type hci.PacketType `json:"type"`
	Data []byte         `json:"data"`
}

// DeviceConn is a running packet connection to a device.
type DeviceConn struct {
	Ctx    context.Context
	Cancel func()
	ID     string
	RW     *mqtt.ReadWriter
	// OnPacket is called for every packet nobody is waiting for.
	OnPacket func(Packet)

	lock    sync.Mutex
	waiters []*waiter
}

type waiter struct {
	match func(Packet) bool
	ch    chan Packet
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool
	timeout    = time.Second

	// commands
	commands = []*ishell.Cmd{
		&DiscoverCmd,
		&ConnectCmd,
		&DisconnectCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.DurationVar(&timeout, "timeout", timeout, "Command timeout.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *client.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Monitor:     true,
		Timeout:     timeout,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Conn == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// FormatInfo prints DeviceInfo into friendly string for display.
func FormatInfo(info *msgs.DeviceInfo) string {
	s := info.ID
	if info.Mode != "" {
		s += " [" + info.Mode + "]"
	}
	if info.Description != "" {
		s += ": " + info.Description
	}
	return s
}

// PrintPacket prints a packet in the selected output format.
func (s *Shell) PrintPacket(pkt Packet) {
	if s.OutputJSON {
		out, err := json.Marshal(&pkt)
		if err == nil {
			s.Shell.Println(string(out))
		}
		return
	}
	s.Shell.Println(hci.Format(pkt.Type, pkt.Data))
}

// SendPacket sends a packet to the connected device.
func (s *Shell) SendPacket(packetType hci.PacketType, data []byte) error {
	if s.Conn == nil {
		return fmt.Errorf("not connected")
	}
	return s.Conn.RW.WritePacket(append([]byte{byte(packetType)}, data...))
}

// DoCommand sends an HCI command and waits for its Command Complete event.
func (s *Shell) DoCommand(opcode uint16, params []byte) (*hci.CommandComplete, error) {
	if s.Conn == nil {
		return nil, fmt.Errorf("not connected")
	}
	cmd, err := hci.Command(opcode, params)
	if err != nil {
		return nil, err
	}
	w := s.Conn.expect(func(pkt Packet) bool {
		cc, ok := hci.ParseCommandComplete(pkt.Data)
		return ok && pkt.Type == hci.EventPacket && cc.Opcode == opcode
	})
	defer s.Conn.cancelWait(w)
	if err := s.SendPacket(hci.CommandPacket, cmd); err != nil {
		return nil, err
	}
	select {
	case pkt := <-w.ch:
		cc, _ := hci.ParseCommandComplete(pkt.Data)
		return cc, nil
	case <-time.After(s.Timeout):
		return nil, context.DeadlineExceeded
	}
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

func (s *Shell) queue() (*mqtt.Queue, error) {
	if s.Queue != nil {
		return s.Queue, nil
	}
	q, err := s.Config.NewQueue()
	if err != nil {
		return nil, err
	}
	if err = q.ConnectAndWait(); err != nil {
		return nil, err
	}
	s.Queue = q
	return q, nil
}

// DiscoverDevices discovers online devices.
func (s *Shell) DiscoverDevices() ([]*msgs.DeviceInfo, error) {
	q, err := s.queue()
	if err != nil {
		return nil, err
	}
	return s.Config.Discover(context.TODO(), q)
}

// SelectDevice discovers devices and asks for a choice.
func (s *Shell) SelectDevice() (*msgs.DeviceInfo, error) {
	infoList, err := s.DiscoverDevices()
	if err != nil || len(infoList) == 0 {
		return nil, err
	}
	var index int
	if len(infoList) > 1 {
		if !s.Interactive {
			return nil, fmt.Errorf("more than 1 devices discovered in non-interactive mode")
		}
		items := make([]string, len(infoList))
		for n, info := range infoList {
			items[n] = FormatInfo(info)
		}
		index = s.Shell.MultiChoice(items, "Which one to connect?")
	}
	return infoList[index], nil
}

// Connect connects the device.
func (s *Shell) Connect(id string) error {
	q, err := s.queue()
	if err != nil {
		return err
	}
	rw, err := s.Config.Connect(q, id)
	if err != nil {
		return err
	}
	conn := &DeviceConn{ID: id, RW: rw, OnPacket: func(pkt Packet) {
		if s.Monitor {
			s.PrintPacket(pkt)
		}
	}}
	conn.Ctx, conn.Cancel = context.WithCancel(context.Background())
	go rw.Run(conn.Ctx)
	go conn.receive()
	s.Disconnect()
	s.Conn = conn
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", id))
	return nil
}

// Disconnect disconnects current device.
func (s *Shell) Disconnect() {
	if s.Conn != nil {
		s.Conn.Cancel()
		s.Conn.RW.Close()
		s.Conn = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect && s.Config.DeviceID != "" {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", s.Config.DeviceID)
		}
		if err := s.Connect(s.Config.DeviceID); err != nil {
			log.Fatalf("connect %q failed: %v", s.Config.DeviceID, err)
		}
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

func (c *DeviceConn) expect(match func(Packet) bool) *waiter {
	w := &waiter{match: match, ch: make(chan Packet, 1)}
	c.lock.Lock()
	c.waiters = append(c.waiters, w)
	c.lock.Unlock()
	return w
}

func (c *DeviceConn) cancelWait(w *waiter) {
	c.lock.Lock()
	defer c.lock.Unlock()
	for n, cur := range c.waiters {
		if cur == w {
			c.waiters = append(c.waiters[:n], c.waiters[n+1:]...)
			return
		}
	}
}

// dispatch hands pkt to the first matching waiter, or OnPacket.
func (c *DeviceConn) dispatch(pkt Packet) {
	c.lock.Lock()
	for n, w := range c.waiters {
		if w.match(pkt) {
			c.waiters = append(c.waiters[:n], c.waiters[n+1:]...)
			c.lock.Unlock()
			w.ch <- pkt
			return
		}
	}
	c.lock.Unlock()
	if fn := c.OnPacket; fn != nil {
		fn(pkt)
	}
}

func (c *DeviceConn) receive() {
	for {
		h4, err := c.RW.ReadPacket()
		if err != nil {
			return
		}
		if len(h4) > 0 {
			c.dispatch(Packet{Type: hci.PacketType(h4[0]), Data: h4[1:]})
		}
	}
}

var (
	// DiscoverCmd discovers devices.
	DiscoverCmd = ishell.Cmd{
		Name:    "discover",
		Aliases: []string{"list", "l"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			infoList, err := s.DiscoverDevices()
			if err != nil {
				c.Err(err)
				return
			}
			if s.OutputJSON {
				if len(infoList) == 0 {
					// in case infoList is nil, make it empty slice.
					infoList = []*msgs.DeviceInfo{}
				}
				out, err := json.Marshal(infoList)
				if err != nil {
					c.Err(err)
					return
				}
				c.Println(string(out))
				return
			}
			if len(infoList) == 0 {
				c.Println("No devices found")
				return
			}
			for _, info := range infoList {
				c.Println(FormatInfo(info))
			}
		},
	}

	// ConnectCmd connects a device.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[ID]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			var id string
			if len(c.Args) > 0 {
				id = c.Args[0]
			} else {
				info, err := s.SelectDevice()
				if err != nil {
					c.Err(err)
					return
				}
				if info == nil {
					c.Err(fmt.Errorf("no device discovered"))
					return
				}
				id = info.ID
			}
			if err := s.Connect(id); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects current device.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(client.NewConfig()).WithAutoConnect(true).Run(flag.Args()...)
}
