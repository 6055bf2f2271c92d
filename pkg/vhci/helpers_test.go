package vhci

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/hci.go/pkg/framework"
	"github.com/robotalks/hci.go/pkg/hci"
)

type fakeController struct {
	lock sync.Mutex

	initErr    error
	enableErr  error
	disableErr error

	initCalls    int
	enableModes  []Mode
	disableCalls int
	callbacks    HostCallbacks
	canSend      bool
	sent         [][]byte
}

func (c *fakeController) Init() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.initCalls++
	return c.initErr
}

func (c *fakeController) Enable(mode Mode) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.enableModes = append(c.enableModes, mode)
	return c.enableErr
}

func (c *fakeController) Disable() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.disableCalls++
	return c.disableErr
}

func (c *fakeController) RegisterHostCallbacks(cb HostCallbacks) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.callbacks = cb
}

func (c *fakeController) CheckSendAvailable() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.canSend
}

func (c *fakeController) SendPacket(pkt []byte) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.sent = append(c.sent, pkt)
}

type releasingController struct {
	fakeController
	released []Mode
	order    []string
	relErr   error
}

func (c *releasingController) MemRelease(mode Mode) error {
	c.released = append(c.released, mode)
	c.order = append(c.order, "release")
	return c.relErr
}

func (c *releasingController) Init() error {
	c.order = append(c.order, "init")
	return c.fakeController.Init()
}

type testScheduler struct {
	triggers atomic.Int32
	sources  []fx.DataSource
}

func (s *testScheduler) AddDataSource(ds fx.DataSource, callbacks fx.CallbackType) {
	s.sources = append(s.sources, ds)
}

func (s *testScheduler) Trigger() {
	s.triggers.Add(1)
}

func (s *testScheduler) Post(fn func(context.Context)) {
	fn(context.Background())
}

type receivedPacket struct {
	Type hci.PacketType
	Data []byte
}

type packetRecorder struct {
	packets []receivedPacket
}

func (r *packetRecorder) HandlePacket(ctx context.Context, packetType hci.PacketType, packet []byte) {
	r.packets = append(r.packets, receivedPacket{Type: packetType, Data: append([]byte(nil), packet...)})
}

// smallConfig has a ring of exactly 100 bytes holding records up to 98 bytes.
func smallConfig() Config {
	return Config{
		EventPacketNum:        1,
		EventBufferSize:       97,
		OutgoingPreBufferSize: 2,
		Mode:                  ModeDual,
	}
}

type transportTestCtx struct {
	t         *testing.T
	tr        *Transport
	ctl       *fakeController
	scheduler *testScheduler
	recorder  *packetRecorder
}

func newTestTransport(t *testing.T, conf Config) *transportTestCtx {
	tctx := &transportTestCtx{
		t:         t,
		ctl:       &fakeController{canSend: true},
		scheduler: &testScheduler{},
		recorder:  &packetRecorder{},
	}
	tctx.tr = New(conf, NewResource(tctx.ctl))
	require.NoError(t, tctx.tr.Init(tctx.scheduler))
	require.NoError(t, tctx.tr.Open())
	tctx.tr.RegisterPacketHandler(tctx.recorder)
	return tctx
}

func (c *transportTestCtx) poll() *transportTestCtx {
	c.tr.Process(context.Background(), fx.CallbackPoll)
	return c
}

func (c *transportTestCtx) expectPackets(expected ...receivedPacket) *transportTestCtx {
	if len(expected) == 0 {
		require.Empty(c.t, c.recorder.packets)
	} else {
		require.Equal(c.t, expected, c.recorder.packets)
	}
	c.recorder.packets = nil
	return c
}

func packetSent() receivedPacket {
	return receivedPacket{Type: hci.EventPacket, Data: []byte{hci.EventTransportPacketSent, 0}}
}
