package env

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/hci.go/pkg/bridge"
	"github.com/robotalks/hci.go/pkg/bridge/mqtt"
	"github.com/robotalks/hci.go/pkg/comm"
	"github.com/robotalks/hci.go/pkg/controller"
	fx "github.com/robotalks/hci.go/pkg/framework"
	"github.com/robotalks/hci.go/pkg/msgs"
	"github.com/robotalks/hci.go/pkg/vhci"
)

// Env is a transport wired to a controller link and the broker bridge.
type Env struct {
	Config    *Config
	Loop      *fx.Loop
	Link      *controller.Link
	Transport *vhci.Transport
	Queue     *mqtt.Queue
	Bridge    *bridge.Bridge
}

// NewEnv connects the controller and creates all components. The broker
// connection is established by Run.
func (c *Config) NewEnv() (*Env, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	conn, err := comm.Dial(c.ControllerURL)
	if err != nil {
		return nil, fmt.Errorf("connect controller %s: %w", c.ControllerURL, err)
	}
	env, err := c.newEnvWith(conn)
	if err != nil {
		if closer, ok := conn.(io.Closer); ok {
			closer.Close()
		}
		return nil, err
	}
	return env, nil
}

func (c *Config) newEnvWith(conn comm.PacketReadWriter) (*Env, error) {
	env := &Env{
		Config: c,
		Loop:   fx.NewLoop(),
		Link:   controller.NewLink(conn, c.QueueSize),
	}
	env.Loop.Interval = c.LoopInterval
	env.Link.ResetOnInit = c.ResetOnInit
	env.Transport = vhci.New(c.Transport, vhci.NewResource(env.Link))
	if err := env.Transport.Init(env.Loop); err != nil {
		return nil, err
	}
	if c.MQTTBrokerURL != "" {
		if err := env.setupBridge(); err != nil {
			return nil, err
		}
	}
	return env, nil
}

func (e *Env) setupBridge() error {
	c := e.Config
	opts, topicPrefix, err := mqtt.ClientOptionsFromURL(c.MQTTBrokerURL)
	if err != nil {
		return fmt.Errorf("invalid MQTT URL: %w", err)
	}
	topics := mqtt.DeviceTopics(c.DeviceID)
	opts.SetBinaryWill(topicPrefix+topics.Meta, nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("hci:" + c.DeviceID)
	}
	e.Queue = mqtt.NewQueue(opts, topicPrefix)
	e.Bridge = bridge.New(msgs.DeviceInfo{
		ID:          c.DeviceID,
		Mode:        c.Transport.Mode.String(),
		Description: c.Description,
		Labels:      c.Labels,
	}, e.Transport, e.Queue)
	e.Bridge.MaxPending = c.MaxPending
	e.Bridge.StatsInterval = c.StatsInterval
	e.Loop.Add(e.Bridge)
	return nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv() *Env {
	env, err := c.NewEnv()
	if err != nil {
		log.Fatalln(err)
	}
	return env
}

// Run opens the transport and runs until ctx is canceled or the controller
// connection is lost.
func (e *Env) Run(ctx context.Context) error {
	if e.Queue != nil {
		if err := e.Queue.ConnectAndWait(); err != nil {
			return fmt.Errorf("connect MQTT broker: %w", err)
		}
		defer e.Queue.Close()
	}
	if err := e.Transport.Open(); err != nil {
		return err
	}
	glog.Infof("device %s: controller %s", e.Config.DeviceID, e.Config.ControllerURL)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	runner := fx.NewRunnerWith(ctx)
	runner.Go(fx.NamedRun("loop", fx.RunFunc(func(ctx context.Context) error {
		defer cancel()
		return e.Loop.Run(ctx)
	})), fx.NamedRun("link", fx.RunFunc(func(ctx context.Context) error {
		defer cancel()
		err := e.Link.Run(ctx)
		if err == nil {
			glog.Warning("controller connection closed")
		}
		return err
	})))
	var errs fx.AggregatedError
	errs.Add(runner.Wait())
	// the loop has stopped, safe to close from here.
	errs.Add(e.Transport.Close())
	if e.Config.StatsInterval > 0 {
		glog.Infof("final stats: %+v, link %+v", e.Transport.Stats(), e.Link.Stats())
	}
	return errs.Aggregate()
}

// RunOrFail runs the Env until interrupted and fails on error.
func (e *Env) RunOrFail() {
	runner := fx.NewRunner().HandleSignals()
	if err := runner.Go(e).Wait(); err != nil {
		log.Fatalln(err)
	}
}
