// Package env assembles the HCI daemon from configuration.
package env

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/robotalks/hci.go/pkg/controller"
	"github.com/robotalks/hci.go/pkg/vhci"
)

// Config provides options to setup the HCI daemon.
type Config struct {
	DeviceID    string            `yaml:"device_id"`
	Description string            `yaml:"description"`
	Labels      map[string]string `yaml:"labels"`

	// MQTTBrokerURL specifies the MQTT broker, the path is the topic prefix.
	// e.g. mqtt://host:port/hci/
	MQTTBrokerURL string `yaml:"mqtt_url"`
	// ControllerURL specifies how to reach the controller.
	// e.g. tcp://host:port, unix:///path, ws://host:port/path
	ControllerURL string `yaml:"controller_url"`

	QueueSize     int           `yaml:"queue_size"`
	ResetOnInit   bool          `yaml:"reset_on_init"`
	MaxPending    int           `yaml:"max_pending"`
	LoopInterval  time.Duration `yaml:"loop_interval"`
	StatsInterval time.Duration `yaml:"stats_interval"`

	Transport vhci.Config `yaml:"transport"`
}

var (
	baseConfig    Config
	defaultConfig = newDefaultConfig(os.Getenv)
	configFile    string
)

func newDefaultConfig(getenv func(string) string) Config {
	conf := Config{
		MQTTBrokerURL: "mqtt://localhost:1883/hci/",
		ControllerURL: "tcp://localhost:8765",
		QueueSize:     controller.DefaultQueueSize,
		LoopInterval:  100 * time.Millisecond,
		StatsInterval: time.Minute,
		Transport:     vhci.DefaultConfig(),
	}
	if val := getenv("HCI_MQTT_URL"); val != "" {
		conf.MQTTBrokerURL = val
	}
	if val := getenv("HCI_CONTROLLER_URL"); val != "" {
		conf.ControllerURL = val
	}
	if val := getenv("HCI_DEVICE_ID"); val != "" {
		conf.DeviceID = val
	} else {
		conf.DeviceID = MachineID()
	}
	return conf
}

// BindFlags binds the options to command line flags.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.DeviceID, "id", c.DeviceID, "Device ID")
	fs.StringVar(&c.Description, "desc", c.Description, "Device description")
	fs.StringVar(&c.MQTTBrokerURL, "mqtt", c.MQTTBrokerURL, "MQTT broker URL, empty to disable")
	fs.StringVar(&c.ControllerURL, "controller", c.ControllerURL, "Controller URL")
	fs.IntVar(&c.QueueSize, "queue-size", c.QueueSize, "Controller TX queue size")
	fs.BoolVar(&c.ResetOnInit, "reset", c.ResetOnInit, "Send HCI_Reset on controller init")
	fs.IntVar(&c.MaxPending, "max-pending", c.MaxPending, "Max outgoing packets waiting for the controller")
	fs.DurationVar(&c.LoopInterval, "loop-interval", c.LoopInterval, "Idle loop interval")
	fs.DurationVar(&c.StatsInterval, "stats-interval", c.StatsInterval, "Stats report interval, 0 to disable")
	fs.Var(&c.Transport.Mode, "mode", "Controller mode: ble, classic, dual")
	fs.IntVar(&c.Transport.ACLPacketNum, "acl-num", c.Transport.ACLPacketNum, "Buffered ACL packets")
	fs.IntVar(&c.Transport.ACLPacketLen, "acl-len", c.Transport.ACLPacketLen, "ACL packet length")
	fs.IntVar(&c.Transport.SCOPacketNum, "sco-num", c.Transport.SCOPacketNum, "Buffered SCO packets")
	fs.IntVar(&c.Transport.SCOPacketLen, "sco-len", c.Transport.SCOPacketLen, "SCO packet length")
	fs.IntVar(&c.Transport.EventPacketNum, "event-num", c.Transport.EventPacketNum, "Buffered events")
}

// SetupFlags sets command line flags.
func SetupFlags() {
	baseConfig = defaultConfig
	defaultConfig.BindFlags(flag.CommandLine)
	flag.StringVar(&configFile, "config", configFile, "YAML config file")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// Load overlays the YAML file onto the config.
func (c *Config) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// LoadConfig builds a config from base, the YAML file at path and the flags
// explicitly set in fs. Flags take precedence over the file.
func LoadConfig(base Config, path string, fs *flag.FlagSet) (*Config, error) {
	conf := base
	if path != "" {
		if err := conf.Load(path); err != nil {
			return nil, err
		}
	}
	if fs != nil {
		overlay := flag.NewFlagSet("overlay", flag.ContinueOnError)
		conf.BindFlags(overlay)
		var err error
		fs.Visit(func(f *flag.Flag) {
			if overlay.Lookup(f.Name) != nil && err == nil {
				err = overlay.Set(f.Name, f.Value.String())
			}
		})
		if err != nil {
			return nil, err
		}
	}
	return &conf, nil
}

// NewConfig creates a Config from defaults, the config file and flags.
func NewConfig() *Config {
	if configFile == "" {
		conf := defaultConfig
		return &conf
	}
	conf, err := LoadConfig(baseConfig, configFile, flag.CommandLine)
	if err != nil {
		log.Fatalln(err)
	}
	return conf
}

// Validate checks the config.
func (c *Config) Validate() error {
	if c.DeviceID == "" {
		return errors.New("device id must be specified")
	}
	if c.ControllerURL == "" {
		return errors.New("controller URL must be specified")
	}
	return c.Transport.Validate()
}
