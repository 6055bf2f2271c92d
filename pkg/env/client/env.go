// Package client provides the environment of upper stack clients talking
// to bridged devices.
package client

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"time"

	"github.com/robotalks/hci.go/pkg/bridge/mqtt"
	"github.com/robotalks/hci.go/pkg/msgs"
)

// Config provides common options to reach bridged devices.
type Config struct {
	// DeviceID is the device to connect.
	DeviceID string
	// MQTTBrokerURL specifies the broker, the path is the topic prefix.
	// e.g. mqtt://host:port/hci/
	MQTTBrokerURL   string
	DiscoverTimeout time.Duration
}

var defaultConfig = newDefaultConfig(os.Getenv)

func newDefaultConfig(getenv func(string) string) Config {
	conf := Config{
		MQTTBrokerURL:   "mqtt://localhost:1883/hci/",
		DiscoverTimeout: mqtt.DefaultDiscoverTimeout,
	}
	if val := getenv("HCI_DEVICE_ID"); val != "" {
		conf.DeviceID = val
	}
	if val := getenv("HCI_MQTT_URL"); val != "" {
		conf.MQTTBrokerURL = val
	}
	return conf
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.DeviceID, "id", defaultConfig.DeviceID, "Device ID to connect.")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL.")
	flag.DurationVar(&defaultConfig.DiscoverTimeout, "discover-timeout", defaultConfig.DiscoverTimeout, "Device discovery timeout.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// NewQueue creates a broker client.
func (c *Config) NewQueue() (*mqtt.Queue, error) {
	return mqtt.NewQueueFromURL(c.MQTTBrokerURL)
}

// MustConnectQueue creates a broker client, connects and fails on error.
func (c *Config) MustConnectQueue() *mqtt.Queue {
	q, err := c.NewQueue()
	if err == nil {
		err = q.ConnectAndWait()
	}
	if err != nil {
		log.Fatalln(err)
	}
	return q
}

// Discover lists online devices.
func (c *Config) Discover(ctx context.Context, q *mqtt.Queue) ([]*msgs.DeviceInfo, error) {
	return mqtt.Discover(ctx, q, c.DiscoverTimeout)
}

// Connect opens the packet connection to the device. The ReadWriter must
// be run to receive packets.
func (c *Config) Connect(q *mqtt.Queue, id string) (*mqtt.ReadWriter, error) {
	if id == "" {
		id = c.DeviceID
	}
	if id == "" {
		return nil, errors.New("device id must be specified")
	}
	return mqtt.NewPacketReadWriter(q, id), nil
}
