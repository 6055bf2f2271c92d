package client

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/hci.go/pkg/bridge/mqtt"
)

func TestDefaultConfig(t *testing.T) {
	conf := newDefaultConfig(func(key string) string {
		return map[string]string{"HCI_DEVICE_ID": "dev1", "HCI_MQTT_URL": "mqtt://broker/x/"}[key]
	})
	require.Equal(t, "dev1", conf.DeviceID)
	require.Equal(t, "mqtt://broker/x/", conf.MQTTBrokerURL)
	require.Equal(t, mqtt.DefaultDiscoverTimeout, conf.DiscoverTimeout)
}

func TestConnect(t *testing.T) {
	conf := newDefaultConfig(func(string) string { return "" })
	q, err := conf.NewQueue()
	require.NoError(t, err)
	require.Equal(t, "hci/", q.TopicPrefix)

	_, err = conf.Connect(q, "")
	require.Error(t, err)
	rw, err := conf.Connect(q, "dev2")
	require.NoError(t, err)
	require.Equal(t, "dev2/tx", rw.Topics.TX)

	conf.DeviceID = "dev1"
	rw, err = conf.Connect(q, "")
	require.NoError(t, err)
	require.Equal(t, "dev1/rx", rw.Topics.RX)
}
