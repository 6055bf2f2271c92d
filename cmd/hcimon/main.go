package main

import (
	"flag"
	"fmt"
	"log"
	"path"
	"strings"

	"github.com/robotalks/hci.go/pkg/bridge/mqtt"
	"github.com/robotalks/hci.go/pkg/env/client"
	"github.com/robotalks/hci.go/pkg/hci"
	"github.com/robotalks/hci.go/pkg/msgs"
)

func init() {
	client.SetupFlags()
}

func describe(topic string, payload []byte) string {
	switch path.Base(topic) {
	case "meta":
		if len(payload) == 0 {
			return "offline"
		}
		info, err := msgs.DecodeDeviceInfo(payload)
		if err != nil {
			return fmt.Sprintf("bad meta: %v", err)
		}
		return info.String()
	case "stats":
		report, err := msgs.DecodeStatsReport(payload)
		if err != nil {
			return fmt.Sprintf("bad stats: %v", err)
		}
		return report.String()
	case "rx", "tx":
		pkt, err := msgs.DecodePacket(payload)
		if err != nil {
			return fmt.Sprintf("bad packet: %v", err)
		}
		return fmt.Sprintf("#%d %s", pkt.Seq, hci.Format(pkt.PacketType(), pkt.Data))
	}
	return fmt.Sprintf("[%d] % x", len(payload), payload)
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	conf := client.NewConfig()
	q := conf.MustConnectQueue()
	pattern := "#"
	if conf.DeviceID != "" {
		pattern = strings.TrimSuffix(conf.DeviceID, "/") + "/#"
	}
	sub := q.Sub(pattern, mqtt.Handler(func(topic string, payload []byte) {
		log.Printf("%s: %s", topic, describe(topic, payload))
	}))
	if sub.Token.Wait() && sub.Token.Error() != nil {
		log.Fatalln(sub.Token.Error())
	}
	<-(chan struct{})(nil)
}
