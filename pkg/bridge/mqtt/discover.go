package mqtt

import (
	"context"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/hci.go/pkg/msgs"
)

// DefaultDiscoverTimeout defines the default timeout value of discovery.
const DefaultDiscoverTimeout = 500 * time.Millisecond

// Discover collects the retained device info of online devices until
// timeout. Offline devices publish an empty meta and are skipped.
func Discover(ctx context.Context, q *Queue, timeout time.Duration) (res []*msgs.DeviceInfo, err error) {
	resCh := make(chan *msgs.DeviceInfo, 16)
	sub, err := q.Subscribe(MetaPattern, func(topic string, payload []byte) {
		if len(payload) == 0 {
			return
		}
		info, err := msgs.DecodeDeviceInfo(payload)
		if err != nil {
			glog.Warningf("mqtt: %s: bad device info: %v", topic, err)
			return
		}
		if info.ID == "" {
			info.ID = strings.TrimSuffix(topic, "/meta")
		}
		select {
		case resCh <- info:
		case <-time.After(time.Second):
		}
	})
	if err != nil {
		return nil, err
	}
	defer sub.Close()

	if timeout <= 0 {
		timeout = DefaultDiscoverTimeout
	}
	expire := time.After(timeout)
	for {
		select {
		case info := <-resCh:
			res = append(res, info)
		case <-expire:
			return
		case <-ctx.Done():
			err = ctx.Err()
			return
		}
	}
}
