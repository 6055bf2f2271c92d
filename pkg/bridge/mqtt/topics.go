package mqtt

// Topics of a bridged device, relative to the queue prefix.
type Topics struct {
	RX    string
	TX    string
	Meta  string
	Stats string
}

// DeviceTopics returns the topics of the device id:
//
//	<id>/rx    packets from the controller
//	<id>/tx    packets to the controller
//	<id>/meta  retained msgs.DeviceInfo, empty when offline
//	<id>/stats msgs.StatsReport
func DeviceTopics(id string) Topics {
	return Topics{
		RX:    id + "/rx",
		TX:    id + "/tx",
		Meta:  id + "/meta",
		Stats: id + "/stats",
	}
}

// MetaPattern matches the meta topics of all devices.
const MetaPattern = "+/meta"
