// Package msgs provides the message schemas exchanged over the bridge.
package msgs

// Messages are protobuf encoded and carried as MQTT payloads
// between the HCI daemon and upper stack clients.
//
// Producer: HCI daemon (Packet on rx, DeviceInfo on meta, StatsReport on stats)
// Consumer: upper stack clients (Packet on tx)
