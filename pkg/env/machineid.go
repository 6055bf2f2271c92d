package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
)

// MachineID retrieves an ID identifying the machine, derived from the
// machine id so the raw value isn't exposed. Falls back to the hostname.
func MachineID() string {
	if id, err := machineid.ProtectedID("hci.go"); err == nil {
		return id[:16]
	}
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "hci"
}
