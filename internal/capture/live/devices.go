package live

import (
	"fmt"

	"github.com/google/gopacket/pcap"
)

// findAllDevs is swapped out in tests so device selection runs without libpcap privileges.
var findAllDevs = pcap.FindAllDevs

// Device is the subset of a libpcap interface the UI lists.
type Device struct {
	Name        string
	Description string
	Addresses   []string
}

// ListDevices returns every device libpcap can see.
func ListDevices() ([]Device, error) {
	devs, err := findAllDevs()
	if err != nil {
		return nil, fmt.Errorf("could not find devices: %w", err)
	}

	out := make([]Device, 0, len(devs))
	for _, d := range devs {
		addrs := make([]string, 0, len(d.Addresses))
		for _, a := range d.Addresses {
			if a.IP != nil {
				addrs = append(addrs, a.IP.String())
			}
		}
		out = append(out, Device{Name: d.Name, Description: d.Description, Addresses: addrs})
	}
	return out, nil
}

// DefaultDevice picks the first device holding a non-loopback address,
// the same choice libpcap's own lookup makes.
func DefaultDevice() (string, error) {
	devs, err := findAllDevs()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoDevice, err)
	}

	for _, d := range devs {
		for _, a := range d.Addresses {
			if a.IP != nil && !a.IP.IsLoopback() && !a.IP.IsUnspecified() {
				return d.Name, nil
			}
		}
	}
	return "", ErrNoDevice
}
