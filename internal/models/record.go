package models

import "net"

// Record holds the sender addresses extracted from a matching frame.
// Records compare by value; the same sender may appear any number of times.
type Record struct {
	SourceIP  string // IPv4 source, dotted quad
	SourceMAC string // Ethernet source, lower-case colon separated
}

// FilterSignature is the fixed destination/port triple a frame must carry to match.
type FilterSignature struct {
	DstIP   net.IP
	SrcPort uint16
	DstPort uint16
}

const (
	// DestinationIP is the limited broadcast address the reporting devices send to.
	DestinationIP   = "255.255.255.255"
	SourcePort      = 14236
	DestinationPort = 14235
)

// DefaultSignature returns the signature the reporter listens for.
func DefaultSignature() FilterSignature {
	return FilterSignature{
		DstIP:   net.ParseIP(DestinationIP).To4(),
		SrcPort: SourcePort,
		DstPort: DestinationPort,
	}
}
