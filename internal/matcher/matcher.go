// Package matcher narrows raw Ethernet frames down to the broadcast
// announcements the reporter is interested in.
package matcher

import (
	"net"

	"ipreporter/internal/models"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Matcher checks frames against a fixed FilterSignature.
// It holds no mutable state and may be shared between goroutines.
type Matcher struct {
	sig models.FilterSignature
}

// New returns a Matcher for sig. The signature is copied.
func New(sig models.FilterSignature) *Matcher {
	dst := make(net.IP, len(sig.DstIP))
	copy(dst, sig.DstIP)
	sig.DstIP = dst
	return &Matcher{sig: sig}
}

// Signature returns a copy of the signature the matcher was built with.
func (m *Matcher) Signature() models.FilterSignature {
	sig := m.sig
	sig.DstIP = append(net.IP(nil), m.sig.DstIP...)
	return sig
}

// Extract decodes frame as Ethernet/IPv4/UDP and reports the sender when the
// destination address and both ports equal the signature. Frames that are
// short, malformed or of another protocol yield false.
func (m *Matcher) Extract(frame []byte) (models.Record, bool) {
	// Decoders are per call so concurrent callers never share layer state.
	var (
		eth layers.Ethernet
		ip  layers.IPv4
		udp layers.UDP
	)

	if err := eth.DecodeFromBytes(frame, gopacket.NilDecodeFeedback); err != nil {
		return models.Record{}, false
	}
	if eth.EthernetType != layers.EthernetTypeIPv4 {
		return models.Record{}, false
	}

	if err := ip.DecodeFromBytes(eth.Payload, gopacket.NilDecodeFeedback); err != nil {
		return models.Record{}, false
	}
	if ip.Protocol != layers.IPProtocolUDP {
		return models.Record{}, false
	}

	// Only the header is read; the datagram payload is never interpreted.
	if err := udp.DecodeFromBytes(ip.Payload, gopacket.NilDecodeFeedback); err != nil {
		return models.Record{}, false
	}

	if !ip.DstIP.Equal(m.sig.DstIP) ||
		uint16(udp.SrcPort) != m.sig.SrcPort ||
		uint16(udp.DstPort) != m.sig.DstPort {
		return models.Record{}, false
	}

	return models.Record{
		SourceIP:  ip.SrcIP.String(),
		SourceMAC: eth.SrcMAC.String(),
	}, true
}
