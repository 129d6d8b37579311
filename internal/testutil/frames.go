// Package testutil builds synthetic Ethernet frames for tests.
package testutil

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Frame describes an Ethernet/IPv4 datagram to serialize.
type Frame struct {
	SrcMAC  string
	DstMAC  string
	SrcIP   string
	DstIP   string
	SrcPort uint16
	DstPort uint16
	// Protocol defaults to UDP.
	Protocol layers.IPProtocol
	Payload  []byte
}

// Announcement returns a frame that matches the reporter's default signature.
func Announcement(srcIP, srcMAC string) Frame {
	return Frame{
		SrcMAC:  srcMAC,
		DstMAC:  "ff:ff:ff:ff:ff:ff",
		SrcIP:   srcIP,
		DstIP:   "255.255.255.255",
		SrcPort: 14236,
		DstPort: 14235,
		Payload: []byte("hello"),
	}
}

// Bytes serializes f with lengths and checksums filled in. It panics on bad
// addresses since callers are tests with literal inputs.
func (f Frame) Bytes() []byte {
	srcMAC, err := net.ParseMAC(f.SrcMAC)
	if err != nil {
		panic(err)
	}
	dstMAC, err := net.ParseMAC(f.DstMAC)
	if err != nil {
		panic(err)
	}

	proto := f.Protocol
	if proto == 0 {
		proto = layers.IPProtocolUDP
	}

	eth := &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: proto,
		SrcIP:    net.ParseIP(f.SrcIP).To4(),
		DstIP:    net.ParseIP(f.DstIP).To4(),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}

	var serr error
	switch proto {
	case layers.IPProtocolUDP:
		udp := &layers.UDP{
			SrcPort: layers.UDPPort(f.SrcPort),
			DstPort: layers.UDPPort(f.DstPort),
		}
		_ = udp.SetNetworkLayerForChecksum(ip)
		serr = gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(f.Payload))
	case layers.IPProtocolTCP:
		tcp := &layers.TCP{
			SrcPort: layers.TCPPort(f.SrcPort),
			DstPort: layers.TCPPort(f.DstPort),
			Window:  1024,
		}
		_ = tcp.SetNetworkLayerForChecksum(ip)
		serr = gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(f.Payload))
	default:
		serr = gopacket.SerializeLayers(buf, opts, eth, ip, gopacket.Payload(f.Payload))
	}
	if serr != nil {
		panic(serr)
	}
	return buf.Bytes()
}

// ARPRequest returns a broadcast ARP who-has frame.
func ARPRequest(srcIP, srcMAC, dstIP string) []byte {
	mac, err := net.ParseMAC(srcMAC)
	if err != nil {
		panic(err)
	}
	eth := &layers.Ethernet{
		SrcMAC:       mac,
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte(mac),
		SourceProtAddress: []byte(net.ParseIP(srcIP).To4()),
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    []byte(net.ParseIP(dstIP).To4()),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, arp); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
