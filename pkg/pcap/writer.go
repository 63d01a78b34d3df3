package pcap

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

const snapLen = 65536

// Packet describes one synthetic Ethernet/IPv4 frame.
type Packet struct {
	Timestamp time.Time
	Protocol  layers.IPProtocol
	SrcIP     net.IP
	DstIP     net.IP
	SrcPort   uint16
	DstPort   uint16
	Payload   []byte
}

// Writer emits synthetic frames into a pcap stream.
type Writer struct {
	w *pcapgo.Writer
}

// NewWriter writes the pcap file header and returns a Writer.
func NewWriter(out io.Writer) (*Writer, error) {
	w := pcapgo.NewWriter(out)
	if err := w.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("pcap: write header: %w", err)
	}
	return &Writer{w: w}, nil
}

// Write serializes p and appends it to the stream.
func (w *Writer) Write(p Packet) error {
	data, err := Frame(p)
	if err != nil {
		return err
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     p.Timestamp,
		CaptureLength: len(data),
		Length:        len(data),
	}
	return w.w.WritePacket(ci, data)
}

// Frame serializes p into Ethernet frame bytes. TCP, UDP and ICMPv4 get a
// transport header; other protocols carry the payload directly over IP.
func Frame(p Packet) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		SrcIP:    p.SrcIP.To4(),
		DstIP:    p.DstIP.To4(),
		Version:  4,
		TTL:      64,
		Protocol: p.Protocol,
	}

	stack := []gopacket.SerializableLayer{eth, ip}
	switch p.Protocol {
	case layers.IPProtocolTCP:
		tcp := &layers.TCP{
			SrcPort: layers.TCPPort(p.SrcPort),
			DstPort: layers.TCPPort(p.DstPort),
			SYN:     true,
			Window:  14600,
		}
		tcp.SetNetworkLayerForChecksum(ip)
		stack = append(stack, tcp)
	case layers.IPProtocolUDP:
		udp := &layers.UDP{
			SrcPort: layers.UDPPort(p.SrcPort),
			DstPort: layers.UDPPort(p.DstPort),
		}
		udp.SetNetworkLayerForChecksum(ip)
		stack = append(stack, udp)
	case layers.IPProtocolICMPv4:
		stack = append(stack, &layers.ICMPv4{
			TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0),
		})
	}
	stack = append(stack, gopacket.Payload(p.Payload))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, stack...); err != nil {
		return nil, fmt.Errorf("pcap: serialize: %w", err)
	}
	return buf.Bytes(), nil
}
