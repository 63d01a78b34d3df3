package protocol

import (
	"errors"
	"fmt"

	"Go2NetSonify/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ErrNotIP is returned for packets that carry neither an IPv4 nor an IPv6 layer.
var ErrNotIP = errors.New("protocol: not an IP packet")

const ipv6HeaderLen = 40

// ParsePacket turns a decoded packet into a single-packet flow record using
// the NetFlow v9 field names. IN_PKTS is always 1 and IN_BYTES is the IP
// datagram length.
func ParsePacket(packet gopacket.Packet) (model.FlowRecord, error) {
	rec := model.FlowRecord{model.FieldPackets: 1}

	switch {
	case packet.Layer(layers.LayerTypeIPv4) != nil:
		ip := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		rec[model.FieldProtocol] = int(ip.Protocol)
		rec[model.FieldBytes] = int(ip.Length)
		rec[model.FieldSrcAddr] = ip.SrcIP.String()
		rec[model.FieldDstAddr] = ip.DstIP.String()
		rec[model.FieldTOS] = int(ip.TOS)
	case packet.Layer(layers.LayerTypeIPv6) != nil:
		ip := packet.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
		rec[model.FieldProtocol] = int(ip.NextHeader)
		rec[model.FieldBytes] = int(ip.Length) + ipv6HeaderLen
		rec[model.FieldSrcAddr] = ip.SrcIP.String()
		rec[model.FieldDstAddr] = ip.DstIP.String()
		rec[model.FieldTOS] = int(ip.TrafficClass)
	default:
		return nil, ErrNotIP
	}

	if l := packet.Layer(layers.LayerTypeTCP); l != nil {
		tcp := l.(*layers.TCP)
		rec[model.FieldSrcPort] = int(tcp.SrcPort)
		rec[model.FieldDstPort] = int(tcp.DstPort)
		rec[model.FieldTCPFlags] = tcpFlags(tcp)
	} else if l := packet.Layer(layers.LayerTypeUDP); l != nil {
		udp := l.(*layers.UDP)
		rec[model.FieldSrcPort] = int(udp.SrcPort)
		rec[model.FieldDstPort] = int(udp.DstPort)
	}

	if md := packet.Metadata(); md != nil && !md.Timestamp.IsZero() {
		ms := md.Timestamp.UnixMilli()
		rec[model.FieldFirst] = ms
		rec[model.FieldLast] = ms
	}
	return rec, nil
}

// Decode parses raw frame bytes of the given link type and extracts a flow record.
func Decode(data []byte, link gopacket.Decoder) (model.FlowRecord, error) {
	packet := gopacket.NewPacket(data, link, gopacket.Default)
	if errLayer := packet.ErrorLayer(); errLayer != nil && packet.NetworkLayer() == nil {
		return nil, fmt.Errorf("protocol: decode: %w", errLayer.Error())
	}
	return ParsePacket(packet)
}

func tcpFlags(tcp *layers.TCP) int {
	var f int
	for i, set := range []bool{tcp.FIN, tcp.SYN, tcp.RST, tcp.PSH, tcp.ACK, tcp.URG, tcp.ECE, tcp.CWR} {
		if set {
			f |= 1 << i
		}
	}
	return f
}
