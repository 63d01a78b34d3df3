// Package netflow collects NetFlow v5 export datagrams over UDP and turns
// every datagram into one record batch.
//
// Version 9 and IPFIX need template state and are decoded upstream; their
// datagrams are rejected here.
package netflow

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"

	"Go2NetSonify/internal/model"
)

const (
	headerLen = 24
	recordLen = 48
	maxCount  = 30
)

var (
	// ErrShortPacket is returned when a datagram is shorter than its header
	// says.
	ErrShortPacket = errors.New("netflow: short packet")
	// ErrUnsupportedVersion is returned for anything but version 5.
	ErrUnsupportedVersion = errors.New("netflow: unsupported version")
)

// Header is the NetFlow v5 export header.
type Header struct {
	Version          uint16
	Count            uint16
	SysUptime        uint32
	UnixSecs         uint32
	UnixNsecs        uint32
	FlowSequence     uint32
	EngineType       uint8
	EngineID         uint8
	SamplingInterval uint16
}

// Decode parses a v5 datagram into its header and flat records keyed by the
// NetFlow v9 field names.
func Decode(data []byte) (Header, []model.FlowRecord, error) {
	var h Header
	if len(data) < 2 {
		return h, nil, ErrShortPacket
	}
	h.Version = binary.BigEndian.Uint16(data[0:2])
	if h.Version != 5 {
		return h, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if len(data) < headerLen {
		return h, nil, ErrShortPacket
	}

	h.Count = binary.BigEndian.Uint16(data[2:4])
	h.SysUptime = binary.BigEndian.Uint32(data[4:8])
	h.UnixSecs = binary.BigEndian.Uint32(data[8:12])
	h.UnixNsecs = binary.BigEndian.Uint32(data[12:16])
	h.FlowSequence = binary.BigEndian.Uint32(data[16:20])
	h.EngineType = data[20]
	h.EngineID = data[21]
	h.SamplingInterval = binary.BigEndian.Uint16(data[22:24])

	if h.Count > maxCount {
		return h, nil, fmt.Errorf("netflow: record count %d exceeds %d", h.Count, maxCount)
	}
	if len(data) < headerLen+int(h.Count)*recordLen {
		return h, nil, fmt.Errorf("%w: %d records need %d bytes, got %d",
			ErrShortPacket, h.Count, headerLen+int(h.Count)*recordLen, len(data))
	}

	records := make([]model.FlowRecord, 0, h.Count)
	for i := 0; i < int(h.Count); i++ {
		off := headerLen + i*recordLen
		records = append(records, decodeRecord(data[off:off+recordLen]))
	}
	return h, records, nil
}

func decodeRecord(b []byte) model.FlowRecord {
	return model.FlowRecord{
		model.FieldSrcAddr:  net.IP(b[0:4]).String(),
		model.FieldDstAddr:  net.IP(b[4:8]).String(),
		"IPV4_NEXT_HOP":     net.IP(b[8:12]).String(),
		"INPUT_SNMP":        binary.BigEndian.Uint16(b[12:14]),
		"OUTPUT_SNMP":       binary.BigEndian.Uint16(b[14:16]),
		model.FieldPackets:  binary.BigEndian.Uint32(b[16:20]),
		model.FieldBytes:    binary.BigEndian.Uint32(b[20:24]),
		model.FieldFirst:    binary.BigEndian.Uint32(b[24:28]),
		model.FieldLast:     binary.BigEndian.Uint32(b[28:32]),
		model.FieldSrcPort:  binary.BigEndian.Uint16(b[32:34]),
		model.FieldDstPort:  binary.BigEndian.Uint16(b[34:36]),
		model.FieldTCPFlags: b[37],
		model.FieldProtocol: b[38],
		model.FieldTOS:      b[39],
		"SRC_AS":            binary.BigEndian.Uint16(b[40:42]),
		"DST_AS":            binary.BigEndian.Uint16(b[42:44]),
		"SRC_MASK":          b[44],
		"DST_MASK":          b[45],
	}
}

// Flow is the subset of a v5 record Encode writes.
type Flow struct {
	SrcAddr, DstAddr net.IP
	SrcPort, DstPort uint16
	Protocol         uint8
	Packets, Bytes   uint32
	TCPFlags         uint8
}

// Encode builds a v5 datagram. It is used by the feeder and in tests.
func Encode(h Header, flows []Flow) []byte {
	buf := make([]byte, headerLen+len(flows)*recordLen)
	binary.BigEndian.PutUint16(buf[0:2], 5)
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(flows)))
	binary.BigEndian.PutUint32(buf[4:8], h.SysUptime)
	binary.BigEndian.PutUint32(buf[8:12], h.UnixSecs)
	binary.BigEndian.PutUint32(buf[12:16], h.UnixNsecs)
	binary.BigEndian.PutUint32(buf[16:20], h.FlowSequence)
	buf[20] = h.EngineType
	buf[21] = h.EngineID
	binary.BigEndian.PutUint16(buf[22:24], h.SamplingInterval)

	for i, f := range flows {
		b := buf[headerLen+i*recordLen:]
		copy(b[0:4], f.SrcAddr.To4())
		copy(b[4:8], f.DstAddr.To4())
		binary.BigEndian.PutUint32(b[16:20], f.Packets)
		binary.BigEndian.PutUint32(b[20:24], f.Bytes)
		binary.BigEndian.PutUint16(b[32:34], f.SrcPort)
		binary.BigEndian.PutUint16(b[34:36], f.DstPort)
		b[37] = f.TCPFlags
		b[38] = f.Protocol
	}
	return buf
}
