package main

import (
	"flag"
	"log"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/google/gopacket/layers"

	"Go2NetSonify/pkg/pcap"
)

// Writes a capture with a mix of TCP, UDP and ICMP traffic. The packet rate
// swings over time so the sonified output has something to follow.
func main() {
	outputFile := flag.String("o", "test.pcap", "Output pcap file path")
	packetCount := flag.Int("c", 1000, "Number of packets to generate")
	seconds := flag.Int("s", 60, "Capture duration in seconds")
	flag.Parse()

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	w, err := pcap.NewWriter(f)
	if err != nil {
		log.Fatalf("Failed to write pcap header: %v", err)
	}

	protos := []layers.IPProtocol{
		layers.IPProtocolTCP, layers.IPProtocolTCP, layers.IPProtocolTCP,
		layers.IPProtocolUDP, layers.IPProtocolUDP,
		layers.IPProtocolICMPv4,
	}
	start := time.Now().Add(-time.Duration(*seconds) * time.Second)
	span := float64(*seconds) * float64(time.Second)

	log.Printf("Generating %d packets over %ds into %s...", *packetCount, *seconds, *outputFile)
	var offset float64
	for i := 0; i < *packetCount; i++ {
		// Spread packets with a rate that rises and falls across the capture.
		phase := float64(i) / float64(*packetCount)
		weight := 0.25 + 1.5*phase*(1-phase)*4
		offset += span / float64(*packetCount) / weight * 0.8
		if offset > span {
			offset = span
		}

		p := pcap.Packet{
			Timestamp: start.Add(time.Duration(offset)),
			Protocol:  protos[rand.Intn(len(protos))],
			SrcIP:     net.IP{10, 0, byte(rand.Intn(256)), byte(rand.Intn(256))},
			DstIP:     net.IP{192, 168, byte(rand.Intn(256)), byte(rand.Intn(256))},
			SrcPort:   uint16(rand.Intn(65535-1024) + 1024),
			DstPort:   uint16(rand.Intn(65535-1024) + 1024),
			Payload:   make([]byte, rand.Intn(1400)+50),
		}
		rand.Read(p.Payload)
		if err := w.Write(p); err != nil {
			log.Fatalf("Failed to write packet: %v", err)
		}
	}

	log.Printf("Successfully generated %d packets into %s.", *packetCount, *outputFile)
}
