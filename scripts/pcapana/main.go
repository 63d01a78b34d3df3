package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"

	"Go2NetSonify/internal/engine/protocol"
	"Go2NetSonify/internal/model"
)

func main() {
	limit := flag.Int("n", 5, "Number of records to print")
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Println("Usage: go run ./scripts/pcapana [-n 5] <path_to_pcap_file>")
		os.Exit(1)
	}
	handle, err := pcap.OpenOffline(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}
	defer handle.Close()

	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())

	i := 0
	for packet := range packetSource.Packets() {
		rec, err := protocol.ParsePacket(packet)
		if err != nil {
			fmt.Println("Parse error:", err)
			continue
		}
		i++
		fmt.Printf("[%s] %v:%v -> %v:%v proto=%v pkts=%v bytes=%v\n",
			packet.Metadata().Timestamp.Format("15:04:05.000"),
			rec[model.FieldSrcAddr], rec[model.FieldSrcPort],
			rec[model.FieldDstAddr], rec[model.FieldDstPort],
			rec[model.FieldProtocol], rec[model.FieldPackets], rec[model.FieldBytes],
		)
		if i >= *limit {
			break
		}
	}
}
