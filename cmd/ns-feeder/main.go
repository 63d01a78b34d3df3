package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"github.com/google/uuid"

	"Go2NetSonify/internal/config"
	"Go2NetSonify/internal/logging"
	"Go2NetSonify/internal/model"
	"Go2NetSonify/internal/probe"
	"Go2NetSonify/internal/source/natssource"
	pcapfile "Go2NetSonify/pkg/pcap"
)

const (
	snapshotLen int32 = 1600
	promiscuous       = true
	timeout           = pcap.BlockForever
)

func main() {
	defaults := config.Default().Source.NATS
	mode := flag.String("mode", "sub", "Operating mode: 'pub' to capture and publish, 'sub' to subscribe and print.")
	iface := flag.String("iface", "", "Interface to capture packets from (pub mode).")
	file := flag.String("pcap", "", "Capture file to replay instead of a live interface (pub mode).")
	realtime := flag.Bool("realtime", false, "Replay a capture file at its original pace.")
	natsURL := flag.String("url", defaults.URL, "NATS server URL.")
	subject := flag.String("subject", defaults.Subject, "NATS subject for decoded batches.")
	flush := flag.Duration("flush", 100*time.Millisecond, "Live capture batch interval.")
	maxRecords := flag.Int("max", 1000, "Maximum records per batch in live capture.")
	level := flag.String("log-level", "info", "Log level.")
	flag.Parse()

	logger, err := logging.New(config.LogConfig{Level: *level}, "ns-feeder", os.Stderr)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	natsCfg := config.NATSConfig{URL: *natsURL, Subject: *subject, UseSentTime: true}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "pub":
		err = runPublisher(ctx, natsCfg, *iface, *file, *realtime, *flush, *maxRecords, logger)
	case "sub":
		err = runSubscriber(ctx, natsCfg, logger)
	default:
		fmt.Fprintf(os.Stderr, "Invalid mode: %s\n", *mode)
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		logger.Error("feeder failed", "mode", *mode, "error", err)
		os.Exit(1)
	}
}

// runPublisher captures from an interface or replays a file and publishes
// the decoded batches to NATS.
func runPublisher(ctx context.Context, cfg config.NATSConfig, iface, file string, realtime bool,
	flush time.Duration, maxRecords int, logger *slog.Logger) error {
	if iface == "" && file == "" {
		flag.Usage()
		return fmt.Errorf("pub mode needs -iface or -pcap")
	}

	pub, err := probe.NewPublisher(cfg, uuid.NewString(), logger)
	if err != nil {
		return err
	}
	defer pub.Close()

	if file != "" {
		return replay(ctx, pub, file, realtime, logger)
	}

	handle, err := pcap.OpenLive(iface, snapshotLen, promiscuous, timeout)
	if err != nil {
		return fmt.Errorf("error opening device %s: %w", iface, err)
	}
	defer handle.Close()
	logger.Info("capture started", "iface", iface, "subject", cfg.Subject)

	packets := gopacket.NewPacketSource(handle, handle.LinkType()).Packets()
	stats := probe.Feed(ctx, packets, pub, flush, maxRecords)
	logger.Info("capture stopped", "packets", stats.Packets, "skipped", stats.Skipped,
		"published", stats.Published, "failed", stats.Failed)
	return nil
}

func replay(ctx context.Context, pub *probe.Publisher, file string, realtime bool, logger *slog.Logger) error {
	reader, err := pcapfile.NewReader(file)
	if err != nil {
		return err
	}
	defer reader.Close()

	failed := 0
	var handle model.BatchHandler = func(b model.RecordBatch) {
		if err := pub.Publish(b); err != nil {
			failed++
			logger.Warn("publish failed", "error", err)
		}
	}
	if realtime {
		handle = probe.Pace(handle, func(d time.Duration) {
			select {
			case <-ctx.Done():
			case <-time.After(d):
			}
		})
	}

	stats, err := reader.ReadBatches(ctx, handle)
	logger.Info("replay finished", "file", file, "packets", stats.Packets,
		"skipped", stats.Skipped, "batches", stats.Batches, "failed", failed)
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// runSubscriber prints every batch received on the subject.
func runSubscriber(ctx context.Context, cfg config.NATSConfig, logger *slog.Logger) error {
	sub := natssource.New(cfg, nil, logger)
	return sub.Run(ctx, func(b model.RecordBatch) {
		logger.Info("received batch", "epoch", b.Epoch(),
			"arrival", b.Arrival.Format(time.RFC3339Nano), "records", len(b.Records))
		for i, rec := range b.Records {
			logger.Debug("record", "index", i, "record", rec)
		}
	})
}
