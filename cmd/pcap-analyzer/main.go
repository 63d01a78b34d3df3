package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"Go2NetSonify/internal/config"
	"Go2NetSonify/internal/engine/manager"
	"Go2NetSonify/internal/logging"
	"Go2NetSonify/internal/model"
	"Go2NetSonify/internal/snapshot"
	"Go2NetSonify/internal/source/pcapsource"
)

// Replays a capture through the aggregation and metric pipeline without any
// network sink and prints one JSON line per closed epoch.
func main() {
	configPath := flag.String("config", "", "Optional configuration file; defaults are used otherwise")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-config file] <path_to_pcap_file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	cfg.Source.Type = config.SourcePcap
	cfg.Source.Pcap.Path = flag.Arg(0)

	logger, err := logging.New(cfg.Log, "pcap-analyzer", os.Stderr)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	runID := uuid.NewString()
	out := snapshot.NewWriter(os.Stdout, runID)
	source := pcapsource.New(cfg.Source.Pcap, nil, logger)
	mgr := manager.NewManager(cfg, runID, source, []model.Sender{out}, nil, nil, logger)

	mgr.Start(context.Background())
	<-mgr.Done()
	srcErr := mgr.Err()
	if err := mgr.Stop(); err != nil {
		logger.Error("error closing output", "error", err)
	}
	if srcErr != nil {
		logger.Error("replay failed", "error", srcErr)
		os.Exit(1)
	}

	st := mgr.Status()
	logger.Info("analysis complete", "batches", st.Ingested, "epochs", st.Pipeline.Epochs,
		"open_epochs", len(st.PendingEpochs))
}
