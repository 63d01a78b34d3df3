package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"Go2NetSonify/internal/api"
	"Go2NetSonify/internal/config"
	"Go2NetSonify/internal/engine/manager"
	"Go2NetSonify/internal/factory"
	"Go2NetSonify/internal/logging"
	"Go2NetSonify/internal/metrics"
	"Go2NetSonify/internal/model"
	"Go2NetSonify/internal/sink/chart"

	_ "Go2NetSonify/internal/source/natssource" // Registers the nats source
	_ "Go2NetSonify/internal/source/netflow"    // Registers the netflow source
	_ "Go2NetSonify/internal/source/pcapsource" // Registers the pcap source
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	sourceType := flag.String("source", "", "Override source.type (netflow, nats or pcap)")
	pcapPath := flag.String("pcap", "", "Replay this capture file (implies -source pcap)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *pcapPath != "" {
		cfg.Source.Type = config.SourcePcap
		cfg.Source.Pcap.Path = *pcapPath
	} else if *sourceType != "" {
		cfg.Source.Type = *sourceType
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := logging.New(cfg.Log, "ns-sonify", os.Stderr)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	runID := uuid.NewString()
	m := metrics.New()

	source, err := factory.NewSource(cfg, m, logger)
	if err != nil {
		logger.Error("failed to create source", "error", err)
		os.Exit(1)
	}
	senders, err := factory.NewSenders(cfg, runID, logger)
	if err != nil {
		logger.Error("failed to create senders", "error", err)
		os.Exit(1)
	}

	var (
		renderer model.Renderer
		series   api.ChartProvider
	)
	if cfg.Emitter.Renderer.Enabled {
		s := chart.New(cfg.Emitter.Renderer.Points)
		renderer, series = s, s
	}

	mgr := manager.NewManager(cfg, runID, source, senders, renderer, m, logger)
	server := api.NewServer(mgr, series, m.Handler(), logger)
	if err := server.Start(cfg.API); err != nil {
		logger.Error("failed to start API", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	mgr.Start(ctx)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case <-mgr.Done():
		if err := mgr.Err(); err != nil {
			server.Health().SetServingStatus(api.HealthService, healthpb.HealthCheckResponse_NOT_SERVING)
			logger.Error("source stopped, shutting down", "error", err)
		} else {
			// Input exhausted: keep serving the final state until interrupted.
			<-ctx.Done()
		}
	}

	if err := mgr.Stop(); err != nil {
		logger.Error("error closing senders", "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("API shutdown failed", "error", err)
	}
	logger.Info("shutdown complete")
}
