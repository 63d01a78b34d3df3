// Package api serves the status, chart and metrics endpoints over HTTP and
// the standard gRPC health service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"Go2NetSonify/internal/config"
	"Go2NetSonify/internal/engine/manager"
)

// HealthService is the service name reported on the gRPC health endpoint.
const HealthService = "gons.sonify"

// StatusProvider reports the pipeline status.
type StatusProvider interface {
	Status() manager.Status
}

// ChartProvider returns the two rendered series, oldest point first.
type ChartProvider interface {
	Points() (first, second []float64)
}

// TimeSeries is a Grafana JSON datasource series: [value, index] pairs.
type TimeSeries struct {
	Target     string      `json:"target"`
	Datapoints [][]float64 `json:"datapoints"`
}

// Server bundles the HTTP router and the optional gRPC health server.
type Server struct {
	status  StatusProvider
	chart   ChartProvider
	metrics http.Handler

	router *mux.Router
	http   *http.Server
	grpc   *grpc.Server
	health *health.Server
	logger *slog.Logger
}

// NewServer creates a server. chart and metrics may be nil.
func NewServer(status StatusProvider, chart ChartProvider, metrics http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		status:  status,
		chart:   chart,
		metrics: metrics,
		router:  mux.NewRouter(),
		health:  health.NewServer(),
		logger:  logger.With("component", "api"),
	}
	s.routes()
	s.health.SetServingStatus(HealthService, healthpb.HealthCheckResponse_SERVING)
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.healthzHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/state", s.stateHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/chart", s.chartHandler).Methods(http.MethodGet)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Health returns the gRPC health server so callers can flip the status.
func (s *Server) Health() *health.Server {
	return s.health
}

// Start listens on the configured addresses and serves in the background.
func (s *Server) Start(cfg config.APIConfig) error {
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		s.grpc = grpc.NewServer()
		healthpb.RegisterHealthServer(s.grpc, s.health)
		go func() {
			s.logger.Info("gRPC health server starting", "addr", lis.Addr().String())
			if err := s.grpc.Serve(lis); err != nil {
				s.logger.Error("gRPC server stopped", "error", err)
			}
		}()
	}

	if cfg.ListenAddr != "" {
		lis, err := net.Listen("tcp", cfg.ListenAddr)
		if err != nil {
			if s.grpc != nil {
				s.grpc.Stop()
			}
			return err
		}
		s.http = &http.Server{
			Handler:           s.router,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			s.logger.Info("HTTP server starting", "addr", lis.Addr().String())
			if err := s.http.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("HTTP server stopped", "error", err)
			}
		}()
	}
	return nil
}

// Shutdown marks the service as not serving and stops both servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
	if s.http != nil {
		return s.http.Shutdown(ctx)
	}
	return nil
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := s.health.Check(r.Context(), &healthpb.HealthCheckRequest{Service: HealthService})
	if err != nil || resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		http.Error(w, "not serving", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.status.Status())
}

func (s *Server) chartHandler(w http.ResponseWriter, r *http.Request) {
	if s.chart == nil {
		http.Error(w, "renderer is not enabled", http.StatusNotFound)
		return
	}
	first, second := s.chart.Points()
	writeJSON(w, []TimeSeries{series("first", first), series("second", second)})
}

func series(target string, points []float64) TimeSeries {
	ts := TimeSeries{Target: target, Datapoints: make([][]float64, len(points))}
	for i, v := range points {
		ts.Datapoints[i] = []float64{v, float64(i)}
	}
	return ts
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}
