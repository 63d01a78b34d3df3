package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Source types.
const (
	SourceNetFlow = "netflow"
	SourceNATS    = "nats"
	SourcePcap    = "pcap"
)

// Unknown protocol policies.
const (
	PolicySkip  = "skip"
	PolicyAbort = "abort"
)

// NetFlowConfig configures the UDP NetFlow collector.
type NetFlowConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	ReadBuffer int    `yaml:"read_buffer"`
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL         string `yaml:"url"`
	Subject     string `yaml:"subject"`
	UseSentTime bool   `yaml:"use_sent_time"`
}

// PcapConfig configures offline replay of a capture file.
type PcapConfig struct {
	Path string `yaml:"path"`
}

// SourceConfig selects the single upstream source.
type SourceConfig struct {
	Type    string        `yaml:"type"`
	NetFlow NetFlowConfig `yaml:"netflow"`
	NATS    NATSConfig    `yaml:"nats"`
	Pcap    PcapConfig    `yaml:"pcap"`
}

// FieldsConfig names the record fields the aggregator reads.
type FieldsConfig struct {
	Protocol string `yaml:"protocol"`
	Packets  string `yaml:"packets"`
	Bytes    string `yaml:"bytes"`
}

// PipelineConfig holds the metric pipeline settings.
type PipelineConfig struct {
	Metrics         []string `yaml:"metrics"`
	WindowCeiling   int      `yaml:"window_ceiling"`
	MinTone         float64  `yaml:"min_tone"`
	MaxTone         float64  `yaml:"max_tone"`
	UnknownProtocol string   `yaml:"unknown_protocol"`
}

// OSCConfig configures the OSC sender.
type OSCConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	ScaleAddr string `yaml:"scale_address"`
	GateAddr  string `yaml:"gate_address"`
}

// NATSSinkConfig configures publishing of the vectors to NATS.
type NATSSinkConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// ClickHouseConfig holds the connection details for ClickHouse.
type ClickHouseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// RendererConfig configures the in-memory chart series.
type RendererConfig struct {
	Enabled bool `yaml:"enabled"`
	Points  int  `yaml:"points"`
}

// SnapshotConfig configures the JSON-lines epoch log.
type SnapshotConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// EmitterConfig groups all downstream sinks.
type EmitterConfig struct {
	OSC        OSCConfig        `yaml:"osc"`
	NATS       NATSSinkConfig   `yaml:"nats"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Snapshot   SnapshotConfig   `yaml:"snapshot"`
	Renderer   RendererConfig   `yaml:"renderer"`
}

// APIConfig holds the HTTP and gRPC listen addresses. Empty disables.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	GRPCAddr   string `yaml:"grpc_addr"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Source    SourceConfig   `yaml:"source"`
	Fields    FieldsConfig   `yaml:"fields"`
	Protocols map[int]string `yaml:"protocols"`
	Pipeline  PipelineConfig `yaml:"pipeline"`
	Emitter   EmitterConfig  `yaml:"emitter"`
	API       APIConfig      `yaml:"api"`
	Log       LogConfig      `yaml:"log"`
}

// Default returns the configuration used when no file overrides a value.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Type: SourceNetFlow,
			NetFlow: NetFlowConfig{
				ListenAddr: "0.0.0.0:2055",
				ReadBuffer: 65535,
			},
			NATS: NATSConfig{
				URL:     "nats://127.0.0.1:4222",
				Subject: "gons.flows.decoded",
			},
		},
		Fields: FieldsConfig{
			Protocol: "PROTOCOL",
			Packets:  "IN_PKTS",
			Bytes:    "IN_BYTES",
		},
		Protocols: map[int]string{1: "icmp", 6: "tcp", 17: "udp"},
		Pipeline: PipelineConfig{
			Metrics:         []string{"udp_pps", "udp_bw", "icmp_pps", "icmp_bw", "tcp_pps", "tcp_bw"},
			WindowCeiling:   50,
			MinTone:         0,
			MaxTone:         100,
			UnknownProtocol: PolicySkip,
		},
		Emitter: EmitterConfig{
			OSC: OSCConfig{
				Enabled:   true,
				Host:      "127.0.0.1",
				Port:      4559,
				ScaleAddr: "/note",
				GateAddr:  "/amp",
			},
			NATS: NATSSinkConfig{
				URL:           "nats://127.0.0.1:4222",
				SubjectPrefix: "gons.sonify",
			},
			ClickHouse: ClickHouseConfig{
				Host:     "127.0.0.1",
				Port:     9000,
				Database: "default",
				Username: "default",
			},
			Snapshot: SnapshotConfig{
				Path: "snapshots",
			},
			Renderer: RendererConfig{
				Enabled: true,
				Points:  100,
			},
		},
		API: APIConfig{
			ListenAddr: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads the configuration from a YAML file on top of Default and
// validates the result.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration data on top of Default.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	// yaml.v3 merges into a non-nil map, so the default protocol table is
	// only applied when the file does not provide one.
	protocols := cfg.Protocols
	cfg.Protocols = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	if len(cfg.Protocols) == 0 {
		cfg.Protocols = protocols
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Source.Type {
	case SourceNetFlow:
		if c.Source.NetFlow.ListenAddr == "" {
			return fmt.Errorf("%w: source.netflow.listen_addr is required", ErrInvalid)
		}
	case SourceNATS:
		if c.Source.NATS.URL == "" || c.Source.NATS.Subject == "" {
			return fmt.Errorf("%w: source.nats needs url and subject", ErrInvalid)
		}
	case SourcePcap:
		if c.Source.Pcap.Path == "" {
			return fmt.Errorf("%w: source.pcap.path is required", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown source type %q", ErrInvalid, c.Source.Type)
	}

	if c.Fields.Protocol == "" || c.Fields.Packets == "" || c.Fields.Bytes == "" {
		return fmt.Errorf("%w: fields.protocol, fields.packets and fields.bytes are required", ErrInvalid)
	}
	if len(c.Protocols) == 0 {
		return fmt.Errorf("%w: protocol table is empty", ErrInvalid)
	}
	for id, name := range c.Protocols {
		if id < 0 || id > 255 {
			return fmt.Errorf("%w: protocol id %d out of range", ErrInvalid, id)
		}
		if name == "" || strings.ContainsAny(name, " _") {
			return fmt.Errorf("%w: bad protocol name %q for id %d", ErrInvalid, name, id)
		}
	}

	if len(c.Pipeline.Metrics) == 0 {
		return fmt.Errorf("%w: pipeline.metrics is empty", ErrInvalid)
	}
	seen := make(map[string]bool, len(c.Pipeline.Metrics))
	for _, m := range c.Pipeline.Metrics {
		if seen[m] {
			return fmt.Errorf("%w: metric %q listed twice", ErrInvalid, m)
		}
		seen[m] = true
	}
	if c.Pipeline.WindowCeiling <= 0 {
		return fmt.Errorf("%w: pipeline.window_ceiling must be positive", ErrInvalid)
	}
	if c.Pipeline.MaxTone <= c.Pipeline.MinTone {
		return fmt.Errorf("%w: pipeline.max_tone must exceed min_tone", ErrInvalid)
	}
	switch c.Pipeline.UnknownProtocol {
	case PolicySkip, PolicyAbort:
	default:
		return fmt.Errorf("%w: unknown_protocol must be %q or %q", ErrInvalid, PolicySkip, PolicyAbort)
	}

	if c.Emitter.OSC.Enabled && (c.Emitter.OSC.Host == "" || c.Emitter.OSC.Port <= 0) {
		return fmt.Errorf("%w: emitter.osc needs host and port", ErrInvalid)
	}
	if c.Emitter.Snapshot.Enabled && c.Emitter.Snapshot.Path == "" {
		return fmt.Errorf("%w: emitter.snapshot.path is required", ErrInvalid)
	}
	if c.Emitter.Renderer.Enabled && c.Emitter.Renderer.Points <= 0 {
		return fmt.Errorf("%w: emitter.renderer.points must be positive", ErrInvalid)
	}
	return nil
}
