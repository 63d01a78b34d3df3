package netflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"Go2NetSonify/internal/config"
	"Go2NetSonify/internal/metrics"
	"Go2NetSonify/internal/model"
)

// Listener receives NetFlow v5 datagrams and hands each decoded datagram to
// the batch handler, one at a time, stamped with its receive time.
type Listener struct {
	addr       string
	readBuffer int

	mu   sync.Mutex
	conn net.PacketConn

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a listener; nothing is bound until Listen or Run.
func New(cfg config.NetFlowConfig, m *metrics.Metrics, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	size := cfg.ReadBuffer
	if size <= 0 {
		size = 65535
	}
	return &Listener{
		addr:       cfg.ListenAddr,
		readBuffer: size,
		metrics:    m,
		logger:     logger.With("component", "netflow"),
	}
}

// Name implements model.Source.
func (l *Listener) Name() string {
	return "netflow"
}

// Listen binds the UDP socket.
func (l *Listener) Listen() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return nil
	}
	conn, err := net.ListenPacket("udp", l.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.addr, err)
	}
	l.conn = conn
	l.logger.Info("listening for netflow", "addr", conn.LocalAddr().String())
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Run reads datagrams until ctx is cancelled.
func (l *Listener) Run(ctx context.Context, handle model.BatchHandler) error {
	if err := l.Listen(); err != nil {
		return err
	}
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	buf := make([]byte, l.readBuffer)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				l.logger.Info("netflow listener stopped")
				return nil
			}
			return fmt.Errorf("netflow read: %w", err)
		}
		arrival := time.Now()

		_, records, err := Decode(buf[:n])
		if err != nil {
			l.metrics.DecodeFailed(l.Name())
			l.logger.Warn("dropping datagram", "from", from.String(), "bytes", n, "error", err)
			continue
		}
		handle(model.RecordBatch{Arrival: arrival, Records: records})
	}
}
