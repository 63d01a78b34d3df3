package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"Go2NetSonify/internal/config"
	"Go2NetSonify/internal/model"
)

// Line is one epoch as written to the log.
type Line struct {
	RunID     string `json:"run_id"`
	Timestamp string `json:"timestamp"`
	*model.EpochResult
}

// Writer appends one JSON line per emitted epoch.
type Writer struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
	runID  string
	now    func() time.Time
}

// NewWriter writes to w. If w is an io.Closer, Close closes it.
func NewWriter(w io.Writer, runID string) *Writer {
	sw := &Writer{enc: json.NewEncoder(w), runID: runID, now: time.Now}
	if c, ok := w.(io.Closer); ok {
		sw.closer = c
	}
	return sw
}

// Open creates a timestamped file for this run under cfg.Path.
func Open(cfg config.SnapshotConfig, runID string) (*Writer, string, error) {
	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	name := fmt.Sprintf("%s_%s.jsonl", time.Now().Format("2006-01-02_15-04-05"), runID)
	path := filepath.Join(cfg.Path, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create snapshot file '%s': %w", path, err)
	}
	return NewWriter(f, runID), path, nil
}

// Name implements model.Sender.
func (w *Writer) Name() string {
	return "snapshot"
}

// Send implements model.Sender.
func (w *Writer) Send(_ context.Context, result *model.EpochResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	line := Line{
		RunID:       w.runID,
		Timestamp:   w.now().UTC().Format(time.RFC3339),
		EpochResult: result,
	}
	if err := w.enc.Encode(line); err != nil {
		return fmt.Errorf("failed to encode epoch %d: %w", result.Epoch, err)
	}
	return nil
}

// Close implements model.Sender.
func (w *Writer) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}
