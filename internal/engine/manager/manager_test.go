package manager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Go2NetSonify/internal/config"
	"Go2NetSonify/internal/metrics"
	"Go2NetSonify/internal/model"
)

// feedSource delivers its batches, signals delivered, then waits for
// cancellation or returns err.
type feedSource struct {
	batches   []model.RecordBatch
	delivered chan struct{}
	err       error
}

func (f *feedSource) Name() string { return "feed" }

func (f *feedSource) Run(ctx context.Context, handle model.BatchHandler) error {
	for _, b := range f.batches {
		handle(b)
	}
	close(f.delivered)
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return ctx.Err()
}

type recordingSender struct {
	mu     sync.Mutex
	got    []*model.EpochResult
	closed bool
}

func (r *recordingSender) Name() string { return "recording" }

func (r *recordingSender) Send(_ context.Context, res *model.EpochResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, res)
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func (r *recordingSender) Close() error {
	r.closed = true
	return nil
}

type drawRecorder struct {
	mu     sync.Mutex
	points int
}

func (d *drawRecorder) Draw(float64, float64) {
	d.mu.Lock()
	d.points++
	d.mu.Unlock()
}

func at(sec float64) time.Time {
	return time.Unix(0, int64(sec*float64(time.Second)))
}

func tcp(pkts, bytes int) model.FlowRecord {
	return model.FlowRecord{
		model.FieldProtocol: 6,
		model.FieldPackets:  pkts,
		model.FieldBytes:    bytes,
	}
}

func TestManagerEndToEnd(t *testing.T) {
	src := &feedSource{
		delivered: make(chan struct{}),
		batches: []model.RecordBatch{
			{Arrival: at(10.1), Records: []model.FlowRecord{tcp(5, 500)}},
			{Arrival: at(10.9), Records: []model.FlowRecord{tcp(7, 700)}},
			{Arrival: at(11.2), Records: []model.FlowRecord{tcp(1, 100)}},
			{Arrival: at(11.9), Records: []model.FlowRecord{tcp(1, 100)}},
			{Arrival: at(12.3), Records: []model.FlowRecord{tcp(9, 900)}},
		},
	}
	sender := &recordingSender{}
	renderer := &drawRecorder{}
	mgr := NewManager(config.Default(), "run-1", src, []model.Sender{sender}, renderer, metrics.New(), nil)
	assert.Equal(t, "run-1", mgr.RunID())

	mgr.Start(context.Background())
	<-src.delivered
	require.NoError(t, mgr.Stop())

	require.Len(t, sender.got, 2)
	assert.True(t, sender.closed)
	assert.Equal(t, 2, renderer.points)

	first, second := sender.got[0], sender.got[1]
	assert.Equal(t, int64(10), first.Epoch)
	assert.Equal(t, model.ProtoMetricSet{"tcp_pps": 12, "tcp_bw": 1200}, first.Metrics)
	assert.Equal(t, int64(11), second.Epoch)
	assert.Equal(t, model.ProtoMetricSet{"tcp_pps": 2, "tcp_bw": 200}, second.Metrics)

	// udp_pps, udp_bw, icmp_pps, icmp_bw, tcp_pps, tcp_bw
	assert.Equal(t, []float64{0.1, 0.1, 0.1, 0.1, 1, 1}, first.Gating)
	assert.Equal(t, []float64{0, 0, 0, 0, 100, 100}, first.Scaling)
	assert.Equal(t, []float64{0.1, 0.1, 0.1, 0.1, 0.1, 0.1}, second.Gating)
	assert.InDelta(t, 2*100.0/12, second.Scaling[4], 1e-9)
	assert.InDelta(t, 7.0, second.Thresholds["tcp_pps"], 1e-9)

	st := mgr.Status()
	assert.Equal(t, "feed", st.Source)
	assert.Equal(t, uint64(5), st.Ingested)
	assert.Equal(t, []int64{12}, st.PendingEpochs)
	require.NotNil(t, st.OpenEpoch)
	assert.Equal(t, int64(12), *st.OpenEpoch)
	assert.Equal(t, uint64(2), st.Pipeline.Epochs)
	require.NotNil(t, st.Last)
	assert.Equal(t, int64(11), st.Last.Epoch)
}

func TestManagerSourceError(t *testing.T) {
	boom := errors.New("listener exploded")
	src := &feedSource{delivered: make(chan struct{}), err: boom}
	mgr := NewManager(config.Default(), "", src, nil, nil, nil, nil)
	assert.NotEmpty(t, mgr.RunID())

	mgr.Start(context.Background())
	select {
	case <-mgr.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("source did not finish")
	}
	assert.ErrorIs(t, mgr.Err(), boom)
	require.NoError(t, mgr.Stop())
	require.NoError(t, mgr.Stop())
}

type blockingSender struct {
	release chan struct{}
}

func (b *blockingSender) Name() string { return "blocking" }

func (b *blockingSender) Send(ctx context.Context, _ *model.EpochResult) error {
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *blockingSender) Close() error { return nil }

func TestManagerBlockedSenderDoesNotStallPipeline(t *testing.T) {
	var batches []model.RecordBatch
	for i := 0; i < 6; i++ {
		batches = append(batches, model.RecordBatch{
			Arrival: at(100.5 + float64(i)),
			Records: []model.FlowRecord{tcp(1, 100)},
		})
	}
	src := &feedSource{delivered: make(chan struct{}), batches: batches}
	blocked := &blockingSender{release: make(chan struct{})}
	healthy := &recordingSender{}
	mgr := NewManager(config.Default(), "run-2", src, []model.Sender{blocked, healthy}, nil, nil, nil)

	mgr.Start(context.Background())
	<-src.delivered

	require.Eventually(t, func() bool { return healthy.count() == 5 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(5), mgr.Status().Pipeline.Epochs)

	close(blocked.release)
	require.NoError(t, mgr.Stop())
}

func TestManagerStopWithoutStart(t *testing.T) {
	mgr := NewManager(config.Default(), "", &feedSource{delivered: make(chan struct{})}, nil, nil, nil, nil)
	require.NoError(t, mgr.Stop())

	select {
	case <-mgr.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
	assert.NoError(t, mgr.Err())
}
