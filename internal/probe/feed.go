// Package probe turns captured packets into record batches and publishes
// them for the nats source.
package probe

import (
	"context"
	"time"

	"github.com/google/gopacket"

	"Go2NetSonify/internal/engine/protocol"
	"Go2NetSonify/internal/model"
)

// BatchPublisher sends one batch upstream.
type BatchPublisher interface {
	Publish(batch model.RecordBatch) error
}

// FeedStats counts what Feed did.
type FeedStats struct {
	Packets   int
	Skipped   int
	Published int
	Failed    int
}

// Feed groups packets into batches and publishes them. A batch is flushed
// when it reaches maxRecords, when flushEvery elapses, and when packets is
// closed or ctx is done. The arrival time of a batch is the capture time of
// its first packet.
func Feed(ctx context.Context, packets <-chan gopacket.Packet, pub BatchPublisher,
	flushEvery time.Duration, maxRecords int) FeedStats {
	var (
		stats   FeedStats
		pending model.RecordBatch
	)
	flush := func() {
		if len(pending.Records) == 0 {
			return
		}
		if err := pub.Publish(pending); err != nil {
			stats.Failed++
		} else {
			stats.Published++
		}
		pending = model.RecordBatch{}
	}

	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flush()
			return stats
		case <-ticker.C:
			flush()
		case packet, ok := <-packets:
			if !ok {
				flush()
				return stats
			}
			stats.Packets++
			rec, err := protocol.ParsePacket(packet)
			if err != nil {
				stats.Skipped++
				continue
			}
			if len(pending.Records) == 0 {
				pending.Arrival = packet.Metadata().Timestamp
			}
			pending.Records = append(pending.Records, rec)
			if maxRecords > 0 && len(pending.Records) >= maxRecords {
				flush()
			}
		}
	}
}

// Pace returns a handler that sleeps for the gap between consecutive
// arrivals before passing each batch on, reproducing the capture timing.
func Pace(next model.BatchHandler, sleep func(time.Duration)) model.BatchHandler {
	var last time.Time
	return func(batch model.RecordBatch) {
		if !last.IsZero() {
			if gap := batch.Arrival.Sub(last); gap > 0 {
				sleep(gap)
			}
		}
		last = batch.Arrival
		next(batch)
	}
}
