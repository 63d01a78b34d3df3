package model

import "context"

// BatchHandler receives one decoded batch per arrival event.
type BatchHandler func(batch RecordBatch)

// Source delivers decoded record batches to a handler, one at a time, until
// the context is cancelled or the input is exhausted.
type Source interface {
	Name() string
	Run(ctx context.Context, handle BatchHandler) error
}
