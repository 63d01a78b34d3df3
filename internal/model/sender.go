package model

import "context"

// Sender delivers the per-epoch vectors to a downstream endpoint.
type Sender interface {
	Name() string
	Send(ctx context.Context, result *EpochResult) error
	Close() error
}

// Renderer accepts the first two scaled values of every epoch.
type Renderer interface {
	Draw(first, second float64)
}
