// Package chart keeps the two series a live chart of the sonified traffic
// needs. Drawing them is left to whoever reads the series.
package chart

import "sync"

// Series holds the last N points of the first two scaled metrics.
type Series struct {
	mu     sync.RWMutex
	size   int
	first  []float64
	second []float64
}

// New creates two zero-filled series of n points, at least one.
func New(n int) *Series {
	n = max(n, 1)
	return &Series{
		size:   n,
		first:  make([]float64, n),
		second: make([]float64, n),
	}
}

// Draw implements model.Renderer. The oldest point scrolls out.
func (s *Series) Draw(first, second float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.first = append(s.first[1:], first)
	s.second = append(s.second[1:], second)
}

// Points returns copies of both series, oldest point first.
func (s *Series) Points() (first, second []float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]float64(nil), s.first...), append([]float64(nil), s.second...)
}

// Len returns the number of points per series.
func (s *Series) Len() int {
	return s.size
}
