// Package epoch buckets arriving record batches by whole second and detects
// when a second has closed.
package epoch

import (
	"sort"
	"sync"

	"Go2NetSonify/internal/model"
)

// Store holds record batches of epochs that have not been summarized yet.
// Batches are indexed by epoch and then by arrival time in nanoseconds, so
// closing an epoch only touches that epoch's batches.
type Store struct {
	mu     sync.Mutex
	epochs map[int64]map[int64]model.RecordBatch
	size   int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		epochs: make(map[int64]map[int64]model.RecordBatch),
	}
}

// Put inserts a batch under its arrival time. Two batches with exactly the
// same arrival time collide and the later one wins; Put reports when that
// happens.
func (s *Store) Put(batch model.RecordBatch) (replaced bool) {
	epoch := batch.Epoch()
	key := batch.Arrival.UnixNano()

	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.epochs[epoch]
	if !ok {
		bucket = make(map[int64]model.RecordBatch)
		s.epochs[epoch] = bucket
	}
	if _, replaced = bucket[key]; !replaced {
		s.size++
	}
	bucket[key] = batch
	return replaced
}

// Drain removes and returns every batch of epoch, ordered by arrival time.
// Batches of other epochs are left untouched.
func (s *Store) Drain(epoch int64) []model.RecordBatch {
	s.mu.Lock()
	bucket, ok := s.epochs[epoch]
	if ok {
		delete(s.epochs, epoch)
		s.size -= len(bucket)
	}
	s.mu.Unlock()

	if !ok {
		return nil
	}

	keys := make([]int64, 0, len(bucket))
	for k := range bucket {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	batches := make([]model.RecordBatch, 0, len(keys))
	for _, k := range keys {
		batches = append(batches, bucket[k])
	}
	return batches
}

// Len returns the number of stored batches.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Epochs returns the epochs that currently hold batches, in ascending order.
func (s *Store) Epochs() []int64 {
	s.mu.Lock()
	epochs := make([]int64, 0, len(s.epochs))
	for e := range s.epochs {
		epochs = append(epochs, e)
	}
	s.mu.Unlock()

	sort.Slice(epochs, func(i, j int) bool { return epochs[i] < epochs[j] })
	return epochs
}
