package analytics

import (
	"context"
	"sync"
)

// MemorySink records every HandRecord it receives in process, used by
// tests and by a deployment with no warehouse configured yet.
type MemorySink struct {
	mu      sync.Mutex
	records []HandRecord
}

// NewMemorySink constructs an empty recorder.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// RecordHand appends rec to the in-memory log.
func (s *MemorySink) RecordHand(_ context.Context, rec HandRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// Records returns a copy of every record seen so far, for test
// assertions.
func (s *MemorySink) Records() []HandRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]HandRecord(nil), s.records...)
}
