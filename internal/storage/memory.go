// Package storage keeps the transcript of completed exchanges.
package storage

import (
	"context"
	"sync"

	"github.com/hammamikhairi/astra/internal/domain"
	"github.com/hammamikhairi/astra/internal/logger"
)

// Compile-time interface check.
var _ domain.TranscriptLog = (*MemoryLog)(nil)

// DefaultCapacity bounds the number of exchanges kept in memory.
const DefaultCapacity = 200

// MemoryLog is an in-memory, append-only transcript. The oldest entries
// are dropped once capacity is reached. Safe for concurrent access.
type MemoryLog struct {
	mu        sync.RWMutex
	exchanges []domain.Exchange
	capacity  int
	log       *logger.Logger
}

// NewMemoryLog creates an empty transcript holding at most capacity
// exchanges. A non-positive capacity uses DefaultCapacity.
func NewMemoryLog(capacity int, log *logger.Logger) *MemoryLog {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryLog{
		capacity: capacity,
		log:      log,
	}
}

// Append records a completed exchange.
func (s *MemoryLog) Append(ctx context.Context, ex domain.Exchange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.exchanges = append(s.exchanges, ex)
	if over := len(s.exchanges) - s.capacity; over > 0 {
		s.exchanges = append(s.exchanges[:0:0], s.exchanges[over:]...)
	}
	s.log.Debug("transcript: appended turn %s (failed=%t, size=%d)", ex.TurnID, ex.Failed, len(s.exchanges))
	return nil
}

// Recent returns up to n of the latest exchanges, oldest first.
func (s *MemoryLog) Recent(ctx context.Context, n int) ([]domain.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 {
		return nil, nil
	}
	start := max(len(s.exchanges)-n, 0)
	out := make([]domain.Exchange, len(s.exchanges)-start)
	copy(out, s.exchanges[start:])
	return out, nil
}

// Find returns the exchange recorded for a turn.
func (s *MemoryLog) Find(ctx context.Context, turnID string) (domain.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.exchanges) - 1; i >= 0; i-- {
		if s.exchanges[i].TurnID == turnID {
			return s.exchanges[i], nil
		}
	}
	s.log.Debug("transcript: turn not found: %s", turnID)
	return domain.Exchange{}, domain.ErrNotFound
}

// Len returns the number of stored exchanges.
func (s *MemoryLog) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.exchanges)
}
