package storage

import (
	"context"
	"sync"
)

// MemoryStorage keeps encoded carts in process memory, keyed by session.
// Carts outlive an evicted session but not a restart.
type MemoryStorage struct {
	mu    sync.RWMutex
	carts map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{carts: make(map[string][]byte)}
}

// Session returns the backend for one session's cart.
func (m *MemoryStorage) Session(sessionID string) *MemorySession {
	return &MemorySession{parent: m, id: sessionID}
}

type MemorySession struct {
	parent *MemoryStorage
	id     string
}

func (s *MemorySession) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.parent.mu.RLock()
	defer s.parent.mu.RUnlock()

	data, ok := s.parent.carts[s.id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemorySession) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.parent.mu.Lock()
	s.parent.carts[s.id] = append([]byte(nil), data...)
	s.parent.mu.Unlock()
	return nil
}
