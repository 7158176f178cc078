package ledger

import (
	"context"
	"sync"
)

// MemoryStore serialises instructions behind one mutex. It backs tests and
// single-node development.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Execute(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := newTx(ctx, func(_ context.Context, key string) ([]byte, error) {
		v, ok := s.data[key]
		if !ok {
			return nil, ErrNotFound
		}
		return v, nil
	})
	if err := fn(tx); err != nil {
		return err
	}

	for _, w := range tx.writes {
		if w.value == nil {
			delete(s.data, w.key)
			continue
		}
		s.data[w.key] = w.value
	}
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

func (s *MemoryStore) Close() error { return nil }
