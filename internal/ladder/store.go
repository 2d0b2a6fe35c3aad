package ladder

import (
	"context"
	"sync"
)

// Store persists ladder states keyed (symbol, side) with last-write-wins
// semantics. Implementations must make writes durable across restarts.
type Store interface {
	GetLadderState(ctx context.Context, key string) (State, bool, error)
	PutLadderState(ctx context.Context, st State) error
}

// MemoryStore is the in-process Store used by tests and as the corruption
// fallback when no durable store is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (m *MemoryStore) GetLadderState(_ context.Context, key string) (State, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[key]
	return st, ok, nil
}

func (m *MemoryStore) PutLadderState(_ context.Context, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[st.Key()] = st
	return nil
}
