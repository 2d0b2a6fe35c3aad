package alert

import (
	"context"
	"strings"
	"sync"
	"time"
)

// CooldownStore persists last-fire timestamps keyed (symbol, rule_id)
// with last-write-wins reads. Implementations must survive restarts;
// MemoryCooldownStore exists for tests and degraded fallback.
type CooldownStore interface {
	LastFire(ctx context.Context, symbol, ruleID string) (time.Time, bool, error)
	RecordFire(ctx context.Context, symbol, ruleID string, at time.Time) error
}

func cooldownKey(symbol, ruleID string) string {
	return strings.ToUpper(strings.TrimSpace(symbol)) + "|" + strings.TrimSpace(ruleID)
}

// MemoryCooldownStore keeps cooldown records in process memory.
type MemoryCooldownStore struct {
	mu    sync.RWMutex
	fires map[string]time.Time
}

func NewMemoryCooldownStore() *MemoryCooldownStore {
	return &MemoryCooldownStore{fires: make(map[string]time.Time)}
}

func (m *MemoryCooldownStore) LastFire(_ context.Context, symbol, ruleID string) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	at, ok := m.fires[cooldownKey(symbol, ruleID)]
	return at, ok, nil
}

func (m *MemoryCooldownStore) RecordFire(_ context.Context, symbol, ruleID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := cooldownKey(symbol, ruleID)
	// Latest wins: never move a recorded fire backwards.
	if existing, ok := m.fires[key]; ok && existing.After(at) {
		return nil
	}
	m.fires[key] = at
	return nil
}
