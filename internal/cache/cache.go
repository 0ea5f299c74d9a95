// Package cache holds derived balances between recomputations.
//
// Cached values are never authoritative: a miss or a lost entry only costs a
// recomputation from the ledger.
package cache

import (
	"context"
	"sync"

	"github.com/mmynk/settleup/internal/models"
)

// BalanceCache stores pairwise and group balances.
type BalanceCache interface {
	// GetPair returns the cached balance oriented as (a, b).
	GetPair(ctx context.Context, a, b string) (models.PairwiseBalance, bool, error)
	PutPair(ctx context.Context, balance models.PairwiseBalance) error

	GetGroup(ctx context.Context, groupID string) (models.GroupBalance, bool, error)
	PutGroup(ctx context.Context, balance models.GroupBalance) error
}

// PairKey returns the order-independent key of a pair.
func PairKey(a, b string) string {
	a, b = models.CanonicalPair(a, b)
	return a + "|" + b
}

// Canonical returns the balance oriented with UserA < UserB.
func Canonical(b models.PairwiseBalance) models.PairwiseBalance {
	if b.UserA > b.UserB {
		return b.Flip()
	}
	return b
}

// Orient returns a stored (canonical) balance as seen from a.
func Orient(b models.PairwiseBalance, a string) models.PairwiseBalance {
	if b.UserA != a {
		return b.Flip()
	}
	return b
}

var _ BalanceCache = (*Memory)(nil)

// Memory is a process-local BalanceCache.
type Memory struct {
	mu     sync.RWMutex
	pairs  map[string]models.PairwiseBalance
	groups map[string]models.GroupBalance
}

// NewMemory creates an empty Memory cache.
func NewMemory() *Memory {
	return &Memory{
		pairs:  make(map[string]models.PairwiseBalance),
		groups: make(map[string]models.GroupBalance),
	}
}

func (m *Memory) GetPair(_ context.Context, a, b string) (models.PairwiseBalance, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bal, ok := m.pairs[PairKey(a, b)]
	if !ok {
		return models.PairwiseBalance{}, false, nil
	}
	return Orient(bal, a), true, nil
}

func (m *Memory) PutPair(_ context.Context, balance models.PairwiseBalance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pairs[PairKey(balance.UserA, balance.UserB)] = Canonical(balance)
	return nil
}

func (m *Memory) GetGroup(_ context.Context, groupID string) (models.GroupBalance, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.groups[groupID]
	if !ok {
		return models.GroupBalance{}, false, nil
	}
	g.Members = append([]models.MemberBalance(nil), g.Members...)
	return g, true, nil
}

func (m *Memory) PutGroup(_ context.Context, balance models.GroupBalance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	balance.Members = append([]models.MemberBalance(nil), balance.Members...)
	m.groups[balance.GroupID] = balance
	return nil
}
