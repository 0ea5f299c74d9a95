// Package balance maintains pairwise and group balances as a materialized view
// over the ledger.
//
// The view is derived, never authoritative. Recompute* folds the active
// ledger from scratch and overwrites the cache. Apply* refreshes only the
// pairs and groups a changed record touches, through the same fold, so the
// cache never holds a value a full recomputation would not produce. Folds of
// one key are serialized, so the last write to a key always reflects the
// latest ledger read. Verify* reports when a cached value had drifted anyway.
package balance

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mmynk/settleup/internal/apperr"
	"github.com/mmynk/settleup/internal/cache"
	"github.com/mmynk/settleup/internal/calculator"
	"github.com/mmynk/settleup/internal/metrics"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
)

// Aggregator computes balances from a LedgerStore and keeps them in a
// BalanceCache.
type Aggregator struct {
	store   storage.LedgerStore
	cache   cache.BalanceCache
	metrics *metrics.Metrics
	now     func() time.Time
	locks   [lockStripes]sync.Mutex
}

const lockStripes = 64

// lock serializes folds of one cache key. At most one stripe is held at a
// time.
func (a *Aggregator) lock(key string) func() {
	h := fnv.New32a()
	h.Write([]byte(key))
	mu := &a.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithMetrics records recomputations, drift and simplification savings.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithClock overrides the clock used for LastUpdated.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// NewAggregator creates an Aggregator. A nil cache means an in-process one.
func NewAggregator(store storage.LedgerStore, c cache.BalanceCache, opts ...Option) *Aggregator {
	if c == nil {
		c = cache.NewMemory()
	}
	a := &Aggregator{store: store, cache: c, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RecomputePairwiseBalance folds every active expense and confirmed
// settlement between a and b and overwrites the cached value.
func (a *Aggregator) RecomputePairwiseBalance(ctx context.Context, userA, userB string) (models.PairwiseBalance, error) {
	if err := validatePair(userA, userB); err != nil {
		return models.PairwiseBalance{}, err
	}
	defer a.lock(cache.PairKey(userA, userB))()
	return a.recomputePair(ctx, userA, userB)
}

func (a *Aggregator) recomputePair(ctx context.Context, userA, userB string) (models.PairwiseBalance, error) {
	pair := []string{userA, userB}
	expenses, err := a.store.FetchSharedExpenses(ctx, pair, storage.Filter{})
	if err != nil {
		return models.PairwiseBalance{}, fmt.Errorf("failed to fetch expenses: %w", err)
	}
	settlements, err := a.store.FetchConfirmedSettlements(ctx, pair, storage.Filter{})
	if err != nil {
		return models.PairwiseBalance{}, fmt.Errorf("failed to fetch settlements: %w", err)
	}

	amount := calculator.PairwiseBalance(expenses, settlements, userA, userB)
	bal := models.PairwiseBalance{
		UserA:       userA,
		UserB:       userB,
		Amount:      amount,
		Direction:   models.DirectionOf(amount),
		LastUpdated: a.now().UTC(),
	}
	if err := a.cache.PutPair(ctx, bal); err != nil {
		return models.PairwiseBalance{}, fmt.Errorf("failed to cache pairwise balance: %w", err)
	}
	a.metrics.Recomputed(metrics.ScopePair)

	slog.Debug("Pairwise balance recomputed",
		"user_a", userA,
		"user_b", userB,
		"expenses", len(expenses),
		"settlements", len(settlements),
		"balance", calculator.DescribeBalance(bal),
	)
	return bal, nil
}

// RecomputeGroupBalances folds the group's active expenses and confirmed
// settlements and overwrites the cached value. A result that does not
// conserve money is returned as a ConsistencyError and not cached.
func (a *Aggregator) RecomputeGroupBalances(ctx context.Context, groupID string) (models.GroupBalance, error) {
	defer a.lock(groupKey(groupID))()
	return a.recomputeGroup(ctx, groupID)
}

func (a *Aggregator) recomputeGroup(ctx context.Context, groupID string) (models.GroupBalance, error) {
	group, expenses, settlements, err := a.groupSnapshot(ctx, groupID)
	if err != nil {
		return models.GroupBalance{}, err
	}

	members := calculator.GroupNetBalances(group.Members, expenses, settlements)
	if err := calculator.CheckConservation("group "+groupID, members); err != nil {
		slog.Error("Group balances do not conserve", "group_id", groupID, "error", err)
		return models.GroupBalance{}, err
	}

	bal := models.GroupBalance{GroupID: groupID, Members: members, LastUpdated: a.now().UTC()}
	if err := a.cache.PutGroup(ctx, bal); err != nil {
		return models.GroupBalance{}, fmt.Errorf("failed to cache group balances: %w", err)
	}
	a.metrics.Recomputed(metrics.ScopeGroup)

	slog.Debug("Group balances recomputed",
		"group_id", groupID,
		"members", len(members),
		"expenses", len(expenses),
		"settlements", len(settlements),
	)
	return bal, nil
}

// PairwiseBalance returns the cached balance between a and b, recomputing
// on a miss.
func (a *Aggregator) PairwiseBalance(ctx context.Context, userA, userB string) (models.PairwiseBalance, error) {
	if err := validatePair(userA, userB); err != nil {
		return models.PairwiseBalance{}, err
	}
	bal, ok, err := a.cache.GetPair(ctx, userA, userB)
	if err != nil {
		slog.Warn("Balance cache read failed, recomputing", "user_a", userA, "user_b", userB, "error", err)
	}
	if ok {
		return bal, nil
	}
	return a.RecomputePairwiseBalance(ctx, userA, userB)
}

// GroupBalances returns the cached group balances, recomputing on a miss.
func (a *Aggregator) GroupBalances(ctx context.Context, groupID string) (models.GroupBalance, error) {
	bal, ok, err := a.cache.GetGroup(ctx, groupID)
	if err != nil {
		slog.Warn("Balance cache read failed, recomputing", "group_id", groupID, "error", err)
	}
	if ok {
		return bal, nil
	}
	return a.RecomputeGroupBalances(ctx, groupID)
}

// ApplyExpenseChange refreshes cached balances after an expense was
// created (old == nil), edited, or soft-deleted (updated inactive or nil).
// Every pair and group either version touches is folded again from the
// store, which already holds the change, so a recomputation that ran between
// the store write and this call is never counted twice.
func (a *Aggregator) ApplyExpenseChange(ctx context.Context, old, updated *models.SharedExpense) error {
	for _, p := range affectedPairs(old, updated) {
		if _, err := a.RecomputePairwiseBalance(ctx, p[0], p[1]); err != nil {
			return err
		}
	}
	for _, groupID := range affectedGroups(old, updated) {
		if _, err := a.RecomputeGroupBalances(ctx, groupID); err != nil {
			return err
		}
	}
	return nil
}

// ApplySettlementConfirmed refreshes cached balances after a settlement was
// confirmed.
func (a *Aggregator) ApplySettlementConfirmed(ctx context.Context, s *models.Settlement) error {
	if s == nil || s.Status != models.SettlementConfirmed {
		return nil
	}
	if _, err := a.RecomputePairwiseBalance(ctx, s.Payer, s.Recipient); err != nil {
		return err
	}
	if s.GroupID != "" {
		if _, err := a.RecomputeGroupBalances(ctx, s.GroupID); err != nil {
			return err
		}
	}
	return nil
}

// Verify recomputes the pair and reports whether the cached value had
// drifted from it. The cache holds the recomputed value afterwards.
func (a *Aggregator) Verify(ctx context.Context, userA, userB string) (models.PairwiseBalance, bool, error) {
	if err := validatePair(userA, userB); err != nil {
		return models.PairwiseBalance{}, false, err
	}
	defer a.lock(cache.PairKey(userA, userB))()
	cached, ok, _ := a.cache.GetPair(ctx, userA, userB)
	fresh, err := a.recomputePair(ctx, userA, userB)
	if err != nil {
		return models.PairwiseBalance{}, false, err
	}
	drifted := ok && cached.Amount != fresh.Amount
	if drifted {
		a.metrics.Drifted(metrics.ScopePair)
		slog.Warn("Pairwise balance cache drifted",
			"user_a", userA,
			"user_b", userB,
			"cached", cached.Amount.String(),
			"recomputed", fresh.Amount.String(),
		)
	}
	return fresh, drifted, nil
}

// VerifyGroup is Verify for a group.
func (a *Aggregator) VerifyGroup(ctx context.Context, groupID string) (models.GroupBalance, bool, error) {
	defer a.lock(groupKey(groupID))()
	cached, ok, _ := a.cache.GetGroup(ctx, groupID)
	fresh, err := a.recomputeGroup(ctx, groupID)
	if err != nil {
		return models.GroupBalance{}, false, err
	}
	drifted := ok && !sameMembers(cached.Members, fresh.Members)
	if drifted {
		a.metrics.Drifted(metrics.ScopeGroup)
		slog.Warn("Group balance cache drifted", "group_id", groupID)
	}
	return fresh, drifted, nil
}

func groupKey(groupID string) string {
	return "group:" + groupID
}

func (a *Aggregator) groupSnapshot(ctx context.Context, groupID string) (*models.Group, []*models.SharedExpense, []*models.Settlement, error) {
	group, err := a.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, nil, nil, err
	}
	filter := storage.Filter{GroupID: groupID}
	expenses, err := a.store.FetchSharedExpenses(ctx, nil, filter)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to fetch expenses: %w", err)
	}
	settlements, err := a.store.FetchConfirmedSettlements(ctx, nil, filter)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to fetch settlements: %w", err)
	}
	return group, expenses, settlements, nil
}

func validatePair(userA, userB string) error {
	var errs apperr.ValidationErrors
	if userA == "" || userB == "" {
		errs = append(errs, apperr.Invalid("", "users", userA+","+userB, "both users are required")...)
	} else if userA == userB {
		errs = append(errs, apperr.Invalid(userA, "users", userA, "a balance needs two different users")...)
	}
	return errs.OrNil()
}

// affectedPairs lists, once each, the (payer, participant) pairs whose
// balance either version of an expense touches.
func affectedPairs(versions ...*models.SharedExpense) [][2]string {
	seen := make(map[string]bool)
	var pairs [][2]string
	for _, e := range versions {
		if e == nil {
			continue
		}
		for _, p := range e.Participants {
			if p.UserID == e.Payer {
				continue
			}
			key := cache.PairKey(e.Payer, p.UserID)
			if seen[key] {
				continue
			}
			seen[key] = true
			pairs = append(pairs, [2]string{e.Payer, p.UserID})
		}
	}
	return pairs
}

func affectedGroups(versions ...*models.SharedExpense) []string {
	seen := make(map[string]bool)
	var groups []string
	for _, e := range versions {
		if e == nil || e.GroupID == "" || seen[e.GroupID] {
			continue
		}
		seen[e.GroupID] = true
		groups = append(groups, e.GroupID)
	}
	sort.Strings(groups)
	return groups
}

func sameMembers(x, y []models.MemberBalance) bool {
	if len(x) != len(y) {
		return false
	}
	byID := make(map[string]models.MemberBalance, len(x))
	for _, m := range x {
		byID[m.UserID] = m
	}
	for _, m := range y {
		if byID[m.UserID] != m {
			return false
		}
	}
	return true
}
