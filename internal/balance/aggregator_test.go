package balance

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/settleup/internal/apperr"
	"github.com/mmynk/settleup/internal/cache"
	"github.com/mmynk/settleup/internal/calculator"
	"github.com/mmynk/settleup/internal/metrics"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/money"
	"github.com/mmynk/settleup/internal/storage"
	"github.com/mmynk/settleup/internal/storage/memory"
)

var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	ctx   context.Context
	store *memory.Store
	cache *cache.Memory
	reg   *prometheus.Registry
	agg   *Aggregator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		store: memory.New(),
		cache: cache.NewMemory(),
		reg:   prometheus.NewRegistry(),
	}
	f.agg = NewAggregator(f.store, f.cache,
		WithMetrics(metrics.New(f.reg)),
		WithClock(func() time.Time { return fixedNow }),
	)
	return f
}

// addExpense stores an expense and applies it to the cache, the way the
// service layer does.
func (f *fixture) addExpense(t *testing.T, groupID, payer string, amount money.Amount, strategy models.SplitStrategy, participants ...string) *models.SharedExpense {
	t.Helper()
	split, err := calculator.BuildSplit(amount, strategy, participants)
	require.NoError(t, err)
	e := &models.SharedExpense{
		GroupID:      groupID,
		Payer:        payer,
		Amount:       amount,
		Split:        strategy,
		Participants: split,
		Active:       true,
	}
	require.NoError(t, f.store.CreateExpense(f.ctx, e))
	require.NoError(t, f.agg.ApplyExpenseChange(f.ctx, nil, e))
	return e
}

func (f *fixture) confirmSettlement(t *testing.T, groupID, payer, recipient string, amount money.Amount) *models.Settlement {
	t.Helper()
	s := &models.Settlement{GroupID: groupID, Payer: payer, Recipient: recipient, Amount: amount, Status: models.SettlementPending}
	require.NoError(t, f.store.CreateSettlement(f.ctx, s))
	confirmed := *s
	confirmed.Status = models.SettlementConfirmed
	require.NoError(t, f.store.TransitionSettlement(f.ctx, &confirmed))
	require.NoError(t, f.agg.ApplySettlementConfirmed(f.ctx, &confirmed))
	return &confirmed
}

// assertNoDrift checks every cached value against a full recomputation.
func (f *fixture) assertNoDrift(t *testing.T, groupID string, users ...string) {
	t.Helper()
	for i := 0; i < len(users); i++ {
		for j := i + 1; j < len(users); j++ {
			_, drifted, err := f.agg.Verify(f.ctx, users[i], users[j])
			require.NoError(t, err)
			assert.False(t, drifted, "pair %s/%s drifted", users[i], users[j])
		}
	}
	if groupID != "" {
		_, drifted, err := f.agg.VerifyGroup(f.ctx, groupID)
		require.NoError(t, err)
		assert.False(t, drifted, "group %s drifted", groupID)
	}
}

func TestRecomputePairwiseBalance(t *testing.T) {
	f := newFixture(t)
	f.addExpense(t, "", "alice", 3000, models.EqualSplit{}, "alice", "bob", "carol")

	first, err := f.agg.RecomputePairwiseBalance(f.ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, money.Amount(1000), first.Amount)
	assert.Equal(t, models.BOwesA, first.Direction)
	assert.Equal(t, fixedNow, first.LastUpdated)

	// Recomputation is idempotent.
	second, err := f.agg.RecomputePairwiseBalance(f.ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	reversed, err := f.agg.PairwiseBalance(f.ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, money.Amount(-1000), reversed.Amount)
	assert.Equal(t, models.AOwesB, reversed.Direction)

	_, err = f.agg.RecomputePairwiseBalance(f.ctx, "alice", "alice")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRecomputeGroupBalances(t *testing.T) {
	f := newFixture(t)
	g := &models.Group{Name: "Flat", Members: []string{"alice", "bob", "carol"}}
	require.NoError(t, f.store.CreateGroup(f.ctx, g))

	f.addExpense(t, g.ID, "alice", 3000, models.EqualSplit{}, "alice", "bob", "carol")
	f.addExpense(t, g.ID, "bob", 1000, models.EqualSplit{}, "bob", "carol")
	// Outside the group: ignored by group balances.
	f.addExpense(t, "", "carol", 9000, models.EqualSplit{}, "alice", "carol")
	f.confirmSettlement(t, g.ID, "carol", "alice", 500)

	gb, err := f.agg.RecomputeGroupBalances(f.ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.MemberBalance{
		{UserID: "alice", NetBalance: 1500, TotalPaid: 3000, TotalOwed: 1500},
		{UserID: "bob", NetBalance: -500, TotalPaid: 1000, TotalOwed: 1500},
		{UserID: "carol", NetBalance: -1000, TotalPaid: 500, TotalOwed: 1500},
	}, gb.Members)
	require.NoError(t, calculator.CheckConservation("test", gb.Members))

	_, err = f.agg.RecomputeGroupBalances(f.ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestIncrementalUpdatesMatchRecompute(t *testing.T) {
	f := newFixture(t)
	g := &models.Group{Name: "Trip", Members: []string{"a", "b", "c", "d"}}
	require.NoError(t, f.store.CreateGroup(f.ctx, g))
	users := g.Members

	// Warm every cache entry so the incremental path is taken.
	f.assertNoDrift(t, g.ID, users...)

	hotel := f.addExpense(t, g.ID, "a", 40001, models.EqualSplit{}, "a", "b", "c", "d")
	f.assertNoDrift(t, g.ID, users...)

	f.addExpense(t, g.ID, "b", 10000, models.CustomSplit{Shares: []money.Amount{2500, 7500}}, "c", "d")
	f.assertNoDrift(t, g.ID, users...)

	// Re-split the hotel: new payer, new participants.
	edited := hotel.Clone()
	split, err := calculator.BuildSplit(30000, models.EqualSplit{}, []string{"b", "c"})
	require.NoError(t, err)
	edited.Payer = "d"
	edited.Amount = 30000
	edited.Participants = split
	require.NoError(t, f.store.UpdateExpense(f.ctx, edited))
	require.NoError(t, f.agg.ApplyExpenseChange(f.ctx, hotel, edited))
	f.assertNoDrift(t, g.ID, users...)

	f.confirmSettlement(t, g.ID, "c", "d", 1234)
	f.assertNoDrift(t, g.ID, users...)

	// Soft delete.
	deleted := edited.Clone()
	deleted.Active = false
	require.NoError(t, f.store.SoftDeleteExpense(f.ctx, edited.ID))
	require.NoError(t, f.agg.ApplyExpenseChange(f.ctx, edited, deleted))
	f.assertNoDrift(t, g.ID, users...)

	gb, err := f.agg.GroupBalances(f.ctx, g.ID)
	require.NoError(t, err)
	require.NoError(t, calculator.CheckConservation("test", gb.Members))
}

func TestVerifyDetectsDrift(t *testing.T) {
	f := newFixture(t)
	f.addExpense(t, "", "alice", 2000, models.EqualSplit{}, "alice", "bob")

	require.NoError(t, f.cache.PutPair(f.ctx, models.PairwiseBalance{UserA: "alice", UserB: "bob", Amount: 99999}))

	fresh, drifted, err := f.agg.Verify(f.ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, drifted)
	assert.Equal(t, money.Amount(1000), fresh.Amount)

	// The cache was overwritten with the recomputed value.
	cached, err := f.agg.PairwiseBalance(f.ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, money.Amount(1000), cached.Amount)

	expected := `
# HELP settleup_balance_cache_drift_total Cached balances that differed from a full recomputation.
# TYPE settleup_balance_cache_drift_total counter
settleup_balance_cache_drift_total{scope="pair"} 1
`
	require.NoError(t, testutil.GatherAndCompare(f.reg, strings.NewReader(expected), "settleup_balance_cache_drift_total"))
}

func TestApplyOverwritesCorruptGroupCache(t *testing.T) {
	f := newFixture(t)
	g := &models.Group{Name: "Team", Members: []string{"a", "b"}}
	require.NoError(t, f.store.CreateGroup(f.ctx, g))

	require.NoError(t, f.cache.PutGroup(f.ctx, models.GroupBalance{
		GroupID: g.ID,
		Members: []models.MemberBalance{{UserID: "a", NetBalance: 500}, {UserID: "b", NetBalance: 0}},
	}))

	f.addExpense(t, g.ID, "a", 1000, models.EqualSplit{}, "a", "b")

	gb, err := f.agg.GroupBalances(f.ctx, g.ID)
	require.NoError(t, err)
	a, _ := gb.Member("a")
	b, _ := gb.Member("b")
	assert.Equal(t, money.Amount(500), a.NetBalance)
	assert.Equal(t, money.Amount(-500), b.NetBalance)
}

func TestApplyAfterInterleavedRecomputeCountsOnce(t *testing.T) {
	f := newFixture(t)
	g := &models.Group{Name: "Flat", Members: []string{"alice", "bob"}}
	require.NoError(t, f.store.CreateGroup(f.ctx, g))
	f.addExpense(t, g.ID, "alice", 1000, models.EqualSplit{}, "alice", "bob")

	cached, err := f.agg.PairwiseBalance(f.ctx, "alice", "bob")
	require.NoError(t, err)
	require.Equal(t, money.Amount(500), cached.Amount)

	// The store write lands, a recomputation picks it up, and only then
	// does the writer apply its change.
	split, err := calculator.BuildSplit(2000, models.EqualSplit{}, []string{"alice", "bob"})
	require.NoError(t, err)
	e := &models.SharedExpense{GroupID: g.ID, Payer: "alice", Amount: 2000, Split: models.EqualSplit{}, Participants: split, Active: true}
	require.NoError(t, f.store.CreateExpense(f.ctx, e))
	_, err = f.agg.RecomputePairwiseBalance(f.ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = f.agg.RecomputeGroupBalances(f.ctx, g.ID)
	require.NoError(t, err)
	require.NoError(t, f.agg.ApplyExpenseChange(f.ctx, nil, e))

	bal, err := f.agg.PairwiseBalance(f.ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, money.Amount(1500), bal.Amount)
	gb, err := f.agg.GroupBalances(f.ctx, g.ID)
	require.NoError(t, err)
	a, _ := gb.Member("alice")
	assert.Equal(t, money.Amount(1500), a.NetBalance)

	// Same ordering for a confirmed settlement.
	s := &models.Settlement{GroupID: g.ID, Payer: "bob", Recipient: "alice", Amount: 700, Status: models.SettlementPending}
	require.NoError(t, f.store.CreateSettlement(f.ctx, s))
	confirmed := *s
	confirmed.Status = models.SettlementConfirmed
	require.NoError(t, f.store.TransitionSettlement(f.ctx, &confirmed))
	_, _, err = f.agg.Verify(f.ctx, "alice", "bob")
	require.NoError(t, err)
	require.NoError(t, f.agg.ApplySettlementConfirmed(f.ctx, &confirmed))

	bal, err = f.agg.PairwiseBalance(f.ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, money.Amount(800), bal.Amount)
	f.assertNoDrift(t, g.ID, "alice", "bob")
}

func TestConcurrentWritersAndRecomputesConverge(t *testing.T) {
	f := newFixture(t)
	users := []string{"a", "b", "c"}
	f.assertNoDrift(t, "", users...)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			payer := users[i%len(users)]
			split, err := calculator.BuildSplit(money.Amount(100*(i+1)), models.EqualSplit{}, users)
			if !assert.NoError(t, err) {
				return
			}
			e := &models.SharedExpense{Payer: payer, Amount: money.Amount(100 * (i + 1)), Split: models.EqualSplit{}, Participants: split, Active: true}
			if assert.NoError(t, f.store.CreateExpense(f.ctx, e)) {
				assert.NoError(t, f.agg.ApplyExpenseChange(f.ctx, nil, e))
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			_, err := f.agg.RecomputePairwiseBalance(f.ctx, users[i%3], users[(i+1)%3])
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	f.assertNoDrift(t, "", users...)
}

func TestSimplifiedSettlements(t *testing.T) {
	f := newFixture(t)
	// A paid 30 for B; B paid 30 for C. C can pay A directly.
	f.addExpense(t, "", "A", 3000, models.CustomSplit{Shares: []money.Amount{3000}}, "B")
	f.addExpense(t, "", "B", 3000, models.CustomSplit{Shares: []money.Amount{3000}}, "C")

	result, err := f.agg.SimplifiedSettlements(f.ctx, []string{"A", "B", "C"})
	require.NoError(t, err)
	assert.Len(t, result.Original, 2)
	assert.Equal(t, []calculator.Transfer{{From: "C", To: "A", Amount: 3000}}, result.Simplified)
	assert.Equal(t, 1, calculator.Stats(result).TransactionsSaved)

	_, err = f.agg.SimplifiedSettlements(f.ctx, []string{"A"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.agg.SimplifiedSettlements(f.ctx, []string{"A", "A"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestGroupSimplifiedSettlements(t *testing.T) {
	f := newFixture(t)
	g := &models.Group{Name: "Dinner", Members: []string{"A", "B", "C"}}
	require.NoError(t, f.store.CreateGroup(f.ctx, g))

	f.addExpense(t, g.ID, "C", 5000, models.CustomSplit{Shares: []money.Amount{3000, 2000}}, "A", "B")

	result, err := f.agg.GroupSimplifiedSettlements(f.ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, []calculator.Transfer{
		{From: "A", To: "C", Amount: 3000},
		{From: "B", To: "C", Amount: 2000},
	}, result.Simplified)
	assert.Len(t, result.Original, 2)
}

func TestPairwiseBalanceCountsGroupExpenses(t *testing.T) {
	f := newFixture(t)
	e := f.addExpense(t, "g-any", "alice", 1000, models.EqualSplit{}, "alice", "bob")

	fetched, err := f.store.FetchSharedExpenses(f.ctx, []string{"alice"}, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, fetched, 1)
	assert.Equal(t, e.ID, fetched[0].ID)

	bal, err := f.agg.PairwiseBalance(f.ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, money.Amount(500), bal.Amount)
}
